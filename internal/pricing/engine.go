package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Engine applies discounts and splits consumption tax under a fixed Config.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pricing config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Brackets maps a tax rate to the tax-inclusive subtotal sold at that rate.
type Brackets map[int]decimal.Decimal

// Sum totals every bracket.
func (b Brackets) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range b {
		total = total.Add(amount)
	}
	return total
}

// Get returns the subtotal for rate or zero.
func (b Brackets) Get(rate int) decimal.Decimal {
	if amount, ok := b[rate]; ok {
		return amount
	}
	return decimal.Zero
}

// BracketsOf groups line totals by tax rate.
func BracketsOf(lines []Line) Brackets {
	out := Brackets{}
	for _, line := range lines {
		out[line.TaxRate] = out.Get(line.TaxRate).Add(line.Total())
	}
	return out
}

// Reapportion spreads an applied discount back over the brackets so that the
// result sums to d.After.
//
// Percent, amount and combo discounts are shared by each bracket's part of the
// pre-discount total; the last configured bracket that has sales takes the
// rounding remainder. Product and multi discounts come off the target line and
// the brackets are rebuilt from the discounted line totals.
func (e *Engine) Reapportion(lines []Line, d Discount, target string) Brackets {
	brackets := BracketsOf(lines)
	if d.Amount.IsZero() {
		return brackets
	}

	if !proportional(d.Kind) {
		taken := false
		out := Brackets{}
		for _, line := range lines {
			total := line.Total()
			if !taken && line.JAN == target {
				total = total.Sub(d.Amount)
				taken = true
			}
			out[line.TaxRate] = out.Get(line.TaxRate).Add(total)
		}
		if !taken {
			return e.spread(brackets, d)
		}
		return out
	}
	return e.spread(brackets, d)
}

func (e *Engine) spread(brackets Brackets, d Discount) Brackets {
	if d.Before.IsZero() {
		return brackets
	}
	order := e.orderedRates(brackets)
	out := Brackets{}
	allocated := decimal.Zero
	for i, rate := range order {
		amount := brackets[rate]
		if i == len(order)-1 {
			out[rate] = d.After.Sub(allocated)
			continue
		}
		share := d.Amount.Mul(amount).Div(d.Before).Round(e.cfg.TaxPlaces)
		out[rate] = amount.Sub(share)
		allocated = allocated.Add(out[rate])
	}
	return out
}

// orderedRates lists configured brackets first, then any other rate present, skipping empty ones.
func (e *Engine) orderedRates(brackets Brackets) []int {
	order := make([]int, 0, len(brackets))
	seen := map[int]bool{}
	for _, rate := range e.cfg.Brackets {
		if amount, ok := brackets[rate]; ok && !amount.IsZero() {
			order = append(order, rate)
			seen[rate] = true
		}
	}
	extra := []int{}
	for rate, amount := range brackets {
		if !seen[rate] && !amount.IsZero() {
			extra = append(extra, rate)
		}
	}
	sort.Ints(extra)
	return append(order, extra...)
}
