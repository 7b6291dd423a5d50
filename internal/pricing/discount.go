package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Line is one merged basket line as seen by the discount engine.
type Line struct {
	JAN      string
	Quantity int
	Price    decimal.Decimal
	TaxRate  int
}

// Total is price × quantity.
func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Policy is the closed set of coupon discount rules. Only this package implements it.
type Policy interface {
	Kind() enums.CouponType
	discount(amount decimal.Decimal, lines []Line, cfg Config) decimal.Decimal
}

// PercentPolicy takes a percentage of the basket, rounded to whole yen.
type PercentPolicy struct {
	Percentage decimal.Decimal
}

// AmountPolicy takes a fixed amount off any basket.
type AmountPolicy struct {
	Value decimal.Decimal
}

// ProductPolicy takes a fixed amount off when the target product is in the basket.
type ProductPolicy struct {
	Value     decimal.Decimal
	TargetJAN string
}

// ComboPolicy takes a fixed amount off when every listed product is in the basket.
type ComboPolicy struct {
	Value decimal.Decimal
	JANs  []string
}

// MultiPolicy takes Value off for every MinQuantity units of the target product.
type MultiPolicy struct {
	Value       decimal.Decimal
	TargetJAN   string
	MinQuantity int
}

func (PercentPolicy) Kind() enums.CouponType { return enums.CouponTypePercent }
func (AmountPolicy) Kind() enums.CouponType  { return enums.CouponTypeAmount }
func (ProductPolicy) Kind() enums.CouponType { return enums.CouponTypeProduct }
func (ComboPolicy) Kind() enums.CouponType   { return enums.CouponTypeCombo }
func (MultiPolicy) Kind() enums.CouponType   { return enums.CouponTypeMulti }

func (p PercentPolicy) discount(amount decimal.Decimal, _ []Line, cfg Config) decimal.Decimal {
	return cfg.DiscountRounding.Round(amount.Mul(p.Percentage).Div(hundred), 0)
}

func (p AmountPolicy) discount(decimal.Decimal, []Line, Config) decimal.Decimal {
	return p.Value
}

func (p ProductPolicy) discount(_ decimal.Decimal, lines []Line, _ Config) decimal.Decimal {
	for _, line := range lines {
		if line.JAN == p.TargetJAN {
			return p.Value
		}
	}
	return decimal.Zero
}

func (p ComboPolicy) discount(_ decimal.Decimal, lines []Line, _ Config) decimal.Decimal {
	present := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		present[line.JAN] = struct{}{}
	}
	for _, jan := range p.JANs {
		if _, ok := present[jan]; !ok {
			return decimal.Zero
		}
	}
	return p.Value.Truncate(0)
}

func (p MultiPolicy) discount(_ decimal.Decimal, lines []Line, _ Config) decimal.Decimal {
	if p.MinQuantity <= 0 {
		return decimal.Zero
	}
	qty := 0
	for _, line := range lines {
		if line.JAN == p.TargetJAN {
			qty += line.Quantity
		}
	}
	if qty < p.MinQuantity {
		return decimal.Zero
	}
	return p.Value.Mul(decimal.NewFromInt(int64(qty / p.MinQuantity)))
}

// Discount is the outcome of applying a policy to a pre-discount amount.
type Discount struct {
	Kind   enums.CouponType
	Before decimal.Decimal
	After  decimal.Decimal
	Amount decimal.Decimal
}

// ApplyDiscount returns (amount - discount, discount). The result is not clamped at zero.
func (e *Engine) ApplyDiscount(amount decimal.Decimal, policy Policy, lines []Line) Discount {
	if policy == nil {
		return Discount{Before: amount, After: amount, Amount: decimal.Zero}
	}
	d := policy.discount(amount, lines, e.cfg)
	return Discount{
		Kind:   policy.Kind(),
		Before: amount,
		After:  amount.Sub(d),
		Amount: d,
	}
}

// proportional reports whether the discount is spread across brackets by their share
// of the pre-discount total rather than taken from the target product's line.
func proportional(kind enums.CouponType) bool {
	switch kind {
	case enums.CouponTypePercent, enums.CouponTypeAmount, enums.CouponTypeCombo:
		return true
	}
	return false
}
