package pricing

import "github.com/shopspring/decimal"

// TaxSplit holds the tax contained in each configured bracket.
type TaxSplit struct {
	ByRate map[int]decimal.Decimal
	Total  decimal.Decimal
}

// Rate returns the tax amount for rate or zero.
func (t TaxSplit) Rate(rate int) decimal.Decimal {
	if amount, ok := t.ByRate[rate]; ok {
		return amount
	}
	return decimal.Zero
}

// BracketTax is the tax contained in a tax-inclusive amount at rate percent.
func (e *Engine) BracketTax(inclusive decimal.Decimal, rate int) decimal.Decimal {
	r := decimal.NewFromInt(int64(rate))
	raw := inclusive.Mul(r).Div(hundred.Add(r))
	return e.cfg.TaxRounding.Round(raw, e.cfg.TaxPlaces)
}

// Split computes the tax for every configured bracket. Rates outside the
// configuration carry no tax.
func (e *Engine) Split(brackets Brackets) TaxSplit {
	out := TaxSplit{ByRate: make(map[int]decimal.Decimal, len(e.cfg.Brackets)), Total: decimal.Zero}
	for _, rate := range e.cfg.Brackets {
		amount := e.BracketTax(brackets.Get(rate), rate)
		out.ByRate[rate] = amount
		out.Total = out.Total.Add(amount)
	}
	return out
}

// SplitTax is the two-argument form of Split: (tax at 10%, tax at 8%).
func (e *Engine) SplitTax(tax10Inclusive, tax8Inclusive decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	return e.BracketTax(tax10Inclusive, 10), e.BracketTax(tax8Inclusive, 8)
}
