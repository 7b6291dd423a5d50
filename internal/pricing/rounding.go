package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode names how ties are resolved when quantizing money.
type RoundingMode string

const (
	// RoundHalfUp rounds ties away from zero.
	RoundHalfUp RoundingMode = "half_up"
	// RoundHalfDown rounds ties toward zero.
	RoundHalfDown RoundingMode = "half_down"
	// RoundHalfEven is banker's rounding.
	RoundHalfEven RoundingMode = "half_even"
	// RoundDown truncates toward zero.
	RoundDown RoundingMode = "down"
)

func ParseRoundingMode(value string) (RoundingMode, error) {
	mode := RoundingMode(strings.ToLower(strings.TrimSpace(value)))
	switch mode {
	case RoundHalfUp, RoundHalfDown, RoundHalfEven, RoundDown:
		return mode, nil
	}
	return "", fmt.Errorf("unknown rounding mode %q", value)
}

// Round quantizes d to places decimal places.
func (m RoundingMode) Round(d decimal.Decimal, places int32) decimal.Decimal {
	switch m {
	case RoundHalfUp:
		return d.Round(places)
	case RoundHalfDown:
		return roundHalfDown(d, places)
	case RoundHalfEven:
		return d.RoundBank(places)
	case RoundDown:
		return d.Truncate(places)
	}
	return d.Round(places)
}

func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	truncated := d.Truncate(places)
	remainder := d.Sub(truncated).Abs()
	half := decimal.New(5, -(places + 1))
	if remainder.Cmp(half) <= 0 {
		return truncated
	}
	unit := decimal.New(1, -places)
	if d.Sign() < 0 {
		return truncated.Sub(unit)
	}
	return truncated.Add(unit)
}
