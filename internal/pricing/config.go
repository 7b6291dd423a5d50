package pricing

import (
	"fmt"
	"slices"

	"github.com/angelmondragon/pos-backend/pkg/config"
)

// Config makes the rounding modes and the tax bracket set explicit.
type Config struct {
	DiscountRounding RoundingMode
	TaxRounding      RoundingMode
	TaxPlaces        int32
	// Brackets lists the tax rates (percent) that are split out, in report order.
	Brackets []int
}

func DefaultConfig() Config {
	return Config{
		DiscountRounding: RoundHalfUp,
		TaxRounding:      RoundHalfDown,
		TaxPlaces:        2,
		Brackets:         []int{10, 8},
	}
}

// ConfigFrom converts the env-driven pricing section.
func ConfigFrom(cfg config.PricingConfig) (Config, error) {
	discount, err := ParseRoundingMode(cfg.DiscountRounding)
	if err != nil {
		return Config{}, fmt.Errorf("discount rounding: %w", err)
	}
	tax, err := ParseRoundingMode(cfg.TaxRounding)
	if err != nil {
		return Config{}, fmt.Errorf("tax rounding: %w", err)
	}
	out := Config{
		DiscountRounding: discount,
		TaxRounding:      tax,
		TaxPlaces:        cfg.TaxPlaces,
		Brackets:         append([]int(nil), cfg.TaxBrackets...),
	}
	return out, out.validate()
}

func (c Config) validate() error {
	if len(c.Brackets) == 0 {
		return fmt.Errorf("at least one tax bracket is required")
	}
	seen := map[int]bool{}
	for _, rate := range c.Brackets {
		if rate <= 0 {
			return fmt.Errorf("tax bracket %d must be positive", rate)
		}
		if seen[rate] {
			return fmt.Errorf("duplicate tax bracket %d", rate)
		}
		seen[rate] = true
	}
	if c.TaxPlaces < 0 {
		return fmt.Errorf("tax places must not be negative")
	}
	return nil
}

// HasBracket reports whether rate is one of the configured brackets.
func (c Config) HasBracket(rate int) bool {
	return slices.Contains(c.Brackets, rate)
}
