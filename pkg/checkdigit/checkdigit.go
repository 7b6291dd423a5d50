// Package checkdigit validates JAN (EAN-8 / EAN-13) codes and tax rates.
package checkdigit

import (
	"errors"
	"strconv"
)

var errNotNumeric = errors.New("payload must contain only digits")

// Compute returns the modulus-10 check digit for payload. Weights alternate 3,1
// starting from the rightmost payload digit.
func Compute(payload string) (int, error) {
	if payload == "" {
		return 0, errNotNumeric
	}
	sum := 0
	weight := 3
	for i := len(payload) - 1; i >= 0; i-- {
		c := payload[i]
		if c < '0' || c > '9' {
			return 0, errNotNumeric
		}
		sum += int(c-'0') * weight
		weight = 4 - weight
	}
	return (10 - sum%10) % 10, nil
}

// Append returns payload with its check digit appended.
func Append(payload string) (string, error) {
	digit, err := Compute(payload)
	if err != nil {
		return "", err
	}
	return payload + strconv.Itoa(digit), nil
}

// ValidProductCode reports whether code is an 8 or 13 digit JAN with a matching check digit.
func ValidProductCode(code string) bool {
	if len(code) != 8 && len(code) != 13 {
		return false
	}
	last := code[len(code)-1]
	if last < '0' || last > '9' {
		return false
	}
	digit, err := Compute(code[:len(code)-1])
	if err != nil {
		return false
	}
	return digit == int(last-'0')
}

var taxRates = map[int]struct{}{0: {}, 8: {}, 10: {}}

// ValidTaxRate reports whether rate is one of the supported consumption tax rates.
func ValidTaxRate(rate int) bool {
	_, ok := taxRates[rate]
	return ok
}
