package coupons

import (
	"fmt"
	"io"

	"github.com/angelmondragon/pos-backend/pkg/checkdigit"
	"github.com/angelmondragon/pos-backend/pkg/enums"
)

const (
	// CodePrefix is the in-store EAN range coupons are printed in.
	CodePrefix   = "28"
	randomDigits = 8
	// CodeLength is the full printed length, check digit included.
	CodeLength = len(CodePrefix) + 2 + randomDigits + 1
)

// GenerateCode builds a coupon code: prefix, two-digit type code, random
// digits drawn from rnd, and a check digit. Collisions are the caller's concern.
func GenerateCode(kind enums.CouponType, rnd io.Reader) (string, error) {
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid coupon type %q", kind)
	}
	digits, err := randomDecimal(rnd, randomDigits)
	if err != nil {
		return "", fmt.Errorf("read random digits: %w", err)
	}
	return checkdigit.Append(CodePrefix + kind.Code() + digits)
}

// randomDecimal reads n uniformly distributed decimal digits, rejecting bytes
// that would bias the result.
func randomDecimal(rnd io.Reader, n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(rnd, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
