package enums

import "fmt"

// CouponType selects the discount policy applied by a coupon.
type CouponType string

const (
	CouponTypeProduct CouponType = "product"
	CouponTypeCombo   CouponType = "combo"
	CouponTypeMulti   CouponType = "multi"
	CouponTypeAmount  CouponType = "amount"
	CouponTypePercent CouponType = "percent"
)

var couponTypeCodes = map[CouponType]string{
	CouponTypeProduct: "01",
	CouponTypeCombo:   "02",
	CouponTypeMulti:   "03",
	CouponTypeAmount:  "04",
	CouponTypePercent: "05",
}

// String implements fmt.Stringer.
func (c CouponType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CouponType.
func (c CouponType) IsValid() bool {
	_, ok := couponTypeCodes[c]
	return ok
}

// Code returns the two digit type code embedded in generated coupon codes.
func (c CouponType) Code() string {
	return couponTypeCodes[c]
}

// NeedsTargetProduct reports whether coupons of this type reference a single product.
func (c CouponType) NeedsTargetProduct() bool {
	return c == CouponTypeProduct || c == CouponTypeMulti
}

// ParseCouponType converts raw input into a CouponType.
func ParseCouponType(value string) (CouponType, error) {
	candidate := CouponType(value)
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid coupon type %q", value)
}
