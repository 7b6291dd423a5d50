package enums

import "fmt"

// ReturnType distinguishes full and partial returns.
type ReturnType string

const (
	ReturnTypeFull    ReturnType = "full"
	ReturnTypePartial ReturnType = "partial"
)

var validReturnTypes = []ReturnType{
	ReturnTypeFull,
	ReturnTypePartial,
}

// String implements fmt.Stringer.
func (t ReturnType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known ReturnType.
func (t ReturnType) IsValid() bool {
	for _, candidate := range validReturnTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseReturnType converts raw input into a ReturnType.
func ParseReturnType(value string) (ReturnType, error) {
	for _, candidate := range validReturnTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return type %q", value)
}

// ReturnReason records who is accountable for a return.
type ReturnReason string

const (
	ReturnReasonCustomer ReturnReason = "customer"
	ReturnReasonCompany  ReturnReason = "company"
)

var validReturnReasons = []ReturnReason{
	ReturnReasonCustomer,
	ReturnReasonCompany,
}

// String implements fmt.Stringer.
func (r ReturnReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnReason.
func (r ReturnReason) IsValid() bool {
	for _, candidate := range validReturnReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
