package enums

import "fmt"

// TransactionType is the lifecycle type of a sale transaction.
type TransactionType string

const (
	TransactionTypeSale     TransactionType = "sale"
	TransactionTypeReturned TransactionType = "returned"
	TransactionTypeVoid     TransactionType = "void"
	TransactionTypeAmend    TransactionType = "amend"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeSale,
	TransactionTypeReturned,
	TransactionTypeVoid,
	TransactionTypeAmend,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Returnable reports whether a return may be recorded against a transaction of this type.
func (t TransactionType) Returnable() bool {
	return t == TransactionTypeSale || t == TransactionTypeAmend
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
