package enums

import "fmt"

// ChangeAction labels a row of the append-only change log.
type ChangeAction string

const (
	ChangeActionCreated ChangeAction = "created"
	ChangeActionUpdated ChangeAction = "updated"
	ChangeActionDeleted ChangeAction = "deleted"
)

// ChangeEntity names the kind of entity recorded in the change log.
type ChangeEntity string

const (
	ChangeEntityProduct     ChangeEntity = "product"
	ChangeEntityStore       ChangeEntity = "store"
	ChangeEntityStock       ChangeEntity = "stock_entry"
	ChangeEntityCoupon      ChangeEntity = "coupon"
	ChangeEntityTransaction ChangeEntity = "transaction"
	ChangeEntityReturn      ChangeEntity = "return_transaction"
)

var changeEntities = []ChangeEntity{
	ChangeEntityProduct,
	ChangeEntityStore,
	ChangeEntityStock,
	ChangeEntityCoupon,
	ChangeEntityTransaction,
	ChangeEntityReturn,
}

// IsValid reports whether the value is a known ChangeEntity.
func (e ChangeEntity) IsValid() bool {
	for _, candidate := range changeEntities {
		if e == candidate {
			return true
		}
	}
	return false
}

// ParseChangeEntity converts raw input into a ChangeEntity.
func ParseChangeEntity(value string) (ChangeEntity, error) {
	candidate := ChangeEntity(value)
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid change entity %q", value)
}
