package models

// All lists every persisted model in dependency order. Tests and the sqlite dev
// mode AutoMigrate from it; postgres uses the goose migrations.
func All() []any {
	return []any{
		&Store{},
		&Product{},
		&StockEntry{},
		&Coupon{},
		&CouponComboProduct{},
		&Transaction{},
		&SaleLineItem{},
		&ReturnTransaction{},
		&ReturnLineItem{},
		&ChangeLogEntry{},
		&APIKey{},
		&OutboxEvent{},
	}
}
