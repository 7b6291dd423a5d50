package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Transaction is a completed sale. Only Type changes after creation.
type Transaction struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	SaleID         string                `gorm:"column:sale_id;size:32;not null;uniqueIndex:ux_transactions_sale_id"`
	Type           enums.TransactionType `gorm:"column:sale_type;size:16;not null"`
	SoldAt         time.Time             `gorm:"column:sale_date;not null;index:ix_transactions_sale_date"`
	StoreID        uuid.UUID             `gorm:"column:store_id;type:uuid;not null;index:ix_transactions_store_id"`
	Store          *Store                `gorm:"foreignKey:StoreID"`
	StaffCode      uint64                `gorm:"column:staff_code;not null"`
	Deposit        decimal.Decimal       `gorm:"column:deposit;type:numeric(12,2);not null"`
	PurchasePoints int                   `gorm:"column:purchase_points;not null;default:0"`
	Tax10          decimal.Decimal       `gorm:"column:tax_10_percent;type:numeric(12,2);not null"`
	Tax8           decimal.Decimal       `gorm:"column:tax_8_percent;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	TotalAmount    decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	CouponCode     *string               `gorm:"column:coupon_code;size:13"`
	Change         decimal.Decimal       `gorm:"column:change_due;type:numeric(12,2);not null"`
	Lines          []SaleLineItem        `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// SaleLineItem freezes the product name, price and tax rate at the time of sale.
type SaleLineItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;index:ix_sale_line_items_transaction_id"`
	Position      int             `gorm:"column:position;not null"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	JAN           string          `gorm:"column:jan;size:13;not null"`
	Name          string          `gorm:"column:name;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	TaxRate       int             `gorm:"column:tax_rate;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
}

func (l *SaleLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// LineTotal is price × quantity.
func (l SaleLineItem) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
