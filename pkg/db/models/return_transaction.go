package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// ReturnTransaction reverses all or part of an origin sale.
type ReturnTransaction struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ReturnID            string             `gorm:"column:return_id;size:32;not null;uniqueIndex:ux_return_transactions_return_id"`
	OriginTransactionID uuid.UUID          `gorm:"column:origin_transaction_id;type:uuid;not null;index:ix_return_transactions_origin"`
	Origin              *Transaction       `gorm:"foreignKey:OriginTransactionID"`
	ReturnType          enums.ReturnType   `gorm:"column:return_type;size:16;not null"`
	Reason              enums.ReturnReason `gorm:"column:reason;size:16;not null"`
	ReturnedAt          time.Time          `gorm:"column:return_date;not null"`
	StoreID             uuid.UUID          `gorm:"column:store_id;type:uuid;not null;index:ix_return_transactions_store_id"`
	Store               *Store             `gorm:"foreignKey:StoreID"`
	StaffCode           uint64             `gorm:"column:staff_code;not null"`
	ReturnPoints        int                `gorm:"column:return_points;not null;default:0"`
	Tax10               decimal.Decimal    `gorm:"column:tax_10_percent;type:numeric(12,2);not null"`
	Tax8                decimal.Decimal    `gorm:"column:tax_8_percent;type:numeric(12,2);not null"`
	TaxAmount           decimal.Decimal    `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	ReturnAmount        decimal.Decimal    `gorm:"column:return_amount;type:numeric(12,2);not null"`
	Lines               []ReturnLineItem   `gorm:"foreignKey:ReturnTransactionID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (r *ReturnTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ReturnLineItem copies the frozen data of the origin sale line.
type ReturnLineItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ReturnTransactionID uuid.UUID       `gorm:"column:return_transaction_id;type:uuid;not null;index:ix_return_line_items_return_id"`
	Position            int             `gorm:"column:position;not null"`
	ProductID           uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	JAN                 string          `gorm:"column:jan;size:13;not null"`
	Name                string          `gorm:"column:name;not null"`
	Price               decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	TaxRate             int             `gorm:"column:tax_rate;not null"`
	Quantity            int             `gorm:"column:quantity;not null"`
}

func (l *ReturnLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
