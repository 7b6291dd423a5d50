package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockEntry is the on-hand quantity for one (store, product) pair. Quantity may go negative.
type StockEntry struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID   uuid.UUID `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_stock_entries_store_product,priority:1"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_entries_store_product,priority:2"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	Store     *Store    `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
	Product   *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *StockEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
