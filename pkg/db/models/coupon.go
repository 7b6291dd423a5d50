package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// Coupon is a discount voucher. Which value fields apply depends on Type.
type Coupon struct {
	Code               string               `gorm:"column:code;size:13;primaryKey"`
	Type               enums.CouponType     `gorm:"column:coupon_type;size:16;not null"`
	ExpiresAt          time.Time            `gorm:"column:expires_at;not null;index:ix_coupons_expires_at"`
	DiscountValue      decimal.Decimal      `gorm:"column:discount_value;type:numeric(12,2);not null;default:0"`
	DiscountPercentage decimal.Decimal      `gorm:"column:discount_percentage;type:numeric(5,2);not null;default:0"`
	TargetProductID    *uuid.UUID           `gorm:"column:target_product_id;type:uuid"`
	TargetProduct      *Product             `gorm:"foreignKey:TargetProductID;constraint:OnDelete:SET NULL"`
	MinQuantity        int                  `gorm:"column:min_quantity;not null;default:0"`
	ComboProducts      []CouponComboProduct `gorm:"foreignKey:CouponCode;references:Code;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// Expired reports whether the coupon is past its expiration at now.
func (c Coupon) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CouponComboProduct links a combo coupon to one of the products that must all be present.
type CouponComboProduct struct {
	CouponCode string    `gorm:"column:coupon_code;size:13;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Product    *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}
