package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

// LineItem is the frozen line data carried by sale and return events.
type LineItem struct {
	JAN      string          `json:"jan"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	TaxRate  int             `json:"tax_rate"`
	Quantity int             `json:"quantity"`
}

// SaleCompletedEvent is emitted when a sale transaction commits.
type SaleCompletedEvent struct {
	SaleID         string          `json:"sale_id"`
	StoreCode      string          `json:"store_code"`
	StaffCode      uint64          `json:"staff_code"`
	SoldAt         time.Time       `json:"sold_at"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	Lines          []LineItem      `json:"lines"`
}

// ReturnCompletedEvent is emitted when a return transaction commits.
type ReturnCompletedEvent struct {
	ReturnID     string             `json:"return_id"`
	OriginSaleID string             `json:"origin_sale_id"`
	StoreCode    string             `json:"store_code"`
	ReturnType   enums.ReturnType   `json:"return_type"`
	Reason       enums.ReturnReason `json:"reason"`
	ReturnedAt   time.Time          `json:"returned_at"`
	ReturnAmount decimal.Decimal    `json:"return_amount"`
	TaxAmount    decimal.Decimal    `json:"tax_amount"`
	Lines        []LineItem         `json:"lines"`
}

// CouponsPurgedEvent reports a purge of expired coupons.
type CouponsPurgedEvent struct {
	Codes    []string  `json:"codes"`
	PurgedAt time.Time `json:"purged_at"`
}
