package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
)

type Product struct {
	ID        uuid.UUID       `json:"id"`
	JAN       string          `json:"jan"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	TaxRate   int             `json:"tax_rate"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Store struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Stock struct {
	StoreCode string    `json:"store_code"`
	JAN       string    `json:"jan"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Coupon struct {
	Code               string           `json:"code"`
	Type               enums.CouponType `json:"type"`
	ExpiresAt          time.Time        `json:"expires_at"`
	DiscountValue      decimal.Decimal  `json:"discount_value"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	TargetJAN          string           `json:"target_jan,omitempty"`
	MinQuantity        int              `json:"min_quantity,omitempty"`
	ComboJANs          []string         `json:"combo_jans,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Line is a frozen sale or return line.
type Line struct {
	JAN       string          `json:"jan"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	TaxRate   int             `json:"tax_rate"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Transaction struct {
	SaleID         string                `json:"sale_id"`
	Type           enums.TransactionType `json:"sale_type"`
	SaleDate       time.Time             `json:"sale_date"`
	StoreCode      string                `json:"store_code"`
	StaffCode      uint64                `json:"staff_code"`
	Deposit        decimal.Decimal       `json:"deposit"`
	PurchasePoints int                   `json:"purchase_points"`
	Tax10          decimal.Decimal       `json:"tax_10_percent"`
	Tax8           decimal.Decimal       `json:"tax_8_percent"`
	TaxAmount      decimal.Decimal       `json:"tax_amount"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	DiscountAmount decimal.Decimal       `json:"discount_amount"`
	CouponCode     *string               `json:"coupon_code,omitempty"`
	Change         decimal.Decimal       `json:"change"`
	Lines          []Line                `json:"items,omitempty"`
}

type Return struct {
	ReturnID     string             `json:"return_id"`
	OriginSaleID string             `json:"sale_id,omitempty"`
	ReturnType   enums.ReturnType   `json:"return_type"`
	Reason       enums.ReturnReason `json:"reason"`
	ReturnDate   time.Time          `json:"return_date"`
	StoreCode    string             `json:"store_code"`
	StaffCode    uint64             `json:"staff_code"`
	ReturnPoints int                `json:"return_points"`
	Tax10        decimal.Decimal    `json:"tax_10_percent"`
	Tax8         decimal.Decimal    `json:"tax_8_percent"`
	TaxAmount    decimal.Decimal    `json:"tax_amount"`
	ReturnAmount decimal.Decimal    `json:"return_amount"`
	Lines        []Line             `json:"items,omitempty"`
}

type Change struct {
	EntityType enums.ChangeEntity `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Revision   int                `json:"revision"`
	Action     enums.ChangeAction `json:"action"`
	Actor      string             `json:"actor,omitempty"`
	Snapshot   json.RawMessage    `json:"snapshot"`
	CreatedAt  time.Time          `json:"created_at"`
}

func NewProduct(p models.Product) Product {
	return Product{
		ID:        p.ID,
		JAN:       p.JAN,
		Name:      p.Name,
		Price:     p.Price,
		TaxRate:   p.TaxRate,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func NewProducts(rows []models.Product) []Product {
	out := make([]Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewProduct(row))
	}
	return out
}

func NewStore(s models.Store) Store {
	return Store{ID: s.ID, Code: s.Code, Name: s.Name, CreatedAt: s.CreatedAt}
}

func NewStores(rows []models.Store) []Store {
	out := make([]Store, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewStore(row))
	}
	return out
}

func NewStocks(rows []models.StockEntry) []Stock {
	out := make([]Stock, 0, len(rows))
	for _, row := range rows {
		item := Stock{Quantity: row.Quantity, UpdatedAt: row.UpdatedAt}
		if row.Store != nil {
			item.StoreCode = row.Store.Code
		}
		if row.Product != nil {
			item.JAN = row.Product.JAN
			item.Name = row.Product.Name
		}
		out = append(out, item)
	}
	return out
}

func NewCoupon(c models.Coupon) Coupon {
	out := Coupon{
		Code:               c.Code,
		Type:               c.Type,
		ExpiresAt:          c.ExpiresAt,
		DiscountValue:      c.DiscountValue,
		DiscountPercentage: c.DiscountPercentage,
		MinQuantity:        c.MinQuantity,
		CreatedAt:          c.CreatedAt,
	}
	if c.TargetProduct != nil {
		out.TargetJAN = c.TargetProduct.JAN
	}
	for _, combo := range c.ComboProducts {
		if combo.Product != nil {
			out.ComboJANs = append(out.ComboJANs, combo.Product.JAN)
		}
	}
	return out
}

func NewCoupons(rows []models.Coupon) []Coupon {
	out := make([]Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewCoupon(row))
	}
	return out
}

func NewTransaction(t models.Transaction) Transaction {
	out := Transaction{
		SaleID:         t.SaleID,
		Type:           t.Type,
		SaleDate:       t.SoldAt,
		StaffCode:      t.StaffCode,
		Deposit:        t.Deposit,
		PurchasePoints: t.PurchasePoints,
		Tax10:          t.Tax10,
		Tax8:           t.Tax8,
		TaxAmount:      t.TaxAmount,
		TotalAmount:    t.TotalAmount,
		DiscountAmount: t.DiscountAmount,
		CouponCode:     t.CouponCode,
		Change:         t.Change,
	}
	if t.Store != nil {
		out.StoreCode = t.Store.Code
	}
	for _, l := range t.Lines {
		out.Lines = append(out.Lines, Line{
			JAN:       l.JAN,
			Name:      l.Name,
			Price:     l.Price,
			TaxRate:   l.TaxRate,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal(),
		})
	}
	return out
}

func NewTransactions(rows []models.Transaction) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewTransaction(row))
	}
	return out
}

func NewReturn(r models.ReturnTransaction) Return {
	out := Return{
		ReturnID:     r.ReturnID,
		ReturnType:   r.ReturnType,
		Reason:       r.Reason,
		ReturnDate:   r.ReturnedAt,
		StaffCode:    r.StaffCode,
		ReturnPoints: r.ReturnPoints,
		Tax10:        r.Tax10,
		Tax8:         r.Tax8,
		TaxAmount:    r.TaxAmount,
		ReturnAmount: r.ReturnAmount,
	}
	if r.Origin != nil {
		out.OriginSaleID = r.Origin.SaleID
	}
	if r.Store != nil {
		out.StoreCode = r.Store.Code
	}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, Line{
			JAN:       l.JAN,
			Name:      l.Name,
			Price:     l.Price,
			TaxRate:   l.TaxRate,
			Quantity:  l.Quantity,
			LineTotal: l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return out
}

func NewChanges(rows []models.ChangeLogEntry) []Change {
	out := make([]Change, 0, len(rows))
	for _, row := range rows {
		out = append(out, Change{
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Revision:   row.Revision,
			Action:     row.Action,
			Actor:      row.Actor,
			Snapshot:   row.Snapshot,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out
}
