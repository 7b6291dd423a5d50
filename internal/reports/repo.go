package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SummaryRow aggregates one product on one sale date.
type SummaryRow struct {
	JAN         string          `json:"jan" gorm:"column:jan"`
	Name        string          `json:"name" gorm:"column:name"`
	SaleDate    string          `json:"sale_date" gorm:"column:sale_date"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"column:total_amount"`
	TotalQty    int64           `json:"total_quantity" gorm:"column:total_quantity"`
}

type summaryQuery struct {
	StoreCode string
	From      *time.Time
	To        *time.Time
}

// Repository runs the reporting aggregates.
type Repository interface {
	SaleSummary(ctx context.Context, q summaryQuery) ([]SummaryRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reports repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SaleSummary(ctx context.Context, q summaryQuery) ([]SummaryRow, error) {
	query := r.db.WithContext(ctx).
		Table("sale_line_items AS l").
		Select(`l.jan AS jan,
			MAX(l.name) AS name,
			CAST(DATE(t.sale_date) AS TEXT) AS sale_date,
			SUM(l.price * l.quantity) AS total_amount,
			SUM(l.quantity) AS total_quantity`).
		Joins("JOIN transactions AS t ON t.id = l.transaction_id")

	if q.StoreCode != "" {
		query = query.Joins("JOIN stores AS s ON s.id = t.store_id").Where("s.code = ?", q.StoreCode)
	}
	if q.From != nil {
		query = query.Where("t.sale_date >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("t.sale_date < ?", *q.To)
	}

	var rows []SummaryRow
	err := query.
		Group("l.jan").
		Group("CAST(DATE(t.sale_date) AS TEXT)").
		Order("total_quantity DESC").
		Order("sale_date DESC").
		Order("l.jan ASC").
		Scan(&rows).Error
	return rows, err
}
