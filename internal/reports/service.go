package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

// SummaryParams filters the sale summary. Dates are inclusive calendar days in UTC.
type SummaryParams struct {
	StoreCode string
	From      string
	To        string
}

// Summary is the per-product, per-day sales report with grand totals.
type Summary struct {
	Rows          []SummaryRow    `json:"rows"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalQuantity int64           `json:"total_quantity"`
}

// Service builds sales reports.
type Service interface {
	SaleSummary(ctx context.Context, params SummaryParams) (*Summary, error)
}

type service struct {
	repo Repository
}

// NewService builds the reports service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) SaleSummary(ctx context.Context, params SummaryParams) (*Summary, error) {
	q := summaryQuery{StoreCode: strings.TrimSpace(params.StoreCode)}

	from, err := parseDay("from", params.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDay("to", params.To)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	q.From = from
	if to != nil {
		end := to.AddDate(0, 0, 1)
		q.To = &end
	}

	rows, err := s.repo.SaleSummary(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sale summary")
	}

	summary := &Summary{Rows: rows, TotalAmount: decimal.Zero}
	for i := range rows {
		if len(rows[i].SaleDate) > len(dateLayout) {
			rows[i].SaleDate = rows[i].SaleDate[:len(dateLayout)]
		}
		summary.TotalAmount = summary.TotalAmount.Add(rows[i].TotalAmount)
		summary.TotalQuantity += rows[i].TotalQty
	}
	if summary.Rows == nil {
		summary.Rows = []SummaryRow{}
	}
	return summary, nil
}

func parseDay(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a date (YYYY-MM-DD)", field).
			WithDetails(map[string]any{"field": field})
	}
	return &day, nil
}
