package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/internal/reports"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type saleReporter interface {
	SaleSummary(ctx context.Context, params reports.SummaryParams) (*reports.Summary, error)
}

// SalesSummary aggregates sold quantity and amount per product and day.
func SalesSummary(svc saleReporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		q := r.URL.Query()
		summary, err := svc.SaleSummary(r.Context(), reports.SummaryParams{
			StoreCode: q.Get("storecode"),
			From:      q.Get("from"),
			To:        q.Get("to"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
