package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/pos-backend/api/controllers/dto"
	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type stockReader interface {
	List(ctx context.Context, filter stock.Filter) ([]models.StockEntry, error)
}

type stockMaintainer interface {
	Regenerate(ctx context.Context, sel stock.Selection) (stock.BulkResult, error)
	AddQuantity(ctx context.Context, sel stock.Selection, n int) (stock.BulkResult, error)
	Reset(ctx context.Context, sel stock.Selection) (stock.BulkResult, error)
}

type stockSelectionRequest struct {
	StoreCodes []string `json:"store_codes" validate:"omitempty,dive,numeric"`
	JANs       []string `json:"jans" validate:"omitempty,dive,jan"`
	Quantity   int      `json:"quantity,omitempty" validate:"gte=0"`
}

func (r stockSelectionRequest) selection() stock.Selection {
	return stock.Selection{StoreCodes: r.StoreCodes, JANs: r.JANs}
}

// StockLookup lists stock entries filtered by ?jan=, ?storecode= and ?negative=true.
func StockLookup(svc stockReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		negative, err := validators.ParseQueryBool(r, "negative")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 200, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), stock.Filter{
			StoreCode:    strings.TrimSpace(r.URL.Query().Get("storecode")),
			JAN:          strings.TrimSpace(r.URL.Query().Get("jan")),
			NegativeOnly: negative,
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewStocks(rows))
	}
}

// AdminStockRegenerate creates every missing (store, product) stock row.
func AdminStockRegenerate(svc stockMaintainer, logg *logger.Logger) http.HandlerFunc {
	return stockBulk(svc, logg, func(ctx context.Context, req stockSelectionRequest) (stock.BulkResult, error) {
		return svc.Regenerate(ctx, req.selection())
	})
}

// AdminStockAdd restocks the selection by quantity (default 10).
func AdminStockAdd(svc stockMaintainer, logg *logger.Logger) http.HandlerFunc {
	return stockBulk(svc, logg, func(ctx context.Context, req stockSelectionRequest) (stock.BulkResult, error) {
		return svc.AddQuantity(ctx, req.selection(), req.Quantity)
	})
}

// AdminStockReset zeroes the selection.
func AdminStockReset(svc stockMaintainer, logg *logger.Logger) http.HandlerFunc {
	return stockBulk(svc, logg, func(ctx context.Context, req stockSelectionRequest) (stock.BulkResult, error) {
		return svc.Reset(ctx, req.selection())
	})
}

func stockBulk(svc stockMaintainer, logg *logger.Logger, run func(context.Context, stockSelectionRequest) (stock.BulkResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		var payload stockSelectionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := run(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
