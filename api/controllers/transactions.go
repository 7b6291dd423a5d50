package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pos-backend/api/controllers/dto"
	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/pagination"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

type saleRecorder interface {
	Create(ctx context.Context, input sales.SaleInput) (*sales.SaleResult, error)
	Get(ctx context.Context, saleID string) (*models.Transaction, error)
	List(ctx context.Context, params sales.ListParams) (*sales.ListResult, error)
	Reprint(ctx context.Context, saleID string) error
}

// TransactionCreate checks out a basket. When the sale commits but the receipt
// fails the response is still 201 and carries a warning.
func TransactionCreate(svc saleRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		var payload sales.SaleInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithStaffCode(logg.WithStoreCode(ctx, payload.StoreCode), payload.StaffCode)
		}

		result, err := svc.Create(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body := dto.NewTransaction(*result.Transaction)
		if result.ReceiptErr != nil {
			responses.WriteWarning(w, http.StatusCreated, body, receiptWarning(result.ReceiptErr))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, body)
	}
}

// TransactionLookup returns one sale for ?sale_id=, otherwise a cursor page of
// sales filtered by ?storecode=, ?from= and ?to= (inclusive days).
func TransactionLookup(svc saleRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		if saleID := strings.TrimSpace(r.URL.Query().Get("sale_id")); saleID != "" {
			txn, err := svc.Get(r.Context(), saleID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, dto.NewTransaction(*txn))
			return
		}

		params, err := transactionListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.Page{Items: dto.NewTransactions(page.Items), NextCursor: page.Cursor})
	}
}

func TransactionDetail(svc saleRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		txn, err := svc.Get(r.Context(), chi.URLParam(r, "saleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewTransaction(*txn))
	}
}

// TransactionReceipt reprints the receipt of a committed sale.
func TransactionReceipt(svc saleRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		saleID := chi.URLParam(r, "saleID")
		if err := svc.Reprint(r.Context(), saleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"sale_id": saleID, "status": "printed"})
	}
}

func transactionListParams(r *http.Request) (sales.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return sales.ListParams{}, err
	}
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return sales.ListParams{}, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return sales.ListParams{}, err
	}
	if to != nil {
		next := to.Add(24 * time.Hour)
		to = &next
	}
	if from != nil && to != nil && !from.Before(*to) {
		return sales.ListParams{}, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	return sales.ListParams{
		StoreCode: strings.TrimSpace(r.URL.Query().Get("storecode")),
		From:      from,
		To:        to,
		Params: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}, nil
}

func receiptWarning(err error) types.APIError {
	warning := types.APIError{
		Code:    string(pkgerrors.CodeExternalService),
		Message: "receipt could not be printed",
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		warning.Code = string(typed.Code())
		warning.Message = typed.Message()
	}
	return warning
}
