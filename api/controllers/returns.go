package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pos-backend/api/controllers/dto"
	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	"github.com/angelmondragon/pos-backend/internal/returns"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type returnRecorder interface {
	Create(ctx context.Context, input returns.ReturnInput) (*returns.ReturnResult, error)
	Get(ctx context.Context, returnID string) (*models.ReturnTransaction, error)
}

// ReturnCreate records a full or partial return against a committed sale.
func ReturnCreate(svc returnRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		var payload returns.ReturnInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSaleID(ctx, payload.OriginSaleID)
		}

		result, err := svc.Create(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body := dto.NewReturn(*result.Return)
		if result.ReceiptErr != nil {
			responses.WriteWarning(w, http.StatusCreated, body, receiptWarning(result.ReceiptErr))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, body)
	}
}

// ReturnLookup serves GET /returntransactions?return_id=.
func ReturnLookup(svc returnRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID := strings.TrimSpace(r.URL.Query().Get("return_id"))
		if returnID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "return_id is required"))
			return
		}
		writeReturn(w, r, svc, logg, returnID)
	}
}

func ReturnDetail(svc returnRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeReturn(w, r, svc, logg, chi.URLParam(r, "returnID"))
	}
}

func writeReturn(w http.ResponseWriter, r *http.Request, svc returnRecorder, logg *logger.Logger, returnID string) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
		return
	}
	ret, err := svc.Get(r.Context(), returnID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, dto.NewReturn(*ret))
}
