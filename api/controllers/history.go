package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pos-backend/api/controllers/dto"
	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type historyReader interface {
	History(ctx context.Context, entity enums.ChangeEntity, entityID string) ([]models.ChangeLogEntry, error)
}

// ChangeHistory lists every recorded revision of one entity, oldest first.
func ChangeHistory(svc historyReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change log unavailable"))
			return
		}
		entity, err := enums.ParseChangeEntity(chi.URLParam(r, "entity"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown entity type"))
			return
		}
		rows, err := svc.History(r.Context(), entity, chi.URLParam(r, "entityID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewChanges(rows))
	}
}
