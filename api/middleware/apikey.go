package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const defaultAPIKeyHeader = "X-API-KEY"

type keyAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.APIKey, error)
}

// APIKey rejects requests that do not carry a valid key in header.
func APIKey(auth keyAuthenticator, header string, logg *logger.Logger) func(http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		header = defaultAPIKeyHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if auth == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "api key authenticator unavailable"))
				return
			}

			token := strings.TrimSpace(r.Header.Get(header))
			if token == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, header+" header required"))
				return
			}

			key, err := auth.Authenticate(ctx, token)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithAPIKey(ctx, key.Prefix, key.Name)
			if logg != nil {
				ctx = logg.WithField(ctx, "api_key", key.Prefix)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
