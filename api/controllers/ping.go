package controllers

import (
	"net/http"

	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/api/responses"
)

// Ping answers the register connectivity check.
func Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"status": "ok"}
		if name := middleware.APIKeyNameFromContext(r.Context()); name != "" {
			payload["client"] = name
		}
		responses.WriteSuccess(w, payload)
	}
}
