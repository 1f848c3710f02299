package handler

import (
	"net/http"
	"strings"

	"github.com/maevik/fingermark/internal/auth"
	"github.com/maevik/fingermark/internal/db"
)

// RequireAPIKey guards the JSON API. When no keys exist yet the API runs
// open, so a fresh instance is usable before any key is provisioned; the
// first CreateAPIKey closes that window.
func (h *Handler) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := db.CountAPIKeys(h.DB)
		if err != nil {
			renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "key lookup failed")
			return
		}
		if count == 0 {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer "+auth.KeyScheme) {
			renderJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing API key")
			return
		}
		presented := strings.TrimPrefix(authHeader, "Bearer ")
		keyID, ok := auth.ValidateKey(h.DB, presented)
		if !ok {
			renderJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithKeyID(r.Context(), keyID)))
	})
}
