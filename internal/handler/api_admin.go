package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maevik/fingermark/internal/auth"
	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/model"
)

// APIKeyCreate - POST /api/v1/keys. Returns the plaintext key exactly once.
func (h *Handler) APIKeyCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.Name == "" {
		renderJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}

	plaintext, prefix, hash, err := auth.GenerateKey()
	if err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "key generation failed")
		return
	}
	k := &model.APIKey{ID: uuid.New().String(), Name: req.Name, KeyPrefix: prefix, KeyHash: hash}
	if err := db.CreateAPIKey(h.DB, k); err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "key store failed")
		return
	}
	renderJSON(w, http.StatusCreated, map[string]string{
		"id": k.ID, "name": k.Name, "key": plaintext,
	})
}

// APIKeysList - GET /api/v1/keys
func (h *Handler) APIKeysList(w http.ResponseWriter, r *http.Request) {
	keys, err := db.ListAPIKeys(h.DB)
	if err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "key listing failed")
		return
	}
	type apiKey struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		KeyPrefix string `json:"key_prefix"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]apiKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, apiKey{
			ID: k.ID, Name: k.Name, KeyPrefix: k.KeyPrefix,
			CreatedAt: k.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"keys": out})
}

// APIKeyDelete - DELETE /api/v1/keys/{id}
func (h *Handler) APIKeyDelete(w http.ResponseWriter, r *http.Request) {
	if err := db.DeleteAPIKey(h.DB, chi.URLParam(r, "id")); err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "key delete failed")
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// APIWebhookCreate - POST /api/v1/webhooks
func (h *Handler) APIWebhookCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string `json:"url"`
		Secret string `json:"secret"`
		Events string `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if req.URL == "" || req.Secret == "" {
		renderJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "url and secret are required")
		return
	}
	wh := &model.Webhook{
		ID: uuid.New().String(), URL: req.URL, Secret: req.Secret,
		Events: req.Events, Enabled: true,
	}
	if err := db.CreateWebhook(h.DB, wh); err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "webhook store failed")
		return
	}
	renderJSON(w, http.StatusCreated, map[string]string{"id": wh.ID})
}

// APIWebhooksList - GET /api/v1/webhooks
func (h *Handler) APIWebhooksList(w http.ResponseWriter, r *http.Request) {
	hooks, err := db.ListWebhooks(h.DB)
	if err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "webhook listing failed")
		return
	}
	type apiHook struct {
		ID      string `json:"id"`
		URL     string `json:"url"`
		Events  string `json:"events"`
		Enabled bool   `json:"enabled"`
	}
	out := make([]apiHook, 0, len(hooks))
	for _, wh := range hooks {
		out = append(out, apiHook{ID: wh.ID, URL: wh.URL, Events: wh.Events, Enabled: wh.Enabled})
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"webhooks": out})
}

// APIWebhookDelete - DELETE /api/v1/webhooks/{id}
func (h *Handler) APIWebhookDelete(w http.ResponseWriter, r *http.Request) {
	if err := db.DeleteWebhook(h.DB, chi.URLParam(r, "id")); err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "webhook delete failed")
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
