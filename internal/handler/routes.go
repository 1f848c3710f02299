package handler

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/maevik/fingermark/internal/auth"
)

func (h *Handler) Routes(staticFS fs.FS, uploadRL *RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CSRF protects the browser forms; bearer-key API clients bypass it
	// since they carry no ambient credentials.
	csrfProtect := csrf.Protect(
		[]byte(h.Cfg.SessionSecret),
		csrf.Secure(strings.HasPrefix(h.Cfg.BaseURL, "https")),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)
	r.Use(func(next http.Handler) http.Handler {
		protected := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "+auth.KeyScheme) ||
				strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	})

	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.FS(staticFS))))

	// Web UI
	r.Get("/", h.Index)
	r.With(uploadRL.Middleware).Post("/watermark", h.WebWatermark)
	r.With(uploadRL.Middleware).Post("/verify", h.WebVerify)
	r.Get("/jobs/{id}", h.WebJob)

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.RequireAPIKey)

		r.With(uploadRL.Middleware).Post("/watermark", h.APIWatermarkSubmit)
		r.With(uploadRL.Middleware).Post("/verify", h.APIVerifySubmit)
		r.With(uploadRL.Middleware).Post("/extract", h.APIExtract)

		r.Get("/jobs", h.APIJobsList)
		r.Get("/jobs/{id}", h.APIJobGet)
		r.Get("/jobs/{id}/result", h.APIJobResult)
		r.Get("/jobs/{id}/events", h.JobSSE)

		r.Get("/status", h.APIStatus)

		r.Post("/keys", h.APIKeyCreate)
		r.Get("/keys", h.APIKeysList)
		r.Delete("/keys/{id}", h.APIKeyDelete)

		r.Post("/webhooks", h.APIWebhookCreate)
		r.Get("/webhooks", h.APIWebhooksList)
		r.Delete("/webhooks/{id}", h.APIWebhookDelete)
	})

	return r
}
