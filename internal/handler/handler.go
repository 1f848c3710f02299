package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/maevik/fingermark/internal/config"
	"github.com/maevik/fingermark/internal/diskstat"
	"github.com/maevik/fingermark/internal/sse"
	"github.com/maevik/fingermark/internal/store"
	"github.com/maevik/fingermark/internal/webhook"
)

type Handler struct {
	DB        *sql.DB
	Cfg       *config.Config
	Blobs     *store.Store
	Webhook   *webhook.Dispatcher
	SSE       *sse.Hub
	DiskCache *diskstat.Cache
	templates map[string]*template.Template
}

func New(database *sql.DB, cfg *config.Config, blobs *store.Store, templateFS fs.FS, webhookDispatcher *webhook.Dispatcher, sseHub *sse.Hub) *Handler {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04 UTC")
		},
		"formatBytes": func(b int64) string {
			switch {
			case b >= 1<<30:
				return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
			case b >= 1<<20:
				return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
			case b >= 1<<10:
				return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
			default:
				return fmt.Sprintf("%d B", b)
			}
		},
		"shortenID": func(id string) string {
			if len(id) > 8 {
				return id[:8]
			}
			return id
		},
		"stateBadge": func(state string) template.HTML {
			class := "badge"
			switch state {
			case "PENDING":
				class += " badge-blue"
			case "RUNNING":
				class += " badge-yellow"
			case "COMPLETED":
				class += " badge-green"
			case "FAILED":
				class += " badge-red"
			}
			return template.HTML(fmt.Sprintf(`<span class="%s">%s</span>`, class, state))
		},
	}

	// Parse layout as the base, then per-page template sets.
	layoutTmpl := template.Must(
		template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "layout.html"),
	)
	templates := make(map[string]*template.Template)
	entries, err := fs.ReadDir(templateFS, ".")
	if err != nil {
		panic("read template dir: " + err.Error())
	}
	for _, e := range entries {
		name := e.Name()
		if name == "layout.html" || e.IsDir() {
			continue
		}
		t := template.Must(template.Must(layoutTmpl.Clone()).ParseFS(templateFS, name))
		templates[name] = t
	}

	return &Handler{
		DB:        database,
		Cfg:       cfg,
		Blobs:     blobs,
		Webhook:   webhookDispatcher,
		SSE:       sseHub,
		templates: templates,
	}
}

type PageData struct {
	Title     string
	Flash     string
	Error     string
	CSRFField template.HTML
	Data      interface{}
}

func (h *Handler) render(w http.ResponseWriter, name string, data PageData) {
	t, ok := h.templates[name]
	if !ok {
		slog.Error("template not found", "name", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		slog.Error("render template", "name", name, "error", err)
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func renderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode json response", "error", err)
	}
}

func renderJSONError(w http.ResponseWriter, status int, code, message string) {
	renderJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}
