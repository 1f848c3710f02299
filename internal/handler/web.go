package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/model"
)

type indexData struct {
	Jobs  []model.Job
	Marks []model.Mark
}

// Index - GET /: upload forms plus recent activity.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	jobs, err := db.ListRecentJobs(h.DB, 20)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	marks, err := db.ListRecentMarks(h.DB, 10)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, "index.html", PageData{
		Title:     "fingermark",
		CSRFField: csrf.TemplateField(r),
		Data:      indexData{Jobs: jobs, Marks: marks},
	})
}

// WebWatermark - POST /watermark: form front-end over the same pipeline the
// JSON API drives; redirects to the job page.
func (h *Handler) WebWatermark(w http.ResponseWriter, r *http.Request) {
	h.webSubmit(w, r, true)
}

// WebVerify - POST /verify
func (h *Handler) WebVerify(w http.ResponseWriter, r *http.Request) {
	h.webSubmit(w, r, false)
}

func (h *Handler) webSubmit(w http.ResponseWriter, r *http.Request, embed bool) {
	job, serr := h.createJob(r, embed)
	if serr != nil {
		http.Error(w, serr.message, serr.status)
		return
	}
	http.Redirect(w, r, "/jobs/"+job.ID, http.StatusSeeOther)
}

type jobPageData struct {
	Job    *model.Job
	Result map[string]interface{}
}

// WebJob - GET /jobs/{id}: job status page, refreshed by the SSE stream.
func (h *Handler) WebJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.NotFound(w, r)
		return
	}
	job, err := db.GetJob(h.DB, id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.NotFound(w, r)
		return
	}

	data := jobPageData{Job: job}
	if job.ResultData != "" {
		json.Unmarshal([]byte(job.ResultData), &data.Result)
	}
	h.render(w, "job.html", PageData{
		Title:     "job " + id[:8],
		CSRFField: csrf.TemplateField(r),
		Data:      data,
	})
}
