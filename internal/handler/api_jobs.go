package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/model"
	"github.com/maevik/fingermark/internal/worker"
)

type apiJob struct {
	JobID       string          `json:"job_id"`
	JobType     string          `json:"job_type"`
	State       string          `json:"state"`
	Progress    int             `json:"progress"`
	InputName   string          `json:"input_name,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	StartedAt   *string         `json:"started_at,omitempty"`
	CompletedAt *string         `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func jobToAPI(j *model.Job) apiJob {
	out := apiJob{
		JobID:     j.ID,
		JobType:   j.JobType,
		State:     j.State,
		Progress:  j.Progress,
		InputName: j.InputName,
		Error:     j.ErrorMessage,
		CreatedAt: j.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if j.StartedAt != nil {
		s := j.StartedAt.UTC().Format("2006-01-02T15:04:05Z")
		out.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		out.CompletedAt = &s
	}
	if j.ResultData != "" {
		out.Result = json.RawMessage(j.ResultData)
	}
	return out
}

// submitError distinguishes caller mistakes from server faults when a job
// cannot be created.
type submitError struct {
	status  int
	code    string
	message string
}

func (e *submitError) Error() string { return e.message }

// createJob stores the uploaded file and enqueues a job. embed selects
// between the watermark and verify job families; PDFs are routed to the
// carrier pipeline by filename.
func (h *Handler) createJob(r *http.Request, embed bool) (*model.Job, *submitError) {
	if err := r.ParseMultipartForm(h.Cfg.MaxUploadBytes); err != nil {
		return nil, &submitError{http.StatusBadRequest, "BAD_REQUEST", "failed to parse multipart form"}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &submitError{http.StatusBadRequest, "BAD_REQUEST", "missing 'file' field in form"}
	}
	defer file.Close()

	payload := r.FormValue("payload")
	if payload == "" && embed {
		return nil, &submitError{http.StatusBadRequest, "BAD_REQUEST", "missing 'payload' field"}
	}

	threshold := h.Cfg.MatchThreshold
	if t := r.FormValue("threshold"); t != "" {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, &submitError{http.StatusBadRequest, "BAD_REQUEST", "threshold must be in [0,1]"}
		}
		threshold = f
	}

	isPDF := strings.HasSuffix(strings.ToLower(header.Filename), ".pdf")
	var jobType string
	switch {
	case embed && isPDF:
		jobType = worker.JobWatermarkPDF
	case embed:
		jobType = worker.JobWatermarkImage
	case isPDF:
		jobType = worker.JobVerifyPDF
	default:
		jobType = worker.JobVerifyImage
	}

	key, _, err := h.Blobs.Put(io.LimitReader(file, h.Cfg.MaxUploadBytes))
	if err != nil {
		return nil, &submitError{http.StatusInternalServerError, "INTERNAL", "failed to store upload"}
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		JobType:   jobType,
		Payload:   payload,
		Threshold: threshold,
		InputKey:  key,
		InputName: header.Filename,
		InputMime: header.Header.Get("Content-Type"),
	}
	if err := db.EnqueueJob(h.DB, job); err != nil {
		return nil, &submitError{http.StatusInternalServerError, "INTERNAL", "failed to enqueue job"}
	}
	return job, nil
}

func (h *Handler) submitJob(w http.ResponseWriter, r *http.Request, embed bool) {
	job, serr := h.createJob(r, embed)
	if serr != nil {
		renderJSONError(w, serr.status, serr.code, serr.message)
		return
	}
	renderJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "state": "PENDING"})
}

// APIWatermarkSubmit - POST /api/v1/watermark
func (h *Handler) APIWatermarkSubmit(w http.ResponseWriter, r *http.Request) {
	h.submitJob(w, r, true)
}

// APIVerifySubmit - POST /api/v1/verify
func (h *Handler) APIVerifySubmit(w http.ResponseWriter, r *http.Request) {
	h.submitJob(w, r, false)
}

// APIJobGet - GET /api/v1/jobs/{id}
func (h *Handler) APIJobGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		renderJSONError(w, http.StatusNotFound, "NOT_FOUND", "no such job")
		return
	}
	job, err := db.GetJob(h.DB, id)
	if err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "job lookup failed")
		return
	}
	if job == nil {
		renderJSONError(w, http.StatusNotFound, "NOT_FOUND", "no such job")
		return
	}
	renderJSON(w, http.StatusOK, jobToAPI(job))
}

// APIJobResult - GET /api/v1/jobs/{id}/result: streams the output blob.
func (h *Handler) APIJobResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := db.GetJob(h.DB, id)
	if err != nil || job == nil {
		renderJSONError(w, http.StatusNotFound, "NOT_FOUND", "no such job")
		return
	}
	if job.State != "COMPLETED" || job.ResultKey == "" {
		renderJSONError(w, http.StatusConflict, "NOT_READY", "job has no downloadable result")
		return
	}

	rc, err := h.Blobs.Get(job.ResultKey)
	if err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "result blob missing")
		return
	}
	defer rc.Close()

	if job.ResultMime != "" {
		w.Header().Set("Content-Type", job.ResultMime)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+resultFilename(job)+`"`)
	io.Copy(w, rc)
}

func resultFilename(j *model.Job) string {
	base := "result"
	if j.InputName != "" {
		base = "marked-" + j.InputName
	}
	switch j.ResultMime {
	case "image/png":
		return ensureExt(base, ".png")
	case "image/jpeg":
		return ensureExt(base, ".jpg")
	case "image/webp":
		return ensureExt(base, ".webp")
	case "application/pdf":
		return ensureExt(base, ".pdf")
	}
	return base
}

func ensureExt(name, ext string) string {
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ext
}

// APIJobsList - GET /api/v1/jobs
func (h *Handler) APIJobsList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	jobs, err := db.ListRecentJobs(h.DB, limit)
	if err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "job listing failed")
		return
	}
	out := make([]apiJob, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobToAPI(&jobs[i]))
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}
