package handler_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	fingermark "github.com/maevik/fingermark"
	"github.com/maevik/fingermark/internal/config"
	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/handler"
	"github.com/maevik/fingermark/internal/sse"
	"github.com/maevik/fingermark/internal/store"
	"github.com/maevik/fingermark/internal/webhook"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dataDir := t.TempDir()
	database, err := db.Open(dataDir)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database, fingermark.MigrationFS); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	blobs, err := store.New(dataDir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	cfg := config.Load()
	cfg.DataDir = dataDir

	templateFS, err := fs.Sub(fingermark.TemplateFS, "templates")
	if err != nil {
		t.Fatalf("template fs: %v", err)
	}
	staticFS, err := fs.Sub(fingermark.StaticFS, "static")
	if err != nil {
		t.Fatalf("static fs: %v", err)
	}

	h := handler.New(database, cfg, blobs, templateFS, &webhook.Dispatcher{DB: database}, sse.New())
	rl := handler.NewRateLimiter(1000, 1000)
	t.Cleanup(rl.Stop)

	srv := httptest.NewServer(h.Routes(staticFS, rl))
	t.Cleanup(srv.Close)
	return srv
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write(file)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, color.NRGBA{128, 128, 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Jobs map[string]int `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Jobs == nil {
		t.Error("missing jobs block")
	}
}

func TestWatermarkSubmitAndFetch(t *testing.T) {
	srv := newTestServer(t)

	buf, contentType := multipartUpload(t, map[string]string{"payload": "recipient-9"}, "in.png", smallPNG(t))
	resp, err := http.Post(srv.URL+"/api/v1/watermark", contentType, buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var accepted struct {
		JobID string `json:"job_id"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.JobID == "" || accepted.State != "PENDING" {
		t.Fatalf("accepted = %+v", accepted)
	}

	jobResp, err := http.Get(srv.URL + "/api/v1/jobs/" + accepted.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	defer jobResp.Body.Close()
	if jobResp.StatusCode != http.StatusOK {
		t.Fatalf("job status = %d, want 200", jobResp.StatusCode)
	}
	var job struct {
		JobID   string `json:"job_id"`
		JobType string `json:"job_type"`
		State   string `json:"state"`
	}
	if err := json.NewDecoder(jobResp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.JobType != "watermark_image" {
		t.Errorf("job type = %s, want watermark_image", job.JobType)
	}
	if job.State != "PENDING" {
		t.Errorf("job state = %s, want PENDING (no worker running)", job.State)
	}
}

func TestWatermarkSubmitRequiresPayload(t *testing.T) {
	srv := newTestServer(t)
	buf, contentType := multipartUpload(t, nil, "in.png", smallPNG(t))
	resp, err := http.Post(srv.URL+"/api/v1/watermark", contentType, buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExtractEndpointRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)
	buf, contentType := multipartUpload(t, nil, "in.bin", []byte("garbage"))
	resp, err := http.Post(srv.URL+"/api/v1/extract", contentType, buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestUnknownJob(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/jobs/33333333-3333-3333-3333-333333333333")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestIndexRenders(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
