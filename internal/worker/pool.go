// Package worker runs the asynchronous job pipeline: claim a job row from
// sqlite, pull its input blob, run the codec, store the result. Codec calls
// are pure and reentrant, so jobs parallelize freely across workers.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maevik/fingermark/internal/carrier"
	"github.com/maevik/fingermark/internal/config"
	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/imageio"
	"github.com/maevik/fingermark/internal/model"
	"github.com/maevik/fingermark/internal/sse"
	"github.com/maevik/fingermark/internal/store"
	"github.com/maevik/fingermark/internal/watermark"
	"github.com/maevik/fingermark/internal/webhook"
)

const (
	JobWatermarkImage = "watermark_image"
	JobVerifyImage    = "verify_image"
	JobWatermarkPDF   = "watermark_pdf"
	JobVerifyPDF      = "verify_pdf"
)

type Pool struct {
	database *sql.DB
	cfg      *config.Config
	blobs    *store.Store
	webhook  *webhook.Dispatcher
	sseHub   *sse.Hub
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewPool(database *sql.DB, cfg *config.Config, blobs *store.Store, webhookDispatcher *webhook.Dispatcher, sseHub *sse.Hub) *Pool {
	return &Pool{database: database, cfg: cfg, blobs: blobs, webhook: webhookDispatcher, sseHub: sseHub}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	slog.Info("worker pool started", "workers", p.cfg.WorkerCount)
}

func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	jobTypes := []string{JobWatermarkImage, JobVerifyImage, JobWatermarkPDF, JobVerifyPDF}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := db.ClaimNextJob(p.database, jobTypes)
		if err != nil {
			slog.Error("claim job", "worker", id, "error", err)
			sleep(ctx, 2*time.Second)
			continue
		}
		if job == nil {
			sleep(ctx, 2*time.Second)
			continue
		}

		slog.Info("processing job", "worker", id, "job", job.ID, "type", job.JobType)

		processErr := p.process(job)

		if processErr != nil {
			slog.Error("job failed", "job", job.ID, "error", processErr)
			db.FailJob(p.database, job.ID, processErr.Error())
			p.publishState(job, "job_failed")
			p.webhook.Dispatch(webhook.EventJobFailed, map[string]interface{}{
				"job_id": job.ID, "job_type": job.JobType, "error": processErr.Error(),
			})
		} else {
			db.CompleteJob(p.database, job.ID)
			slog.Info("job completed", "job", job.ID)
			p.publishState(job, "job_completed")
			p.webhook.Dispatch(webhook.EventJobCompleted, map[string]interface{}{
				"job_id": job.ID, "job_type": job.JobType,
			})
		}
	}
}

// process dispatches one claimed job. A panic anywhere in the pipeline
// (codec, decoder, PDF library) fails that job instead of taking down the
// pool; uploads are arbitrary bytes and must not be able to crash the
// process. This mirrors what middleware.Recoverer does for the HTTP path.
func (p *Pool) process(job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "job", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	switch job.JobType {
	case JobWatermarkImage:
		return p.processWatermarkImage(job)
	case JobVerifyImage:
		return p.processVerifyImage(job)
	case JobWatermarkPDF:
		return p.processWatermarkPDF(job)
	case JobVerifyPDF:
		return p.processVerifyPDF(job)
	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
}

// embedResult is the JSON stored in result_data for watermark jobs.
type embedResult struct {
	DigestHex string  `json:"digest_hex"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	MimeType  string  `json:"mime_type"`
	PSNR      float64 `json:"psnr"`
	MaxDelta  float64 `json:"max_delta"`
}

// verifyResult is the JSON stored in result_data for verify jobs.
type verifyResult struct {
	IsMatch      bool    `json:"is_match"`
	Confidence   float64 `json:"confidence"`
	RecoveredHex string  `json:"recovered_hex"`
	// Trace fields are filled when the recovered digest matches a stored
	// embed record, exactly or within a few hex characters.
	TracedPayload string `json:"traced_payload,omitempty"`
	TracedJobID   string `json:"traced_job_id,omitempty"`
	TraceDistance *int   `json:"trace_distance,omitempty"`
}

func (p *Pool) processWatermarkImage(job *model.Job) error {
	data, err := p.blobs.GetBytes(job.InputKey)
	if err != nil {
		return fmt.Errorf("load input blob: %w", err)
	}
	p.progress(job, 10)

	pix, srcMime, err := imageio.Decode(data)
	if err != nil {
		return err
	}
	p.progress(job, 30)

	digest := watermark.DeriveDigest(job.Payload)
	marked, err := watermark.EmbedDigest(pix, digest)
	if err != nil {
		return err
	}
	p.progress(job, 60)

	quality, err := watermark.Quality(pix, marked)
	if err != nil {
		return err
	}

	outMime := imageio.OutputMime(srcMime)
	blob, err := imageio.Encode(marked, outMime, p.cfg.JPEGQuality)
	if err != nil {
		return err
	}
	p.progress(job, 80)

	resultKey, err := p.blobs.PutBytes(blob)
	if err != nil {
		return fmt.Errorf("store result blob: %w", err)
	}

	result := embedResult{
		DigestHex: digest.Hex(),
		Width:     marked.Width,
		Height:    marked.Height,
		MimeType:  outMime,
		PSNR:      quality.PSNR,
		MaxDelta:  quality.MaxDelta,
	}
	if err := p.saveResult(job.ID, resultKey, outMime, result); err != nil {
		return err
	}

	mark := &model.Mark{
		ID:         uuid.New().String(),
		DigestHex:  digest.Hex(),
		Payload:    job.Payload,
		JobID:      job.ID,
		InputName:  job.InputName,
		OutputMime: outMime,
		PSNR:       quality.PSNR,
	}
	if err := db.InsertMark(p.database, mark); err != nil {
		slog.Warn("insert mark index", "job", job.ID, "error", err)
	}
	p.progress(job, 95)
	return nil
}

func (p *Pool) processVerifyImage(job *model.Job) error {
	data, err := p.blobs.GetBytes(job.InputKey)
	if err != nil {
		return fmt.Errorf("load input blob: %w", err)
	}
	p.progress(job, 20)

	pix, _, err := imageio.Decode(data)
	if err != nil {
		return err
	}
	p.progress(job, 50)

	res, err := watermark.VerifyPixels(pix, job.Payload, job.Threshold)
	if err != nil {
		return err
	}
	p.progress(job, 80)

	return p.finishVerify(job, res)
}

func (p *Pool) processWatermarkPDF(job *model.Job) error {
	inPath, cleanup, err := p.spillInput(job)
	if err != nil {
		return err
	}
	defer cleanup()
	p.progress(job, 20)

	outPath := inPath + ".marked.pdf"
	if err := carrier.EmbedFile(inPath, outPath, job.Payload); err != nil {
		return err
	}
	p.progress(job, 70)

	out, err := os.Open(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	resultKey, _, err := p.blobs.Put(out)
	if err != nil {
		return fmt.Errorf("store result blob: %w", err)
	}

	digest := watermark.DeriveDigest(job.Payload)
	result := embedResult{DigestHex: digest.Hex(), MimeType: "application/pdf"}
	if err := p.saveResult(job.ID, resultKey, "application/pdf", result); err != nil {
		return err
	}

	mark := &model.Mark{
		ID:         uuid.New().String(),
		DigestHex:  digest.Hex(),
		Payload:    job.Payload,
		JobID:      job.ID,
		InputName:  job.InputName,
		OutputMime: "application/pdf",
	}
	if err := db.InsertMark(p.database, mark); err != nil {
		slog.Warn("insert mark index", "job", job.ID, "error", err)
	}
	p.progress(job, 95)
	return nil
}

func (p *Pool) processVerifyPDF(job *model.Job) error {
	inPath, cleanup, err := p.spillInput(job)
	if err != nil {
		return err
	}
	defer cleanup()
	p.progress(job, 30)

	res, err := carrier.VerifyFile(inPath, job.Payload, job.Threshold)
	if err != nil {
		return err
	}
	p.progress(job, 80)

	return p.finishVerify(job, res)
}

// finishVerify records the verify outcome, traces the recovered digest back
// to a stored embed when possible, and fires the match webhook.
func (p *Pool) finishVerify(job *model.Job, res watermark.VerifyResult) error {
	result := verifyResult{
		IsMatch:      res.IsMatch,
		Confidence:   res.Confidence,
		RecoveredHex: res.Recovered.Hex(),
	}

	if mark, err := db.LookupMarkByDigest(p.database, result.RecoveredHex); err == nil && mark != nil {
		zero := 0
		result.TracedPayload = mark.Payload
		result.TracedJobID = mark.JobID
		result.TraceDistance = &zero
	} else if res.Confidence >= 0.5 {
		// A confident read with no exact hit may still be a re-encoded
		// copy; look for a near match.
		if mark, dist, err := db.LookupMarkFuzzy(p.database, result.RecoveredHex, 3); err == nil && mark != nil {
			result.TracedPayload = mark.Payload
			result.TracedJobID = mark.JobID
			result.TraceDistance = &dist
		}
	}

	if err := p.saveResult(job.ID, "", "", result); err != nil {
		return err
	}
	if res.IsMatch {
		p.webhook.Dispatch(webhook.EventMatchFound, map[string]interface{}{
			"job_id":     job.ID,
			"confidence": res.Confidence,
			"digest_hex": result.RecoveredHex,
		})
	}
	return nil
}

// spillInput writes the job's input blob to a temp file for adapters that
// only speak paths (the PDF library).
func (p *Pool) spillInput(job *model.Job) (string, func(), error) {
	rc, err := p.blobs.Get(job.InputKey)
	if err != nil {
		return "", nil, fmt.Errorf("load input blob: %w", err)
	}
	defer rc.Close()

	dir, err := os.MkdirTemp("", "fingermark-job-*")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "input.pdf")
	f, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}
	if _, err := f.ReadFrom(rc); err != nil {
		f.Close()
		os.RemoveAll(dir)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}
	return path, func() { os.RemoveAll(dir) }, nil
}

func (p *Pool) saveResult(jobID, resultKey, resultMime string, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return db.SetJobResult(p.database, jobID, resultKey, resultMime, string(data))
}

func (p *Pool) progress(job *model.Job, pct int) {
	db.UpdateJobProgress(p.database, job.ID, pct)
	if p.sseHub == nil {
		return
	}
	data := fmt.Sprintf(`{"job_id":"%s","progress":%d}`, job.ID, pct)
	p.sseHub.Publish("job:"+job.ID, sse.Event{Type: "progress", Data: data})
}

func (p *Pool) publishState(job *model.Job, eventType string) {
	if p.sseHub == nil {
		return
	}
	data := fmt.Sprintf(`{"job_id":"%s"}`, job.ID)
	p.sseHub.Publish("job:"+job.ID, sse.Event{Type: eventType, Data: data})
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
