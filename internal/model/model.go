package model

import "time"

// Job is one unit of asynchronous work: watermarking or verifying a single
// uploaded file. Inputs and outputs live in the blob store; the row carries
// only keys and parameters.
type Job struct {
	ID           string
	JobType      string // watermark_image | verify_image | watermark_pdf | verify_pdf
	State        string // PENDING | RUNNING | COMPLETED | FAILED
	Progress     int
	Payload      string
	Threshold    float64
	InputKey     string
	InputName    string
	InputMime    string
	ResultKey    string
	ResultMime   string
	ResultData   string // JSON, shape depends on JobType
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Mark records an embedded fingerprint so the digest a later verify job
// recovers can be traced back to the embed job that wrote it.
type Mark struct {
	ID         string
	DigestHex  string
	Payload    string
	JobID      string
	InputName  string
	OutputMime string
	PSNR       float64
	CreatedAt  time.Time
}

type APIKey struct {
	ID         string
	Name       string
	KeyPrefix  string
	KeyHash    string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

type Webhook struct {
	ID        string
	URL       string
	Secret    string
	Events    string // comma-separated event types, empty = all
	Enabled   bool
	CreatedAt time.Time
}

type WebhookDelivery struct {
	ID                  string
	WebhookID           string
	EventType           string
	EventID             string
	PayloadJSON         string
	AttemptNumber       int
	State               string // pending | delivered | failed | exhausted
	ResponseStatus      *int
	ResponseBodyPreview string
	ErrorMessage        string
	NextRetryAt         *time.Time
	DeliveredAt         *time.Time
	CreatedAt           time.Time
}
