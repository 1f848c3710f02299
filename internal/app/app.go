package app

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	fingermark "github.com/maevik/fingermark"
	"github.com/maevik/fingermark/internal/auth"
	"github.com/maevik/fingermark/internal/cleanup"
	"github.com/maevik/fingermark/internal/config"
	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/diskstat"
	"github.com/maevik/fingermark/internal/handler"
	"github.com/maevik/fingermark/internal/model"
	"github.com/maevik/fingermark/internal/sse"
	"github.com/maevik/fingermark/internal/store"
	"github.com/maevik/fingermark/internal/webhook"
	"github.com/maevik/fingermark/internal/worker"
)

func Run(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}

	// Open database and run migrations
	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database, fingermark.MigrationFS); err != nil {
		return err
	}
	slog.Info("database ready")

	// Blob store
	blobs, err := store.New(cfg.DataDir)
	if err != nil {
		return err
	}

	// Optional bootstrap API key for first-run automation
	if cfg.BootstrapAPIKey != "" {
		if err := ensureBootstrapKey(database, cfg.BootstrapAPIKey); err != nil {
			return err
		}
	}

	// Webhook dispatcher + retrier
	webhookDispatcher := &webhook.Dispatcher{DB: database}
	retrier := &webhook.Retrier{DB: database}
	retrier.Start(ctx)

	// Retention cleaner
	cleaner := &cleanup.Cleaner{
		DB:            database,
		Blobs:         blobs,
		Interval:      time.Duration(cfg.CleanupIntervalMins) * time.Minute,
		RetentionDays: cfg.RetentionDays,
	}
	cleaner.Start(ctx)
	defer cleaner.Stop()

	// SSE hub for job progress
	sseHub := sse.New()

	// Worker pool
	pool := worker.NewPool(database, cfg, blobs, webhookDispatcher, sseHub)
	pool.Start(ctx)
	defer pool.Stop()

	// Template and static FS (sub-directories of the embedded FS)
	templateFS, err := fs.Sub(fingermark.TemplateFS, "templates")
	if err != nil {
		return err
	}
	staticFS, err := fs.Sub(fingermark.StaticFS, "static")
	if err != nil {
		return err
	}

	// Rate limiter for upload endpoints: 10 requests/minute, burst of 5
	uploadRL := handler.NewRateLimiter(10.0/60.0, 5)
	defer uploadRL.Stop()

	// Disk stats cache
	diskCache := diskstat.New(cfg.DataDir, 60*time.Second)
	diskCache.Start()
	defer diskCache.Stop()

	// Handler and routes
	h := handler.New(database, cfg, blobs, templateFS, webhookDispatcher, sseHub)
	h.DiskCache = diskCache
	router := h.Routes(staticFS, uploadRL)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		srv.Shutdown(context.Background())
	}()

	slog.Info("server starting", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// ensureBootstrapKey registers the configured key if its prefix is unknown.
// The plaintext comes from the environment; only its hash is stored.
func ensureBootstrapKey(database *sql.DB, key string) error {
	prefix, hash, err := auth.HashKey(key)
	if err != nil {
		return err
	}
	existing, err := db.GetAPIKeyByPrefix(database, prefix)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	slog.Info("registering bootstrap api key", "prefix", prefix)
	return db.CreateAPIKey(database, &model.APIKey{
		ID:        uuid.New().String(),
		Name:      "bootstrap",
		KeyPrefix: prefix,
		KeyHash:   hash,
	})
}
