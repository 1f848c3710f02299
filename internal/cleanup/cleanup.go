// Package cleanup enforces the retention policy: finished jobs older than
// the configured window lose their rows and blobs, and settled webhook
// deliveries are pruned.
package cleanup

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/store"
)

type Cleaner struct {
	DB            *sql.DB
	Blobs         *store.Store
	Interval      time.Duration
	RetentionDays int
	cancel        context.CancelFunc
	done          chan struct{}
}

func (c *Cleaner) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx)
	slog.Info("cleanup scheduler started", "interval", c.Interval, "retention_days", c.RetentionDays)
}

func (c *Cleaner) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	slog.Info("cleanup scheduler stopped")
}

func (c *Cleaner) loop(ctx context.Context) {
	defer close(c.done)

	c.runOnce()

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runOnce()
		}
	}
}

func (c *Cleaner) runOnce() {
	cutoff := time.Now().AddDate(0, 0, -c.RetentionDays).UTC().Format("2006-01-02T15:04:05.000Z")

	jobs, err := db.ListExpiredJobs(c.DB, cutoff)
	if err != nil {
		slog.Error("cleanup: list expired jobs", "error", err)
	} else {
		for _, job := range jobs {
			// Blobs are content-addressed, so a key can be shared between
			// jobs; deleting here trades that corner case for bounded disk.
			for _, key := range []string{job.InputKey, job.ResultKey} {
				if key == "" {
					continue
				}
				if err := c.Blobs.Delete(key); err != nil {
					slog.Warn("cleanup: delete blob", "key", key, "error", err)
				}
			}
			if err := db.DeleteJob(c.DB, job.ID); err != nil {
				slog.Error("cleanup: delete job", "id", job.ID, "error", err)
				continue
			}
			slog.Info("cleanup: expired job removed", "id", job.ID)
		}
	}

	if n, err := db.PruneOldWebhookDeliveries(c.DB, time.Now().AddDate(0, 0, -90)); err != nil {
		slog.Error("cleanup: prune webhook deliveries", "error", err)
	} else if n > 0 {
		slog.Info("cleanup: pruned old webhook deliveries", "count", n)
	}
}
