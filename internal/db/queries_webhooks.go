package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/maevik/fingermark/internal/model"
)

func CreateWebhook(database *sql.DB, w *model.Webhook) error {
	_, err := database.Exec(
		`INSERT INTO webhooks (id, url, secret, events, enabled) VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.URL, w.Secret, w.Events, boolToInt(w.Enabled),
	)
	return err
}

func ListWebhooks(database *sql.DB) ([]model.Webhook, error) {
	rows, err := database.Query(
		`SELECT id, url, secret, events, enabled, created_at
		 FROM webhooks ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func DeleteWebhook(database *sql.DB, id string) error {
	_, err := database.Exec(`DELETE FROM webhooks WHERE id = ?`, id)
	return err
}

// ListEnabledWebhooks returns enabled webhooks subscribed to eventType. An
// empty events column subscribes to everything.
func ListEnabledWebhooks(database *sql.DB, eventType string) ([]model.Webhook, error) {
	rows, err := database.Query(
		`SELECT id, url, secret, events, enabled, created_at
		 FROM webhooks WHERE enabled = 1 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := scanWebhooks(rows)
	if err != nil {
		return nil, err
	}
	var out []model.Webhook
	for _, w := range all {
		if w.Events == "" || containsEvent(w.Events, eventType) {
			out = append(out, w)
		}
	}
	return out, nil
}

func GetWebhookByID(database *sql.DB, id string) (*model.Webhook, error) {
	w := &model.Webhook{}
	var enabled int
	var createdAt SQLiteTime
	err := database.QueryRow(
		`SELECT id, url, secret, events, enabled, created_at FROM webhooks WHERE id = ?`, id,
	).Scan(&w.ID, &w.URL, &w.Secret, &w.Events, &enabled, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Enabled = enabled != 0
	w.CreatedAt = createdAt.Time
	return w, nil
}

func scanWebhooks(rows *sql.Rows) ([]model.Webhook, error) {
	var webhooks []model.Webhook
	for rows.Next() {
		var w model.Webhook
		var enabled int
		var createdAt SQLiteTime
		if err := rows.Scan(&w.ID, &w.URL, &w.Secret, &w.Events, &enabled, &createdAt); err != nil {
			return nil, err
		}
		w.Enabled = enabled != 0
		w.CreatedAt = createdAt.Time
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func containsEvent(events, eventType string) bool {
	for _, e := range strings.Split(events, ",") {
		if strings.TrimSpace(e) == eventType {
			return true
		}
	}
	return false
}

func CreateWebhookDelivery(database *sql.DB, d *model.WebhookDelivery) error {
	var nextRetry interface{}
	if d.NextRetryAt != nil {
		nextRetry = d.NextRetryAt.UTC().Format(time.RFC3339)
	}
	_, err := database.Exec(
		`INSERT INTO webhook_deliveries
		 (id, webhook_id, event_type, event_id, payload_json, attempt_number, state, next_retry_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.WebhookID, d.EventType, d.EventID, d.PayloadJSON, d.AttemptNumber, d.State, nextRetry,
	)
	return err
}

func UpdateWebhookDelivery(database *sql.DB, d *model.WebhookDelivery) error {
	var nextRetry, deliveredAt interface{}
	if d.NextRetryAt != nil {
		nextRetry = d.NextRetryAt.UTC().Format(time.RFC3339)
	}
	if d.DeliveredAt != nil {
		deliveredAt = d.DeliveredAt.UTC().Format(time.RFC3339)
	}
	var status interface{}
	if d.ResponseStatus != nil {
		status = *d.ResponseStatus
	}
	_, err := database.Exec(
		`UPDATE webhook_deliveries
		 SET attempt_number = ?, state = ?, response_status = ?, response_body_preview = ?,
		     error_message = ?, next_retry_at = ?, delivered_at = ?
		 WHERE id = ?`,
		d.AttemptNumber, d.State, status, d.ResponseBodyPreview,
		d.ErrorMessage, nextRetry, deliveredAt, d.ID,
	)
	return err
}

// ListDueWebhookDeliveries returns failed deliveries whose retry time has
// passed.
func ListDueWebhookDeliveries(database *sql.DB, now time.Time) ([]model.WebhookDelivery, error) {
	rows, err := database.Query(
		`SELECT id, webhook_id, event_type, event_id, payload_json, attempt_number, state
		 FROM webhook_deliveries
		 WHERE state = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= ?`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []model.WebhookDelivery
	for rows.Next() {
		var d model.WebhookDelivery
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.EventType, &d.EventID,
			&d.PayloadJSON, &d.AttemptNumber, &d.State); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func PruneOldWebhookDeliveries(database *sql.DB, cutoff time.Time) (int64, error) {
	res, err := database.Exec(
		`DELETE FROM webhook_deliveries WHERE created_at < ? AND state IN ('delivered', 'exhausted')`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
