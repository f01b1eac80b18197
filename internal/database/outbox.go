package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"glowbook/internal/models"
)

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, evt *models.OutboxEvent) error {
	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (event_id, type, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		evt.EventID, evt.Type, evt.Payload, now,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	evt.ID, err = res.LastInsertId()
	evt.CreatedAt = now
	return err
}

// ListPendingEvents returns undelivered outbox events, oldest first. Events
// that already burned maxAttempts deliveries are left behind for inspection
// rather than retried forever.
func (db *DB) ListPendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, event_id, type, payload, attempts, COALESCE(last_error, ''), delivered, created_at
		FROM outbox_events
		WHERE delivered = 0 AND attempts < ?
		ORDER BY id
		LIMIT ?`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(
			&e.ID, &e.EventID, &e.Type, &e.Payload,
			&e.Attempts, &e.LastError, &e.Delivered, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkEventDelivered records a successful delivery.
func (db *DB) MarkEventDelivered(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE outbox_events SET delivered = 1, delivered_at = ? WHERE id = ?",
		time.Now(), id,
	)
	return err
}

// MarkEventFailed bumps the attempt counter and stores the last error.
func (db *DB) MarkEventFailed(ctx context.Context, id int64, deliveryErr error) error {
	msg := ""
	if deliveryErr != nil {
		msg = deliveryErr.Error()
	}
	_, err := db.ExecContext(ctx,
		"UPDATE outbox_events SET attempts = attempts + 1, last_error = ? WHERE id = ?",
		msg, id,
	)
	return err
}
