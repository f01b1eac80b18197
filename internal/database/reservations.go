package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"glowbook/internal/models"
)

// CreateReservationIfFree evaluates the overlap predicate and inserts the
// reservation in a single write transaction. The initial status log row and
// the outbox event land in the same transaction, so the create is
// all-or-nothing. Returns ErrConflict when an active reservation for the same
// practitioner intersects [StartAt, EndAt); exactly one of two racing inserts
// for an overlapping window succeeds.
func (db *DB) CreateReservationIfFree(ctx context.Context, r *models.Reservation, evt *models.OutboxEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var overlapping int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE practitioner_id = ?
		  AND status IN ('pending', 'confirmed')
		  AND start_at < ? AND end_at > ?`,
		r.PractitionerID, r.EndAt, r.StartAt,
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	if overlapping > 0 {
		return ErrConflict
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (
			client_id, venue_id, practitioner_id, service_id,
			start_at, end_at, status, price, payment_status,
			client_note, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ClientID, r.VenueID, r.PractitionerID, r.ServiceID,
		r.StartAt, r.EndAt, r.Status, r.Price, r.PaymentStatus,
		nullString(r.ClientNote), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reservation_status_log (reservation_id, from_status, to_status, actor, actor_id, note, created_at)
		VALUES (?, '', ?, 'client', ?, ?, ?)`,
		id, r.Status, r.ClientID, nullString(r.ClientNote), now,
	); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}

	if evt != nil {
		// The payload was built before the insert; stamp the generated id.
		if payload, perr := models.DecodeReservationEvent(evt.Payload); perr == nil {
			payload.ReservationID = id
			evt.Payload = payload.Encode()
		}
		if err := insertOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.ID = id
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}

// TransitionReservation applies from -> to as a conditional update. If the
// row's status is no longer from, nothing is written and ErrStaleStatus is
// returned so the caller can re-read and re-validate; this serializes
// concurrent transitions per reservation without long-held locks. The status
// log row and outbox event commit atomically with the change.
func (db *DB) TransitionReservation(ctx context.Context, id int64, from, to models.ReservationStatus, rec models.StatusRecord, evt *models.OutboxEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM reservations WHERE id = ?", id,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return sql.ErrNoRows
		}
		return ErrStaleStatus
	}

	if rec.Note != "" {
		if _, err := tx.ExecContext(ctx,
			"UPDATE reservations SET operator_note = ? WHERE id = ?",
			rec.Note, id,
		); err != nil {
			return fmt.Errorf("update note: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reservation_status_log (reservation_id, from_status, to_status, actor, actor_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, from, to, rec.Actor, nullInt(rec.ActorID), nullString(rec.Note), now,
	); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}

	if evt != nil {
		if err := insertOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetReservation returns a reservation by id, or sql.ErrNoRows.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, client_id, venue_id, practitioner_id, service_id,
		       start_at, end_at, status, price, payment_status,
		       client_note, operator_note, created_at, updated_at
		FROM reservations WHERE id = ?`, id,
	)
	return scanReservation(row)
}

// ListActiveReservationsForDay returns pending/confirmed reservations whose
// window intersects the calendar day of date, ordered by start time. The slot
// generator reads through this in one consistent query.
func (db *DB) ListActiveReservationsForDay(ctx context.Context, practitionerID int64, date time.Time) ([]models.Reservation, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return db.listReservations(ctx, `
		SELECT id, client_id, venue_id, practitioner_id, service_id,
		       start_at, end_at, status, price, payment_status,
		       client_note, operator_note, created_at, updated_at
		FROM reservations
		WHERE practitioner_id = ?
		  AND status IN ('pending', 'confirmed')
		  AND start_at < ? AND end_at > ?
		ORDER BY start_at`,
		practitionerID, dayEnd, dayStart,
	)
}

// ListReservationsByClient returns a client's reservations, newest first.
func (db *DB) ListReservationsByClient(ctx context.Context, clientID int64, limit, offset int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 20
	}
	return db.listReservations(ctx, `
		SELECT id, client_id, venue_id, practitioner_id, service_id,
		       start_at, end_at, status, price, payment_status,
		       client_note, operator_note, created_at, updated_at
		FROM reservations
		WHERE client_id = ?
		ORDER BY start_at DESC
		LIMIT ? OFFSET ?`,
		clientID, limit, offset,
	)
}

// ListReservationsByPractitioner returns reservations for a practitioner
// within [from, to), ordered by start time.
func (db *DB) ListReservationsByPractitioner(ctx context.Context, practitionerID int64, from, to time.Time) ([]models.Reservation, error) {
	return db.listReservations(ctx, `
		SELECT id, client_id, venue_id, practitioner_id, service_id,
		       start_at, end_at, status, price, payment_status,
		       client_note, operator_note, created_at, updated_at
		FROM reservations
		WHERE practitioner_id = ? AND start_at >= ? AND start_at < ?
		ORDER BY start_at`,
		practitionerID, from, to,
	)
}

// ListOverdueConfirmed returns confirmed reservations whose end time passed
// before the cutoff. Feeds the no-show sweep.
func (db *DB) ListOverdueConfirmed(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	return db.listReservations(ctx, `
		SELECT id, client_id, venue_id, practitioner_id, service_id,
		       start_at, end_at, status, price, payment_status,
		       client_note, operator_note, created_at, updated_at
		FROM reservations
		WHERE status = 'confirmed' AND end_at < ?
		ORDER BY end_at`,
		cutoff,
	)
}

// SetPaymentStatus updates the payment lifecycle field only.
func (db *DB) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	res, err := db.ExecContext(ctx,
		"UPDATE reservations SET payment_status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStatusLog returns the append-only status history for a reservation.
func (db *DB) ListStatusLog(ctx context.Context, reservationID int64) ([]models.StatusRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, reservation_id, from_status, to_status, actor, COALESCE(actor_id, 0), COALESCE(note, ''), created_at
		FROM reservation_status_log
		WHERE reservation_id = ?
		ORDER BY id`,
		reservationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.StatusRecord
	for rows.Next() {
		var rec models.StatusRecord
		if err := rows.Scan(
			&rec.ID, &rec.ReservationID, &rec.FromStatus, &rec.ToStatus,
			&rec.Actor, &rec.ActorID, &rec.Note, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (db *DB) listReservations(ctx context.Context, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var clientNote, operatorNote sql.NullString
	err := row.Scan(
		&r.ID, &r.ClientID, &r.VenueID, &r.PractitionerID, &r.ServiceID,
		&r.StartAt, &r.EndAt, &r.Status, &r.Price, &r.PaymentStatus,
		&clientNote, &operatorNote, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ClientNote = clientNote.String
	r.OperatorNote = operatorNote.String
	return &r, nil
}

func nullInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
