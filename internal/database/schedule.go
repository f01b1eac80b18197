package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"glowbook/internal/models"
)

// CreateWeeklySchedule inserts a schedule entry. Returns ErrDuplicate if an
// entry already exists for (practitioner, day_of_week) so callers can tell a
// duplicate from a generic validation failure and use update instead.
func (db *DB) CreateWeeklySchedule(ctx context.Context, e *models.WeeklyScheduleEntry) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO weekly_schedules (
			practitioner_id, day_of_week, start_time, end_time,
			break_start, break_end, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PractitionerID, e.DayOfWeek, e.StartTime, e.EndTime,
		nullString(e.BreakStart), nullString(e.BreakEnd), e.IsActive, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert schedule: %w", err)
	}
	e.ID, err = res.LastInsertId()
	e.CreatedAt, e.UpdatedAt = now, now
	return err
}

// UpdateWeeklySchedule rewrites an existing entry's hours, break and active flag.
func (db *DB) UpdateWeeklySchedule(ctx context.Context, e *models.WeeklyScheduleEntry) error {
	res, err := db.ExecContext(ctx, `
		UPDATE weekly_schedules
		SET start_time = ?, end_time = ?, break_start = ?, break_end = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		e.StartTime, e.EndTime, nullString(e.BreakStart), nullString(e.BreakEnd),
		e.IsActive, time.Now(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
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

// GetWeeklySchedule returns the active entry for (practitioner, day-of-week).
func (db *DB) GetWeeklySchedule(ctx context.Context, practitionerID int64, dayOfWeek int) (*models.WeeklyScheduleEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, practitioner_id, day_of_week, start_time, end_time,
		       break_start, break_end, is_active, created_at, updated_at
		FROM weekly_schedules
		WHERE practitioner_id = ? AND day_of_week = ? AND is_active = 1
		LIMIT 1`,
		practitionerID, dayOfWeek,
	)
	return scanScheduleEntry(row)
}

// GetWeeklyScheduleByID returns an entry regardless of its active flag.
func (db *DB) GetWeeklyScheduleByID(ctx context.Context, id int64) (*models.WeeklyScheduleEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, practitioner_id, day_of_week, start_time, end_time,
		       break_start, break_end, is_active, created_at, updated_at
		FROM weekly_schedules WHERE id = ?`, id,
	)
	return scanScheduleEntry(row)
}

// ListWeeklySchedules returns all entries for a practitioner ordered by day.
func (db *DB) ListWeeklySchedules(ctx context.Context, practitionerID int64) ([]models.WeeklyScheduleEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, practitioner_id, day_of_week, start_time, end_time,
		       break_start, break_end, is_active, created_at, updated_at
		FROM weekly_schedules
		WHERE practitioner_id = ?
		ORDER BY day_of_week`,
		practitionerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.WeeklyScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteWeeklySchedule removes an entry.
func (db *DB) DeleteWeeklySchedule(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM weekly_schedules WHERE id = ?", id)
	return err
}

// CreateDayOff inserts a day-off exception. Returns ErrDuplicate for a second
// exception on the same (practitioner, date).
func (db *DB) CreateDayOff(ctx context.Context, d *models.DayOffException) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO day_offs (practitioner_id, date, reason, created_at)
		VALUES (?, ?, ?, ?)`,
		d.PractitionerID, d.Date, nullString(d.Reason), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert day off: %w", err)
	}
	d.ID, err = res.LastInsertId()
	d.CreatedAt = now
	return err
}

// GetDayOff returns the exception for (practitioner, date), or sql.ErrNoRows.
func (db *DB) GetDayOff(ctx context.Context, practitionerID int64, date time.Time) (*models.DayOffException, error) {
	var d models.DayOffException
	var reason sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, practitioner_id, date, reason, created_at
		FROM day_offs
		WHERE practitioner_id = ? AND date = ?
		LIMIT 1`,
		practitionerID, date.Format("2006-01-02"),
	).Scan(&d.ID, &d.PractitionerID, &d.Date, &reason, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Reason = reason.String
	return &d, nil
}

// ListDayOffs returns exceptions for a practitioner within [from, to].
func (db *DB) ListDayOffs(ctx context.Context, practitionerID int64, from, to time.Time) ([]models.DayOffException, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, practitioner_id, date, reason, created_at
		FROM day_offs
		WHERE practitioner_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		practitionerID, from.Format("2006-01-02"), to.Format("2006-01-02"),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offs []models.DayOffException
	for rows.Next() {
		var d models.DayOffException
		var reason sql.NullString
		if err := rows.Scan(&d.ID, &d.PractitionerID, &d.Date, &reason, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Reason = reason.String
		offs = append(offs, d)
	}
	return offs, rows.Err()
}

// DeleteDayOff removes an exception.
func (db *DB) DeleteDayOff(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM day_offs WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScheduleEntry(row rowScanner) (*models.WeeklyScheduleEntry, error) {
	var e models.WeeklyScheduleEntry
	var breakStart, breakEnd sql.NullString
	err := row.Scan(
		&e.ID, &e.PractitionerID, &e.DayOfWeek, &e.StartTime, &e.EndTime,
		&breakStart, &breakEnd, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.BreakStart = breakStart.String
	e.BreakEnd = breakEnd.String
	return &e, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
