// Package database provides the SQLite-backed stores for the scheduling core.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors shared by the stores. sql.ErrNoRows is passed through for
// single-row lookups; these cover the constraint cases callers must tell apart.
var (
	// ErrDuplicate means a uniqueness constraint was hit (one schedule per
	// practitioner/day, one day-off per practitioner/date).
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConflict means an overlapping active reservation already occupies
	// the requested window.
	ErrConflict = errors.New("overlapping reservation exists")
	// ErrStaleStatus means a conditional status update matched no row because
	// the reservation's status changed underneath the caller.
	ErrStaleStatus = errors.New("reservation status changed concurrently")
)

// DB wraps sql.DB for the booking engine.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations. Transactions begin
// with a write lock (_txlock=immediate) so racing reservation inserts
// serialize at the storage layer.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Venues
		`CREATE TABLE IF NOT EXISTS venues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			address TEXT,
			phone TEXT,
			owner_id INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Practitioners
		`CREATE TABLE IF NOT EXISTS practitioners (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			venue_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			specialty TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (venue_id) REFERENCES venues(id)
		)`,

		// Services
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			venue_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price REAL NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (venue_id) REFERENCES venues(id)
		)`,

		// Practitioner-service eligibility
		`CREATE TABLE IF NOT EXISTS practitioner_services (
			practitioner_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			PRIMARY KEY (practitioner_id, service_id),
			FOREIGN KEY (practitioner_id) REFERENCES practitioners(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		// Weekly schedules, one per practitioner/day-of-week
		`CREATE TABLE IF NOT EXISTS weekly_schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			practitioner_id INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			break_start TEXT,
			break_end TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (practitioner_id, day_of_week),
			FOREIGN KEY (practitioner_id) REFERENCES practitioners(id)
		)`,

		// Day-off exceptions, one per practitioner/date
		`CREATE TABLE IF NOT EXISTS day_offs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			practitioner_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (practitioner_id, date),
			FOREIGN KEY (practitioner_id) REFERENCES practitioners(id)
		)`,

		// Reservations; rows are never deleted, cancellation is a status
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL,
			venue_id INTEGER NOT NULL,
			practitioner_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			price REAL NOT NULL,
			payment_status TEXT NOT NULL DEFAULT 'pending',
			client_note TEXT,
			operator_note TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (venue_id) REFERENCES venues(id),
			FOREIGN KEY (practitioner_id) REFERENCES practitioners(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		// Append-only status log
		`CREATE TABLE IF NOT EXISTS reservation_status_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reservation_id INTEGER NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			actor TEXT NOT NULL,
			actor_id INTEGER,
			note TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (reservation_id) REFERENCES reservations(id)
		)`,

		// Transactional outbox
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			payload BLOB NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			delivered BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			delivered_at DATETIME
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_practitioners_venue ON practitioners(venue_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_practitioner ON weekly_schedules(practitioner_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_day_offs_practitioner_date ON day_offs(practitioner_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_practitioner_start ON reservations(practitioner_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_practitioner_status ON reservations(practitioner_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_client ON reservations(client_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_status_log_reservation ON reservation_status_log(reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events(delivered, created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
