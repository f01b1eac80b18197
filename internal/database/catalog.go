package database

import (
	"context"
	"time"

	"glowbook/internal/models"
)

// GetVenue returns a venue by id.
func (db *DB) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	var v models.Venue
	err := db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(address, ''), COALESCE(phone, ''), owner_id, is_active, created_at, updated_at
		FROM venues WHERE id = ?`, id,
	).Scan(&v.ID, &v.Name, &v.Address, &v.Phone, &v.OwnerID, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetPractitioner returns a practitioner by id.
func (db *DB) GetPractitioner(ctx context.Context, id int64) (*models.Practitioner, error) {
	var p models.Practitioner
	err := db.QueryRowContext(ctx, `
		SELECT id, venue_id, name, COALESCE(specialty, ''), is_active, created_at, updated_at
		FROM practitioners WHERE id = ?`, id,
	).Scan(&p.ID, &p.VenueID, &p.Name, &p.Specialty, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetService returns a service by id.
func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := db.QueryRowContext(ctx, `
		SELECT id, venue_id, title, duration_minutes, price, is_active, created_at, updated_at
		FROM services WHERE id = ?`, id,
	).Scan(&s.ID, &s.VenueID, &s.Title, &s.DurationMinutes, &s.Price, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IsPractitionerEligible reports whether the practitioner offers the service.
func (db *DB) IsPractitionerEligible(ctx context.Context, practitionerID, serviceID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM practitioner_services WHERE practitioner_id = ? AND service_id = ?",
		practitionerID, serviceID,
	).Scan(&count)
	return count > 0, err
}

// CreateVenue inserts a venue. Catalog management proper lives outside the
// engine; these writers exist for seeding and tests.
func (db *DB) CreateVenue(ctx context.Context, v *models.Venue) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO venues (name, address, phone, owner_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.Name, v.Address, v.Phone, v.OwnerID, v.IsActive, now, now,
	)
	if err != nil {
		return err
	}
	v.ID, err = res.LastInsertId()
	v.CreatedAt, v.UpdatedAt = now, now
	return err
}

// CreatePractitioner inserts a practitioner.
func (db *DB) CreatePractitioner(ctx context.Context, p *models.Practitioner) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO practitioners (venue_id, name, specialty, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.VenueID, p.Name, p.Specialty, p.IsActive, now, now,
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	p.CreatedAt, p.UpdatedAt = now, now
	return err
}

// CreateService inserts a service.
func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO services (venue_id, title, duration_minutes, price, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.VenueID, s.Title, s.DurationMinutes, s.Price, s.IsActive, now, now,
	)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	s.CreatedAt, s.UpdatedAt = now, now
	return err
}

// UpdateServiceDuration changes a service's duration. Existing reservations
// keep their stored end times.
func (db *DB) UpdateServiceDuration(ctx context.Context, serviceID int64, minutes int) error {
	_, err := db.ExecContext(ctx,
		"UPDATE services SET duration_minutes = ?, updated_at = ? WHERE id = ?",
		minutes, time.Now(), serviceID,
	)
	return err
}

// LinkPractitionerService marks the practitioner as offering the service.
func (db *DB) LinkPractitionerService(ctx context.Context, practitionerID, serviceID int64) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO practitioner_services (practitioner_id, service_id) VALUES (?, ?)",
		practitionerID, serviceID,
	)
	return err
}

// UnlinkPractitionerService removes the eligibility link.
func (db *DB) UnlinkPractitionerService(ctx context.Context, practitionerID, serviceID int64) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM practitioner_services WHERE practitioner_id = ? AND service_id = ?",
		practitionerID, serviceID,
	)
	return err
}
