package models

import "time"

// Venue is the business entity that owns practitioners and services.
type Venue struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	OwnerID   int64     `json:"owner_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Practitioner is the staff member being scheduled. Belongs to exactly one venue.
type Practitioner struct {
	ID        int64     `json:"id"`
	VenueID   int64     `json:"venue_id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service is a bookable offering with a fixed duration and price, tied to a venue.
// Which practitioners offer it is a separate eligibility link.
type Service struct {
	ID              int64     `json:"id"`
	VenueID         int64     `json:"venue_id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VenueSummary is the compact venue view embedded in reservation responses.
type VenueSummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// PractitionerSummary is the compact practitioner view embedded in reservation responses.
type PractitionerSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

// ServiceSummary is the compact service view embedded in reservation responses.
type ServiceSummary struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

func (v *Venue) Summary() VenueSummary {
	return VenueSummary{ID: v.ID, Name: v.Name, Address: v.Address, Phone: v.Phone}
}

func (p *Practitioner) Summary() PractitionerSummary {
	return PractitionerSummary{ID: p.ID, Name: p.Name, Specialty: p.Specialty}
}

func (s *Service) Summary() ServiceSummary {
	return ServiceSummary{ID: s.ID, Title: s.Title, DurationMinutes: s.DurationMinutes, Price: s.Price}
}
