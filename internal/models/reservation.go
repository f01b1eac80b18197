package models

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending           ReservationStatus = "pending"
	StatusConfirmed         ReservationStatus = "confirmed"
	StatusCompleted         ReservationStatus = "completed"
	StatusNoShow            ReservationStatus = "no_show"
	StatusCancelledByClient ReservationStatus = "cancelled_by_client"
	StatusCancelledByVenue  ReservationStatus = "cancelled_by_venue"
)

// Active reports whether the reservation still occupies its time window.
// Only active reservations participate in conflict checks.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transitions are allowed.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNoShow, StatusCancelledByClient, StatusCancelledByVenue:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusNoShow,
		StatusCancelledByClient, StatusCancelledByVenue:
		return true
	}
	return false
}

// PaymentStatus is the payment lifecycle, independent of the reservation lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// Reservation is a client's claim on a practitioner for a service during a
// specific time window. EndAt is computed from the service duration at
// creation and never recomputed; Price is a creation-time snapshot.
type Reservation struct {
	ID             int64             `json:"id"`
	ClientID       int64             `json:"client_id"`
	VenueID        int64             `json:"venue_id"`
	PractitionerID int64             `json:"practitioner_id"`
	ServiceID      int64             `json:"service_id"`
	StartAt        time.Time         `json:"start_at"`
	EndAt          time.Time         `json:"end_at"`
	Status         ReservationStatus `json:"status"`
	Price          float64           `json:"price"`
	PaymentStatus  PaymentStatus     `json:"payment_status"`
	ClientNote     string            `json:"client_note,omitempty"`
	OperatorNote   string            `json:"operator_note,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Overlaps reports whether the reservation's [StartAt, EndAt) window
// intersects [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartAt.Before(end) && start.Before(r.EndAt)
}

// StatusRecord is one append-only entry in the reservation status log.
type StatusRecord struct {
	ID            int64             `json:"id"`
	ReservationID int64             `json:"reservation_id"`
	FromStatus    ReservationStatus `json:"from_status"`
	ToStatus      ReservationStatus `json:"to_status"`
	Actor         string            `json:"actor"`
	ActorID       int64             `json:"actor_id,omitempty"`
	Note          string            `json:"note,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ReservationDetails composes a reservation with the catalog summaries a
// client UI needs, built once per response.
type ReservationDetails struct {
	Reservation
	Service      ServiceSummary      `json:"service"`
	Practitioner PractitionerSummary `json:"practitioner"`
	Venue        VenueSummary        `json:"venue"`
}
