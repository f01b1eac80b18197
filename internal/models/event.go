package models

import (
	"encoding/json"
	"time"
)

// Domain event types appended to the outbox by lifecycle transitions.
const (
	EventReservationCreated       = "reservation.created"
	EventReservationStatusChanged = "reservation.status_changed"
)

// OutboxEvent is one row in the transactional outbox. Lifecycle writes append
// events in the same transaction as the state change; a separate dispatcher
// delivers them, so notification delivery can never roll back a reservation.
type OutboxEvent struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id"` // uuid, stable across delivery retries
	Type        string    `json:"type"`
	Payload     []byte    `json:"payload"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
}

// ReservationEventPayload is the payload carried by reservation events.
type ReservationEventPayload struct {
	ReservationID  int64             `json:"reservation_id"`
	ClientID       int64             `json:"client_id"`
	VenueID        int64             `json:"venue_id"`
	VenueOwnerID   int64             `json:"venue_owner_id,omitempty"`
	PractitionerID int64             `json:"practitioner_id"`
	StartAt        time.Time         `json:"start_at"`
	EndAt          time.Time         `json:"end_at"`
	FromStatus     ReservationStatus `json:"from_status,omitempty"`
	ToStatus       ReservationStatus `json:"to_status"`
	Actor          string            `json:"actor,omitempty"`
}

// Encode marshals the payload for storage.
func (p ReservationEventPayload) Encode() []byte {
	data, _ := json.Marshal(p)
	return data
}

// DecodeReservationEvent unmarshals an outbox payload.
func DecodeReservationEvent(data []byte) (ReservationEventPayload, error) {
	var p ReservationEventPayload
	err := json.Unmarshal(data, &p)
	return p, err
}
