package api

import (
	"encoding/json"
	"net/http"

	"glowbook/internal/webhook"
)

// handlePaymentWebhook receives payment-provider callbacks.
// POST /api/v1/webhooks/payment
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var evt webhook.PaymentEvent
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	if err := s.adapter.Handle(r.Context(), evt); err != nil {
		s.writeDomainError(w, err)
		return
	}

	reservation, err := s.booking.Get(r.Context(), adapterActor(), evt.ReservationID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invalidateSlotsCache(r.Context(), reservation.PractitionerID, reservation.StartAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"reservation_id": reservation.ID,
		"status":         reservation.Status,
		"payment_status": reservation.PaymentStatus,
	})
}
