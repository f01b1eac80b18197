package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"glowbook/internal/booking"
	"glowbook/internal/models"
)

// CreateReservationRequest is the body for POST /api/v1/reservations.
type CreateReservationRequest struct {
	PractitionerID int64  `json:"practitioner_id"`
	ServiceID      int64  `json:"service_id"`
	StartAt        string `json:"start_at"` // RFC 3339
	ClientNote     string `json:"client_note,omitempty"`
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.ID == 0 {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "X-Actor-ID header is required")
		return
	}

	var req CreateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	if req.PractitionerID == 0 || req.ServiceID == 0 || req.StartAt == "" {
		writeError(w, http.StatusBadRequest, "validation", "practitioner_id, service_id and start_at are required")
		return
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid start_at; expected RFC 3339")
		return
	}

	reservation, err := s.booking.Create(r.Context(), booking.CreateRequest{
		ClientID:       actor.ID,
		PractitionerID: req.PractitionerID,
		ServiceID:      req.ServiceID,
		StartAt:        startAt,
		ClientNote:     req.ClientNote,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invalidateSlotsCache(r.Context(), reservation.PractitionerID, reservation.StartAt)
	writeJSON(w, http.StatusCreated, reservation)
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid reservation id")
		return
	}

	details, err := s.booking.Details(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleReservationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid reservation id")
		return
	}

	history, err := s.booking.History(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.ID == 0 {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "X-Actor-ID header is required")
		return
	}

	limit, _ := strconv64(r.URL.Query().Get("limit"))
	offset, _ := strconv64(r.URL.Query().Get("offset"))

	list, err := s.booking.ListForClient(r.Context(), actor.ID, int(limit), int(offset))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

// handlePractitionerReservations is the operator's day view.
// GET /api/v1/practitioners/{id}/reservations?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) handlePractitionerReservations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.ID == 0 {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "X-Actor-ID header is required")
		return
	}

	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 7)
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid from date")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid to date")
			return
		}
	}

	list, err := s.booking.ListForPractitioner(r.Context(), actor, practitionerID, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

// ChangeStatusRequest is the body for POST /api/v1/reservations/{id}/status.
type ChangeStatusRequest struct {
	Status models.ReservationStatus `json:"status"`
	Note   string                   `json:"note,omitempty"`
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.ID == 0 {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "X-Actor-ID header is required")
		return
	}

	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid reservation id")
		return
	}

	var req ChangeStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "validation", "status is required")
		return
	}

	reservation, err := s.booking.Transition(r.Context(), actor, id, req.Status, req.Note)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invalidateSlotsCache(r.Context(), reservation.PractitionerID, reservation.StartAt)
	writeJSON(w, http.StatusOK, reservation)
}

// handleEvents streams the caller's reservation events as server-sent events
// until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.ID == 0 {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "X-Actor-ID header is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	sub := s.registry.Subscribe(actor.ID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
