package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"glowbook/internal/booking"
	"glowbook/internal/models"
)

// authorizeScheduleWrite allows schedule mutations by admins and by the
// operator owning the practitioner's venue.
func (s *Server) authorizeScheduleWrite(r *http.Request, practitionerID int64) error {
	actor := actorFrom(r)
	switch actor.Role {
	case booking.RoleAdmin:
		return nil
	case booking.RoleOperator:
		practitioner, err := s.db.GetPractitioner(r.Context(), practitionerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return booking.ErrNotFound
			}
			return err
		}
		venue, err := s.db.GetVenue(r.Context(), practitioner.VenueID)
		if err != nil {
			return err
		}
		if venue.OwnerID != actor.ID {
			return booking.ErrForbidden
		}
		return nil
	default:
		return booking.ErrForbidden
	}
}

// ScheduleEntryRequest is the body for creating or updating a weekly entry.
type ScheduleEntryRequest struct {
	DayOfWeek  int    `json:"day_of_week"` // 0 = Monday .. 6 = Sunday
	StartTime  string `json:"start_time"`  // "09:00"
	EndTime    string `json:"end_time"`    // "18:00"
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

func (s *Server) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}

	entries, err := s.db.ListWeeklySchedules(r.Context(), practitionerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": entries})
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}
	if err := s.authorizeScheduleWrite(r, practitionerID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req ScheduleEntryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	entry := &models.WeeklyScheduleEntry{
		PractitionerID: practitionerID,
		DayOfWeek:      req.DayOfWeek,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		BreakStart:     req.BreakStart,
		BreakEnd:       req.BreakEnd,
		IsActive:       true,
	}
	if err := entry.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	if err := s.db.CreateWeeklySchedule(r.Context(), entry); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invalidatePractitionerCache(r.Context(), practitionerID)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}
	entryID, err := urlID(r, "entryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid entry id")
		return
	}
	if err := s.authorizeScheduleWrite(r, practitionerID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	existing, err := s.db.GetWeeklyScheduleByID(r.Context(), entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "schedule entry not found")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	if existing.PractitionerID != practitionerID {
		writeError(w, http.StatusNotFound, "not_found", "schedule entry not found")
		return
	}

	var req ScheduleEntryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	existing.DayOfWeek = req.DayOfWeek
	existing.StartTime = req.StartTime
	existing.EndTime = req.EndTime
	existing.BreakStart = req.BreakStart
	existing.BreakEnd = req.BreakEnd
	if err := existing.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	if err := s.db.UpdateWeeklySchedule(r.Context(), existing); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invalidatePractitionerCache(r.Context(), practitionerID)
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}
	entryID, err := urlID(r, "entryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid entry id")
		return
	}
	if err := s.authorizeScheduleWrite(r, practitionerID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := s.db.DeleteWeeklySchedule(r.Context(), entryID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invalidatePractitionerCache(r.Context(), practitionerID)
	w.WriteHeader(http.StatusNoContent)
}

// DayOffRequest is the body for POST .../day-offs.
type DayOffRequest struct {
	Date   string `json:"date"` // "2026-03-02"
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleListDayOffs(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}

	from := time.Now()
	to := from.AddDate(0, 3, 0)
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

	offs, err := s.db.ListDayOffs(r.Context(), practitionerID, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day_offs": offs})
}

func (s *Server) handleCreateDayOff(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}
	if err := s.authorizeScheduleWrite(r, practitionerID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	var req DayOffRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	dayOff := &models.DayOffException{
		PractitionerID: practitionerID,
		Date:           req.Date,
		Reason:         req.Reason,
	}
	if err := dayOff.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	if err := s.db.CreateDayOff(r.Context(), dayOff); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if date, err := time.Parse("2006-01-02", dayOff.Date); err == nil {
		s.invalidateSlotsCache(r.Context(), practitionerID, date)
	}
	writeJSON(w, http.StatusCreated, dayOff)
}

func (s *Server) handleDeleteDayOff(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}
	dayOffID, err := urlID(r, "dayOffID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid day-off id")
		return
	}
	if err := s.authorizeScheduleWrite(r, practitionerID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := s.db.DeleteDayOff(r.Context(), dayOffID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	// The freed date is no longer known here, so the whole prefix goes.
	s.invalidatePractitionerCache(r.Context(), practitionerID)
	w.WriteHeader(http.StatusNoContent)
}
