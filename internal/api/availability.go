package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"glowbook/internal/metrics"
	"glowbook/internal/slots"
)

// handleSlots returns the slot sequence for a practitioner, date and service.
// GET /api/v1/practitioners/{id}/slots?date=YYYY-MM-DD&service_id=N
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid practitioner id")
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid date; expected YYYY-MM-DD")
		return
	}

	serviceID, err := strconv64(r.URL.Query().Get("service_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid service_id")
		return
	}

	svc, err := s.db.GetService(r.Context(), serviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "service not found")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	cacheKey := fmt.Sprintf("slots:%d:%s:%d", practitionerID, dateStr, svc.DurationMinutes)
	var day slots.DaySchedule
	if s.readCache(r.Context(), cacheKey, &day) {
		metrics.IncAvailabilityRequest("hit")
		writeJSON(w, http.StatusOK, day)
		return
	}
	metrics.IncAvailabilityRequest("miss")

	generated, err := s.slots.Generate(r.Context(), practitionerID, date, svc.DurationMinutes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeCache(r.Context(), cacheKey, generated)
	writeJSON(w, http.StatusOK, generated)
}

// readCache loads a cached value. A nil client or zero TTL disables caching;
// cache errors are treated as misses.
func (s *Server) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}
	val, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (s *Server) writeCache(ctx context.Context, key string, val any) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, data, s.cacheTTL).Err()
}

// invalidateSlotsCache drops cached slot views for a practitioner/date after
// a write that changes availability.
func (s *Server) invalidateSlotsCache(ctx context.Context, practitionerID int64, date time.Time) {
	s.dropCacheKeys(ctx, fmt.Sprintf("slots:%d:%s:*", practitionerID, date.Format("2006-01-02")))
}

// invalidatePractitionerCache drops every cached slot view for a practitioner.
// Weekly-schedule changes touch an open-ended set of dates, so the whole
// prefix goes.
func (s *Server) invalidatePractitionerCache(ctx context.Context, practitionerID int64) {
	s.dropCacheKeys(ctx, fmt.Sprintf("slots:%d:*", practitionerID))
}

func (s *Server) dropCacheKeys(ctx context.Context, pattern string) {
	if s.cache == nil {
		return
	}
	keys, err := s.cache.Keys(ctx, pattern).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	_ = s.cache.Del(ctx, keys...).Err()
}
