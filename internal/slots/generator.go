// Package slots turns a practitioner's weekly schedule, day-off exceptions
// and existing reservations into bookable time slots for a date.
package slots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"glowbook/internal/models"
)

// Slot is one fixed-width candidate reservation window.
type Slot struct {
	StartTime time.Time `json:"-"`
	EndTime   time.Time `json:"-"`
	Start     string    `json:"start_time"` // "10:00"
	Available bool      `json:"available"`
	// ConflictID is the reservation occupying the window, when unavailable
	// due to a conflict rather than a break.
	ConflictID int64 `json:"conflicting_reservation_id,omitempty"`
}

// DaySchedule is the generator's result for one practitioner/date.
type DaySchedule struct {
	Date            string `json:"date"`
	PractitionerID  int64  `json:"practitioner_id"`
	DurationMinutes int    `json:"service_duration"`
	Slots           []Slot `json:"slots"`
	Closed          bool   `json:"closed,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Config holds the generator's tunables. The default working window applies
// when a practitioner has no active schedule entry for the day; it is
// injected here rather than hidden in the algorithm so its effect is visible
// and testable.
type Config struct {
	SlotWidthMinutes   int    // step between candidate slots; default 30
	DefaultWindowStart string // default "09:00"
	DefaultWindowEnd   string // default "20:00"
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SlotWidthMinutes:   30,
		DefaultWindowStart: "09:00",
		DefaultWindowEnd:   "20:00",
	}
}

// ScheduleSource provides the working-hours inputs.
type ScheduleSource interface {
	GetWeeklySchedule(ctx context.Context, practitionerID int64, dayOfWeek int) (*models.WeeklyScheduleEntry, error)
	GetDayOff(ctx context.Context, practitionerID int64, date time.Time) (*models.DayOffException, error)
}

// ReservationSource provides the active reservations intersecting a day.
type ReservationSource interface {
	ListActiveReservationsForDay(ctx context.Context, practitionerID int64, date time.Time) ([]models.Reservation, error)
}

// Generator produces day schedules. It is a read-only computation, safe to
// call concurrently; write-time mutual exclusion lives in the reservation
// store, not here.
type Generator struct {
	schedules    ScheduleSource
	reservations ReservationSource
	cfg          Config
}

// NewGenerator creates a slot generator.
func NewGenerator(schedules ScheduleSource, reservations ReservationSource, cfg Config) *Generator {
	if cfg.SlotWidthMinutes <= 0 {
		cfg.SlotWidthMinutes = 30
	}
	if cfg.DefaultWindowStart == "" {
		cfg.DefaultWindowStart = "09:00"
	}
	if cfg.DefaultWindowEnd == "" {
		cfg.DefaultWindowEnd = "20:00"
	}
	return &Generator{schedules: schedules, reservations: reservations, cfg: cfg}
}

// Generate produces the ordered slot sequence for (practitioner, date,
// service duration). A candidate [s, s+duration) is emitted per slot-width
// step while it fits entirely inside the working window; it is unavailable
// when it intersects the break window or an active reservation under
// half-open semantics (s < otherEnd && s+duration > otherStart).
func (g *Generator) Generate(ctx context.Context, practitionerID int64, date time.Time, durationMinutes int) (*DaySchedule, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("service duration must be positive, got %d", durationMinutes)
	}

	result := &DaySchedule{
		Date:            date.Format("2006-01-02"),
		PractitionerID:  practitionerID,
		DurationMinutes: durationMinutes,
	}

	dayOff, err := g.schedules.GetDayOff(ctx, practitionerID, date)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check day off: %w", err)
	}
	if dayOff != nil {
		result.Closed = true
		result.Reason = "day off: " + dayOff.Reason
		return result, nil
	}

	windowStart, windowEnd, breakStart, breakEnd, err := g.workingWindow(ctx, practitionerID, date)
	if err != nil {
		return nil, err
	}

	reservations, err := g.reservations.ListActiveReservationsForDay(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	step := time.Duration(g.cfg.SlotWidthMinutes) * time.Minute
	duration := time.Duration(durationMinutes) * time.Minute

	for cursor := windowStart; !cursor.Add(duration).After(windowEnd); cursor = cursor.Add(step) {
		slotStart := cursor
		slotEnd := cursor.Add(duration)

		slot := Slot{
			StartTime: slotStart,
			EndTime:   slotEnd,
			Start:     slotStart.Format("15:04"),
			Available: true,
		}

		if !breakStart.IsZero() && overlaps(slotStart, slotEnd, breakStart, breakEnd) {
			slot.Available = false
		}
		if slot.Available {
			for i := range reservations {
				// Only pending and confirmed reservations hold a window.
				if !reservations[i].Status.Active() {
					continue
				}
				if reservations[i].Overlaps(slotStart, slotEnd) {
					slot.Available = false
					slot.ConflictID = reservations[i].ID
					break
				}
			}
		}

		result.Slots = append(result.Slots, slot)
	}

	return result, nil
}

// workingWindow resolves the effective window and break for the date. When no
// active schedule entry exists the configured default window applies, so a
// practitioner who never set up a schedule still shows a calendar.
func (g *Generator) workingWindow(ctx context.Context, practitionerID int64, date time.Time) (start, end, breakStart, breakEnd time.Time, err error) {
	entry, err := g.schedules.GetWeeklySchedule(ctx, practitionerID, models.DayOfWeek(date))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return start, end, breakStart, breakEnd, fmt.Errorf("load schedule: %w", err)
	}

	startStr, endStr := g.cfg.DefaultWindowStart, g.cfg.DefaultWindowEnd
	if entry != nil {
		startStr, endStr = entry.StartTime, entry.EndTime
	}

	if start, err = models.TimeOnDate(date, startStr); err != nil {
		return start, end, breakStart, breakEnd, fmt.Errorf("parse window start: %w", err)
	}
	if end, err = models.TimeOnDate(date, endStr); err != nil {
		return start, end, breakStart, breakEnd, fmt.Errorf("parse window end: %w", err)
	}

	if entry != nil && entry.HasBreak() {
		if breakStart, err = models.TimeOnDate(date, entry.BreakStart); err != nil {
			return start, end, breakStart, breakEnd, fmt.Errorf("parse break start: %w", err)
		}
		if breakEnd, err = models.TimeOnDate(date, entry.BreakEnd); err != nil {
			return start, end, breakStart, breakEnd, fmt.Errorf("parse break end: %w", err)
		}
	}
	return start, end, breakStart, breakEnd, nil
}

// AvailableOnly filters a day schedule down to bookable slots.
func AvailableOnly(in []Slot) []Slot {
	var out []Slot
	for _, s := range in {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

func overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}
