package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day-of-week values follow ISO ordering: 0 = Monday .. 6 = Sunday.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DayOfWeek converts time.Weekday (Sunday = 0) to the 0 = Monday ordering.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeeklyScheduleEntry is one recurring working-hours record per
// (practitioner, day-of-week). Times are "HH:MM" in the venue's timezone.
type WeeklyScheduleEntry struct {
	ID             int64     `json:"id"`
	PractitionerID int64     `json:"practitioner_id"`
	DayOfWeek      int       `json:"day_of_week"` // 0 = Monday .. 6 = Sunday
	StartTime      string    `json:"start_time"`  // "09:00"
	EndTime        string    `json:"end_time"`    // "18:00"
	BreakStart     string    `json:"break_start,omitempty"`
	BreakEnd       string    `json:"break_end,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasBreak reports whether the entry carries a break window.
func (e *WeeklyScheduleEntry) HasBreak() bool {
	return e.BreakStart != "" && e.BreakEnd != ""
}

// Validate checks the schedule invariants: start < end, and if a break is
// present, break-start < break-end with the break inside the working window.
func (e *WeeklyScheduleEntry) Validate() error {
	if e.DayOfWeek < Monday || e.DayOfWeek > Sunday {
		return fmt.Errorf("day_of_week must be 0 (Monday) to 6 (Sunday), got %d", e.DayOfWeek)
	}
	start, err := MinutesOfDay(e.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := MinutesOfDay(e.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	if start >= end {
		return fmt.Errorf("start_time %s must be before end_time %s", e.StartTime, e.EndTime)
	}
	if e.BreakStart == "" && e.BreakEnd == "" {
		return nil
	}
	if e.BreakStart == "" || e.BreakEnd == "" {
		return fmt.Errorf("break_start and break_end must be set together")
	}
	bs, err := MinutesOfDay(e.BreakStart)
	if err != nil {
		return fmt.Errorf("break_start: %w", err)
	}
	be, err := MinutesOfDay(e.BreakEnd)
	if err != nil {
		return fmt.Errorf("break_end: %w", err)
	}
	if bs >= be {
		return fmt.Errorf("break_start %s must be before break_end %s", e.BreakStart, e.BreakEnd)
	}
	if bs < start || be > end {
		return fmt.Errorf("break %s-%s must fall within working hours %s-%s",
			e.BreakStart, e.BreakEnd, e.StartTime, e.EndTime)
	}
	return nil
}

// DayOffException marks a specific calendar date as fully unavailable for a
// practitioner, regardless of the weekly schedule.
type DayOffException struct {
	ID             int64     `json:"id"`
	PractitionerID int64     `json:"practitioner_id"`
	Date           string    `json:"date"` // "2006-01-02"
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the date format.
func (d *DayOffException) Validate() error {
	if _, err := time.Parse("2006-01-02", d.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return nil
}

// MinutesOfDay parses an "HH:MM" string into minutes since midnight.
func MinutesOfDay(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// TimeOnDate combines a calendar date with an "HH:MM" string in the date's location.
func TimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	mins, err := MinutesOfDay(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), mins/60, mins%60, 0, 0, date.Location()), nil
}
