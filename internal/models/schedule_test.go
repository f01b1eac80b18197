package models

import (
	"testing"
	"time"
)

func TestDayOfWeek(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2026-03-02", Monday},
		{"2026-03-03", Tuesday},
		{"2026-03-06", Friday},
		{"2026-03-07", Saturday},
		{"2026-03-08", Sunday},
	}
	for _, tt := range tests {
		date, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := DayOfWeek(date); got != tt.want {
			t.Errorf("DayOfWeek(%s) = %d, want %d", tt.date, got, tt.want)
		}
	}
}

func TestWeeklyScheduleEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   WeeklyScheduleEntry
		wantErr bool
	}{
		{
			name:  "plain working day",
			entry: WeeklyScheduleEntry{DayOfWeek: Monday, StartTime: "09:00", EndTime: "18:00"},
		},
		{
			name: "working day with break",
			entry: WeeklyScheduleEntry{
				DayOfWeek: Tuesday, StartTime: "09:00", EndTime: "18:00",
				BreakStart: "13:00", BreakEnd: "14:00",
			},
		},
		{
			name:    "start after end",
			entry:   WeeklyScheduleEntry{DayOfWeek: Monday, StartTime: "18:00", EndTime: "09:00"},
			wantErr: true,
		},
		{
			name:    "start equals end",
			entry:   WeeklyScheduleEntry{DayOfWeek: Monday, StartTime: "09:00", EndTime: "09:00"},
			wantErr: true,
		},
		{
			name: "break start without end",
			entry: WeeklyScheduleEntry{
				DayOfWeek: Monday, StartTime: "09:00", EndTime: "18:00", BreakStart: "13:00",
			},
			wantErr: true,
		},
		{
			name: "inverted break",
			entry: WeeklyScheduleEntry{
				DayOfWeek: Monday, StartTime: "09:00", EndTime: "18:00",
				BreakStart: "14:00", BreakEnd: "13:00",
			},
			wantErr: true,
		},
		{
			name: "break outside window",
			entry: WeeklyScheduleEntry{
				DayOfWeek: Monday, StartTime: "09:00", EndTime: "18:00",
				BreakStart: "18:00", BreakEnd: "19:00",
			},
			wantErr: true,
		},
		{
			name:    "day out of range",
			entry:   WeeklyScheduleEntry{DayOfWeek: 7, StartTime: "09:00", EndTime: "18:00"},
			wantErr: true,
		},
		{
			name:    "garbage time",
			entry:   WeeklyScheduleEntry{DayOfWeek: Monday, StartTime: "9am", EndTime: "18:00"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReservationOverlaps(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	hour := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	r := Reservation{StartAt: hour(10), EndAt: hour(11)}

	tests := []struct {
		name  string
		start int
		end   int
		want  bool
	}{
		{"fully before", 8, 9, false},
		{"touching at start", 9, 10, false},
		{"crossing the start", 9, 11, true},
		{"inside", 10, 11, true},
		{"crossing the end", 10, 12, true},
		{"touching at end", 11, 12, false},
		{"fully after", 12, 13, false},
		{"enclosing", 9, 12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Overlaps(hour(tt.start), hour(tt.end)); got != tt.want {
				t.Errorf("Overlaps(%d:00, %d:00) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestReservationStatusHelpers(t *testing.T) {
	active := []ReservationStatus{StatusPending, StatusConfirmed}
	terminal := []ReservationStatus{StatusCompleted, StatusNoShow, StatusCancelledByClient, StatusCancelledByVenue}

	for _, s := range active {
		if !s.Active() {
			t.Errorf("%s should be active", s)
		}
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range terminal {
		if s.Active() {
			t.Errorf("%s should not be active", s)
		}
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if ReservationStatus("bogus").Valid() {
		t.Error("bogus status should not be valid")
	}
}

func TestTimeOnDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	got, err := TimeOnDate(date, "13:45")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 13 || got.Minute() != 45 || got.Location() != loc {
		t.Errorf("unexpected result %v", got)
	}

	if _, err := TimeOnDate(date, "25:00"); err == nil {
		t.Error("expected error for invalid hour")
	}
}
