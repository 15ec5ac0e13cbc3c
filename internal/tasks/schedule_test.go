package tasks

import (
	"testing"
	"time"
)

func TestParseScheduleIntervals(t *testing.T) {
	s, err := ParseSchedule("@every 5m")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	if !s.IsInterval() || s.Interval() != 5*time.Minute {
		t.Errorf("interval = %v", s.Interval())
	}

	s, err = ParseSchedule("@every 1h30m")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	if s.Interval() != 90*time.Minute {
		t.Errorf("interval = %v, want 1h30m", s.Interval())
	}

	if _, err := ParseSchedule("@every -5m"); err == nil {
		t.Error("negative interval should be rejected")
	}
}

func TestParseScheduleCron(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"0 9 * * 1-5", false},
		{"*/15 * * * *", false},
		{"0 0 1 1 *", false},
		{"5,10,15 * * * *", false},
		{"bad", true},
		{"60 * * * *", true},  // minute out of range
		{"* 25 * * *", true},  // hour out of range
		{"* * 0 * *", true},   // day-of-month out of range
		{"* * * 13 *", true},  // month out of range
		{"* * * * 7", true},   // day-of-week out of range
		{"* * * *", true},     // too few fields
		{"* * * * * *", true}, // too many fields
	}

	for _, tc := range tests {
		_, err := ParseSchedule(tc.spec)
		if tc.wantErr && err == nil {
			t.Errorf("ParseSchedule(%q): expected error, got nil", tc.spec)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("ParseSchedule(%q): unexpected error: %v", tc.spec, err)
		}
	}
}

func TestNextAfter(t *testing.T) {
	// "0 9 * * *" means every day at 09:00.
	s, err := ParseSchedule("0 9 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// If it's 08:30, next should be 09:00 same day.
	base := time.Date(2026, 6, 15, 8, 30, 0, 0, time.Local)
	next := s.NextAfter(base)
	if next.Hour() != 9 || next.Minute() != 0 {
		t.Errorf("expected 09:00, got %s", next.Format("15:04"))
	}
	if next.Day() != 15 {
		t.Errorf("expected day 15, got %d", next.Day())
	}

	// If it's 09:30, next should be 09:00 next day.
	base2 := time.Date(2026, 6, 15, 9, 30, 0, 0, time.Local)
	next2 := s.NextAfter(base2)
	if next2.Hour() != 9 || next2.Minute() != 0 {
		t.Errorf("expected 09:00, got %s", next2.Format("15:04"))
	}
	if next2.Day() != 16 {
		t.Errorf("expected day 16, got %d", next2.Day())
	}
}

func TestNextAfterInterval(t *testing.T) {
	s, err := ParseSchedule("@every 10m")
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC)
	if got := s.NextAfter(base); !got.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("NextAfter = %s", got)
	}
}
