package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed task schedule: either an "@every <duration>"
// interval or a standard 5-field cron expression.
type Schedule struct {
	interval time.Duration
	fields   *cronFields
}

// ParseSchedule validates and parses a schedule spec.
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if strings.HasPrefix(spec, "@every ") {
		d, err := time.ParseDuration(strings.TrimPrefix(spec, "@every "))
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid interval %q: %w", spec, err)
		}
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval %q must be positive", spec)
		}
		return Schedule{interval: d}, nil
	}

	fields, err := parseCronFields(spec)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return Schedule{fields: &fields}, nil
}

// IsInterval reports whether the schedule is a fixed interval.
func (s Schedule) IsInterval() bool { return s.interval > 0 }

// Interval returns the fixed interval, or zero for cron schedules.
func (s Schedule) Interval() time.Duration { return s.interval }

// NextAfter returns the next fire time after t.
func (s Schedule) NextAfter(t time.Time) time.Time {
	if s.IsInterval() {
		return t.Add(s.interval)
	}
	return s.fields.nextAfter(t)
}

// cronFields represents a parsed 5-field cron expression.
// Fields: minute, hour, day-of-month, month, day-of-week.
type cronFields struct {
	minutes    []int // 0-59
	hours      []int // 0-23
	daysOfMon  []int // 1-31
	months     []int // 1-12
	daysOfWeek []int // 0-6 (0=Sunday)
}

// parseCronFields parses a standard 5-field cron expression.
func parseCronFields(spec string) (cronFields, error) {
	parts := strings.Fields(strings.TrimSpace(spec))
	if len(parts) != 5 {
		return cronFields{}, fmt.Errorf("expected 5 fields, got %d", len(parts))
	}

	minutes, err := parseField(parts[0], 0, 59)
	if err != nil {
		return cronFields{}, fmt.Errorf("minute field: %w", err)
	}
	hours, err := parseField(parts[1], 0, 23)
	if err != nil {
		return cronFields{}, fmt.Errorf("hour field: %w", err)
	}
	dom, err := parseField(parts[2], 1, 31)
	if err != nil {
		return cronFields{}, fmt.Errorf("day-of-month field: %w", err)
	}
	months, err := parseField(parts[3], 1, 12)
	if err != nil {
		return cronFields{}, fmt.Errorf("month field: %w", err)
	}
	dow, err := parseField(parts[4], 0, 6)
	if err != nil {
		return cronFields{}, fmt.Errorf("day-of-week field: %w", err)
	}

	return cronFields{
		minutes:    minutes,
		hours:      hours,
		daysOfMon:  dom,
		months:     months,
		daysOfWeek: dow,
	}, nil
}

// parseField parses a single cron field (e.g. "*/5", "1,3,5", "1-10", "*").
func parseField(field string, min, max int) ([]int, error) {
	var result []int

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)

		// Step values: */5 or 1-10/2.
		step := 1
		if idx := strings.Index(part, "/"); idx >= 0 {
			s, err := strconv.Atoi(part[idx+1:])
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("invalid step in %q", field)
			}
			step = s
			part = part[:idx]
		}

		if part == "*" {
			for i := min; i <= max; i += step {
				result = append(result, i)
			}
			continue
		}

		// Range: 1-5.
		if idx := strings.Index(part, "-"); idx >= 0 {
			lo, err := strconv.Atoi(part[:idx])
			if err != nil {
				return nil, fmt.Errorf("invalid range in %q", field)
			}
			hi, err := strconv.Atoi(part[idx+1:])
			if err != nil {
				return nil, fmt.Errorf("invalid range in %q", field)
			}
			if lo < min || hi > max || lo > hi {
				return nil, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
			}
			for i := lo; i <= hi; i += step {
				result = append(result, i)
			}
			continue
		}

		val, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", part)
		}
		if val < min || val > max {
			return nil, fmt.Errorf("value %d out of bounds [%d,%d]", val, min, max)
		}
		result = append(result, val)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("empty field")
	}
	return result, nil
}

// nextAfter returns the next time after t that matches the cron fields.
func (cf *cronFields) nextAfter(t time.Time) time.Time {
	// Start from the next minute.
	t = t.Add(time.Minute).Truncate(time.Minute)

	// Try up to 4 years of minutes (safety bound).
	limit := t.Add(4 * 365 * 24 * time.Hour)
	for t.Before(limit) {
		if cf.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	// Fallback: should never happen with valid cron expressions.
	return t
}

// matches returns true if t matches all cron fields.
func (cf *cronFields) matches(t time.Time) bool {
	return containsInt(cf.minutes, t.Minute()) &&
		containsInt(cf.hours, t.Hour()) &&
		containsInt(cf.daysOfMon, t.Day()) &&
		containsInt(cf.months, int(t.Month())) &&
		containsInt(cf.daysOfWeek, int(t.Weekday()))
}

func containsInt(vals []int, v int) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}
