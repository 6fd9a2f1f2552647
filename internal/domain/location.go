package domain

import (
	"fmt"
	"strings"
	"time"
)

// Immutable geographic position with an optional human-readable address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Report whether the location carries usable coordinates.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

// Return "lat,lng" for external API compatibility.
func (l Location) String() string {
	return fmt.Sprintf("%g,%g", l.Lat, l.Lng)
}

// Absolute time window on a concrete date.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.End.After(w.Start)
}

// ClockWindow is a daily window expressed as "HH:MM" clock values.
// Empty values mean the day is open on that side.
type ClockWindow struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// On resolves the clock window on the given day in loc.
// A missing bound defaults to the start or end of that day.
func (c ClockWindow) On(day time.Time, loc *time.Location) (TimeWindow, error) {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)

	start := midnight
	if strings.TrimSpace(c.From) != "" {
		t, err := AtClock(midnight, c.From)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("clock window from: %w", err)
		}
		start = t
	}

	end := midnight.Add(24*time.Hour - time.Minute)
	if strings.TrimSpace(c.To) != "" {
		t, err := AtClock(midnight, c.To)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("clock window to: %w", err)
		}
		end = t
	}

	return TimeWindow{Start: start, End: end}, nil
}

// AtClock returns day (truncated to midnight in its location) at the "HH:MM" clock value.
func AtClock(day time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock value %q: %w", clock, err)
	}

	y, m, d := day.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}
