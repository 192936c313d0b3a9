package domain

import (
	"fmt"
	"time"
)

// Slot markers are times of day in "HH:MM". The catalog is fixed: every
// 30 minutes from 09:00 to 20:30 inclusive. The zero-padded format keeps
// plain string comparison equivalent to chronological comparison.
const (
	slotLayout     = "15:04"
	catalogFirst   = 9 * time.Hour
	catalogLast    = 20*time.Hour + 30*time.Minute
	catalogStep    = 30 * time.Minute
	dateLayout     = "2006-01-02"
	DefaultDayOpen = "09:00"
	DefaultDayEnd  = "18:00"
)

// SlotCatalog returns every bookable time-of-day marker, ascending.
func SlotCatalog() []string {
	var slots []string
	for d := catalogFirst; d <= catalogLast; d += catalogStep {
		slots = append(slots, formatSlot(d))
	}
	return slots
}

func formatSlot(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// CatalogSlot reports whether slot is one of the fixed markers.
func CatalogSlot(slot string) bool {
	t, err := time.Parse(slotLayout, slot)
	if err != nil {
		return false
	}
	d := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	if d < catalogFirst || d > catalogLast {
		return false
	}
	return d%catalogStep == 0
}

// ParseDay parses a "2006-01-02" calendar day in UTC.
func ParseDay(date string) (time.Time, error) {
	return time.Parse(dateLayout, date)
}

// CombineSlot resolves a calendar day plus a slot marker into the booked
// instant, in UTC.
func CombineSlot(day time.Time, slot string) (time.Time, error) {
	t, err := time.Parse(slotLayout, slot)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

// SlotOf extracts the "HH:MM" marker of a booked instant.
func SlotOf(at time.Time) string {
	return at.UTC().Format(slotLayout)
}

// AvailabilityWindow is one row per (agent, weekday). Upsert semantics:
// saving a week replaces rows wholesale, never appends.
type AvailabilityWindow struct {
	AgentID     string
	Day         time.Weekday
	IsAvailable bool
	StartTime   string // "HH:MM", empty iff !IsAvailable
	EndTime     string // "HH:MM", empty iff !IsAvailable
}

// Validate enforces the window invariant: times are required exactly when
// the day is available.
func (w AvailabilityWindow) Validate() error {
	if !w.IsAvailable {
		if w.StartTime != "" || w.EndTime != "" {
			return fmt.Errorf("unavailable day %s must not carry times", w.Day)
		}
		return nil
	}
	for _, v := range []string{w.StartTime, w.EndTime} {
		if _, err := time.Parse(slotLayout, v); err != nil {
			return fmt.Errorf("window %s: bad time %q", w.Day, v)
		}
	}
	if w.StartTime >= w.EndTime {
		return fmt.Errorf("window %s: start %s not before end %s", w.Day, w.StartTime, w.EndTime)
	}
	return nil
}

// Covers reports whether slot falls inside [StartTime, EndTime).
func (w AvailabilityWindow) Covers(slot string) bool {
	return w.IsAvailable && w.StartTime <= slot && slot < w.EndTime
}

// DefaultWeek is the onboarding schedule: weekdays open 09:00-18:00,
// weekend off.
func DefaultWeek(agentID string) []AvailabilityWindow {
	var week []AvailabilityWindow
	for d := time.Sunday; d <= time.Saturday; d++ {
		w := AvailabilityWindow{AgentID: agentID, Day: d}
		if d != time.Saturday && d != time.Sunday {
			w.IsAvailable = true
			w.StartTime = DefaultDayOpen
			w.EndTime = DefaultDayEnd
		}
		week = append(week, w)
	}
	return week
}
