package model

import "time"

// Shift is a working window inside a day, as offsets from midnight.
type Shift struct {
	Start time.Duration
	End   time.Duration
}

type WorkingDay struct {
	Enabled bool
	Shifts  []Shift
}

// WorkingHoursTemplate is an owner's recurring weekly availability.
// Missing weekdays are treated as disabled.
type WorkingHoursTemplate struct {
	Owner Owner
	Days  map[time.Weekday]WorkingDay
}

// ShiftsOn returns the shifts for the weekday, or nil when the day is off.
func (t WorkingHoursTemplate) ShiftsOn(d time.Weekday) []Shift {
	day, ok := t.Days[d]
	if !ok || !day.Enabled {
		return nil
	}
	return day.Shifts
}
