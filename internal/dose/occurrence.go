package dose

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// ActiveOn reports whether the medication's schedule fires on day.
// It looks only at the recurrence rule and course dates; the IsActive
// toggle is applied by Occurrences.
func ActiveOn(m *Medication, day civil.Date) bool {
	start := m.StartDate
	if start.After(day) {
		return false
	}

	if !m.IsPermanent {
		end, _ := m.EndDate()
		if day.After(end) {
			return false
		}
	}

	return matchesFrequency(m, start, day)
}

func matchesFrequency(m *Medication, start, day civil.Date) bool {
	switch m.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyEveryDays:
		if m.IntervalValue <= 0 {
			return false
		}
		return day.DaysSince(start)%m.IntervalValue == 0
	case FrequencyEveryHours:
		// Hourly schedules fire every day; the expander picks the slots.
		return true
	default:
		return false
	}
}

// SlotsFor returns the slots the medication fires at on any active day.
func SlotsFor(m *Medication) []TimeSlot {
	h, minute := m.ReminderTime.Hour, m.ReminderTime.Minute
	switch m.Frequency {
	case FrequencyEveryHours:
		return TodaySlots(h, minute, m.IntervalValue)
	case FrequencyDaily, FrequencyEveryDays:
		return []TimeSlot{{Hour: h, Minute: minute}}
	default:
		return nil
	}
}

// Occurrence is one concrete firing of a medication on a date.
type Occurrence struct {
	Medication  *Medication
	Slot        TimeSlot
	ScheduledAt time.Time
}

// Occurrences expands every active medication into the doses due on day,
// ordered by scheduled time.
func Occurrences(meds []*Medication, day civil.Date, loc *time.Location) []Occurrence {
	var out []Occurrence
	for _, m := range meds {
		if !m.IsActive || !ActiveOn(m, day) {
			continue
		}
		for _, s := range SlotsFor(m) {
			out = append(out, Occurrence{
				Medication:  m,
				Slot:        s,
				ScheduledAt: s.On(day, loc),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(now.In(loc))
}

// DayBounds returns [start of day, start of next day) for day in loc.
func DayBounds(day civil.Date, loc *time.Location) (time.Time, time.Time) {
	return day.In(loc), day.AddDays(1).In(loc)
}
