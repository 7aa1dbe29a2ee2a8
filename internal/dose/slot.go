package dose

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// TimeSlot is a time of day within one repeating cycle, not yet bound to a date.
// DaysOffset is 1 when the slot falls after midnight of the cycle's first day.
type TimeSlot struct {
	Hour       int
	Minute     int
	DaysOffset int
}

// MinuteOfDay returns minutes since midnight, ignoring the day offset.
func (s TimeSlot) MinuteOfDay() int {
	return s.Hour*minutesPerHour + s.Minute
}

func (s TimeSlot) String() string {
	if s.DaysOffset > 0 {
		return fmt.Sprintf("%02d:%02d+%d", s.Hour, s.Minute, s.DaysOffset)
	}
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// On binds the slot to a calendar day in loc.
func (s TimeSlot) On(day civil.Date, loc *time.Location) time.Time {
	dt := civil.DateTime{
		Date: day.AddDays(s.DaysOffset),
		Time: civil.Time{Hour: s.Hour, Minute: s.Minute},
	}
	return dt.In(loc)
}

// ExpandCycle returns the slots of one 24h cycle starting at startHour:startMinute
// and repeating every intervalHours. A non-positive interval yields no slots.
//
// The cycle never spans more than one extra day: DaysOffset is always 0 or 1.
func ExpandCycle(startHour, startMinute, intervalHours int) []TimeSlot {
	if intervalHours <= 0 {
		return nil
	}

	total := 24 / intervalHours
	slots := make([]TimeSlot, 0, total)
	for i := 0; i < total; i++ {
		abs := startHour*minutesPerHour + startMinute + i*intervalHours*minutesPerHour
		slots = append(slots, TimeSlot{
			Hour:       (abs / minutesPerHour) % 24,
			Minute:     abs % minutesPerHour,
			DaysOffset: abs / minutesPerDay,
		})
	}
	return slots
}

// TodaySlots is ExpandCycle restricted to the slots that fire on the cycle's first day.
func TodaySlots(startHour, startMinute, intervalHours int) []TimeSlot {
	return sameDay(ExpandCycle(startHour, startMinute, intervalHours))
}

func sameDay(slots []TimeSlot) []TimeSlot {
	var today []TimeSlot
	for _, s := range slots {
		if s.DaysOffset == 0 {
			today = append(today, s)
		}
	}
	return today
}
