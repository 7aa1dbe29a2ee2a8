package dose

import (
	"fmt"
	"time"
)

// Status is the state of one dose occurrence.
type Status int

const (
	StatusPending Status = iota
	StatusTaken
	StatusMissed
	StatusSnoozed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusTaken:
		return "taken"
	case StatusMissed:
		return "missed"
	case StatusSnoozed:
		return "snoozed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus is the inverse of String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "taken":
		return StatusTaken, nil
	case "missed":
		return StatusMissed, nil
	case "snoozed":
		return StatusSnoozed, nil
	case "skipped":
		return StatusSkipped, nil
	default:
		return 0, fmt.Errorf("unknown dose status %q", s)
	}
}

// Logged reports whether the status may appear on a DoseLog.
func (s Status) Logged() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusSnoozed, StatusSkipped:
		return true
	case StatusPending:
		return false
	default:
		return false
	}
}

// ResolveStatus classifies one occurrence of a medication at now.
//
// Any log for the medication acted on during now's calendar day decides the
// status (latest TakenAt wins). Without one, the dose is missed once its slot
// time on now's date has passed and pending before that.
func ResolveStatus(medicationID string, slot TimeSlot, now time.Time, logs []DoseLog) Status {
	loc := now.Location()
	day := Today(now, loc)
	dayStart, dayEnd := DayBounds(day, loc)

	var latest *DoseLog
	for i := range logs {
		l := &logs[i]
		if l.MedicationID != medicationID {
			continue
		}
		if l.TakenAt.Before(dayStart) || !l.TakenAt.Before(dayEnd) {
			continue
		}
		if latest == nil || !l.TakenAt.Before(latest.TakenAt) {
			latest = l
		}
	}
	if latest != nil {
		return latest.Status
	}

	if now.After(slot.On(day, loc)) {
		return StatusMissed
	}
	return StatusPending
}
