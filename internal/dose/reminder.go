package dose

import (
	"context"
	"fmt"
	"time"
)

// Action ids attached to reminder notifications.
const (
	ActionTake   = "take-dose"
	ActionSnooze = "snooze-dose"
)

// Payload is round-tripped through a notification back to HandleAction.
type Payload struct {
	MedicationID   string
	MedicationName string
	Dosage         string
	ScheduledAt    time.Time
}

// Reminder is a notification request for one dose.
type Reminder struct {
	ID      string
	Title   string
	Body    string
	FireAt  time.Time
	Payload Payload
}

// Scheduler fires reminders at an absolute time.
//
// Schedule replaces a pending reminder with the same id; a fire time that is
// not in the future is clamped to "very soon" rather than rejected.
type Scheduler interface {
	Schedule(ctx context.Context, r Reminder) error
	Cancel(ctx context.Context, id string) error
}

// ReminderID is the stable id of the reminder for one slot of a medication.
func ReminderID(medicationID string, slot TimeSlot) string {
	return fmt.Sprintf("%s@%02d%02d", medicationID, slot.Hour, slot.Minute)
}

func newReminder(m *Medication, slot TimeSlot, scheduledAt, fireAt time.Time) Reminder {
	return Reminder{
		ID:     ReminderID(m.ID, slot),
		Title:  "Time for " + m.Name,
		Body:   fmt.Sprintf("Take %s of %s (due %s)", m.Dosage(), m.Name, FormatClock(slot.Hour, slot.Minute)),
		FireAt: fireAt,
		Payload: Payload{
			MedicationID:   m.ID,
			MedicationName: m.Name,
			Dosage:         m.Dosage(),
			ScheduledAt:    scheduledAt,
		},
	}
}
