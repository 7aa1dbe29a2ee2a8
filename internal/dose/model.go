package dose

import (
	"time"

	"cloud.google.com/go/civil"
)

// Frequency is the recurrence kind of a medication schedule.
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyEveryHours Frequency = "every_x_hours"
	FrequencyEveryDays  Frequency = "every_x_days"
)

// ParseFrequency maps a stored or user-entered frequency to a Frequency.
// "hourly" is accepted as an alias of every_x_hours.
func ParseFrequency(s string) (Frequency, bool) {
	switch s {
	case "daily":
		return FrequencyDaily, true
	case "every_x_hours", "hourly":
		return FrequencyEveryHours, true
	case "every_x_days":
		return FrequencyEveryDays, true
	default:
		return "", false
	}
}

// Profile owns a set of medications.
type Profile struct {
	ID        string // UUID
	Name      string
	CreatedAt time.Time
}

// Inventory tracks pill stock for a medication.
type Inventory struct {
	Enabled      bool
	Stock        int
	ReorderLevel int
}

// Low reports whether stock has fallen to the reorder level.
func (i Inventory) Low() bool {
	return i.Enabled && i.Stock <= i.ReorderLevel
}

// Medication is a dosing schedule for one medicine.
type Medication struct {
	ID        string // UUID
	ProfileID string // Foreign key to Profile

	Name       string
	DoseAmount string // "2", "0.5"
	Unit       string // "mg", "ml", "tablet"
	Category   string // "pill", "syrup", ...

	Frequency     Frequency
	IntervalValue int // hours or days; unused for daily

	StartDate    civil.Date
	ReminderTime civil.Time // hour and minute only

	IsPermanent bool
	Duration    int // days, only when !IsPermanent

	IsActive     bool
	Inventory    Inventory
	IsAdjustable bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EndDate returns the last day of a bounded course.
// ok is false for permanent medications.
func (m *Medication) EndDate() (end civil.Date, ok bool) {
	if m.IsPermanent {
		return civil.Date{}, false
	}
	return m.StartDate.AddDays(m.Duration - 1), true
}

// Dosage renders amount and unit as shown in reminders.
func (m *Medication) Dosage() string {
	if m.Unit == "" {
		return m.DoseAmount
	}
	return m.DoseAmount + " " + m.Unit
}

// DoseLog is one append-only adherence event.
type DoseLog struct {
	ID             string // UUID
	MedicationID   string
	MedicationName string // snapshot at the time of the event
	Status         Status
	ScheduledAt    time.Time
	TakenAt        time.Time
	DelayMinutes   int
}

// DelayMinutes rounds the gap between when a dose was due and when it was acted on.
func DelayMinutes(scheduledAt, takenAt time.Time) int {
	return int(takenAt.Sub(scheduledAt).Round(time.Minute) / time.Minute)
}
