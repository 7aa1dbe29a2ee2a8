package dose

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Draft is a medication as entered on a form: free text and toggles.
type Draft struct {
	ID                 string // empty for a new medication
	Name               string
	DoseAmount         string
	Unit               string
	Category           string
	Frequency          string
	IntervalValue      string
	StartDate          string // 2006-01-02
	ReminderTime       string // 15:04
	IsPermanent        bool
	Duration           string
	IsActive           bool
	IsInventoryEnabled bool
	Stock              string
	ReorderLevel       string
	IsAdjustable       bool
}

// ParseDraft validates a draft and converts it into a Medication.
// Every problem is collected into one *ValidationError.
func ParseDraft(d Draft) (*Medication, error) {
	verr := &ValidationError{}
	m := &Medication{
		ID:           d.ID,
		Name:         strings.TrimSpace(d.Name),
		DoseAmount:   strings.TrimSpace(d.DoseAmount),
		Unit:         strings.TrimSpace(d.Unit),
		Category:     strings.TrimSpace(d.Category),
		IsPermanent:  d.IsPermanent,
		IsActive:     d.IsActive,
		IsAdjustable: d.IsAdjustable,
	}

	if m.Name == "" {
		verr.add("name", "is required")
	}

	if amount, err := strconv.ParseFloat(m.DoseAmount, 64); err != nil || amount <= 0 {
		verr.add("dosage", "must be a positive number")
	}

	freq, ok := ParseFrequency(strings.TrimSpace(d.Frequency))
	if !ok {
		verr.add("frequency", "must be daily, every_x_hours or every_x_days")
	}
	m.Frequency = freq

	if start, err := civil.ParseDate(strings.TrimSpace(d.StartDate)); err != nil {
		verr.add("start_date", "must be a date like 2006-01-02")
	} else {
		m.StartDate = start
	}

	if t, err := ParseClock(d.ReminderTime); err != nil {
		verr.add("reminder_time", "must be a time like 08:30")
	} else {
		m.ReminderTime = t
	}

	if !m.IsPermanent {
		days, err := strconv.Atoi(strings.TrimSpace(d.Duration))
		if err != nil || days <= 0 {
			verr.add("duration", "must be a positive number of days")
		}
		m.Duration = days
	}

	if freq != FrequencyDaily && ok {
		interval, err := strconv.Atoi(strings.TrimSpace(d.IntervalValue))
		if err != nil {
			verr.add("interval", "is required for "+string(freq))
		}
		m.IntervalValue = interval
		validateInterval(verr, m)
	}

	if d.IsInventoryEnabled {
		m.Inventory.Enabled = true
		stock, err := strconv.Atoi(strings.TrimSpace(d.Stock))
		if err != nil || stock < 0 {
			verr.add("stock", "must be >= 0")
		}
		m.Inventory.Stock = stock

		level, err := strconv.Atoi(strings.TrimSpace(d.ReorderLevel))
		if err != nil {
			verr.add("reorder_level", "must be a whole number")
		}
		m.Inventory.ReorderLevel = level
	}

	if !verr.empty() {
		return nil, verr
	}
	return m, nil
}

func validateInterval(verr *ValidationError, m *Medication) {
	if _, bad := verr.Fields["interval"]; bad {
		return
	}
	switch m.Frequency {
	case FrequencyEveryHours:
		if m.IntervalValue <= 0 || m.IntervalValue > 24 {
			verr.add("interval", "must be between 1 and 24 hours")
		}
	case FrequencyEveryDays:
		if m.IntervalValue < 1 {
			verr.add("interval", "must be at least 1 day")
		} else if !m.IsPermanent && m.Duration > 0 && m.IntervalValue > m.Duration {
			verr.add("interval", "cannot be longer than the course duration")
		}
	}
}

// ParseClock parses "15:04" into a time of day.
func ParseClock(s string) (civil.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return civil.Time{}, err
	}
	return civil.Time{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// FormatClock24 renders a time of day as "15:04".
func FormatClock24(t civil.Time) string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("15:04")
}

// AdjustReminderTime moves a reminder picked for today at or before now to one
// minute from now. adjusted reports whether the picked time was replaced.
func AdjustReminderTime(now time.Time, day civil.Date, picked civil.Time) (civil.Time, bool) {
	if day != civil.DateOf(now) {
		return picked, false
	}

	at := civil.DateTime{Date: day, Time: civil.Time{Hour: picked.Hour, Minute: picked.Minute}}.In(now.Location())
	if at.After(now) {
		return picked, false
	}

	next := now.Add(time.Minute).Truncate(time.Minute)
	if civil.DateOf(next) != day {
		// Past 23:59 there is no later time today; keep the last minute.
		return civil.Time{Hour: 23, Minute: 59}, true
	}
	return civil.Time{Hour: next.Hour(), Minute: next.Minute()}, true
}

// DraftOf renders a stored medication back into form values, the starting
// point for an edit.
func DraftOf(m *Medication) Draft {
	d := Draft{
		ID:                 m.ID,
		Name:               m.Name,
		DoseAmount:         m.DoseAmount,
		Unit:               m.Unit,
		Category:           m.Category,
		Frequency:          string(m.Frequency),
		StartDate:          m.StartDate.String(),
		ReminderTime:       FormatClock24(m.ReminderTime),
		IsPermanent:        m.IsPermanent,
		IsActive:           m.IsActive,
		IsInventoryEnabled: m.Inventory.Enabled,
		IsAdjustable:       m.IsAdjustable,
	}
	if m.Frequency != FrequencyDaily {
		d.IntervalValue = strconv.Itoa(m.IntervalValue)
	}
	if !m.IsPermanent {
		d.Duration = strconv.Itoa(m.Duration)
	}
	if m.Inventory.Enabled {
		d.Stock = strconv.Itoa(m.Inventory.Stock)
		d.ReorderLevel = strconv.Itoa(m.Inventory.ReorderLevel)
	}
	return d
}
