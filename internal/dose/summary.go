package dose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// SummaryForm is the subset of a medication form the summary is built from.
// Numeric fields stay strings because they come straight from form inputs.
type SummaryForm struct {
	Category      string
	Frequency     string
	IntervalValue string
	Schedules     []TimeSlot
	StartDate     civil.Date // zero value: not chosen yet
	IsPermanent   bool
	Duration      string
}

// Summarize renders a one-sentence description of a schedule, e.g.
//
//	Take pill every 8 hours, 2 doses today at 8:00 AM and 4:00 PM, starting Jan 2, 2026 for 7 days.
//
// Only slots with DaysOffset 0 are counted so the text matches what notifies today.
func Summarize(f SummaryForm) string {
	var b strings.Builder

	category := strings.TrimSpace(f.Category)
	if category == "" {
		category = "medication"
	}
	b.WriteString("Take ")
	b.WriteString(category)

	today := sameDay(f.Schedules)
	freq, _ := ParseFrequency(f.Frequency)
	interval, err := strconv.Atoi(strings.TrimSpace(f.IntervalValue))
	if err != nil || interval <= 0 {
		interval = 0
	}

	switch freq {
	case FrequencyDaily:
		b.WriteString(" daily")
	case FrequencyEveryDays:
		b.WriteString(" " + everyPhrase(interval, "day"))
	case FrequencyEveryHours:
		b.WriteString(" " + everyPhrase(interval, "hour"))
		b.WriteString(", " + pluralize(len(today), "dose") + " today")
	default:
		b.WriteString(" on a custom schedule")
	}

	if times := joinTimes(today); times != "" {
		b.WriteString(" at ")
		b.WriteString(times)
	}

	if !f.StartDate.IsZero() {
		b.WriteString(", starting ")
		b.WriteString(f.StartDate.In(time.UTC).Format("Jan 2, 2006"))
	}

	switch {
	case f.IsPermanent:
		b.WriteString(" with no end date.")
	default:
		days, err := strconv.Atoi(strings.TrimSpace(f.Duration))
		if err != nil || days <= 0 {
			b.WriteString(".")
		} else {
			b.WriteString(" for " + pluralize(days, "day") + ".")
		}
	}

	return b.String()
}

// SummarizeMedication describes a stored medication.
func SummarizeMedication(m *Medication) string {
	form := SummaryForm{
		Category:    m.Category,
		Frequency:   string(m.Frequency),
		Schedules:   SlotsFor(m),
		StartDate:   m.StartDate,
		IsPermanent: m.IsPermanent,
	}
	if m.Frequency != FrequencyDaily {
		form.IntervalValue = strconv.Itoa(m.IntervalValue)
	}
	if !m.IsPermanent {
		form.Duration = strconv.Itoa(m.Duration)
	}
	return Summarize(form)
}

func everyPhrase(n int, unit string) string {
	switch {
	case n == 0:
		return "every few " + unit + "s"
	case n == 1:
		return "every " + unit
	default:
		return fmt.Sprintf("every %d %ss", n, unit)
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// joinTimes formats slots as "T", "T1 and T2" or "T1, T2 and T3", earliest first.
func joinTimes(slots []TimeSlot) string {
	sorted := append([]TimeSlot(nil), slots...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinuteOfDay() < sorted[j].MinuteOfDay()
	})

	labels := make([]string, len(sorted))
	for i, s := range sorted {
		labels[i] = FormatClock(s.Hour, s.Minute)
	}

	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
	}
}

// FormatClock renders a time of day as "8:00 AM".
func FormatClock(hour, minute int) string {
	return time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format("3:04 PM")
}
