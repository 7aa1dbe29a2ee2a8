package dose

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
)

func TestSummarize(t *testing.T) {
	start := civil.Date{Year: 2026, Month: 1, Day: 2}

	tests := []struct {
		name string
		form SummaryForm
		want string
	}{
		{
			name: "every 8 hours counts only today's doses",
			form: SummaryForm{
				Category:      "pill",
				Frequency:     "every_x_hours",
				IntervalValue: "8",
				Schedules:     []TimeSlot{{Hour: 8}, {Hour: 16}, {Hour: 0, DaysOffset: 1}},
				StartDate:     start,
				Duration:      "7",
			},
			want: "Take pill every 8 hours, 2 doses today at 8:00 AM and 4:00 PM, starting Jan 2, 2026 for 7 days.",
		},
		{
			name: "daily permanent",
			form: SummaryForm{
				Category:    "syrup",
				Frequency:   "daily",
				Schedules:   []TimeSlot{{Hour: 21, Minute: 30}},
				StartDate:   start,
				IsPermanent: true,
			},
			want: "Take syrup daily at 9:30 PM, starting Jan 2, 2026 with no end date.",
		},
		{
			name: "every day without a start date",
			form: SummaryForm{
				Category:      "pill",
				Frequency:     "every_x_days",
				IntervalValue: "1",
				Schedules:     []TimeSlot{{Hour: 8}},
				Duration:      "1",
			},
			want: "Take pill every day at 8:00 AM for 1 day.",
		},
		{
			name: "three slots and unsorted input",
			form: SummaryForm{
				Category:      "pill",
				Frequency:     "hourly",
				IntervalValue: "6",
				Schedules:     []TimeSlot{{Hour: 18}, {Hour: 6}, {Hour: 12}, {Hour: 0, DaysOffset: 1}},
				IsPermanent:   true,
			},
			want: "Take pill every 6 hours, 3 doses today at 6:00 AM, 12:00 PM and 6:00 PM with no end date.",
		},
		{
			name: "incomplete form",
			form: SummaryForm{Frequency: "every_x_days", IntervalValue: "", Duration: "abc"},
			want: "Take medication every few days.",
		},
		{
			name: "unknown frequency",
			form: SummaryForm{Category: "drops", Frequency: "weekly", IsPermanent: true},
			want: "Take drops on a custom schedule with no end date.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.form); got != tt.want {
				t.Errorf("Summarize() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestSummarizeMedication(t *testing.T) {
	m := newMedication("m", FrequencyEveryHours, 12, civil.Time{Hour: 16})
	m.IsPermanent = false
	m.Duration = 10

	got := SummarizeMedication(m)
	if !strings.Contains(got, "every 12 hours, 1 dose today at 4:00 PM") {
		t.Errorf("SummarizeMedication() = %q", got)
	}
	if !strings.HasSuffix(got, "starting Mar 10, 2026 for 10 days.") {
		t.Errorf("SummarizeMedication() = %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         string
	}{
		{0, 5, "12:05 AM"},
		{8, 0, "8:00 AM"},
		{12, 0, "12:00 PM"},
		{23, 59, "11:59 PM"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.hour, tt.minute); got != tt.want {
			t.Errorf("FormatClock(%d, %d) = %q, want %q", tt.hour, tt.minute, got, tt.want)
		}
	}
}
