package dose

import (
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

var day0 = civil.Date{Year: 2026, Month: 3, Day: 10}

func newMedication(id string, freq Frequency, interval int, at civil.Time) *Medication {
	return &Medication{
		ID:            id,
		Name:          id,
		DoseAmount:    "1",
		Unit:          "tablet",
		Category:      "pill",
		Frequency:     freq,
		IntervalValue: interval,
		StartDate:     day0,
		ReminderTime:  at,
		IsPermanent:   true,
		IsActive:      true,
	}
}

func TestActiveOn_EveryXDays(t *testing.T) {
	m := newMedication("m", FrequencyEveryDays, 3, civil.Time{Hour: 8})

	for offset := -1; offset <= 9; offset++ {
		day := day0.AddDays(offset)
		want := offset >= 0 && offset%3 == 0
		if got := ActiveOn(m, day); got != want {
			t.Errorf("ActiveOn(start%+d) = %v, want %v", offset, got, want)
		}
	}
}

func TestActiveOn_Duration(t *testing.T) {
	m := newMedication("m", FrequencyDaily, 0, civil.Time{Hour: 8})
	m.IsPermanent = false
	m.Duration = 7

	active := 0
	for offset := 0; offset < 30; offset++ {
		if ActiveOn(m, day0.AddDays(offset)) {
			active++
		}
	}
	if active != 7 {
		t.Errorf("active on %d days, want 7", active)
	}
	if !ActiveOn(m, day0.AddDays(6)) {
		t.Error("inactive on the 7th day")
	}
	if ActiveOn(m, day0.AddDays(7)) {
		t.Error("active on the 8th day")
	}

	end, ok := m.EndDate()
	if !ok || end != day0.AddDays(6) {
		t.Errorf("EndDate() = %s, %v, want %s", end, ok, day0.AddDays(6))
	}
}

func TestActiveOn_HourlyAndDaily(t *testing.T) {
	for _, freq := range []Frequency{FrequencyDaily, FrequencyEveryHours} {
		m := newMedication("m", freq, 6, civil.Time{Hour: 8})
		if ActiveOn(m, day0.AddDays(-1)) {
			t.Errorf("%s: active before start", freq)
		}
		for offset := 0; offset < 5; offset++ {
			if !ActiveOn(m, day0.AddDays(offset)) {
				t.Errorf("%s: inactive on start%+d", freq, offset)
			}
		}
	}
}

func TestActiveOn_BadSchedule(t *testing.T) {
	if ActiveOn(newMedication("m", FrequencyEveryDays, 0, civil.Time{}), day0) {
		t.Error("every_x_days with interval 0 is active")
	}
	if ActiveOn(newMedication("m", Frequency("weekly"), 1, civil.Time{}), day0) {
		t.Error("unknown frequency is active")
	}
}

func TestSlotsFor(t *testing.T) {
	tests := []struct {
		name string
		m    *Medication
		want []TimeSlot
	}{
		{
			name: "daily",
			m:    newMedication("m", FrequencyDaily, 0, civil.Time{Hour: 21, Minute: 30}),
			want: []TimeSlot{{Hour: 21, Minute: 30}},
		},
		{
			name: "every 3 days",
			m:    newMedication("m", FrequencyEveryDays, 3, civil.Time{Hour: 7}),
			want: []TimeSlot{{Hour: 7}},
		},
		{
			name: "every 8 hours drops the slot after midnight",
			m:    newMedication("m", FrequencyEveryHours, 8, civil.Time{Hour: 8}),
			want: []TimeSlot{{Hour: 8}, {Hour: 16}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlotsFor(tt.m); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SlotsFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOccurrences(t *testing.T) {
	evening := newMedication("evening", FrequencyDaily, 0, civil.Time{Hour: 20})
	hourly := newMedication("hourly", FrequencyEveryHours, 6, civil.Time{Hour: 6})
	paused := newMedication("paused", FrequencyDaily, 0, civil.Time{Hour: 9})
	paused.IsActive = false
	notToday := newMedication("not-today", FrequencyEveryDays, 2, civil.Time{Hour: 10})
	notToday.StartDate = day0.AddDays(-1)

	meds := []*Medication{evening, hourly, paused, notToday}
	got := Occurrences(meds, day0, time.UTC)

	var ids []string
	for _, o := range got {
		ids = append(ids, o.Medication.ID+"@"+o.Slot.String())
	}
	want := []string{"hourly@06:00", "hourly@12:00", "hourly@18:00", "evening@20:00"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Occurrences() = %v, want %v", ids, want)
	}

	if !got[0].ScheduledAt.Equal(time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("ScheduledAt = %v, want 06:00 on the day", got[0].ScheduledAt)
	}

	again := Occurrences(meds, day0, time.UTC)
	if !reflect.DeepEqual(got, again) {
		t.Error("Occurrences() is not idempotent")
	}
}

func TestTodayAndDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC) // 21:00 on the 10th in loc

	if got := Today(now, loc); got != day0 {
		t.Errorf("Today() = %s, want %s", got, day0)
	}

	start, end := DayBounds(day0, loc)
	if want := time.Date(2026, 3, 10, 0, 0, 0, 0, loc); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if got := end.Sub(start); got != 24*time.Hour {
		t.Errorf("day length = %v, want 24h", got)
	}
}
