package dose

import (
	"testing"
	"time"
)

func TestResolveStatus(t *testing.T) {
	slot := TimeSlot{Hour: 8}
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }
	log := func(med string, status Status, takenAt time.Time) DoseLog {
		return DoseLog{MedicationID: med, Status: status, ScheduledAt: at(8, 0), TakenAt: takenAt}
	}

	tests := []struct {
		name string
		now  time.Time
		logs []DoseLog
		want Status
	}{
		{
			name: "before the slot without logs",
			now:  at(7, 59),
			want: StatusPending,
		},
		{
			name: "exactly at the slot",
			now:  at(8, 0),
			want: StatusPending,
		},
		{
			name: "after the slot without logs",
			now:  at(8, 1),
			want: StatusMissed,
		},
		{
			name: "taken today",
			now:  at(12, 0),
			logs: []DoseLog{log("m", StatusTaken, at(8, 5))},
			want: StatusTaken,
		},
		{
			name: "taken early counts before the slot",
			now:  at(7, 30),
			logs: []DoseLog{log("m", StatusTaken, at(7, 15))},
			want: StatusTaken,
		},
		{
			name: "latest log wins",
			now:  at(12, 0),
			logs: []DoseLog{
				log("m", StatusSkipped, at(9, 0)),
				log("m", StatusSnoozed, at(8, 0)),
			},
			want: StatusSkipped,
		},
		{
			name: "yesterday's log is ignored",
			now:  at(12, 0),
			logs: []DoseLog{log("m", StatusTaken, at(8, 0).AddDate(0, 0, -1))},
			want: StatusMissed,
		},
		{
			name: "another medication's log is ignored",
			now:  at(12, 0),
			logs: []DoseLog{log("other", StatusTaken, at(8, 0))},
			want: StatusMissed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveStatus("m", slot, tt.now, tt.logs); got != tt.want {
				t.Errorf("ResolveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveStatus_UsesLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	// 23:30 UTC on the 9th is 08:30 on the 10th in loc.
	logs := []DoseLog{{MedicationID: "m", Status: StatusTaken, TakenAt: time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)}}
	if got := ResolveStatus("m", TimeSlot{Hour: 8}, now, logs); got != StatusTaken {
		t.Errorf("ResolveStatus() = %s, want taken", got)
	}
}

func TestStatus_StringAndParse(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusTaken, StatusMissed, StatusSnoozed, StatusSkipped} {
		got, err := ParseStatus(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %v, %v", s.String(), got, err)
		}
	}

	if _, err := ParseStatus("forgotten"); err == nil {
		t.Error("ParseStatus(unknown) expected error")
	}
	if got := Status(42).String(); got != "Status(42)" {
		t.Errorf("String() = %q, want %q", got, "Status(42)")
	}
}

func TestStatus_Logged(t *testing.T) {
	if StatusPending.Logged() {
		t.Error("pending must not be logged")
	}
	for _, s := range []Status{StatusTaken, StatusMissed, StatusSnoozed, StatusSkipped} {
		if !s.Logged() {
			t.Errorf("%s.Logged() = false, want true", s)
		}
	}
}
