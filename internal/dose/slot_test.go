package dose

import (
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestExpandCycle_Counts(t *testing.T) {
	starts := []TimeSlot{{Hour: 0}, {Hour: 8}, {Hour: 16, Minute: 30}, {Hour: 23, Minute: 59}}

	for _, interval := range []int{1, 2, 3, 4, 6, 8, 12, 24} {
		for _, start := range starts {
			slots := ExpandCycle(start.Hour, start.Minute, interval)

			if len(slots) != 24/interval {
				t.Errorf("ExpandCycle(%s, %d) = %d slots, want %d", start, interval, len(slots), 24/interval)
			}

			seen := make(map[TimeSlot]bool)
			prev := -1
			for _, s := range slots {
				if s.DaysOffset != 0 && s.DaysOffset != 1 {
					t.Errorf("ExpandCycle(%s, %d): slot %s has offset %d", start, interval, s, s.DaysOffset)
				}
				if seen[s] {
					t.Errorf("ExpandCycle(%s, %d): duplicate slot %s", start, interval, s)
				}
				seen[s] = true

				abs := s.DaysOffset*minutesPerDay + s.MinuteOfDay()
				if abs <= prev {
					t.Errorf("ExpandCycle(%s, %d): slots not in firing order at %s", start, interval, s)
				}
				prev = abs
			}
		}
	}
}

func TestExpandCycle_Examples(t *testing.T) {
	tests := []struct {
		name     string
		hour     int
		minute   int
		interval int
		want     []TimeSlot
	}{
		{
			name: "16:00 every 12 hours",
			hour: 16, interval: 12,
			want: []TimeSlot{{16, 0, 0}, {4, 0, 1}},
		},
		{
			name: "8:00 every 8 hours",
			hour: 8, interval: 8,
			want: []TimeSlot{{8, 0, 0}, {16, 0, 0}, {0, 0, 1}},
		},
		{
			name: "once a day",
			hour: 7, minute: 45, interval: 24,
			want: []TimeSlot{{7, 45, 0}},
		},
		{
			name: "uneven interval keeps whole slots only",
			hour: 6, interval: 5,
			want: []TimeSlot{{6, 0, 0}, {11, 0, 0}, {16, 0, 0}, {21, 0, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandCycle(tt.hour, tt.minute, tt.interval)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandCycle(%d, %d, %d) = %v, want %v", tt.hour, tt.minute, tt.interval, got, tt.want)
			}
		})
	}
}

func TestExpandCycle_NonPositiveInterval(t *testing.T) {
	for _, interval := range []int{0, -4} {
		if got := ExpandCycle(8, 0, interval); got != nil {
			t.Errorf("ExpandCycle(8, 0, %d) = %v, want nil", interval, got)
		}
	}
}

func TestTodaySlots_MatchesSameDayExpansion(t *testing.T) {
	for _, interval := range []int{1, 2, 3, 4, 6, 8, 12, 24} {
		for hour := 0; hour < 24; hour += 5 {
			var want []TimeSlot
			for _, s := range ExpandCycle(hour, 15, interval) {
				if s.DaysOffset == 0 {
					want = append(want, s)
				}
			}
			got := TodaySlots(hour, 15, interval)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("TodaySlots(%d, 15, %d) = %v, want %v", hour, interval, got, want)
			}
		}
	}
}

func TestTimeSlot_String(t *testing.T) {
	if got := (TimeSlot{Hour: 8, Minute: 5}).String(); got != "08:05" {
		t.Errorf("String() = %q, want %q", got, "08:05")
	}
	if got := (TimeSlot{Hour: 0, Minute: 0, DaysOffset: 1}).String(); got != "00:00+1" {
		t.Errorf("String() = %q, want %q", got, "00:00+1")
	}
}

func TestTimeSlot_On(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	day := civil.Date{Year: 2026, Month: 3, Day: 10}

	got := TimeSlot{Hour: 16, Minute: 30}.On(day, loc)
	if want := time.Date(2026, 3, 10, 16, 30, 0, 0, loc); !got.Equal(want) {
		t.Errorf("On() = %v, want %v", got, want)
	}

	got = TimeSlot{Hour: 0, DaysOffset: 1}.On(day, loc)
	if want := time.Date(2026, 3, 11, 0, 0, 0, 0, loc); !got.Equal(want) {
		t.Errorf("On() with offset = %v, want %v", got, want)
	}
}
