package dose

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
)

// OnTimeWindow is the largest delay, either way, that still counts as on time.
const OnTimeWindow = 30 // minutes

// History returns the adherence log of a medication, newest first.
func (s *Service) History(ctx context.Context, medicationID string, limit int) ([]*DoseLog, error) {
	s.logger.Debug("fetching dose history", "id", medicationID)

	logs, err := s.store.LogsForMedication(ctx, medicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading dose logs: %w", err)
	}

	// Reverse to newest first
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// AdherenceRow summarises one medication over a date range.
type AdherenceRow struct {
	MedicationID string
	Name         string
	Expected     int // doses the schedule called for up to now
	Taken        int
	Skipped      int
	OnTime       int     // taken within OnTimeWindow of the scheduled time
	AverageDelay float64 // minutes, over taken doses
}

// Rate is the share of expected doses that were taken.
func (r *AdherenceRow) Rate() float64 {
	if r.Expected == 0 {
		return 0
	}
	return float64(r.Taken) / float64(r.Expected)
}

// Adherence reports, per medication of the profile, how many doses were due in
// [from, to] and what happened to them. Slots still ahead of now are not
// counted as due.
func (s *Service) Adherence(ctx context.Context, profileID string, from, to civil.Date) ([]*AdherenceRow, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to, from)
	}

	meds, err := s.store.ListMedications(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}

	start, _ := DayBounds(from, s.loc)
	_, end := DayBounds(to, s.loc)
	logs, err := s.store.LogsBetween(ctx, "", start, end)
	if err != nil {
		return nil, fmt.Errorf("loading dose logs: %w", err)
	}

	now := s.now()
	today := Today(now, s.loc)
	last := to
	if today.Before(last) {
		last = today
	}

	rows := make([]*AdherenceRow, 0, len(meds))
	byID := make(map[string]*AdherenceRow, len(meds))
	for _, m := range meds {
		row := &AdherenceRow{MedicationID: m.ID, Name: m.Name}
		slots := SlotsFor(m)
		for day := from; !day.After(last); day = day.AddDays(1) {
			if !ActiveOn(m, day) {
				continue
			}
			for _, slot := range slots {
				if !slot.On(day, s.loc).After(now) {
					row.Expected++
				}
			}
		}
		rows = append(rows, row)
		byID[m.ID] = row
	}

	delays := make(map[string]int)
	for _, l := range logs {
		row, ok := byID[l.MedicationID]
		if !ok {
			continue
		}
		switch l.Status {
		case StatusTaken:
			row.Taken++
			delays[l.MedicationID] += l.DelayMinutes
			if abs(l.DelayMinutes) <= OnTimeWindow {
				row.OnTime++
			}
		case StatusSkipped:
			row.Skipped++
		case StatusMissed, StatusSnoozed, StatusPending:
		}
	}

	for _, row := range rows {
		if row.Taken > 0 {
			row.AverageDelay = float64(delays[row.MedicationID]) / float64(row.Taken)
		}
	}
	return rows, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
