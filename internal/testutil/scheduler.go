package testutil

import (
	"context"
	"sort"
	"sync"

	"dosekeeper/internal/dose"
)

// RecordingScheduler keeps scheduled reminders in a map and records every
// call. It implements dose.Scheduler.
type RecordingScheduler struct {
	mu        sync.Mutex
	pending   map[string]dose.Reminder
	Scheduled []dose.Reminder
	Cancelled []string
	Err       error // returned by Schedule when set
	CancelErr error // returned by Cancel when set
}

func NewRecordingScheduler() *RecordingScheduler {
	return &RecordingScheduler{pending: make(map[string]dose.Reminder)}
}

func (s *RecordingScheduler) Schedule(ctx context.Context, r dose.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.pending[r.ID] = r
	s.Scheduled = append(s.Scheduled, r)
	return nil
}

func (s *RecordingScheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CancelErr != nil {
		return s.CancelErr
	}
	delete(s.pending, id)
	s.Cancelled = append(s.Cancelled, id)
	return nil
}

// Pending returns the reminders not yet cancelled, ordered by fire time.
func (s *RecordingScheduler) Pending() []dose.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dose.Reminder, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Get returns the pending reminder with id.
func (s *RecordingScheduler) Get(id string) (dose.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pending[id]
	return r, ok
}

var _ dose.Scheduler = (*RecordingScheduler)(nil)
