// Package reminder runs dose reminders inside the process: a time-ordered
// queue polled on a tick, handing due reminders to a Deliverer.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"dosekeeper/internal/dose"
)

// DefaultTick is how often Run looks for due reminders.
const DefaultTick = 15 * time.Second

// Deliverer shows a due reminder to the user.
type Deliverer interface {
	Deliver(ctx context.Context, r dose.Reminder) error
}

// Options tunes a Scheduler. Zero values pick defaults.
type Options struct {
	Tick time.Duration
	// Lead is the minimum distance between now and a fire time.
	Lead time.Duration
}

// Scheduler implements dose.Scheduler with an in-memory queue.
type Scheduler struct {
	clk       clock.Clock
	deliverer Deliverer
	logger    dose.Logger
	tick      time.Duration
	lead      time.Duration

	mu sync.Mutex
	q  *queue
}

// NewScheduler creates a Scheduler. clk is usually clock.New().
func NewScheduler(clk clock.Clock, deliverer Deliverer, logger dose.Logger, opts Options) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Lead <= 0 {
		opts.Lead = time.Second
	}
	return &Scheduler{
		clk:       clk,
		deliverer: deliverer,
		logger:    logger,
		tick:      opts.Tick,
		lead:      opts.Lead,
		q:         newQueue(),
	}
}

// Schedule queues r, replacing any pending reminder with the same id. Fire
// times closer than the lead are pushed out to now+lead.
func (s *Scheduler) Schedule(ctx context.Context, r dose.Reminder) error {
	if r.ID == "" {
		return fmt.Errorf("reminder id is required")
	}
	if earliest := s.clk.Now().Add(s.lead); r.FireAt.Before(earliest) {
		r.FireAt = earliest
	}

	s.mu.Lock()
	s.q.put(r)
	s.mu.Unlock()

	s.logger.Debug("reminder scheduled", "id", r.ID, "fire_at", r.FireAt)
	return nil
}

// Cancel drops a pending reminder. Unknown ids are ignored.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	removed := s.q.remove(id)
	s.mu.Unlock()

	if removed {
		s.logger.Debug("reminder cancelled", "id", id)
	}
	return nil
}

// Pending returns the queued reminders in fire order.
func (s *Scheduler) Pending() []dose.Reminder {
	s.mu.Lock()
	out := make([]dose.Reminder, 0, len(s.q.entries))
	for _, e := range s.q.entries {
		out = append(out, e.reminder)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// DeliverDue hands every reminder whose fire time has passed to the
// deliverer and returns how many were delivered. A delivery error is logged
// and the reminder is dropped.
func (s *Scheduler) DeliverDue(ctx context.Context) int {
	now := s.clk.Now()

	s.mu.Lock()
	var due []dose.Reminder
	for {
		r, ok := s.q.peek()
		if !ok || now.Before(r.FireAt) {
			break
		}
		due = append(due, s.q.pop())
	}
	s.mu.Unlock()

	delivered := 0
	for _, r := range due {
		if err := s.deliverer.Deliver(ctx, r); err != nil {
			s.logger.Error("reminder delivery failed", "id", r.ID, "error", err)
			continue
		}
		s.logger.Info("reminder delivered", "id", r.ID)
		delivered++
	}
	return delivered
}

// Run delivers due reminders every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.DeliverDue(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clk.After(s.tick):
		}
	}
}

var _ dose.Scheduler = (*Scheduler)(nil)
