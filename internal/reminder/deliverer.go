package reminder

import (
	"context"

	"dosekeeper/internal/dose"
)

// LogDeliverer writes reminders to the log. It is the notifier used when no
// messaging channel is configured.
type LogDeliverer struct {
	Logger dose.Logger
}

func (d LogDeliverer) Deliver(ctx context.Context, r dose.Reminder) error {
	d.Logger.Info(r.Title, "body", r.Body, "id", r.ID, "scheduled_at", r.Payload.ScheduledAt)
	return nil
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, r dose.Reminder) error

func (f DelivererFunc) Deliver(ctx context.Context, r dose.Reminder) error {
	return f(ctx, r)
}
