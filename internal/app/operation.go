package app

import (
	"time"

	"github.com/google/uuid"
)

// Operation describes one CLI invocation. Its RunID tags every log line the
// invocation writes.
type Operation struct {
	Name    string
	RunID   string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation starts tracking the named command.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		Name:    name,
		RunID:   now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		Started: now,
		Status:  "success",
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Elapsed is the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.Started)
}
