package dose

import (
	"context"
	"fmt"
	"sync"
)

// MedicationHandle is a live view of one medication. It refreshes after every
// committed update and becomes invalid once the medication is deleted, so a
// caller can never read a deleted row through it.
type MedicationHandle struct {
	store  Store
	id     string
	cancel func()

	mu      sync.RWMutex
	current *Medication
	valid   bool
}

// WatchMedication opens a live handle. It returns ErrNotFound when the
// medication does not exist.
func WatchMedication(ctx context.Context, store Store, id string) (*MedicationHandle, error) {
	m, err := store.GetMedication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading medication: %w", err)
	}
	if m == nil {
		return nil, ErrNotFound
	}

	h := &MedicationHandle{store: store, id: id, current: m, valid: true}
	h.cancel = store.Subscribe(h.onChange)
	return h, nil
}

func (h *MedicationHandle) onChange(c Change) {
	if c.Entity != EntityMedication || c.ID != h.id {
		return
	}

	switch c.Kind {
	case Deleted:
		h.invalidate()
	case Created, Updated:
		m, err := h.store.GetMedication(context.Background(), h.id)
		if err != nil || m == nil {
			h.invalidate()
			return
		}
		h.mu.Lock()
		if h.valid {
			h.current = m
		}
		h.mu.Unlock()
	}
}

func (h *MedicationHandle) invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = false
	h.current = nil
}

// Get returns a copy of the latest committed medication.
// ok is false once the medication has been deleted.
func (h *MedicationHandle) Get() (m Medication, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.valid {
		return Medication{}, false
	}
	return *h.current, true
}

// Valid reports whether the underlying medication still exists.
func (h *MedicationHandle) Valid() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.valid
}

// Close stops tracking changes.
func (h *MedicationHandle) Close() {
	if h.cancel != nil {
		h.cancel()
	}
}
