package database

import (
	"sync"

	"dosekeeper/internal/dose"
)

// changeBroker fans committed changes out to subscribers. Publishing happens
// outside the lock so a subscriber may read the store from its callback.
type changeBroker struct {
	mu   sync.Mutex
	next int
	subs map[int]func(dose.Change)
}

func newChangeBroker() *changeBroker {
	return &changeBroker{subs: make(map[int]func(dose.Change))}
}

func (b *changeBroker) subscribe(fn func(dose.Change)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

func (b *changeBroker) publish(changes ...dose.Change) {
	b.mu.Lock()
	fns := make([]func(dose.Change), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
