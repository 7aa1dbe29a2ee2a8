package reminder

import (
	"container/heap"

	"dosekeeper/internal/dose"
)

type entry struct {
	reminder dose.Reminder
	index    int // position in the heap
}

// queue is a min-heap of pending reminders ordered by fire time, indexed by
// reminder id so that entries can be replaced or removed in place.
type queue struct {
	entries []*entry
	byID    map[string]*entry
}

func newQueue() *queue {
	q := &queue{byID: make(map[string]*entry)}
	heap.Init(q)
	return q
}

func (q queue) Len() int {
	return len(q.entries)
}

func (q queue) Less(i, j int) bool {
	a, b := q.entries[i].reminder, q.entries[j].reminder
	if a.FireAt.Equal(b.FireAt) {
		return a.ID < b.ID
	}
	return a.FireAt.Before(b.FireAt)
}

func (q queue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	q.entries[i].index = i
	q.entries[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(q.entries)
	q.entries = append(q.entries, e)
	q.byID[e.reminder.ID] = e
}

func (q *queue) Pop() any {
	n := len(q.entries)
	e := q.entries[n-1]
	q.entries[n-1] = nil
	q.entries = q.entries[:n-1]
	delete(q.byID, e.reminder.ID)
	e.index = -1
	return e
}

// put inserts r, replacing a pending reminder with the same id.
func (q *queue) put(r dose.Reminder) {
	if e, ok := q.byID[r.ID]; ok {
		e.reminder = r
		heap.Fix(q, e.index)
		return
	}
	heap.Push(q, &entry{reminder: r})
}

func (q *queue) remove(id string) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(q, e.index)
	return true
}

func (q *queue) peek() (dose.Reminder, bool) {
	if len(q.entries) == 0 {
		return dose.Reminder{}, false
	}
	return q.entries[0].reminder, true
}

func (q *queue) pop() dose.Reminder {
	return heap.Pop(q).(*entry).reminder
}
