package fiber

import (
	"sync"
	"time"
)

// PriorityQueue orders ready fibers by their user-settable priority; equal
// priorities retain FIFO order. Priority changes made while a fiber is
// queued take effect at the next pick, because the pick always consults the
// fiber's current priority.
type PriorityQueue struct {
	mu  sync.Mutex
	q   []prioEntry
	seq uint64
	ev  *wakeEvent
}

type prioEntry struct {
	f   *Fiber
	seq uint64
}

// NewPriorityQueue creates a priority algorithm.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{ev: newWakeEvent()}
}

// Awakened inserts f with the next arrival sequence.
func (a *PriorityQueue) Awakened(f *Fiber) {
	a.mu.Lock()
	a.seq++
	a.q = append(a.q, prioEntry{f: f, seq: a.seq})
	a.mu.Unlock()
}

// PickNext returns the queued fiber with the highest priority, breaking
// ties by arrival order.
func (a *PriorityQueue) PickNext() *Fiber {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.q) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(a.q); i++ {
		pi, pb := a.q[i].f.Priority(), a.q[best].f.Priority()
		if pi > pb || (pi == pb && a.q[i].seq < a.q[best].seq) {
			best = i
		}
	}
	f := a.q[best].f
	a.q[best] = a.q[len(a.q)-1]
	a.q[len(a.q)-1] = prioEntry{}
	a.q = a.q[:len(a.q)-1]
	return f
}

// HasReady reports whether the queue is non-empty.
func (a *PriorityQueue) HasReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.q) > 0
}

// SuspendUntil blocks until deadline or a notify.
func (a *PriorityQueue) SuspendUntil(deadline time.Time) {
	a.ev.WaitUntil(deadline)
}

// Notify wakes a suspended dispatcher.
func (a *PriorityQueue) Notify() {
	a.ev.Notify()
}
