package fiber

import (
	"sync"
	"time"
)

// RoundRobin is the default algorithm: a FIFO ready queue, fair in arrival
// order.
type RoundRobin struct {
	mu sync.Mutex
	q  []*Fiber
	ev *wakeEvent
}

// NewRoundRobin creates a round-robin algorithm.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{ev: newWakeEvent()}
}

// Awakened appends f to the tail of the ready queue.
func (a *RoundRobin) Awakened(f *Fiber) {
	a.mu.Lock()
	a.q = append(a.q, f)
	a.mu.Unlock()
}

// PickNext pops the head of the ready queue.
func (a *RoundRobin) PickNext() *Fiber {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.q) == 0 {
		return nil
	}
	f := a.q[0]
	copy(a.q, a.q[1:])
	a.q[len(a.q)-1] = nil
	a.q = a.q[:len(a.q)-1]
	return f
}

// HasReady reports whether the queue is non-empty.
func (a *RoundRobin) HasReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.q) > 0
}

// SuspendUntil blocks until deadline or a notify.
func (a *RoundRobin) SuspendUntil(deadline time.Time) {
	a.ev.WaitUntil(deadline)
}

// Notify wakes a suspended dispatcher.
func (a *RoundRobin) Notify() {
	a.ev.Notify()
}
