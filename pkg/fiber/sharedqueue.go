package fiber

import (
	"sync"
	"time"
)

// SharedReady is one global FIFO shared by every SharedQueue instance of a
// scheduler group. Pinned fibers never enter it.
type SharedReady struct {
	mu    sync.Mutex
	q     []*Fiber
	evs   []*wakeEvent
	round int
}

// NewSharedReady creates the shared queue backing a group of SharedQueue
// algorithms.
func NewSharedReady() *SharedReady {
	return &SharedReady{}
}

func (s *SharedReady) register(ev *wakeEvent) {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
}

func (s *SharedReady) push(f *Fiber) {
	s.mu.Lock()
	s.q = append(s.q, f)
	var ev *wakeEvent
	if len(s.evs) > 0 {
		ev = s.evs[s.round%len(s.evs)]
		s.round++
	}
	s.mu.Unlock()
	if ev != nil {
		ev.Notify()
	}
}

func (s *SharedReady) pop() *Fiber {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.q) == 0 {
		return nil
	}
	f := s.q[0]
	copy(s.q, s.q[1:])
	s.q[len(s.q)-1] = nil
	s.q = s.q[:len(s.q)-1]
	return f
}

func (s *SharedReady) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.q) == 0
}

// SharedQueue lets several schedulers drain one global ready queue. Pinned
// fibers stay in a per-instance local list so the main and dispatcher
// contexts never migrate.
type SharedQueue struct {
	shared *SharedReady
	mu     sync.Mutex
	local  []*Fiber
	ev     *wakeEvent
}

// NewSharedQueue creates an instance draining shared.
func NewSharedQueue(shared *SharedReady) *SharedQueue {
	a := &SharedQueue{shared: shared, ev: newWakeEvent()}
	shared.register(a.ev)
	return a
}

// Awakened routes pinned fibers to the local list and everything else to
// the shared queue.
func (a *SharedQueue) Awakened(f *Fiber) {
	if f.Pinned() {
		a.mu.Lock()
		a.local = append(a.local, f)
		a.mu.Unlock()
		return
	}
	a.shared.push(f)
}

// PickNext prefers the shared queue; when it is empty, the local list.
func (a *SharedQueue) PickNext() *Fiber {
	if f := a.shared.pop(); f != nil {
		return f
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.local) == 0 {
		return nil
	}
	f := a.local[0]
	copy(a.local, a.local[1:])
	a.local[len(a.local)-1] = nil
	a.local = a.local[:len(a.local)-1]
	return f
}

// HasReady reports whether either queue holds a fiber.
func (a *SharedQueue) HasReady() bool {
	if !a.shared.empty() {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.local) > 0
}

// SuspendUntil blocks until deadline or a notify.
func (a *SharedQueue) SuspendUntil(deadline time.Time) {
	a.ev.WaitUntil(deadline)
}

// Notify wakes a suspended dispatcher.
func (a *SharedQueue) Notify() {
	a.ev.Notify()
}
