package fiber

import "time"

// Algorithm decides which ready fiber a scheduler runs next. Awakened and
// Notify may be called from any goroutine; PickNext, HasReady and
// SuspendUntil are only called by the owning scheduler's dispatcher.
type Algorithm interface {
	// Awakened inserts a fiber that became ready. It must not block beyond
	// short lock acquisition and must never double-link a fiber.
	Awakened(f *Fiber)
	// PickNext detaches and returns the next ready fiber, or nil.
	PickNext() *Fiber
	// HasReady reports whether a ready fiber is queued.
	HasReady() bool
	// SuspendUntil blocks the dispatcher until deadline or until Notify is
	// called. A zero deadline means block until notified.
	SuspendUntil(deadline time.Time)
	// Notify wakes a pending SuspendUntil. Idempotent.
	Notify()
}

// Stealer is implemented by algorithms that let peer schedulers take ready,
// unpinned fibers.
type Stealer interface {
	// Steal detaches one unpinned ready fiber for another scheduler, or
	// returns nil.
	Steal() *Fiber
}

// schedulerBinder is implemented by algorithms that need a reference to the
// scheduler they are installed on, for example to re-home stolen fibers.
type schedulerBinder interface {
	bind(s *Scheduler)
}
