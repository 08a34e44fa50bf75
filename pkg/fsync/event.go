package fsync

import (
	"sync"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

// OneShotEvent starts unset; the first Set releases every current and
// future waiter. Further Sets are no-ops.
type OneShotEvent struct {
	lk      sync.Mutex
	set     bool
	waiters fiber.WaitList
}

// Set marks the event and readies all waiters.
func (e *OneShotEvent) Set() {
	e.lk.Lock()
	if e.set {
		e.lk.Unlock()
		return
	}
	e.set = true
	var woken []*fiber.Fiber
	for {
		n := e.waiters.PopFront()
		if n == nil {
			break
		}
		n.Transferred = true
		woken = append(woken, n.F)
	}
	e.lk.Unlock()
	for _, f := range woken {
		f.Unpark()
	}
}

// IsSet reports whether the event has been set.
func (e *OneShotEvent) IsSet() bool {
	e.lk.Lock()
	defer e.lk.Unlock()
	return e.set
}

// Wait parks the calling fiber until the event is set. Waiting on a set
// event returns immediately.
func (e *OneShotEvent) Wait(f *fiber.Fiber) error {
	for {
		e.lk.Lock()
		if e.set {
			e.lk.Unlock()
			return nil
		}
		n := fiber.NewWaitNode(f)
		e.waiters.PushBack(n)
		f.Park(e.lk.Unlock)
		e.lk.Lock()
		if n.Transferred {
			e.lk.Unlock()
			return nil
		}
		if n.Linked() {
			e.waiters.Remove(n)
		}
		e.lk.Unlock()
		if err := f.CheckInterrupt(); err != nil {
			return err
		}
	}
}

// WaitUntil is Wait bounded by a deadline; it reports whether the event was
// set when the wait ended.
func (e *OneShotEvent) WaitUntil(f *fiber.Fiber, deadline time.Time) (bool, error) {
	for {
		e.lk.Lock()
		if e.set {
			e.lk.Unlock()
			return true, nil
		}
		n := fiber.NewWaitNode(f)
		e.waiters.PushBack(n)
		f.ParkUntil(deadline, e.lk.Unlock)
		e.lk.Lock()
		if n.Transferred {
			e.lk.Unlock()
			return true, nil
		}
		if n.Linked() {
			e.waiters.Remove(n)
		}
		e.lk.Unlock()
		if err := f.CheckInterrupt(); err != nil {
			return false, err
		}
		if !time.Now().Before(deadline) {
			return e.IsSet(), nil
		}
	}
}
