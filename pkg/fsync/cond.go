package fsync

import (
	"sync"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

// WaitStatus reports how a timed wait returned.
type WaitStatus int

const (
	// NoTimeout means the wait was notified (or woke spuriously).
	NoTimeout WaitStatus = iota
	// Timeout means the deadline passed before a notification.
	Timeout
)

func (s WaitStatus) String() string {
	if s == Timeout {
		return "TIMEOUT"
	}
	return "NO_TIMEOUT"
}

// Cond is a fiber condition variable with a FIFO waiter list.
type Cond struct {
	lk      sync.Mutex
	waiters fiber.WaitList
}

// Wait atomically appends the caller to the waiter list, releases m and
// parks. The mutex is re-acquired before Wait returns, including when the
// wait ends in an interruption: the caller holds m at every return. Wait is
// an interruption point; spurious wake-ups are permitted.
func (c *Cond) Wait(f *fiber.Fiber, m *Mutex) error {
	c.lk.Lock()
	n := fiber.NewWaitNode(f)
	c.waiters.PushBack(n)
	if err := m.Unlock(f); err != nil {
		c.waiters.Remove(n)
		c.lk.Unlock()
		return err
	}
	f.Park(c.lk.Unlock)

	err := f.CheckInterrupt()
	c.lk.Lock()
	notified := n.Transferred
	if n.Linked() {
		c.waiters.Remove(n)
	}
	c.lk.Unlock()
	m.lock(f, false)
	if err != nil {
		if notified {
			// The consumed notification is passed on to another waiter.
			c.NotifyOne()
		}
		return err
	}
	return nil
}

// WaitUntil is Wait bounded by a deadline. The race between a timeout and a
// concurrent notify is resolved by whichever marks the waiter first.
func (c *Cond) WaitUntil(f *fiber.Fiber, m *Mutex, deadline time.Time) (WaitStatus, error) {
	c.lk.Lock()
	n := fiber.NewWaitNode(f)
	c.waiters.PushBack(n)
	if err := m.Unlock(f); err != nil {
		c.waiters.Remove(n)
		c.lk.Unlock()
		return NoTimeout, err
	}
	f.ParkUntil(deadline, c.lk.Unlock)

	err := f.CheckInterrupt()
	c.lk.Lock()
	notified := n.Transferred
	if n.Linked() {
		c.waiters.Remove(n)
	}
	c.lk.Unlock()
	m.lock(f, false)
	if err != nil {
		if notified {
			c.NotifyOne()
		}
		return NoTimeout, err
	}
	if notified {
		return NoTimeout, nil
	}
	if !time.Now().Before(deadline) {
		return Timeout, nil
	}
	return NoTimeout, nil
}

// WaitFor is WaitUntil with a relative timeout.
func (c *Cond) WaitFor(f *fiber.Fiber, m *Mutex, d time.Duration) (WaitStatus, error) {
	return c.WaitUntil(f, m, time.Now().Add(d))
}

// Await waits until pred reports true, re-evaluating it after every wake.
// pred is always called with m held.
func (c *Cond) Await(f *fiber.Fiber, m *Mutex, pred func() bool) error {
	for !pred() {
		if err := c.Wait(f, m); err != nil {
			return err
		}
	}
	return nil
}

// AwaitUntil is Await bounded by a deadline; it returns pred's final value,
// so a notification that lost the race against the timeout is still
// observed by the re-check.
func (c *Cond) AwaitUntil(f *fiber.Fiber, m *Mutex, deadline time.Time, pred func() bool) (bool, error) {
	for !pred() {
		st, err := c.WaitUntil(f, m, deadline)
		if err != nil {
			return false, err
		}
		if st == Timeout {
			return pred(), nil
		}
	}
	return true, nil
}

// NotifyOne dequeues the oldest waiter, if any, and marks it ready. No lock
// is required to call it.
func (c *Cond) NotifyOne() {
	c.lk.Lock()
	n := c.waiters.PopFront()
	if n != nil {
		n.Transferred = true
	}
	c.lk.Unlock()
	if n != nil {
		n.F.Unpark()
	}
}

// NotifyAll dequeues and readies every current waiter.
func (c *Cond) NotifyAll() {
	c.lk.Lock()
	var woken []*fiber.Fiber
	for {
		n := c.waiters.PopFront()
		if n == nil {
			break
		}
		n.Transferred = true
		woken = append(woken, n.F)
	}
	c.lk.Unlock()
	for _, f := range woken {
		f.Unpark()
	}
}
