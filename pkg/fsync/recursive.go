package fsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

// RecursiveMutex tracks owner and count: same-fiber relocks increment the
// count and Unlock only releases ownership when the count drops to zero.
type RecursiveMutex struct {
	lk      sync.Mutex
	owner   *fiber.Fiber
	count   int
	waiters fiber.WaitList
}

// Lock acquires the mutex or, when the caller already owns it, increments
// the lock count. An interruption delivered while waiting for the initial
// acquisition leaves the count untouched.
func (m *RecursiveMutex) Lock(f *fiber.Fiber) error {
	return m.lockRec(f, true)
}

func (m *RecursiveMutex) lockRec(f *fiber.Fiber, interruptible bool) error {
	m.lk.Lock()
	if m.owner == nil {
		m.owner = f
		m.count = 1
		m.lk.Unlock()
		return nil
	}
	if m.owner == f {
		m.count++
		m.lk.Unlock()
		return nil
	}
	n := fiber.NewWaitNode(f)
	m.waiters.PushBack(n)
	for {
		f.Park(m.lk.Unlock)
		m.lk.Lock()
		if n.Transferred {
			m.lk.Unlock()
			return nil
		}
		if interruptible {
			if err := f.CheckInterrupt(); err != nil {
				m.waiters.Remove(n)
				m.lk.Unlock()
				return err
			}
		}
	}
}

// TryLock acquires or re-acquires the mutex without suspending.
func (m *RecursiveMutex) TryLock(f *fiber.Fiber) bool {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.owner == nil {
		m.owner = f
		m.count = 1
		return true
	}
	if m.owner == f {
		m.count++
		return true
	}
	return false
}

// Unlock decrements the lock count and releases ownership at zero, handing
// the mutex to the oldest waiter if any.
func (m *RecursiveMutex) Unlock(f *fiber.Fiber) error {
	m.lk.Lock()
	if m.owner != f {
		m.lk.Unlock()
		return fmt.Errorf("unlock by non-owner: %w", fiber.ErrLock)
	}
	m.count--
	if m.count > 0 {
		m.lk.Unlock()
		return nil
	}
	if n := m.waiters.PopFront(); n != nil {
		m.owner = n.F
		m.count = 1
		n.Transferred = true
		m.lk.Unlock()
		n.F.Unpark()
		return nil
	}
	m.owner = nil
	m.lk.Unlock()
	return nil
}

// Count returns the current lock depth.
func (m *RecursiveMutex) Count() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.count
}

// Owner returns the fiber currently holding the mutex, or nil.
func (m *RecursiveMutex) Owner() *fiber.Fiber {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.owner
}

// RecursiveTimedMutex combines recursive ownership with deadline-bounded
// acquisition.
type RecursiveTimedMutex struct {
	RecursiveMutex
}

// TryLockUntil attempts acquisition before deadline; same-fiber relocks
// succeed immediately. A hand-off that wins the race against the timeout
// still acquires ownership and the call reports success.
func (m *RecursiveTimedMutex) TryLockUntil(f *fiber.Fiber, deadline time.Time) (bool, error) {
	m.lk.Lock()
	if m.owner == nil {
		m.owner = f
		m.count = 1
		m.lk.Unlock()
		return true, nil
	}
	if m.owner == f {
		m.count++
		m.lk.Unlock()
		return true, nil
	}
	n := fiber.NewWaitNode(f)
	m.waiters.PushBack(n)
	for {
		f.ParkUntil(deadline, m.lk.Unlock)
		m.lk.Lock()
		if n.Transferred {
			m.lk.Unlock()
			return true, nil
		}
		if err := f.CheckInterrupt(); err != nil {
			m.waiters.Remove(n)
			m.lk.Unlock()
			return false, err
		}
		if !time.Now().Before(deadline) {
			m.waiters.Remove(n)
			m.lk.Unlock()
			return false, nil
		}
	}
}

// TryLockFor is TryLockUntil with a relative timeout.
func (m *RecursiveTimedMutex) TryLockFor(f *fiber.Fiber, d time.Duration) (bool, error) {
	return m.TryLockUntil(f, time.Now().Add(d))
}
