package fsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

// Mutex is an exclusive, non-recursive fiber mutex. Contended locks park
// the calling fiber on a FIFO waiter list; Unlock hands ownership directly
// to the oldest waiter.
type Mutex struct {
	lk      sync.Mutex
	owner   *fiber.Fiber
	waiters fiber.WaitList
}

// Lock acquires the mutex, parking the calling fiber while it is held
// elsewhere. Locking a mutex already held by the caller fails with ErrLock.
// Lock is an interruption point.
func (m *Mutex) Lock(f *fiber.Fiber) error {
	return m.lock(f, true)
}

func (m *Mutex) lock(f *fiber.Fiber, interruptible bool) error {
	m.lk.Lock()
	if m.owner == nil {
		m.owner = f
		m.lk.Unlock()
		return nil
	}
	if m.owner == f {
		m.lk.Unlock()
		return fmt.Errorf("relock by owner: %w", fiber.ErrLock)
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

// TryLock acquires the mutex if it is unheld. It never suspends.
func (m *Mutex) TryLock(f *fiber.Fiber) bool {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.owner == nil {
		m.owner = f
		return true
	}
	return false
}

// Unlock releases the mutex. Only the owner may unlock; violations fail
// with ErrLock. If waiters are queued, ownership is handed to the oldest
// one and it is scheduled ready.
func (m *Mutex) Unlock(f *fiber.Fiber) error {
	m.lk.Lock()
	if m.owner != f {
		m.lk.Unlock()
		return fmt.Errorf("unlock by non-owner: %w", fiber.ErrLock)
	}
	if n := m.waiters.PopFront(); n != nil {
		m.owner = n.F
		n.Transferred = true
		m.lk.Unlock()
		n.F.Unpark()
		return nil
	}
	m.owner = nil
	m.lk.Unlock()
	return nil
}

// Owner returns the fiber currently holding the mutex, or nil.
func (m *Mutex) Owner() *fiber.Fiber {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.owner
}

// TimedMutex is a Mutex with deadline-bounded acquisition.
type TimedMutex struct {
	Mutex
}

// TryLockUntil attempts to acquire the mutex before deadline. It returns
// true when acquired; false with a nil error reports a timeout. A hand-off
// that wins the race against the timeout still acquires ownership and the
// call reports success.
func (m *TimedMutex) TryLockUntil(f *fiber.Fiber, deadline time.Time) (bool, error) {
	m.lk.Lock()
	if m.owner == nil {
		m.owner = f
		m.lk.Unlock()
		return true, nil
	}
	if m.owner == f {
		m.lk.Unlock()
		return false, fmt.Errorf("relock by owner: %w", fiber.ErrLock)
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
func (m *TimedMutex) TryLockFor(f *fiber.Fiber, d time.Duration) (bool, error) {
	return m.TryLockUntil(f, time.Now().Add(d))
}
