package fsync

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

func TestCond_NotifyOneWakesOldestWaiter(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var c Cond
	var entered atomic.Int32
	var order []int

	fibers := make([]*fiber.Fiber, 3)
	for i := 0; i < 3; i++ {
		i := i
		f, err := s.Spawn(func(f *fiber.Fiber) error {
			if err := m.Lock(f); err != nil {
				return err
			}
			entered.Add(1)
			if err := c.Wait(f, &m); err != nil {
				return err
			}
			order = append(order, i)
			return m.Unlock(f)
		})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		fibers[i] = f
	}

	notifier, _ := s.Spawn(func(f *fiber.Fiber) error {
		for entered.Load() < 3 {
			f.Yield()
		}
		for i := 0; i < 3; i++ {
			c.NotifyOne()
			f.Yield()
		}
		return nil
	})

	notifier.Wait()
	for _, f := range fibers {
		f.Wait()
	}

	for i, want := range []int{0, 1, 2} {
		if order[i] != want {
			t.Fatalf("expected FIFO wake order, got %v", order)
		}
	}
}

func TestCond_NotifyAllWakesEveryWaiter(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var c Cond
	var entered, woken atomic.Int32

	fibers := make([]*fiber.Fiber, 5)
	for i := 0; i < 5; i++ {
		f, err := s.Spawn(func(f *fiber.Fiber) error {
			if err := m.Lock(f); err != nil {
				return err
			}
			entered.Add(1)
			if err := c.Wait(f, &m); err != nil {
				return err
			}
			woken.Add(1)
			return m.Unlock(f)
		})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		fibers[i] = f
	}

	notifier, _ := s.Spawn(func(f *fiber.Fiber) error {
		for entered.Load() < 5 {
			f.Yield()
		}
		c.NotifyAll()
		return nil
	})

	notifier.Wait()
	for _, f := range fibers {
		f.Wait()
	}
	if woken.Load() != 5 {
		t.Errorf("expected 5 woken, got %d", woken.Load())
	}
}

func TestCond_NotifyOnEmptyListIsNoop(t *testing.T) {
	var c Cond
	c.NotifyOne()
	c.NotifyAll()
}

func TestCond_WaitUntilTimesOut(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var c Cond
	var st WaitStatus
	var elapsed time.Duration

	f, err := s.Spawn(func(f *fiber.Fiber) error {
		if err := m.Lock(f); err != nil {
			return err
		}
		start := time.Now()
		var err error
		st, err = c.WaitFor(f, &m, 250*time.Millisecond)
		elapsed = time.Since(start)
		if err != nil {
			return err
		}
		return m.Unlock(f)
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	f.Wait()

	if st != Timeout {
		t.Errorf("expected Timeout, got %s", st)
	}
	if elapsed < 250*time.Millisecond {
		t.Errorf("returned after %v, before the deadline", elapsed)
	}
	if elapsed > 400*time.Millisecond {
		t.Errorf("returned after %v, too far past the deadline", elapsed)
	}
}

func TestCond_InterruptReacquiresLockBeforeRaising(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var c Cond
	var waitErr error
	var lockHeldAtCatch bool
	var waiting atomic.Bool

	waiter, err := s.Spawn(func(f *fiber.Fiber) error {
		if err := m.Lock(f); err != nil {
			return err
		}
		waiting.Store(true)
		waitErr = c.Wait(f, &m)
		lockHeldAtCatch = m.Owner() == f
		return m.Unlock(f)
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	_, err = s.Spawn(func(f *fiber.Fiber) error {
		for !waiting.Load() {
			f.Yield()
		}
		if err := f.SleepFor(20 * time.Millisecond); err != nil {
			return err
		}
		waiter.Interrupt()
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	waiter.Wait()
	if !errors.Is(waitErr, fiber.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted at the wait site, got %v", waitErr)
	}
	if !lockHeldAtCatch {
		t.Error("lock must be re-acquired before the interruption propagates")
	}
}

func TestCond_AwaitReevaluatesPredicate(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var c Cond
	ready := 0
	var observed int

	consumer, err := s.Spawn(func(f *fiber.Fiber) error {
		if err := m.Lock(f); err != nil {
			return err
		}
		if err := c.Await(f, &m, func() bool { return ready == 3 }); err != nil {
			return err
		}
		observed = ready
		return m.Unlock(f)
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	producer, _ := s.Spawn(func(f *fiber.Fiber) error {
		for i := 0; i < 3; i++ {
			if err := m.Lock(f); err != nil {
				return err
			}
			ready++
			if err := m.Unlock(f); err != nil {
				return err
			}
			c.NotifyOne()
			f.Yield()
		}
		return nil
	})

	producer.Wait()
	consumer.Wait()
	if observed != 3 {
		t.Errorf("predicate wait ended at ready=%d", observed)
	}
}

func TestCond_AwaitUntilSeesLateNotify(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var m Mutex
	var c Cond
	done := false
	var ok bool

	waiter, err := s.Spawn(func(f *fiber.Fiber) error {
		if err := m.Lock(f); err != nil {
			return err
		}
		var err error
		ok, err = c.AwaitUntil(f, &m, time.Now().Add(time.Second), func() bool { return done })
		if err != nil {
			return err
		}
		return m.Unlock(f)
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	_, err = s.Spawn(func(f *fiber.Fiber) error {
		if err := f.SleepFor(30 * time.Millisecond); err != nil {
			return err
		}
		if err := m.Lock(f); err != nil {
			return err
		}
		done = true
		if err := m.Unlock(f); err != nil {
			return err
		}
		c.NotifyOne()
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	waiter.Wait()
	if !ok {
		t.Error("notified predicate wait reported timeout")
	}
}
