package fsync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

func TestOneShotEvent_ReleasesAllWaiters(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var ev OneShotEvent
	var entered, released atomic.Int32

	fibers := make([]*fiber.Fiber, 4)
	for i := 0; i < 4; i++ {
		f, err := s.Spawn(func(f *fiber.Fiber) error {
			entered.Add(1)
			if err := ev.Wait(f); err != nil {
				return err
			}
			released.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		fibers[i] = f
	}

	setter, _ := s.Spawn(func(f *fiber.Fiber) error {
		for entered.Load() < 4 {
			f.Yield()
		}
		ev.Set()
		return nil
	})

	setter.Wait()
	for _, f := range fibers {
		f.Wait()
	}
	if released.Load() != 4 {
		t.Errorf("expected 4 released, got %d", released.Load())
	}
}

func TestOneShotEvent_WaitAfterSetReturnsImmediately(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var ev OneShotEvent
	ev.Set()
	ev.Set()

	f, _ := s.Spawn(func(f *fiber.Fiber) error {
		return ev.Wait(f)
	})

	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait on a set event did not return")
	}
	if !ev.IsSet() {
		t.Error("event must report set")
	}
}

func TestOneShotEvent_WaitUntilTimesOut(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	var ev OneShotEvent
	var set bool
	f, _ := s.Spawn(func(f *fiber.Fiber) error {
		var err error
		set, err = ev.WaitUntil(f, time.Now().Add(50*time.Millisecond))
		return err
	})
	f.Wait()
	if set {
		t.Error("unset event must time out")
	}
}
