package fiber

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestScheduler_SpawnAndWait(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var ran atomic.Bool
	f, err := s.Spawn(func(f *Fiber) error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	f.Wait()
	if !ran.Load() {
		t.Error("task did not run")
	}
	if f.State() != Terminated {
		t.Errorf("expected TERMINATED, got %s", f.State())
	}
	if f.Err() != nil {
		t.Errorf("expected nil error, got %v", f.Err())
	}
}

func TestScheduler_JoinDeliversValue(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	result := 0
	worker, err := s.Spawn(func(f *Fiber) error {
		result = 6 * 7
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	var joinErr error
	joiner, err := s.Spawn(func(f *Fiber) error {
		joinErr = f.Join(worker)
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	joiner.Wait()
	if joinErr != nil {
		t.Errorf("join returned %v", joinErr)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
}

func TestScheduler_JoinSelf(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var joinErr error
	f, err := s.Spawn(func(f *Fiber) error {
		joinErr = f.Join(f)
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	f.Wait()
	if !errors.Is(joinErr, ErrJoinSelf) {
		t.Errorf("expected ErrJoinSelf, got %v", joinErr)
	}
}

func TestScheduler_JoinTerminatedFiber(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	worker, err := s.Spawn(func(f *Fiber) error { return nil })
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	worker.Wait()

	var joinErr error
	joiner, _ := s.Spawn(func(f *Fiber) error {
		joinErr = f.Join(worker)
		return nil
	})
	joiner.Wait()
	if joinErr != nil {
		t.Errorf("join on terminated fiber returned %v", joinErr)
	}
}

func TestScheduler_RoundRobinYieldOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	// The fibers spin on the gate until all three are spawned, so the
	// recorded rounds only cover steady-state rotation.
	var started atomic.Bool
	var order []int
	fibers := make([]*Fiber, 3)
	for i := 0; i < 3; i++ {
		i := i
		f, err := s.Spawn(func(f *Fiber) error {
			for !started.Load() {
				f.Yield()
			}
			for round := 0; round < 3; round++ {
				order = append(order, i)
				f.Yield()
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		fibers[i] = f
	}
	started.Store(true)
	for _, f := range fibers {
		f.Wait()
	}

	if len(order) != 9 {
		t.Fatalf("expected 9 entries, got %d", len(order))
	}
	seen := map[int]bool{order[0]: true, order[1]: true, order[2]: true}
	if len(seen) != 3 {
		t.Fatalf("first round is not a permutation of all fibers: %v", order)
	}
	// FIFO rotation repeats the first round's order.
	for i := 3; i < 9; i++ {
		if order[i] != order[i-3] {
			t.Fatalf("rotation not stable: %v", order)
		}
	}
}

func TestScheduler_Drain(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	var completed atomic.Int32
	for i := 0; i < 10; i++ {
		if _, err := s.Spawn(func(f *Fiber) error {
			completed.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
	}
	s.Drain()
	if completed.Load() != 10 {
		t.Errorf("expected 10 completions after Drain, got %d", completed.Load())
	}
}

func TestScheduler_SpawnAfterShutdown(t *testing.T) {
	s := NewScheduler()
	s.Shutdown()
	if _, err := s.Spawn(func(f *Fiber) error { return nil }); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected ErrShutdown, got %v", err)
	}
}

func TestScheduler_ErrorHandlerAbsorbs(t *testing.T) {
	var handled atomic.Bool
	s := NewScheduler(WithErrorHandler(func(f *Fiber, err error) bool {
		handled.Store(true)
		return true
	}))
	defer s.Shutdown()

	f, err := s.Spawn(func(f *Fiber) error {
		return errors.New("task failed")
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	f.Wait()
	if !handled.Load() {
		t.Error("error handler was not called")
	}
	if f.Err() == nil {
		t.Error("termination error was not recorded")
	}
}

func TestScheduler_PanicCaptured(t *testing.T) {
	var handled atomic.Bool
	s := NewScheduler(WithErrorHandler(func(f *Fiber, err error) bool {
		handled.Store(true)
		return true
	}))
	defer s.Shutdown()

	f, _ := s.Spawn(func(f *Fiber) error {
		panic("boom")
	})
	f.Wait()
	if !handled.Load() {
		t.Error("panic did not reach the error handler")
	}
}

func TestScheduler_DetachedDropsResult(t *testing.T) {
	s := NewScheduler(WithErrorHandler(func(f *Fiber, err error) bool { return true }))
	defer s.Shutdown()

	f, err := s.SpawnDetached(func(f *Fiber) error {
		return errors.New("dropped")
	})
	if err != nil {
		t.Fatalf("SpawnDetached failed: %v", err)
	}
	f.Wait()
	if f.Err() != nil {
		t.Errorf("detached fiber kept its error: %v", f.Err())
	}
}

func TestScheduler_StatsCount(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	for i := 0; i < 5; i++ {
		f, err := s.Spawn(func(f *Fiber) error {
			f.Yield()
			return nil
		})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		f.Wait()
	}
	stats := s.Stats()
	if stats.Spawned != 5 || stats.Completed != 5 {
		t.Errorf("expected 5 spawned / 5 completed, got %d / %d", stats.Spawned, stats.Completed)
	}
	if stats.Yields != 5 {
		t.Errorf("expected 5 yields, got %d", stats.Yields)
	}
	if stats.Live != 0 {
		t.Errorf("expected 0 live, got %d", stats.Live)
	}
}

func TestFiber_IdentityAndOrdering(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	a, _ := s.Spawn(func(f *Fiber) error { return nil })
	b, _ := s.Spawn(func(f *Fiber) error { return nil })
	a.Wait()
	b.Wait()

	if a.ID() == b.ID() {
		t.Error("fiber IDs must be unique")
	}
	if !a.Less(b) {
		t.Error("earlier spawn should order first")
	}
	if !a.Equal(a) || a.Equal(b) {
		t.Error("equality must be identity")
	}
}

func BenchmarkScheduler_SpawnJoin(b *testing.B) {
	s := NewScheduler()
	defer s.Shutdown()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, err := s.Spawn(func(f *Fiber) error { return nil })
		if err != nil {
			b.Fatal(err)
		}
		f.Wait()
	}
}

func BenchmarkScheduler_Yield(b *testing.B) {
	s := NewScheduler()
	defer s.Shutdown()

	f, _ := s.Spawn(func(f *Fiber) error {
		for i := 0; i < b.N; i++ {
			f.Yield()
		}
		return nil
	})
	f.Wait()
}
