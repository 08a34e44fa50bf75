package channel

import (
	"errors"
	"testing"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

func TestBounded_InvalidWatermarks(t *testing.T) {
	cases := []struct{ hwm, lwm int }{
		{0, 0},
		{-1, 0},
		{4, 4},
		{4, 5},
		{4, -1},
	}
	for _, c := range cases {
		if _, err := NewBounded[int](c.hwm, c.lwm); !errors.Is(err, fiber.ErrInvalidArgument) {
			t.Errorf("hwm=%d lwm=%d: expected ErrInvalidArgument, got %v", c.hwm, c.lwm, err)
		}
	}
	if _, err := NewBounded[int](4, 2); err != nil {
		t.Errorf("valid watermarks rejected: %v", err)
	}
}

func TestBounded_TryPushAtHighWatermark(t *testing.T) {
	ch, err := NewBounded[int](4, 2)
	if err != nil {
		t.Fatal(err)
	}

	// count == hwm-1: one more push must not block.
	for i := 0; i < 3; i++ {
		if st := ch.TryPush(nil, i); st != OK {
			t.Fatalf("push %d returned %s", i, st)
		}
	}
	if st := ch.TryPush(nil, 3); st != OK {
		t.Fatalf("push at hwm-1 returned %s", st)
	}
	if st := ch.TryPush(nil, 4); st != Full {
		t.Errorf("push at hwm returned %s, expected Full", st)
	}
	if ch.Len() != 4 {
		t.Errorf("count %d exceeds hwm", ch.Len())
	}
}

func TestBounded_PushWaitForZeroTimesOut(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	ch, _ := NewBounded[int](1, 0)
	ch.TryPush(nil, 1)

	var st Status
	f, _ := s.Spawn(func(f *fiber.Fiber) error {
		var err error
		st, err = ch.PushWaitFor(f, 2, 0)
		return err
	})
	f.Wait()
	if st != Timeout {
		t.Errorf("expected Timeout, got %s", st)
	}
}

func TestBounded_ProducerConsumer(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	const items = 100
	ch, err := NewBounded[int](4, 2)
	if err != nil {
		t.Fatal(err)
	}

	maxCount := 0
	producer, err := s.Spawn(func(f *fiber.Fiber) error {
		for i := 0; i < items; i++ {
			st, err := ch.Push(f, i)
			if err != nil {
				return err
			}
			if st != OK {
				t.Errorf("push %d returned %s", i, st)
				return nil
			}
			if n := ch.Len(); n > maxCount {
				maxCount = n
			}
		}
		ch.Close()
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	var got []int
	consumer, err := s.Spawn(func(f *fiber.Fiber) error {
		for {
			v, st, err := ch.Pop(f)
			if err != nil {
				return err
			}
			if st == Closed {
				return nil
			}
			got = append(got, v)
		}
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	producer.Wait()
	consumer.Wait()

	if len(got) != items {
		t.Fatalf("expected %d items, got %d", items, len(got))
	}
	for i := 0; i < items; i++ {
		if got[i] != i {
			t.Fatalf("sequence broken at %d: %v", i, got[i])
		}
	}
	if maxCount > 4 {
		t.Errorf("count reached %d, must never exceed the high-water mark", maxCount)
	}
	if s.Stats().Parks == 0 {
		t.Error("expected at least one producer suspension")
	}
}

func TestBounded_WakesAllProducersAtLowWatermark(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	// lwm < hwm-1, so draining to the low-water mark must release every
	// waiting producer, not just one.
	ch, _ := NewBounded[int](4, 1)
	for i := 0; i < 4; i++ {
		ch.TryPush(nil, i)
	}

	producers := make([]*fiber.Fiber, 2)
	for i := 0; i < 2; i++ {
		i := i
		f, err := s.Spawn(func(f *fiber.Fiber) error {
			st, err := ch.Push(f, 100+i)
			if err != nil {
				return err
			}
			if st != OK {
				t.Errorf("producer %d got %s", i, st)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Spawn failed: %v", err)
		}
		producers[i] = f
	}

	consumer, err := s.Spawn(func(f *fiber.Fiber) error {
		// Let both producers park before draining.
		if err := f.SleepFor(20 * time.Millisecond); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			if _, st, err := ch.Pop(f); st != OK || err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	consumer.Wait()
	for _, p := range producers {
		p.Wait()
	}
	if n := ch.Len(); n != 3 {
		t.Errorf("expected 3 items after refill, got %d", n)
	}
}

func TestBounded_CloseWakesProducersAndConsumers(t *testing.T) {
	s := fiber.NewScheduler()
	defer s.Shutdown()

	ch, _ := NewBounded[int](1, 0)
	ch.TryPush(nil, 1)

	var pushSt, popSt Status
	producer, _ := s.Spawn(func(f *fiber.Fiber) error {
		var err error
		pushSt, err = ch.Push(f, 2)
		return err
	})
	drainer, _ := s.Spawn(func(f *fiber.Fiber) error {
		// Empty the channel, then block on the now-empty queue.
		if _, st, err := ch.Pop(f); st != OK || err != nil {
			return err
		}
		// The producer slipped its value in when the count dropped; take
		// that too so the next pop really blocks.
		for {
			_, st, err := ch.Pop(f)
			if err != nil {
				return err
			}
			if st == Closed {
				popSt = st
				return nil
			}
		}
	})

	_, err := s.Spawn(func(f *fiber.Fiber) error {
		if err := f.SleepFor(50 * time.Millisecond); err != nil {
			return err
		}
		ch.Close()
		return nil
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	producer.Wait()
	drainer.Wait()
	if pushSt != OK && pushSt != Closed {
		t.Errorf("producer ended with %s", pushSt)
	}
	if popSt != Closed {
		t.Errorf("drainer ended with %s, expected Closed", popSt)
	}
}
