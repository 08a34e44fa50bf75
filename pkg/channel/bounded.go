package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

// Bounded is a FIFO channel with a high-water mark bounding its size.
// Producers block at the high-water mark and are released once a consumer
// drains the count down to the low-water mark.
type Bounded[T any] struct {
	lk       sync.Mutex
	head     *node[T]
	tail     *node[T]
	size     int
	hwm, lwm int
	closed   bool
	notEmpty fiber.WaitList
	notFull  fiber.WaitList
}

// NewBounded creates a channel with the given watermarks. The high-water
// mark must be positive and the low-water mark strictly below it.
func NewBounded[T any](hwm, lwm int) (*Bounded[T], error) {
	if hwm <= 0 || lwm < 0 || lwm >= hwm {
		return nil, fmt.Errorf("watermarks hwm=%d lwm=%d: %w", hwm, lwm, fiber.ErrInvalidArgument)
	}
	return &Bounded[T]{hwm: hwm, lwm: lwm}, nil
}

// HighWatermark returns the channel's capacity bound.
func (c *Bounded[T]) HighWatermark() int { return c.hwm }

// LowWatermark returns the producer wake threshold.
func (c *Bounded[T]) LowWatermark() int { return c.lwm }

// Push appends v, parking the calling fiber while the channel is at its
// high-water mark. After Close it returns Closed.
func (c *Bounded[T]) Push(f *fiber.Fiber, v T) (Status, error) {
	return c.pushDeadline(f, v, time.Time{})
}

// PushWaitUntil is Push bounded by a deadline.
func (c *Bounded[T]) PushWaitUntil(f *fiber.Fiber, v T, deadline time.Time) (Status, error) {
	return c.pushDeadline(f, v, deadline)
}

// PushWaitFor is Push bounded by a relative timeout.
func (c *Bounded[T]) PushWaitFor(f *fiber.Fiber, v T, d time.Duration) (Status, error) {
	return c.pushDeadline(f, v, time.Now().Add(d))
}

func (c *Bounded[T]) pushDeadline(f *fiber.Fiber, v T, deadline time.Time) (Status, error) {
	c.lk.Lock()
	for {
		if c.closed {
			c.lk.Unlock()
			return Closed, nil
		}
		if c.size < c.hwm {
			c.pushLocked(v)
			n := c.notEmpty.PopFront()
			if n != nil {
				n.Transferred = true
			}
			c.lk.Unlock()
			if n != nil {
				n.F.Unpark()
			}
			return OK, nil
		}
		n := fiber.NewWaitNode(f)
		c.notFull.PushBack(n)
		if deadline.IsZero() {
			f.Park(c.lk.Unlock)
		} else {
			f.ParkUntil(deadline, c.lk.Unlock)
		}
		c.lk.Lock()
		if n.Linked() {
			c.notFull.Remove(n)
		}
		if err := f.CheckInterrupt(); err != nil {
			c.lk.Unlock()
			return OK, err
		}
		if !deadline.IsZero() && c.size >= c.hwm && !c.closed && !time.Now().Before(deadline) {
			c.lk.Unlock()
			return Timeout, nil
		}
	}
}

// TryPush appends v without suspending; at the high-water mark it returns
// Full.
func (c *Bounded[T]) TryPush(f *fiber.Fiber, v T) Status {
	c.lk.Lock()
	if c.closed {
		c.lk.Unlock()
		return Closed
	}
	if c.size >= c.hwm {
		c.lk.Unlock()
		return Full
	}
	c.pushLocked(v)
	n := c.notEmpty.PopFront()
	if n != nil {
		n.Transferred = true
	}
	c.lk.Unlock()
	if n != nil {
		n.F.Unpark()
	}
	return OK
}

// Pop removes the oldest value, parking the calling fiber while the channel
// is empty and open. When the count drops to the low-water mark, waiting
// producers are released: one when the low-water mark sits directly below
// the high-water mark, otherwise all, because several producers may proceed
// together.
func (c *Bounded[T]) Pop(f *fiber.Fiber) (T, Status, error) {
	return c.popDeadline(f, time.Time{})
}

// PopWaitUntil is Pop bounded by a deadline.
func (c *Bounded[T]) PopWaitUntil(f *fiber.Fiber, deadline time.Time) (T, Status, error) {
	return c.popDeadline(f, deadline)
}

// PopWaitFor is Pop bounded by a relative timeout.
func (c *Bounded[T]) PopWaitFor(f *fiber.Fiber, d time.Duration) (T, Status, error) {
	return c.popDeadline(f, time.Now().Add(d))
}

func (c *Bounded[T]) popDeadline(f *fiber.Fiber, deadline time.Time) (T, Status, error) {
	var zero T
	c.lk.Lock()
	for {
		if c.head != nil {
			v := c.popLocked()
			woken := c.producerWake()
			c.lk.Unlock()
			unparkAll(woken)
			return v, OK, nil
		}
		if c.closed {
			c.lk.Unlock()
			return zero, Closed, nil
		}
		n := fiber.NewWaitNode(f)
		c.notEmpty.PushBack(n)
		if deadline.IsZero() {
			f.Park(c.lk.Unlock)
		} else {
			f.ParkUntil(deadline, c.lk.Unlock)
		}
		c.lk.Lock()
		if n.Linked() {
			c.notEmpty.Remove(n)
		}
		if err := f.CheckInterrupt(); err != nil {
			c.lk.Unlock()
			return zero, OK, err
		}
		if !deadline.IsZero() && c.head == nil && !c.closed && !time.Now().Before(deadline) {
			c.lk.Unlock()
			return zero, Timeout, nil
		}
	}
}

// TryPop removes the oldest value without suspending.
func (c *Bounded[T]) TryPop(f *fiber.Fiber) (T, Status) {
	var zero T
	c.lk.Lock()
	if c.head != nil {
		v := c.popLocked()
		woken := c.producerWake()
		c.lk.Unlock()
		unparkAll(woken)
		return v, OK
	}
	defer c.lk.Unlock()
	if c.closed {
		return zero, Closed
	}
	return zero, Empty
}

// producerWake collects the producers to release after a pop. Callers hold
// the channel lock and unpark outside it.
func (c *Bounded[T]) producerWake() []*fiber.Fiber {
	if c.size > c.lwm || c.notFull.Empty() {
		return nil
	}
	if c.lwm == c.hwm-1 {
		n := c.notFull.PopFront()
		n.Transferred = true
		return []*fiber.Fiber{n.F}
	}
	return drainWaiters(&c.notFull)
}

// Close marks the channel closed and wakes every blocked producer and
// consumer. Close is terminal and idempotent.
func (c *Bounded[T]) Close() {
	c.lk.Lock()
	if c.closed {
		c.lk.Unlock()
		return
	}
	c.closed = true
	woken := drainWaiters(&c.notEmpty)
	woken = append(woken, drainWaiters(&c.notFull)...)
	c.lk.Unlock()
	unparkAll(woken)
}

// Len returns the number of queued values; it never exceeds the high-water
// mark.
func (c *Bounded[T]) Len() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.size
}

// IsClosed reports whether Close has been called.
func (c *Bounded[T]) IsClosed() bool {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.closed
}

func (c *Bounded[T]) pushLocked(v T) {
	nd := &node[T]{value: v}
	if c.tail != nil {
		c.tail.next = nd
	} else {
		c.head = nd
	}
	c.tail = nd
	c.size++
}

func (c *Bounded[T]) popLocked() T {
	nd := c.head
	c.head = nd.next
	if c.head == nil {
		c.tail = nil
	}
	c.size--
	return nd.value
}
