package channel

import (
	"sync"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

// node is one queued value. Producers and consumers share the links; the
// garbage collector carries the reference counting of the source design.
type node[T any] struct {
	value T
	next  *node[T]
}

// Unbounded is a FIFO channel without capacity limits: Push never suspends.
type Unbounded[T any] struct {
	lk       sync.Mutex
	head     *node[T]
	tail     *node[T]
	size     int
	closed   bool
	notEmpty fiber.WaitList
}

// NewUnbounded creates an open unbounded channel.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{}
}

// Push appends v. It never suspends; after Close it returns Closed. The
// fiber handle may be nil, so producers outside the runtime can feed the
// channel.
func (c *Unbounded[T]) Push(f *fiber.Fiber, v T) Status {
	c.lk.Lock()
	if c.closed {
		c.lk.Unlock()
		return Closed
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

// TryPush is Push; it exists for symmetry with the bounded channel.
func (c *Unbounded[T]) TryPush(f *fiber.Fiber, v T) Status {
	return c.Push(f, v)
}

// Pop removes the oldest value, parking the calling fiber while the channel
// is empty and open. Queued items are drained before Closed is reported.
// When the returned error is non-nil the status carries no meaning.
func (c *Unbounded[T]) Pop(f *fiber.Fiber) (T, Status, error) {
	return c.popDeadline(f, time.Time{})
}

// PopWaitUntil is Pop bounded by a deadline.
func (c *Unbounded[T]) PopWaitUntil(f *fiber.Fiber, deadline time.Time) (T, Status, error) {
	return c.popDeadline(f, deadline)
}

// PopWaitFor is Pop bounded by a relative timeout.
func (c *Unbounded[T]) PopWaitFor(f *fiber.Fiber, d time.Duration) (T, Status, error) {
	return c.popDeadline(f, time.Now().Add(d))
}

func (c *Unbounded[T]) popDeadline(f *fiber.Fiber, deadline time.Time) (T, Status, error) {
	var zero T
	c.lk.Lock()
	for {
		if c.head != nil {
			v := c.popLocked()
			c.lk.Unlock()
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
func (c *Unbounded[T]) TryPop(f *fiber.Fiber) (T, Status) {
	var zero T
	c.lk.Lock()
	defer c.lk.Unlock()
	if c.head != nil {
		return c.popLocked(), OK
	}
	if c.closed {
		return zero, Closed
	}
	return zero, Empty
}

// Close marks the channel closed and wakes every blocked consumer. Close is
// terminal and idempotent.
func (c *Unbounded[T]) Close() {
	c.lk.Lock()
	if c.closed {
		c.lk.Unlock()
		return
	}
	c.closed = true
	woken := drainWaiters(&c.notEmpty)
	c.lk.Unlock()
	unparkAll(woken)
}

// Len returns the number of queued values.
func (c *Unbounded[T]) Len() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.size
}

// IsClosed reports whether Close has been called.
func (c *Unbounded[T]) IsClosed() bool {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.closed
}

func (c *Unbounded[T]) pushLocked(v T) {
	nd := &node[T]{value: v}
	if c.tail != nil {
		c.tail.next = nd
	} else {
		c.head = nd
	}
	c.tail = nd
	c.size++
}

func (c *Unbounded[T]) popLocked() T {
	nd := c.head
	c.head = nd.next
	if c.head == nil {
		c.tail = nil
	}
	c.size--
	return nd.value
}

func drainWaiters(l *fiber.WaitList) []*fiber.Fiber {
	var woken []*fiber.Fiber
	for {
		n := l.PopFront()
		if n == nil {
			return woken
		}
		n.Transferred = true
		woken = append(woken, n.F)
	}
}

func unparkAll(fs []*fiber.Fiber) {
	for _, f := range fs {
		f.Unpark()
	}
}
