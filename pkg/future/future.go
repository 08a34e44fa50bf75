// Package future implements promises, futures and packaged tasks for
// passing values and errors between fibers. A promise/future pair shares a
// heap-allocated state; the producer fulfills it exactly once and every
// waiter parked on it is resumed.
package future

import (
	"errors"
	"sync"
	"time"

	"github.com/recera/weft/pkg/fiber"
)

var (
	// ErrNoState reports an operation on a future that no longer (or never)
	// references a shared state.
	ErrNoState = errors.New("future: no associated state")
	// ErrFutureAlreadyRetrieved reports a second GetFuture on one promise.
	ErrFutureAlreadyRetrieved = errors.New("future: future already retrieved")
	// ErrPromiseAlreadySatisfied reports a second SetValue or SetError.
	ErrPromiseAlreadySatisfied = errors.New("future: promise already satisfied")
	// ErrBrokenPromise is observed by the future when the promise is
	// abandoned without a value.
	ErrBrokenPromise = errors.New("future: broken promise")
	// ErrTaskAlreadyExecuted reports a second Run of a packaged task.
	ErrTaskAlreadyExecuted = errors.New("future: task already executed")
)

// sharedState backs one promise/future pair. The lock is held only for
// fulfillment, waiter enqueue and the ready check immediately after a wake.
type sharedState[T any] struct {
	lk      sync.Mutex
	ready   bool
	value   T
	err     error
	waiters fiber.WaitList
}

func (st *sharedState[T]) fulfill(v T, err error) error {
	st.lk.Lock()
	if st.ready {
		st.lk.Unlock()
		return ErrPromiseAlreadySatisfied
	}
	st.value = v
	st.err = err
	st.ready = true
	var woken []*fiber.Fiber
	for {
		n := st.waiters.PopFront()
		if n == nil {
			break
		}
		n.Transferred = true
		woken = append(woken, n.F)
	}
	st.lk.Unlock()
	for _, f := range woken {
		f.Unpark()
	}
	return nil
}

// wait parks f until the state is ready or deadline passes (zero deadline
// means no bound). It reports whether the state became ready.
func (st *sharedState[T]) wait(f *fiber.Fiber, deadline time.Time) (bool, error) {
	for {
		st.lk.Lock()
		if st.ready {
			st.lk.Unlock()
			return true, nil
		}
		n := fiber.NewWaitNode(f)
		st.waiters.PushBack(n)
		if deadline.IsZero() {
			f.Park(st.lk.Unlock)
		} else {
			f.ParkUntil(deadline, st.lk.Unlock)
		}
		st.lk.Lock()
		ready := n.Transferred || st.ready
		if n.Linked() {
			st.waiters.Remove(n)
		}
		st.lk.Unlock()
		if ready {
			return true, nil
		}
		if err := f.CheckInterrupt(); err != nil {
			return false, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false, nil
		}
	}
}

// Promise is the producer half of a shared state.
type Promise[T any] struct {
	lk        sync.Mutex
	st        *sharedState[T]
	retrieved bool
}

// NewPromise allocates a fresh shared state.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{st: &sharedState[T]{}}
}

// GetFuture returns the consumer half. It succeeds at most once.
func (p *Promise[T]) GetFuture() (*Future[T], error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.st == nil {
		return nil, ErrNoState
	}
	if p.retrieved {
		return nil, ErrFutureAlreadyRetrieved
	}
	p.retrieved = true
	return &Future[T]{st: p.st}, nil
}

// SetValue stores v, marks the state ready and wakes all waiters. A second
// fulfillment fails with ErrPromiseAlreadySatisfied.
func (p *Promise[T]) SetValue(v T) error {
	p.lk.Lock()
	st := p.st
	p.lk.Unlock()
	if st == nil {
		return ErrNoState
	}
	return st.fulfill(v, nil)
}

// SetError stores err as the state's result.
func (p *Promise[T]) SetError(err error) error {
	p.lk.Lock()
	st := p.st
	p.lk.Unlock()
	if st == nil {
		return ErrNoState
	}
	var zero T
	return st.fulfill(zero, err)
}

// Break abandons the promise: if the state is still unset it observes
// ErrBrokenPromise, so the future does not hang forever. Break replaces the
// destructor of the source design and should be deferred by producers.
func (p *Promise[T]) Break() {
	p.lk.Lock()
	st := p.st
	p.st = nil
	p.lk.Unlock()
	if st == nil {
		return
	}
	var zero T
	_ = st.fulfill(zero, ErrBrokenPromise)
}

// Future is the consumer half of a shared state.
type Future[T any] struct {
	lk       sync.Mutex
	st       *sharedState[T]
	consumed bool
}

// Valid reports whether the future references a shared state whose value
// has not yet been extracted.
func (fu *Future[T]) Valid() bool {
	fu.lk.Lock()
	defer fu.lk.Unlock()
	return fu.st != nil && !fu.consumed
}

// Get waits until the state is ready, then returns the stored value or
// error and invalidates the future. Get on an invalid future fails with
// ErrNoState.
func (fu *Future[T]) Get(f *fiber.Fiber) (T, error) {
	var zero T
	fu.lk.Lock()
	st := fu.st
	if st == nil || fu.consumed {
		fu.lk.Unlock()
		return zero, ErrNoState
	}
	fu.lk.Unlock()
	if _, err := st.wait(f, time.Time{}); err != nil {
		return zero, err
	}
	fu.lk.Lock()
	fu.consumed = true
	fu.lk.Unlock()
	st.lk.Lock()
	v, err := st.value, st.err
	st.lk.Unlock()
	return v, err
}

// TryGet returns the value without suspending; ok reports whether the state
// was ready.
func (fu *Future[T]) TryGet() (v T, ok bool, err error) {
	fu.lk.Lock()
	st := fu.st
	if st == nil || fu.consumed {
		fu.lk.Unlock()
		return v, false, ErrNoState
	}
	fu.lk.Unlock()
	st.lk.Lock()
	defer st.lk.Unlock()
	if !st.ready {
		return v, false, nil
	}
	fu.lk.Lock()
	fu.consumed = true
	fu.lk.Unlock()
	return st.value, true, st.err
}

// Wait parks f until the state is ready without extracting the value.
func (fu *Future[T]) Wait(f *fiber.Fiber) error {
	fu.lk.Lock()
	st := fu.st
	fu.lk.Unlock()
	if st == nil {
		return ErrNoState
	}
	_, err := st.wait(f, time.Time{})
	return err
}

// WaitUntil parks f until the state is ready or deadline passes; it reports
// whether the state became ready.
func (fu *Future[T]) WaitUntil(f *fiber.Fiber, deadline time.Time) (bool, error) {
	fu.lk.Lock()
	st := fu.st
	fu.lk.Unlock()
	if st == nil {
		return false, ErrNoState
	}
	return st.wait(f, deadline)
}

// WaitFor is WaitUntil with a relative timeout.
func (fu *Future[T]) WaitFor(f *fiber.Fiber, d time.Duration) (bool, error) {
	return fu.WaitUntil(f, time.Now().Add(d))
}
