package future

import (
	"sync"

	"github.com/recera/weft/pkg/fiber"
)

// PackagedTask wraps a callable and a promise: running the task fulfills
// the promise with the callable's result or error. A task runs at most
// once.
type PackagedTask[T any] struct {
	lk   sync.Mutex
	fn   func(f *fiber.Fiber) (T, error)
	p    *Promise[T]
	done bool
}

// NewPackagedTask wraps fn.
func NewPackagedTask[T any](fn func(f *fiber.Fiber) (T, error)) *PackagedTask[T] {
	return &PackagedTask[T]{fn: fn, p: NewPromise[T]()}
}

// Future returns the future of the task's result. It succeeds at most once.
func (t *PackagedTask[T]) Future() (*Future[T], error) {
	return t.p.GetFuture()
}

// Run executes the callable on the calling fiber and fulfills the promise.
// A second Run fails with ErrTaskAlreadyExecuted.
func (t *PackagedTask[T]) Run(f *fiber.Fiber) error {
	t.lk.Lock()
	if t.done {
		t.lk.Unlock()
		return ErrTaskAlreadyExecuted
	}
	t.done = true
	t.lk.Unlock()
	v, err := t.fn(f)
	if err != nil {
		return t.p.SetError(err)
	}
	return t.p.SetValue(v)
}

// Done reports whether the task has been run.
func (t *PackagedTask[T]) Done() bool {
	t.lk.Lock()
	defer t.lk.Unlock()
	return t.done
}
