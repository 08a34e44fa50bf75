package future

import (
	"errors"

	"github.com/recera/weft/pkg/fiber"
)

// Spawner spawns fibers; both Scheduler and Group satisfy it.
type Spawner interface {
	Spawn(task fiber.Task, opts ...fiber.SpawnOption) (*fiber.Fiber, error)
}

// Async spawns a fiber running fn and returns the future of its result.
// An error returned by fn travels through the shared state to the future's
// Get; it is not treated as an unhandled fiber error.
func Async[T any](s Spawner, fn func(f *fiber.Fiber) (T, error)) (*Future[T], error) {
	p := NewPromise[T]()
	fu, err := p.GetFuture()
	if err != nil {
		return nil, err
	}
	_, err = s.Spawn(func(f *fiber.Fiber) error {
		v, err := fn(f)
		if err != nil {
			_ = p.SetError(err)
			if errors.Is(err, fiber.ErrInterrupted) {
				return err
			}
			return nil
		}
		return p.SetValue(v)
	})
	if err != nil {
		return nil, err
	}
	return fu, nil
}
