package fiber

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// State is a fiber's lifecycle state.
type State int32

const (
	// Ready means the fiber is linked in exactly one scheduler's ready queue.
	Ready State = iota
	// Running means the fiber currently executes on its scheduler.
	Running
	// Waiting means the fiber is parked on a primitive's wait queue, a
	// timer, or both.
	Waiting
	// Terminated is the absorbing final state.
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Waiting:
		return "WAITING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

const (
	flagMainContext uint32 = 1 << iota
	flagDispatcherContext
	flagWorkerContext
	flagInterruptionBlocked
	flagInterruptionRequested
	flagPinned
	flagDetached
	flagUnwind
)

// Task is the callable a worker fiber runs. The fiber handle is passed in
// explicitly: blocking operations need the calling fiber and Go has no
// thread-local storage to recover it from.
type Task func(f *Fiber) error

// Global fiber ID counter.
var fiberIDCounter atomic.Uint64

// Fiber is a lightweight execution context with its own stack. It is both
// the runtime-internal context and the user-facing handle: Spawn returns
// one, the task receives the same object, and Join/Interrupt/Wait operate
// on it from the outside.
type Fiber struct {
	id   uint64
	task Task

	state    atomic.Int32
	flags    atomic.Uint32
	priority atomic.Int32
	sleepSeq atomic.Uint64

	ec    *execContext
	stack Stack
	alloc StackAllocator

	// sched is the scheduler currently responsible for this fiber; it is
	// re-pointed when a work-stealing peer attaches the fiber. home is the
	// spawning scheduler and never changes; it carries the accounting.
	sched atomic.Pointer[Scheduler]
	home  *Scheduler

	mu      sync.Mutex
	joiners WaitList
	fls     []flsSlot
	termErr error

	done chan struct{}
}

func newFiber(task Task, stack Stack, alloc StackAllocator, flags uint32) *Fiber {
	f := &Fiber{
		id:    fiberIDCounter.Add(1),
		task:  task,
		ec:    newExecContext(),
		stack: stack,
		alloc: alloc,
		done:  make(chan struct{}),
	}
	f.flags.Store(flags)
	f.priority.Store(0)
	return f
}

// ID returns the fiber's stable identity.
func (f *Fiber) ID() uint64 { return f.id }

// String returns a short display form.
func (f *Fiber) String() string {
	return fmt.Sprintf("fiber[%d:%s]", f.id, f.State())
}

// Equal reports identity equality.
func (f *Fiber) Equal(other *Fiber) bool { return f == other }

// Less orders fibers by ID.
func (f *Fiber) Less(other *Fiber) bool { return f.id < other.id }

// State returns the current lifecycle state.
func (f *Fiber) State() State { return State(f.state.Load()) }

// Pinned reports whether the fiber is forbidden to migrate between
// schedulers.
func (f *Fiber) Pinned() bool { return f.flags.Load()&flagPinned != 0 }

// Pin forbids migration of this fiber between schedulers.
func (f *Fiber) Pin() { f.setFlag(flagPinned) }

// Detach marks the fiber detached: its termination result is dropped
// instead of being kept for a joiner.
func (f *Fiber) Detach() { f.setFlag(flagDetached) }

// Detached reports whether the fiber has been detached.
func (f *Fiber) Detached() bool { return f.flags.Load()&flagDetached != 0 }

// Priority returns the scheduling priority used by the priority algorithm.
func (f *Fiber) Priority() int { return int(f.priority.Load()) }

// SetPriority updates the scheduling priority. A queued fiber is
// repositioned at the next pick.
func (f *Fiber) SetPriority(p int) { f.priority.Store(int32(p)) }

func (f *Fiber) setFlag(fl uint32) {
	for {
		old := f.flags.Load()
		if f.flags.CompareAndSwap(old, old|fl) {
			return
		}
	}
}

func (f *Fiber) clearFlag(fl uint32) {
	for {
		old := f.flags.Load()
		if f.flags.CompareAndSwap(old, old&^fl) {
			return
		}
	}
}

func (f *Fiber) isDispatcher() bool { return f.flags.Load()&flagDispatcherContext != 0 }

// requireRunning panics when op is invoked through a fiber that is not the
// one currently running; that is a programming error on the caller's side.
func (f *Fiber) requireRunning(op string) {
	s := f.sched.Load()
	if s == nil || s.current.Load() != f || f.State() != Running {
		panic("fiber: " + op + " called by a fiber that is not running")
	}
}

// Park suspends the calling fiber. unlock, if non-nil, runs on the
// dispatcher after the fiber's state has been published as Waiting; wait
// queues rely on this ordering so that a notifier can only observe a waiter
// that is already parkable. Park returns when some other fiber unparks the
// caller.
func (f *Fiber) Park(unlock func()) {
	f.requireRunning("Park")
	s := f.sched.Load()
	s.stats.parks.Add(1)
	s.parkFn = func() {
		f.state.Store(int32(Waiting))
		if unlock != nil {
			unlock()
		}
	}
	f.ec.switchTo(s.dispatcher.ec)
}

// ParkUntil is Park with a wake-up time: the fiber is additionally
// registered with its scheduler's sleep queue and is unparked by the driver
// once the deadline passes, unless something unparks it earlier.
func (f *Fiber) ParkUntil(deadline time.Time, unlock func()) {
	f.requireRunning("ParkUntil")
	s := f.sched.Load()
	s.stats.parks.Add(1)
	seq := f.sleepSeq.Add(1)
	s.parkFn = func() {
		f.state.Store(int32(Waiting))
		s.sleepQ.push(&sleepEntry{f: f, when: deadline, seq: seq})
		if unlock != nil {
			unlock()
		}
	}
	f.ec.switchTo(s.dispatcher.ec)
}

// Unpark moves a Waiting fiber back to Ready and hands it to its scheduler.
// It reports whether this call won the wake race; a false return means the
// fiber was not Waiting (already woken, running, or terminated). Safe to
// call from any goroutine.
func (f *Fiber) Unpark() bool {
	if !f.state.CompareAndSwap(int32(Waiting), int32(Ready)) {
		return false
	}
	f.sleepSeq.Add(1)
	s := f.sched.Load()
	s.schedule(f)
	return true
}

// Yield reinserts the calling fiber into the ready queue and gives other
// ready fibers a chance to run.
func (f *Fiber) Yield() {
	f.requireRunning("Yield")
	s := f.sched.Load()
	s.stats.yields.Add(1)
	s.parkFn = func() {
		f.state.Store(int32(Ready))
		s.algo.Awakened(f)
	}
	f.ec.switchTo(s.dispatcher.ec)
}

// SleepUntil suspends the calling fiber until deadline. It returns early
// with ErrInterrupted when an interruption is delivered.
func (f *Fiber) SleepUntil(deadline time.Time) error {
	f.requireRunning("SleepUntil")
	for {
		if err := f.CheckInterrupt(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		f.ParkUntil(deadline, nil)
	}
}

// SleepFor suspends the calling fiber for d.
func (f *Fiber) SleepFor(d time.Duration) error {
	return f.SleepUntil(time.Now().Add(d))
}

// Join suspends the calling fiber until other terminates and returns
// other's termination error, if any. Joining a detached fiber still waits
// but reports no error.
func (f *Fiber) Join(other *Fiber) error {
	f.requireRunning("Join")
	if f == other {
		return ErrJoinSelf
	}
	for other.State() != Terminated {
		other.mu.Lock()
		if other.State() == Terminated {
			other.mu.Unlock()
			break
		}
		n := NewWaitNode(f)
		other.joiners.PushBack(n)
		f.Park(other.mu.Unlock)
		if err := f.CheckInterrupt(); err != nil {
			other.mu.Lock()
			other.joiners.Remove(n)
			other.mu.Unlock()
			return err
		}
	}
	if other.Detached() {
		return nil
	}
	return other.Err()
}

// Wait blocks the calling goroutine, not a fiber, until the fiber
// terminates. It is the external counterpart of Join.
func (f *Fiber) Wait() {
	<-f.done
}

// Err returns the fiber's termination error once it has terminated, nil
// otherwise.
func (f *Fiber) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.termErr
}

// Interrupt requests an interruption. The request is consumed at the
// target's next interruption point; a fiber parked at an interruptible wait
// is woken so it can observe the request.
func (f *Fiber) Interrupt() {
	f.setFlag(flagInterruptionRequested)
	f.Unpark()
}

// InterruptionRequested reports whether an interruption is pending.
func (f *Fiber) InterruptionRequested() bool {
	return f.flags.Load()&flagInterruptionRequested != 0
}

// InterruptionEnabled reports whether interruption delivery is currently
// enabled for this fiber.
func (f *Fiber) InterruptionEnabled() bool {
	return f.flags.Load()&flagInterruptionBlocked == 0
}

// CheckInterrupt consumes a pending interruption unless delivery is
// blocked, returning ErrInterrupted when one was consumed.
func (f *Fiber) CheckInterrupt() error {
	fl := f.flags.Load()
	if fl&flagInterruptionRequested != 0 && fl&flagInterruptionBlocked == 0 {
		f.clearFlag(flagInterruptionRequested)
		return ErrInterrupted
	}
	return nil
}

// InterruptionPoint is an explicit interruption point.
func (f *Fiber) InterruptionPoint() error {
	f.requireRunning("InterruptionPoint")
	return f.CheckInterrupt()
}

// DisableInterruption blocks interruption delivery and returns a restore
// function. Nested use is supported: restore reinstates the prior state, so
// a pending request is delayed to the outermost scope exit.
func (f *Fiber) DisableInterruption() (restore func()) {
	prev := f.flags.Load()&flagInterruptionBlocked != 0
	f.setFlag(flagInterruptionBlocked)
	return func() {
		if !prev {
			f.clearFlag(flagInterruptionBlocked)
		}
	}
}

// run is the fiber goroutine body: park until the first resume, execute the
// task, then terminate.
func (f *Fiber) run() {
	f.ec.park()
	err := f.invoke()
	f.finish(err)
}

func (f *Fiber) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fiber %d panic: %v\n%s", f.id, r, debug.Stack())
		}
	}()
	if f.task != nil {
		err = f.task(f)
	}
	return
}

// finish transitions the fiber to Terminated: fiber-local storage cleanups
// run in reverse insertion order, the termination result is recorded, join
// waiters are resumed, and control is handed back to the dispatcher for
// stack release.
func (f *Fiber) finish(err error) {
	s := f.sched.Load()
	f.runFLSCleanups()

	if errors.Is(err, ErrInterrupted) {
		// An interruption that reaches the fiber top level is consumed.
		err = ErrInterrupted
	} else if err != nil {
		if s.onError == nil || !s.onError(f, err) {
			fatalFiberError(f, err)
		}
	}

	f.mu.Lock()
	if !f.Detached() {
		f.termErr = err
	}
	f.state.Store(int32(Terminated))
	var woken []*Fiber
	for {
		n := f.joiners.PopFront()
		if n == nil {
			break
		}
		n.Transferred = true
		woken = append(woken, n.F)
	}
	f.mu.Unlock()

	close(f.done)
	for _, j := range woken {
		j.Unpark()
	}

	s.parkFn = func() { s.noteTerminated(f) }
	f.ec.transferTo(s.dispatcher.ec)
}
