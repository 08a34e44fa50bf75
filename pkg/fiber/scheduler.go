package fiber

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorHandler is consulted when a fiber's task returns an error other than
// ErrInterrupted. Returning true absorbs the error and lets the runtime
// continue; returning false invokes the process-fatal policy.
type ErrorHandler func(f *Fiber, err error) bool

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAlgorithm installs the scheduling algorithm. Must be set before the
// first fiber operation; the default is round-robin.
func WithAlgorithm(a Algorithm) Option {
	return func(s *Scheduler) { s.algo = a }
}

// WithStackAllocator installs the stack allocator used for spawned fibers.
func WithStackAllocator(a StackAllocator) Option {
	return func(s *Scheduler) { s.stackAlloc = a }
}

// WithDefaultStackSize sets the stack size used when a spawn does not
// request one.
func WithDefaultStackSize(size int) Option {
	return func(s *Scheduler) { s.stackSize = size }
}

// WithErrorHandler installs the error handler consulted before the
// process-fatal policy fires.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Scheduler) { s.onError = h }
}

// WithLockOSThread pins the dispatcher goroutine to an OS thread.
func WithLockOSThread() Option {
	return func(s *Scheduler) { s.lockOSThread = true }
}

// Global scheduler ID counter.
var schedulerIDCounter atomic.Uint64

// Scheduler drives fibers on one cooperative execution domain: a single
// dispatcher goroutine that repeatedly asks the algorithm for the next
// ready fiber and switches into it. One Scheduler corresponds to one OS
// thread's worth of cooperative scheduling; groups of schedulers cooperate
// through shared-queue or work-stealing algorithms.
type Scheduler struct {
	id   uint64
	algo Algorithm

	main       *Fiber
	dispatcher *Fiber
	current    atomic.Pointer[Fiber]

	// parkFn is the post-switch action installed by the fiber that just
	// yielded control; the dispatcher runs it before picking the next
	// fiber. Only the running fiber writes it, so it needs no lock.
	parkFn func()

	sleepQ sleepQueue

	mu         sync.Mutex
	fibers     map[uint64]*Fiber
	terminated []*Fiber
	live       int
	drainers   []chan struct{}

	// liveAll counts live fibers across the whole group this scheduler
	// belongs to; standalone schedulers get their own counter.
	liveAll *atomic.Int64
	group   *Group

	stackAlloc   StackAllocator
	stackSize    int
	onError      ErrorHandler
	lockOSThread bool

	stats    statCounters
	started  atomic.Bool
	shutdown atomic.Bool
	done     chan struct{}
}

// NewScheduler creates a scheduler. Fibers are not processed until Start is
// called (Spawn starts the scheduler lazily).
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		id:         schedulerIDCounter.Add(1),
		fibers:     make(map[uint64]*Fiber),
		stackAlloc: GoStackAllocator{},
		stackSize:  DefaultStackSize,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.algo == nil {
		s.algo = NewRoundRobin()
	}
	if b, ok := s.algo.(schedulerBinder); ok {
		b.bind(s)
	}
	if s.liveAll == nil {
		s.liveAll = new(atomic.Int64)
	}
	s.main = newFiber(nil, Stack{}, GoStackAllocator{}, flagMainContext|flagPinned)
	s.main.sched.Store(s)
	s.main.state.Store(int32(Waiting))
	s.dispatcher = newFiber(nil, Stack{}, GoStackAllocator{}, flagDispatcherContext|flagPinned)
	s.dispatcher.sched.Store(s)
	return s
}

// ID returns the scheduler's identity.
func (s *Scheduler) ID() uint64 { return s.id }

// Current returns the fiber currently running on this scheduler; between
// activations it is the dispatcher context.
func (s *Scheduler) Current() *Fiber { return s.current.Load() }

// SpawnOption configures a single spawn.
type SpawnOption func(*spawnConfig)

type spawnConfig struct {
	stackSize int
	pinned    bool
	detached  bool
	priority  int
}

// WithStackSize requests a specific stack size for this fiber.
func WithStackSize(size int) SpawnOption {
	return func(c *spawnConfig) { c.stackSize = size }
}

// Pinned forbids the fiber to migrate between schedulers.
func Pinned() SpawnOption {
	return func(c *spawnConfig) { c.pinned = true }
}

// Detached marks the fiber detached at creation.
func Detached() SpawnOption {
	return func(c *spawnConfig) { c.detached = true }
}

// WithPriority sets the initial scheduling priority.
func WithPriority(p int) SpawnOption {
	return func(c *spawnConfig) { c.priority = p }
}

// Spawn creates a worker fiber running task and inserts it into the ready
// queue. The scheduler is started lazily on first spawn.
func (s *Scheduler) Spawn(task Task, opts ...SpawnOption) (*Fiber, error) {
	if s.shutdown.Load() {
		return nil, ErrShutdown
	}
	cfg := spawnConfig{stackSize: s.stackSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	stack, err := s.stackAlloc.Allocate(cfg.stackSize)
	if err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}
	flags := uint32(flagWorkerContext)
	if cfg.pinned {
		flags |= flagPinned
	}
	if cfg.detached {
		flags |= flagDetached
	}
	f := newFiber(task, stack, s.stackAlloc, flags)
	f.priority.Store(int32(cfg.priority))
	f.home = s
	f.sched.Store(s)
	f.state.Store(int32(Ready))

	s.mu.Lock()
	s.fibers[f.id] = f
	s.live++
	s.mu.Unlock()
	s.liveAll.Add(1)
	s.stats.spawned.Add(1)

	go f.run()
	s.Start()
	s.schedule(f)
	return f, nil
}

// SpawnDetached is Spawn with the detached flag set.
func (s *Scheduler) SpawnDetached(task Task, opts ...SpawnOption) (*Fiber, error) {
	return s.Spawn(task, append(opts, Detached())...)
}

// Start launches the dispatcher. Idempotent.
func (s *Scheduler) Start() {
	if s.started.CompareAndSwap(false, true) {
		go s.loop()
	}
}

// schedule hands a ready fiber to the algorithm and wakes the dispatcher.
func (s *Scheduler) schedule(f *Fiber) {
	s.stats.wakes.Add(1)
	s.algo.Awakened(f)
	s.algo.Notify()
}

// loop is the driver, running on the dispatcher context: wake expired
// sleepers, release terminated fibers, pick the next ready fiber and switch
// into it; otherwise sleep until the earliest wake-up time or a notify.
func (s *Scheduler) loop() {
	if s.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	if debugLog != nil {
		debugLog("scheduler", s.id, "dispatcher started")
	}
	s.current.Store(s.dispatcher)
	for {
		s.wakeSleepers(time.Now())
		s.releaseTerminated()

		if s.shutdown.Load() && s.liveAll.Load() == 0 && !s.algo.HasReady() {
			break
		}

		f := s.algo.PickNext()
		if f == nil {
			deadline, ok := s.sleepQ.next()
			if !ok {
				deadline = time.Time{}
			}
			s.stats.idles.Add(1)
			s.algo.SuspendUntil(deadline)
			continue
		}
		s.runFiber(f)
	}
	s.releaseTerminated()
	if debugLog != nil {
		debugLog("scheduler", s.id, "dispatcher stopped")
	}
	close(s.done)
}

// runFiber attaches f to this scheduler, switches into it and, once control
// returns, executes the post-switch action f installed while parking.
func (s *Scheduler) runFiber(f *Fiber) {
	f.sched.Store(s)
	f.state.Store(int32(Running))
	s.current.Store(f)
	s.dispatcher.ec.switchTo(f.ec)
	s.current.Store(s.dispatcher)
	if fn := s.parkFn; fn != nil {
		s.parkFn = nil
		fn()
	}
}

func (s *Scheduler) wakeSleepers(now time.Time) {
	for _, e := range s.sleepQ.popExpired(now) {
		if e.seq != e.f.sleepSeq.Load() {
			continue
		}
		if e.f.Unpark() {
			s.stats.timerWakes.Add(1)
		}
	}
}

// releaseTerminated returns the stacks of terminated fibers. Stacks are
// released only here, after termination and after all join waiters have
// been resumed.
func (s *Scheduler) releaseTerminated() {
	s.mu.Lock()
	ts := s.terminated
	s.terminated = nil
	s.mu.Unlock()
	for _, f := range ts {
		f.alloc.Deallocate(f.stack)
		f.stack = Stack{}
	}
}

// noteTerminated runs on the dispatcher of the scheduler a fiber last ran
// on; accounting is routed to the fiber's home scheduler.
func (s *Scheduler) noteTerminated(f *Fiber) {
	s.stats.completed.Add(1)
	home := f.home
	if home == nil {
		home = s
	}
	home.mu.Lock()
	delete(home.fibers, f.id)
	home.terminated = append(home.terminated, f)
	home.live--
	var drained []chan struct{}
	if home.live == 0 {
		drained = home.drainers
		home.drainers = nil
	}
	home.mu.Unlock()
	remaining := home.liveAll.Add(-1)
	for _, ch := range drained {
		close(ch)
	}
	if home != s {
		home.algo.Notify()
	}
	// The last termination wakes every group member so dispatchers blocked
	// in SuspendUntil can observe the shutdown condition.
	if remaining == 0 {
		if home.group != nil {
			for _, m := range home.group.scheds {
				m.algo.Notify()
			}
		} else {
			home.algo.Notify()
		}
	}
}

// Drain blocks the calling goroutine until every fiber spawned on this
// scheduler has terminated. External use only; calling it from a fiber
// deadlocks.
func (s *Scheduler) Drain() {
	s.mu.Lock()
	if s.live == 0 {
		s.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	s.drainers = append(s.drainers, ch)
	s.mu.Unlock()
	<-ch
}

// Shutdown stops accepting spawns, interrupts every live fiber spawned
// here, and blocks until the dispatcher exits. External use only. Fibers
// that ignore interruption delay shutdown indefinitely.
func (s *Scheduler) Shutdown() {
	s.beginShutdown()
	s.awaitStopped()
}

// beginShutdown marks the scheduler shut down and interrupts its fibers
// without waiting for the dispatcher to exit.
func (s *Scheduler) beginShutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	live := make([]*Fiber, 0, len(s.fibers))
	for _, f := range s.fibers {
		live = append(live, f)
	}
	s.mu.Unlock()
	for _, f := range live {
		f.setFlag(flagUnwind)
		f.Interrupt()
	}
	// Claiming the started flag here means the dispatcher never ran and
	// never will; the stopped signal is raised directly.
	if s.started.CompareAndSwap(false, true) {
		close(s.done)
		return
	}
	s.algo.Notify()
}

func (s *Scheduler) awaitStopped() {
	<-s.done
}

// Stats returns a snapshot of the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()
	return Stats{
		Scheduler:  s.id,
		Live:       live,
		Spawned:    s.stats.spawned.Load(),
		Completed:  s.stats.completed.Load(),
		Yields:     s.stats.yields.Load(),
		Parks:      s.stats.parks.Load(),
		Wakes:      s.stats.wakes.Load(),
		TimerWakes: s.stats.timerWakes.Load(),
		Steals:     s.stats.steals.Load(),
		Idles:      s.stats.idles.Load(),
	}
}
