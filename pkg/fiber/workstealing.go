package fiber

import (
	"math/rand"
	"sync"
	"time"
)

// Peers wires a group of WorkStealing instances together so each can pick
// victims among the others.
type Peers struct {
	mu    sync.Mutex
	algos []*WorkStealing
}

// NewPeers creates an empty peer set.
func NewPeers() *Peers {
	return &Peers{}
}

func (p *Peers) add(a *WorkStealing) {
	p.mu.Lock()
	p.algos = append(p.algos, a)
	p.mu.Unlock()
}

func (p *Peers) victim(self *WorkStealing, rnd *rand.Rand) *WorkStealing {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.algos) < 2 {
		return nil
	}
	for {
		v := p.algos[rnd.Intn(len(p.algos))]
		if v != self {
			return v
		}
	}
}

func (p *Peers) notifyOther(self *WorkStealing, rnd *rand.Rand) {
	p.mu.Lock()
	var other *WorkStealing
	if len(p.algos) >= 2 {
		for {
			v := p.algos[rnd.Intn(len(p.algos))]
			if v != self {
				other = v
				break
			}
		}
	}
	p.mu.Unlock()
	if other != nil {
		other.ev.Notify()
	}
}

// WorkStealing owns a per-scheduler deque: the owner pushes and pops at the
// tail, thieves steal from the head. An idle instance picks one victim
// uniformly at random and attempts a single steal before letting the driver
// sleep. Pinned fibers live in a separate local list and are never stolen.
type WorkStealing struct {
	peers *Peers
	s     *Scheduler

	mu     sync.Mutex
	deque  []*Fiber
	pinned []*Fiber

	rmu sync.Mutex
	rnd *rand.Rand

	ev *wakeEvent
}

// NewWorkStealing creates an instance registered with peers. seed feeds the
// instance's victim selection.
func NewWorkStealing(peers *Peers, seed int64) *WorkStealing {
	a := &WorkStealing{
		peers: peers,
		rnd:   rand.New(rand.NewSource(seed)),
		ev:    newWakeEvent(),
	}
	peers.add(a)
	return a
}

func (a *WorkStealing) bind(s *Scheduler) { a.s = s }

// Awakened pushes f onto the owner end, the tail, or onto the pinned list
// when f may not migrate. When more than one fiber is queued a randomly
// chosen peer is nudged so surplus work gets stolen.
func (a *WorkStealing) Awakened(f *Fiber) {
	a.mu.Lock()
	if f.Pinned() {
		a.pinned = append(a.pinned, f)
		a.mu.Unlock()
		return
	}
	a.deque = append(a.deque, f)
	surplus := len(a.deque) > 1
	a.mu.Unlock()
	if surplus {
		a.rmu.Lock()
		a.peers.notifyOther(a, a.rnd)
		a.rmu.Unlock()
	}
}

// PickNext pops locally first, pinned list before the deque; the deque pop
// takes the owner end, the tail. When both are empty it attempts one steal
// from a random victim.
func (a *WorkStealing) PickNext() *Fiber {
	a.mu.Lock()
	if len(a.pinned) > 0 {
		f := a.pinned[0]
		copy(a.pinned, a.pinned[1:])
		a.pinned[len(a.pinned)-1] = nil
		a.pinned = a.pinned[:len(a.pinned)-1]
		a.mu.Unlock()
		return f
	}
	if len(a.deque) > 0 {
		f := a.deque[len(a.deque)-1]
		a.deque[len(a.deque)-1] = nil
		a.deque = a.deque[:len(a.deque)-1]
		a.mu.Unlock()
		return f
	}
	a.mu.Unlock()

	a.rmu.Lock()
	victim := a.peers.victim(a, a.rnd)
	a.rmu.Unlock()
	if victim == nil {
		return nil
	}
	f := victim.Steal()
	if f == nil {
		return nil
	}
	if a.s != nil {
		a.s.stats.steals.Add(1)
	}
	return f
}

// HasReady reports whether the deque or the pinned list holds a fiber.
func (a *WorkStealing) HasReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.deque) > 0 || len(a.pinned) > 0
}

// Steal detaches one fiber from the thief end of the deque, the head,
// opposite to where the owner pushes and pops.
func (a *WorkStealing) Steal() *Fiber {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.deque) == 0 {
		return nil
	}
	f := a.deque[0]
	copy(a.deque, a.deque[1:])
	a.deque[len(a.deque)-1] = nil
	a.deque = a.deque[:len(a.deque)-1]
	return f
}

// SuspendUntil blocks until deadline or a notify.
func (a *WorkStealing) SuspendUntil(deadline time.Time) {
	a.ev.WaitUntil(deadline)
}

// Notify wakes a suspended dispatcher.
func (a *WorkStealing) Notify() {
	a.ev.Notify()
}
