package fiber

import (
	"sync/atomic"
)

// Group is a set of schedulers cooperating through a peer-aware algorithm
// family. Spawns are distributed round-robin over the members.
type Group struct {
	scheds []*Scheduler
	next   atomic.Uint64
}

// NewGroup creates n schedulers whose algorithms come from factory; the
// factory receives the member index. All members share one live-fiber
// counter so shutdown drains group-wide.
func NewGroup(n int, factory func(i int) Algorithm, opts ...Option) *Group {
	if n < 1 {
		n = 1
	}
	g := &Group{}
	liveAll := new(atomic.Int64)
	for i := 0; i < n; i++ {
		memberOpts := append([]Option{WithAlgorithm(factory(i))}, opts...)
		s := NewScheduler(memberOpts...)
		s.liveAll = liveAll
		s.group = g
		g.scheds = append(g.scheds, s)
	}
	return g
}

// NewWorkStealingGroup creates n peer-wired work-stealing schedulers. seed
// feeds the members' victim selection.
func NewWorkStealingGroup(n int, seed int64, opts ...Option) *Group {
	peers := NewPeers()
	return NewGroup(n, func(i int) Algorithm {
		return NewWorkStealing(peers, seed+int64(i))
	}, opts...)
}

// NewSharedQueueGroup creates n schedulers draining one shared ready queue.
func NewSharedQueueGroup(n int, opts ...Option) *Group {
	shared := NewSharedReady()
	return NewGroup(n, func(i int) Algorithm {
		return NewSharedQueue(shared)
	}, opts...)
}

// Size returns the number of member schedulers.
func (g *Group) Size() int { return len(g.scheds) }

// Scheduler returns member i.
func (g *Group) Scheduler(i int) *Scheduler { return g.scheds[i] }

// Start launches every member.
func (g *Group) Start() {
	for _, s := range g.scheds {
		s.Start()
	}
}

// Spawn creates a fiber on the next member, round-robin.
func (g *Group) Spawn(task Task, opts ...SpawnOption) (*Fiber, error) {
	i := g.next.Add(1)
	return g.scheds[int(i)%len(g.scheds)].Spawn(task, opts...)
}

// Drain blocks until every member's fibers have terminated.
func (g *Group) Drain() {
	for _, s := range g.scheds {
		s.Drain()
	}
}

// Shutdown interrupts all fibers of every member first, then waits for all
// dispatchers to exit.
func (g *Group) Shutdown() {
	for _, s := range g.scheds {
		s.beginShutdown()
	}
	for _, s := range g.scheds {
		s.algo.Notify()
	}
	for _, s := range g.scheds {
		s.awaitStopped()
	}
}

// Stats returns the field-wise sum over all members.
func (g *Group) Stats() Stats {
	var total Stats
	for i, s := range g.scheds {
		snap := s.Stats()
		if i == 0 {
			total = snap
		} else {
			total = total.Add(snap)
		}
	}
	total.Scheduler = 0
	return total
}

// MemberStats returns one snapshot per member.
func (g *Group) MemberStats() []Stats {
	out := make([]Stats, 0, len(g.scheds))
	for _, s := range g.scheds {
		out = append(out, s.Stats())
	}
	return out
}
