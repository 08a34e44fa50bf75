package fiber

import "sync/atomic"

type statCounters struct {
	spawned    atomic.Uint64
	completed  atomic.Uint64
	yields     atomic.Uint64
	parks      atomic.Uint64
	wakes      atomic.Uint64
	timerWakes atomic.Uint64
	steals     atomic.Uint64
	idles      atomic.Uint64
}

// Stats is a point-in-time snapshot of one scheduler's counters.
type Stats struct {
	Scheduler  uint64
	Live       int
	Spawned    uint64
	Completed  uint64
	Yields     uint64
	Parks      uint64
	Wakes      uint64
	TimerWakes uint64
	Steals     uint64
	Idles      uint64
}

// Add returns the field-wise sum of two snapshots; the Scheduler field is
// kept from the receiver.
func (s Stats) Add(other Stats) Stats {
	s.Live += other.Live
	s.Spawned += other.Spawned
	s.Completed += other.Completed
	s.Yields += other.Yields
	s.Parks += other.Parks
	s.Wakes += other.Wakes
	s.TimerWakes += other.TimerWakes
	s.Steals += other.Steals
	s.Idles += other.Idles
	return s
}
