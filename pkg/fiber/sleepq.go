package fiber

import (
	"container/heap"
	"time"
)

// sleepEntry is one timed wait registered with a scheduler. Entries are
// one-shot: seq is compared against the fiber's current sleep sequence when
// the entry pops, so entries left behind by an earlier wake are dropped
// instead of waking the fiber spuriously.
type sleepEntry struct {
	f     *Fiber
	when  time.Time
	seq   uint64
	index int
}

// sleepQueue is a min-heap of sleep entries keyed by wake time. It is only
// touched by the owning scheduler's dispatcher.
type sleepQueue struct {
	entries sleepHeap
}

func (q *sleepQueue) push(e *sleepEntry) {
	heap.Push(&q.entries, e)
}

// popExpired removes and returns every entry whose wake time is at or
// before now.
func (q *sleepQueue) popExpired(now time.Time) []*sleepEntry {
	var expired []*sleepEntry
	for q.entries.Len() > 0 {
		e := q.entries[0]
		if e.when.After(now) {
			break
		}
		expired = append(expired, heap.Pop(&q.entries).(*sleepEntry))
	}
	return expired
}

// next returns the earliest wake time, if any entry is pending.
func (q *sleepQueue) next() (time.Time, bool) {
	if q.entries.Len() == 0 {
		return time.Time{}, false
	}
	return q.entries[0].when, true
}

func (q *sleepQueue) empty() bool { return q.entries.Len() == 0 }

type sleepHeap []*sleepEntry

func (h sleepHeap) Len() int           { return len(h) }
func (h sleepHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h sleepHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *sleepHeap) Push(x interface{}) {
	e := x.(*sleepEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *sleepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
