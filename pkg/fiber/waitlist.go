package fiber

// WaitNode links one parked fiber into a primitive's wait queue. A node is
// created per wait operation; Transferred is set under the primitive's lock
// by a notifier or hand-off before the fiber is unparked, letting the woken
// fiber distinguish a real wake from a timeout or interruption.
type WaitNode struct {
	F           *Fiber
	Transferred bool

	next, prev *WaitNode
	linked     bool
}

// NewWaitNode returns a node for f, ready to be pushed onto a WaitList.
func NewWaitNode(f *Fiber) *WaitNode {
	return &WaitNode{F: f}
}

// Linked reports whether the node is still queued.
func (n *WaitNode) Linked() bool { return n.linked }

// WaitList is an intrusive FIFO of parked fibers. Each node may be linked in
// at most one list at a time; callers provide their own locking.
type WaitList struct {
	head, tail *WaitNode
	size       int
}

// Len returns the number of queued nodes.
func (l *WaitList) Len() int { return l.size }

// Empty reports whether the list has no queued nodes.
func (l *WaitList) Empty() bool { return l.size == 0 }

// PushBack appends n to the list. Pushing an already linked node panics: a
// fiber may be a member of at most one wait queue.
func (l *WaitList) PushBack(n *WaitNode) {
	if n.linked {
		panic("fiber: wait node is already linked")
	}
	n.linked = true
	n.prev = l.tail
	n.next = nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.size++
}

// PopFront removes and returns the oldest node, or nil.
func (l *WaitList) PopFront() *WaitNode {
	n := l.head
	if n == nil {
		return nil
	}
	l.unlink(n)
	return n
}

// Remove unlinks n if it is still queued and reports whether it did.
func (l *WaitList) Remove(n *WaitNode) bool {
	if !n.linked {
		return false
	}
	l.unlink(n)
	return true
}

func (l *WaitList) unlink(n *WaitNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev = nil, nil
	n.linked = false
	l.size--
}
