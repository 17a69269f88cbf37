package ksync

import "container/list"

// WaitNode_t attaches one waiter to a wait queue. Spec invariant: a
// node's Queue is non-nil iff it is linked in exactly one queue.
type WaitNode_t struct {
	Queue *Waitqueue_t
	elem  *list.Element
	Ready chan struct{}
}

// Waitqueue_t is a list of waiting nodes woken FIFO (spec.md §4.3
// "Wait queue").
type Waitqueue_t struct {
	mu    Spinlock_t
	nodes *list.List
}

func MkWaitqueue() *Waitqueue_t {
	return &Waitqueue_t{nodes: list.New()}
}

// Register adds n to the queue. Idempotent in the sense that
// registering an already-registered node panics rather than silently
// double-linking it (a node may be registered to at most one queue).
func (wq *Waitqueue_t) Register(n *WaitNode_t) {
	if n.Queue != nil {
		panic("waitqueue: node already registered")
	}
	n.Ready = make(chan struct{})
	wq.mu.Lock()
	n.elem = wq.nodes.PushBack(n)
	n.Queue = wq
	wq.mu.Unlock()
}

// Unregister removes n from whichever queue it is on. A no-op if n
// was already woken and removed.
func (wq *Waitqueue_t) Unregister(n *WaitNode_t) {
	wq.mu.Lock()
	if n.Queue == wq && n.elem != nil {
		wq.nodes.Remove(n.elem)
	}
	n.Queue = nil
	n.elem = nil
	wq.mu.Unlock()
}

// Wake drains the queue, releasing every waiter.
func (wq *Waitqueue_t) Wake() {
	wq.mu.Lock()
	for e := wq.nodes.Front(); e != nil; e = wq.nodes.Front() {
		n := wq.nodes.Remove(e).(*WaitNode_t)
		n.Queue = nil
		n.elem = nil
		close(n.Ready)
	}
	wq.mu.Unlock()
}

// WakeOne releases only the head waiter.
func (wq *Waitqueue_t) WakeOne() {
	wq.mu.Lock()
	e := wq.nodes.Front()
	if e == nil {
		wq.mu.Unlock()
		return
	}
	n := wq.nodes.Remove(e).(*WaitNode_t)
	n.Queue = nil
	n.elem = nil
	wq.mu.Unlock()
	close(n.Ready)
}

// WakeNode releases exactly n, wherever it sits in the queue — used
// when a caller (e.g. kill(2)) must wake one specific waiter rather
// than whichever one happens to be at the head. A no-op if n is not
// currently registered on this queue.
func (wq *Waitqueue_t) WakeNode(n *WaitNode_t) {
	wq.mu.Lock()
	if n.Queue != wq || n.elem == nil {
		wq.mu.Unlock()
		return
	}
	wq.nodes.Remove(n.elem)
	n.Queue = nil
	n.elem = nil
	wq.mu.Unlock()
	close(n.Ready)
}

// Empty reports whether any waiter is currently registered.
func (wq *Waitqueue_t) Empty() bool {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.nodes.Len() == 0
}
