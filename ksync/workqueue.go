package ksync

import (
	"container/list"
	"time"
)

// workitem_t is one scheduled unit of deferred work (spec.md §4.3
// "Work queues"): a closure plus a cancel flag checked right before it
// would run, so a delayed item canceled after its timer fired but
// before the consumer got to it is still skipped.
type workitem_t struct {
	fn        func()
	canceled  bool
	scheduled bool
}

// Workq_t is a FIFO consumer of scheduled work, run by one background
// goroutine — standing in for a dedicated kernel work thread.
type Workq_t struct {
	mu      Spinlock_t
	items   *list.List
	wake    chan struct{}
	timers  *Timerq_t
}

func MkWorkq() *Workq_t {
	wq := &Workq_t{items: list.New(), wake: make(chan struct{}, 1)}
	go wq.run()
	return wq
}

// Handle references a scheduled work item for cancellation.
type Handle struct {
	wq *Workq_t
	it *workitem_t
	tm *Timer_t
}

// Schedule enqueues fn to run as soon as the consumer goroutine is
// free.
func (wq *Workq_t) Schedule(fn func()) *Handle {
	it := &workitem_t{fn: fn, scheduled: true}
	wq.mu.Lock()
	wq.items.PushBack(it)
	wq.mu.Unlock()
	wq.kick()
	return &Handle{wq: wq, it: it}
}

// DelaySchedule enqueues fn to run after d elapses, via a private
// Timerq_t owned by this work queue.
func (wq *Workq_t) DelaySchedule(d time.Duration, fn func()) *Handle {
	if wq.timers == nil {
		wq.mu.Lock()
		if wq.timers == nil {
			wq.timers = MkTimerq()
		}
		wq.mu.Unlock()
	}
	it := &workitem_t{fn: fn}
	h := &Handle{wq: wq, it: it}
	h.tm = wq.timers.Add(d, func() {
		wq.mu.Lock()
		if it.canceled {
			wq.mu.Unlock()
			return
		}
		it.scheduled = true
		wq.items.PushBack(it)
		wq.mu.Unlock()
		wq.kick()
	})
	return h
}

// Cancel prevents a scheduled-but-not-yet-run item from executing.
// Returns false if the item already ran or is running.
func (h *Handle) Cancel() bool {
	h.wq.mu.Lock()
	defer h.wq.mu.Unlock()
	if h.it.canceled {
		return false
	}
	h.it.canceled = true
	if h.tm != nil {
		h.wq.timers.Del(h.tm)
	}
	return true
}

func (wq *Workq_t) kick() {
	select {
	case wq.wake <- struct{}{}:
	default:
	}
}

func (wq *Workq_t) run() {
	for range wq.wake {
		for {
			wq.mu.Lock()
			e := wq.items.Front()
			if e == nil {
				wq.mu.Unlock()
				break
			}
			it := wq.items.Remove(e).(*workitem_t)
			canceled := it.canceled
			// Dequeued: a Cancel from here on is too late to stop it.
			it.canceled = true
			wq.mu.Unlock()
			if !canceled {
				it.fn()
			}
		}
	}
}
