package ksync

import (
	"container/heap"
	"time"
)

// Timer_t is a one-shot kernel timer (ktimer, spec.md §4.3 "Timers").
// When is the absolute deadline; Fn fires once, from the timer
// goroutine, never from interrupt context (there is none here).
type Timer_t struct {
	When  time.Time
	Fn    func()
	index int
	armed bool
}

type timerHeap []*Timer_t

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].When.Before(h[j].When) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer_t)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Timerq_t is the global sorted timer list. A single goroutine wakes
// at the earliest deadline, pops every timer due, and runs its Fn.
type Timerq_t struct {
	mu    Spinlock_t
	heap  timerHeap
	armCh chan struct{}
}

func MkTimerq() *Timerq_t {
	tq := &Timerq_t{armCh: make(chan struct{}, 1)}
	heap.Init(&tq.heap)
	go tq.loop()
	return tq
}

// Add arms a new timer, firing fn at now+d.
func (tq *Timerq_t) Add(d time.Duration, fn func()) *Timer_t {
	t := &Timer_t{When: time.Now().Add(d), Fn: fn, armed: true}
	tq.mu.Lock()
	heap.Push(&tq.heap, t)
	tq.mu.Unlock()
	tq.kick()
	return t
}

// Del cancels a pending timer. Returns false if it already fired.
func (tq *Timerq_t) Del(t *Timer_t) bool {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	if !t.armed || t.index < 0 {
		return false
	}
	heap.Remove(&tq.heap, t.index)
	t.armed = false
	return true
}

func (tq *Timerq_t) kick() {
	select {
	case tq.armCh <- struct{}{}:
	default:
	}
}

func (tq *Timerq_t) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		tq.mu.Lock()
		var wait time.Duration
		if tq.heap.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(tq.heap[0].When)
			if wait < 0 {
				wait = 0
			}
		}
		tq.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
		case <-tq.armCh:
			continue
		}

		now := time.Now()
		for {
			tq.mu.Lock()
			if tq.heap.Len() == 0 || tq.heap[0].When.After(now) {
				tq.mu.Unlock()
				break
			}
			t := heap.Pop(&tq.heap).(*Timer_t)
			t.armed = false
			tq.mu.Unlock()
			t.Fn()
		}
	}
}
