// Package evdev implements the event-queue device described by
// original_source/include/protura/event/protocol.h and its uapi
// counterpart: a fixed-capacity ring of {type, code, value} records
// (spec.md §4.12's "Event queue: ring buffer with a wait queue, used
// to stream kernel-originated events to user space"), read by exactly
// one blocked reader at a time the way the original's comment notes
// ("effectively only support one reader").
//
// The teacher has no input-event source of its own; this package's
// shape is grounded directly on protocol.h's struct kern_event layout
// and struct event_queue's lock/wait_queue/ring fields, with blocking
// read built the same way vfs.Pipe_t's pipeEnd.Read blocks: hold a
// plain mutex over the ring, release it across proc.Sleep, reacquire
// on wake.
package evdev

import (
	"sync"

	"protura/defs"
	"protura/fdops"
	"protura/ksync"
	"protura/proc"
)

// Event type for the keyboard minor (uapi protocol.h's
// KERN_EVENT_KEYBOARD); more device classes would add more constants
// here, but keyboard is the only one the original wires up.
const EventKeyboard uint16 = 0

// Event_t mirrors uapi protocol.h's struct kern_event exactly:
// type/code/value, nothing more.
type Event_t struct {
	Type  uint16
	Code  uint16
	Value uint32
}

// Flag bits (protocol.h's enum on struct event_queue.flags).
const (
	FlagBufferEvents = 1 << iota
)

// Queue_t is one event queue (protocol.h's struct event_queue): a
// fixed ring of Event_t guarded by a lock, a wait queue for blocked
// readers, and an open-reader count.
type Queue_t struct {
	mu          sync.Mutex
	ring        []Event_t
	head, tail  int
	openReaders int
	wait        *ksync.Waitqueue_t
	flags       int
}

// NewQueue allocates a queue with room for capacity events
// (EVENT_QUEUE_INIT's buf/size pair).
func NewQueue(capacity int, flags int) *Queue_t {
	return &Queue_t{
		ring:  make([]Event_t, capacity),
		wait:  ksync.MkWaitqueue(),
		flags: flags,
	}
}

func (q *Queue_t) full() bool  { return q.head-q.tail == len(q.ring) }
func (q *Queue_t) empty() bool { return q.head == q.tail }

// Submit appends an event (event_queue_submit_event). If the queue is
// full the oldest event is dropped to make room — the original drops
// the new event instead when unbuffered and no reader is open
// (flags&EQUEUE_FLAG_BUFFER_EVENTS == 0); this port keeps that one
// case and otherwise always makes room, since a kernel-originated
// event stream has no flow-control signal to push back on.
func (q *Queue_t) Submit(typ, code uint16, value uint32) {
	q.mu.Lock()
	if q.openReaders == 0 && q.flags&FlagBufferEvents == 0 {
		q.mu.Unlock()
		return
	}
	if q.full() {
		q.tail++
	}
	q.ring[q.head%len(q.ring)] = Event_t{Type: typ, Code: code, Value: value}
	q.head++
	q.mu.Unlock()
	q.wait.WakeOne()
}

// Open registers a new reader (event_queue_open).
func (q *Queue_t) Open() {
	q.mu.Lock()
	q.openReaders++
	q.mu.Unlock()
}

// Release unregisters a reader (event_queue_release).
func (q *Queue_t) Release() {
	q.mu.Lock()
	q.openReaders--
	q.mu.Unlock()
}

func block(wq *ksync.Waitqueue_t) {
	if t := proc.Current(); t != nil {
		proc.Sleep(t, wq, proc.INTERRUPTIBLE_SLEEPING)
		return
	}
	node := &ksync.WaitNode_t{}
	wq.Register(node)
	<-node.Ready
}

// Read blocks until at least one event is queued, then copies the
// oldest one out (event_queue_read always returns exactly one event
// per call in the original; the user_buffer parameter there is sized
// for one struct kern_event).
func (q *Queue_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	q.mu.Lock()
	for q.empty() {
		q.mu.Unlock()
		block(q.wait)
		q.mu.Lock()
	}
	ev := q.ring[q.tail%len(q.ring)]
	q.tail++
	q.mu.Unlock()

	buf := [8]byte{}
	buf[0], buf[1] = byte(ev.Type), byte(ev.Type>>8)
	buf[2], buf[3] = byte(ev.Code), byte(ev.Code>>8)
	buf[4], buf[5] = byte(ev.Value), byte(ev.Value>>8)
	buf[6], buf[7] = byte(ev.Value>>16), byte(ev.Value>>24)
	return dst.Uiowrite(buf[:])
}
