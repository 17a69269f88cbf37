package klog

import (
	"io"

	"protura/ksync"
)

// WriterOutput adapts any io.Writer (the "serial" output: in the
// original this was the UART; here it is typically os.Stderr or a
// test buffer) into an Output_i.
type WriterOutput struct {
	W io.Writer
}

func (w WriterOutput) WriteLine(level Level, line string) {
	io.WriteString(w.W, "["+level.String()+"] "+line)
}

// RingOutput keeps the last N formatted lines in memory for
// /proc/klog to stream back (spec.md §4.12's "in-memory ring"; §4
// special-files list: "/proc/klog exposing the in-memory log ring as
// a readable+pollable stream"). Unlike circbuf.Circbuf_t (used for
// pipes, where a full buffer must block the writer) a log
// ring must never block kprintf, so it overwrites its oldest line
// instead — a different enough policy that reusing circbuf would mean
// fighting its full/blocked semantics rather than using them.
type RingOutput struct {
	mu    ksync.Spinlock_t
	lines []string
	cap   int
	next  int
	count int
}

func NewRingOutput(capacity int) *RingOutput {
	return &RingOutput{lines: make([]string, capacity), cap: capacity}
}

func (r *RingOutput) WriteLine(level Level, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = "[" + level.String() + "] " + line
	r.next = (r.next + 1) % r.cap
	if r.count < r.cap {
		r.count++
	}
}

// Lines returns the buffered lines in oldest-to-newest order.
func (r *RingOutput) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, r.count)
	start := (r.next - r.count + r.cap) % r.cap
	for i := 0; i < r.count; i++ {
		out[i] = r.lines[(start+i)%r.cap]
	}
	return out
}
