// Package accnt tracks per-task CPU accounting (user/system time),
// exported to user space as an rusage-shaped byte buffer.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"protura/util"
)

/// Accnt_t accumulates per-task accounting information. Userns and
/// Sysns hold nanoseconds; the embedded mutex lets Fetch take a
/// consistent snapshot of both fields together.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

/// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

/// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

/// Now returns the current time in nanoseconds since the epoch.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

/// Io_time removes time spent waiting for I/O from system time.
func (a *Accnt_t) Io_time(since int64) {
	a.Systadd(int(since - a.Now()))
}

/// Sleep_time removes time spent sleeping from system time.
func (a *Accnt_t) Sleep_time(since int64) {
	a.Systadd(int(since - a.Now()))
}

/// Finish adds the time elapsed since inttime to system time.
func (a *Accnt_t) Finish(inttime int64) {
	a.Systadd(int(a.Now() - inttime))
}

/// Add merges another accounting record into this one.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
	a.Unlock()
}

/// Fetch returns a consistent snapshot encoded as an rusage buffer.
func (a *Accnt_t) Fetch() []uint8 {
	a.Lock()
	ru := a.toRusage()
	a.Unlock()
	return ru
}

// toRusage lays out user/sys timevals exactly as struct rusage's first
// two members (ru_utime, ru_stime) do.
func (a *Accnt_t) toRusage() []uint8 {
	const words = 4
	ret := make([]uint8, words*8)
	totv := func(nano int64) (int, int) {
		return int(nano / 1e9), int((nano % 1e9) / 1000)
	}
	off := 0
	s, us := totv(a.Userns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(a.Sysns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	return ret
}
