package limits

import "unsafe"
import "sync/atomic"

/// Lhits counts limit hits: a Taken call that failed because the
/// shared counter ran dry.
var Lhits int

/// Sysatomic_t is a numeric limit that can be atomically updated.
type Sysatomic_t int64

/// Syslimit_t tracks the system-wide resource limits this port
/// actually enforces: idalloc's pid space (Sysprocs, consumed by
/// proc's pidIda), the pipe table (Pipes, vfs.MkPipe), and the block
/// cache's outstanding-buffer budget (Blocks, fs.Cache_t.Bread). The
/// teacher's Vnodes/Futexes/Arpents/Routes/Tcpsegs/Socks/Mfspgs
/// counters guard resources this port's scope excludes (no on-disk
/// vnode cache, no futex syscall, no TCP/IP/ARP/route stack — spec.md's
/// Out-of-scope list), so there is nothing left in this tree for them
/// to count.
type Syslimit_t struct {
	// size of proc's pid allocator, read once when it is built
	Sysprocs int
	// total pipes
	Pipes Sysatomic_t
	// bdev blocks
	Blocks Sysatomic_t
}

/// Syslimit describes the configured system wide limits.
var Syslimit *Syslimit_t = MkSysLimit()

/// MkSysLimit returns a pointer to the default set of limits.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Sysprocs: 1e4,
		Pipes:    1e4,
		// about 400MB of 4KB block pages (1 << 21 would be 8GB)
		Blocks: 100000, // 1 << 21,
	}
}

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

/// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	atomic.AddInt64(s._aptr(), n)
}

/// Taken tries to decrement the limit by the provided amount.
/// It returns true on success.
func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	g := atomic.AddInt64(s._aptr(), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), n)
	return false
}

/// Take decrements the limit and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}
