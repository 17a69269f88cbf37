package vm

import (
	"sync"

	"protura/defs"
)

// Userbuf_t assists reading and writing user memory. Address lookups
// and accesses are atomic with respect to page faults, bracketed by
// the address space's pmap lock.
type Userbuf_t struct {
	userva uintptr
	len    int
	off    int // 0 <= off <= len
	as     *Vm_t
}

func (ub *Userbuf_t) Ub_init(as *Vm_t, uva uintptr, length int) {
	if length < 0 {
		panic("negative length")
	}
	ub.userva = uva
	ub.len = length
	ub.off = 0
	ub.as = as
}

func (ub *Userbuf_t) Remain() int   { return ub.len - ub.off }
func (ub *Userbuf_t) Totalsz() int  { return ub.len }

func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	a, b := ub.tx(dst, false)
	ub.as.Unlock_pmap()
	return a, b
}

func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	a, b := ub.tx(src, true)
	ub.as.Unlock_pmap()
	return a, b
}

// tx copies the min of either the provided buffer or ub.len, one
// user-space page at a time. If an error occurs in the middle, the
// userbuf's state is left such that the operation can be restarted.
func (ub *Userbuf_t) tx(buf []uint8, write bool) (int, defs.Err_t) {
	ret := 0
	for len(buf) != 0 && ub.off != ub.len {
		va := ub.userva + uintptr(ub.off)
		ubuf, err := ub.as.Userdmap8_inner(va, write)
		if err != 0 {
			return ret, err
		}
		end := ub.off + len(ubuf)
		if end > ub.len {
			left := ub.len - ub.off
			ubuf = ubuf[:left]
		}
		var c int
		if write {
			c = copy(ubuf, buf)
		} else {
			c = copy(buf, ubuf)
		}
		buf = buf[c:]
		ub.off += c
		ret += c
	}
	return ret, 0
}

type iove_t struct {
	uva uintptr
	sz  int
}

// Useriovec_t represents a sequence of user buffers defined by an
// iovec array.
type Useriovec_t struct {
	iovs []iove_t
	tsz  int
	as   *Vm_t
}

// Iov_init loads niovs (uva, sz) pairs starting at iovarn, each
// element 16 bytes wide (two 8-byte words), matching the original
// in-memory iovec layout.
func (iov *Useriovec_t) Iov_init(as *Vm_t, iovarn uintptr, niovs int) defs.Err_t {
	if niovs > 10 {
		return -defs.EINVAL
	}
	iov.tsz = 0
	iov.iovs = make([]iove_t, niovs)
	iov.as = as

	as.Lock_pmap()
	defer as.Unlock_pmap()
	for i := range iov.iovs {
		elmsz := uintptr(16)
		va := iovarn + uintptr(i)*elmsz

		dstva, err := as.userreadnInner(va, 8)
		if err != 0 {
			return err
		}
		sz, err := as.userreadnInner(va+8, 8)
		if err != 0 {
			return err
		}
		iov.iovs[i].uva = uintptr(dstva)
		iov.iovs[i].sz = sz
		iov.tsz += sz
	}
	return 0
}

func (iov *Useriovec_t) Remain() int {
	ret := 0
	for i := range iov.iovs {
		ret += iov.iovs[i].sz
	}
	return ret
}

func (iov *Useriovec_t) Totalsz() int { return iov.tsz }

func (iov *Useriovec_t) tx(buf []uint8, touser bool) (int, defs.Err_t) {
	ub := &Userbuf_t{}
	did := 0
	for len(buf) > 0 && len(iov.iovs) > 0 {
		ciov := &iov.iovs[0]
		ub.Ub_init(iov.as, ciov.uva, ciov.sz)
		c, err := ub.tx(buf, touser)
		ciov.uva += uintptr(c)
		ciov.sz -= c
		if ciov.sz == 0 {
			iov.iovs = iov.iovs[1:]
		}
		buf = buf[c:]
		did += c
		if err != 0 {
			return did, err
		}
	}
	return did, 0
}

func (iov *Useriovec_t) Uioread(dst []uint8) (int, defs.Err_t) {
	iov.as.Lock_pmap()
	a, b := iov.tx(dst, false)
	iov.as.Unlock_pmap()
	return a, b
}

func (iov *Useriovec_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	iov.as.Lock_pmap()
	a, b := iov.tx(src, true)
	iov.as.Unlock_pmap()
	return a, b
}

// Fakeubuf_t implements the same Userio_i surface as Userbuf_t but
// operates on a kernel buffer — used when the kernel treats internal
// memory (e.g. a freshly allocated physical page) like user memory,
// as Fault's file-backed path does.
type Fakeubuf_t struct {
	fbuf []uint8
	len  int
}

func (fb *Fakeubuf_t) Fake_init(buf []uint8) {
	fb.fbuf = buf
	fb.len = len(fb.fbuf)
}

func (fb *Fakeubuf_t) Remain() int  { return len(fb.fbuf) }
func (fb *Fakeubuf_t) Totalsz() int { return fb.len }

func (fb *Fakeubuf_t) tx(buf []uint8, tofbuf bool) (int, defs.Err_t) {
	var c int
	if tofbuf {
		c = copy(fb.fbuf, buf)
	} else {
		c = copy(buf, fb.fbuf)
	}
	fb.fbuf = fb.fbuf[c:]
	return c, 0
}

func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) { return fb.tx(dst, false) }
func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) { return fb.tx(src, true) }

// Ubpool provides reusable Userbuf_t structures to reduce allocations
// on hot read/write paths.
var Ubpool = sync.Pool{New: func() interface{} { return new(Userbuf_t) }}

// userreadnInner reads an n-byte little-endian integer at va, used
// only by Iov_init to parse the in-memory iovec array; assumes
// Lock_pmap is already held.
func (as *Vm_t) userreadnInner(va uintptr, n int) (int, defs.Err_t) {
	buf, err := as.Userdmap8_inner(va, false)
	if err != 0 {
		return 0, err
	}
	if len(buf) < n {
		return 0, -defs.EFAULT
	}
	var v int
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | int(buf[i])
	}
	return v, 0
}
