// Package fdops defines the operations vtable shared by every kind of
// open file descriptor (regular file, directory, pipe, device, event
// queue) and the buffer-transfer interface used to move bytes across
// the user/kernel boundary without every caller needing a concrete
// vm.Userbuf_t.
//
// The teacher's own fdops package retrieved only a go.mod stub; this
// interface is reconstructed from its callers (circbuf.Circbuf_t.Copyin/
// Copyout, vm.Userbuf_t, fd.Fd_t.Fops) and from spec.md §3 ("File") and
// §9 ("Function pointer tables vs. polymorphism" — express vtables as
// interfaces).
package fdops

import "protura/defs"

// Userio_i abstracts a source or sink for byte transfers: a real user
// buffer (vm.Userbuf_t), a scatter/gather iovec (vm.Useriovec_t), or a
// plain kernel buffer standing in for one (vm.Fakeubuf_t).
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}

// Fdops_i is the operations table every open file implements: regular
// files, directories, pipes, character/block devices, and event
// queues all close over their private state and are stored wherever a
// teacher's "fops" pointer receiver would be.
type Fdops_i interface {
	Close() defs.Err_t
	Fstat(st *StatAdapter) defs.Err_t
	Lseek(off int, whence int) (int, defs.Err_t)
	Mmapi(off, len int, shared bool) ([]MmapInfo, defs.Err_t)
	Pathi() Inode_i
	Read(dst Userio_i) (int, defs.Err_t)
	Reopen() defs.Err_t
	Write(src Userio_i) (int, defs.Err_t)
	Fullpath() (string, defs.Err_t)
	Truncate(newlen uint) defs.Err_t
	Pread(dst Userio_i, offset int) (int, defs.Err_t)
	Accept(saddr Userio_i) (Fdops_i, uint, defs.Err_t)
	Bind(saddr []uint8) defs.Err_t
	Connect(saddr []uint8) defs.Err_t
	Listen(backlog int) (Fdops_i, defs.Err_t)
	Sendmsg(src Userio_i, toaddr []uint8, cmsg []uint8, flags int) (int, defs.Err_t)
	Recvmsg(dst Userio_i, fromsa Userio_i, cmsg Userio_i, flags int) (int, int, int, defs.Err_t)
	GetSockopt(opt int, bufarg Userio_i, intarg int) (int, defs.Err_t)
	SetSockopt(level, opt int, bufarg Userio_i, intarg int) defs.Err_t
	Shutdown(read, write bool) defs.Err_t
}

// Inode_i is the minimal identity an fd's backing inode exposes
// upward without pulling the vfs package into fdops (which vfs itself
// must import) — an inode number and device pair and a directory test.
type Inode_i interface {
	Ino() defs.Ino_t
	Devno() defs.Dev_t
	IsDir() bool
}

// MmapInfo describes one mapped page handed back by Mmapi; kept
// untyped with respect to mem.Pg_t/mem.Pa_t to avoid an import cycle
// between fdops and mem (mem does not need to know about file
// descriptors, only vm and fs do, and they import mem directly).
type MmapInfo struct {
	PageIdx int
	Phys    uintptr
}

// StatAdapter is the minimal surface Fstat fills in; fs/vfs wrap the
// real stat.Stat_t and adapt it to this shape so fdops need not import
// stat (kept for the same reason as MmapInfo).
type StatAdapter interface {
	Wdev(uint)
	Wino(uint)
	Wmode(uint)
	Wsize(uint)
	Wrdev(uint)
}
