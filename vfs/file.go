package vfs

import (
	"sync"

	"protura/defs"
	"protura/fdops"
	"protura/stat"
	"protura/util"
)

// File_t implements fdops.Fdops_i over a regular file or directory
// inode; dent enumeration (spec.md §4.9 "Dirent enumeration") is
// exposed through the same Read method a regular file uses, keyed off
// the inode's type.
type File_t struct {
	mu     sync.Mutex
	ino    *Inode_t
	off    int
	flags  int
	dentIdx int // directory read cursor, in entries not bytes
}

var _ fdops.Fdops_i = (*File_t)(nil)

func (f *File_t) Close() defs.Err_t { return 0 }

func (f *File_t) Reopen() defs.Err_t { return 0 }

func (f *File_t) Pathi() fdops.Inode_i { return f.ino }

func (f *File_t) Fullpath() (string, defs.Err_t) { return "", -defs.ENOSYS }

// Fstat's signature takes fdops.StatAdapter rather than a concrete
// stat.Stat_t so fdops need not import stat; FstatReal below, which
// syscalls call directly, takes the concrete type instead.
func (f *File_t) Fstat(st *fdops.StatAdapter) defs.Err_t { return -defs.ENOSYS }

// FstatReal is the concrete-typed counterpart syscalls use directly.
func (f *File_t) FstatReal(st *stat.Stat_t) defs.Err_t {
	fillStat(f.ino, st)
	return 0
}

func (f *File_t) Lseek(off int, whence int) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch whence {
	case defs.SEEK_SET:
		f.off = off
	case defs.SEEK_CUR:
		f.off += off
	case defs.SEEK_END:
		f.ino.mu.Lock()
		f.off = len(f.ino.data) + off
		f.ino.mu.Unlock()
	default:
		return 0, -defs.EINVAL
	}
	if f.off < 0 {
		f.off = 0
		return 0, -defs.EINVAL
	}
	return f.off, 0
}

func (f *File_t) Truncate(newlen uint) defs.Err_t {
	f.ino.mu.Lock()
	defer f.ino.mu.Unlock()
	if f.ino.typ != ITYPE_REG {
		return -defs.EINVAL
	}
	n := int(newlen)
	if n <= len(f.ino.data) {
		f.ino.data = f.ino.data[:n]
		return 0
	}
	grown := make([]byte, n)
	copy(grown, f.ino.data)
	f.ino.data = grown
	return 0
}

func (f *File_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	f.mu.Lock()
	off := f.off
	f.mu.Unlock()

	if f.ino.typ == ITYPE_DIR {
		n, err := f.readDents(dst)
		return n, err
	}

	n, err := f.Pread(dst, off)
	if err == 0 {
		f.mu.Lock()
		f.off += n
		f.mu.Unlock()
	}
	return n, err
}

func (f *File_t) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	f.ino.mu.Lock()
	data := f.ino.data
	f.ino.mu.Unlock()
	if offset >= len(data) {
		return 0, 0
	}
	return dst.Uiowrite(data[offset:])
}

func (f *File_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	f.mu.Lock()
	off := f.off
	if f.flags&defs.O_APPEND != 0 {
		f.ino.mu.Lock()
		off = len(f.ino.data)
		f.ino.mu.Unlock()
	}
	f.mu.Unlock()

	n, err := f.writeAt(src, off)
	if err == 0 {
		f.mu.Lock()
		f.off = off + n
		f.mu.Unlock()
	}
	return n, err
}

func (f *File_t) writeAt(src fdops.Userio_i, off int) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	buf = buf[:n]

	f.ino.mu.Lock()
	defer f.ino.mu.Unlock()
	need := off + len(buf)
	if need > len(f.ino.data) {
		grown := make([]byte, need)
		copy(grown, f.ino.data)
		f.ino.data = grown
	}
	copy(f.ino.data[off:], buf)
	return len(buf), 0
}

func (f *File_t) readDents(dst fdops.Userio_i) (int, defs.Err_t) {
	ents, err := f.ino.Readdir()
	if err != 0 {
		return 0, err
	}

	f.mu.Lock()
	idx := f.dentIdx
	f.mu.Unlock()

	total := 0
	for idx < len(ents) {
		rec := packDent(ents[idx])
		if total+len(rec) > dst.Remain() {
			break
		}
		n, err := dst.Uiowrite(rec)
		total += n
		if err != 0 {
			return total, err
		}
		idx++
	}

	f.mu.Lock()
	f.dentIdx = idx
	f.mu.Unlock()
	return total, 0
}

// packDent lays out {ino(4), dent_len(2), name_len(2), name...},
// matching the field order spec.md §4.9 names; NUL-padded to a
// 4-byte boundary so records stay self-describing via dent_len alone.
func packDent(d Dent_t) []byte {
	nameLen := len(d.Name)
	recLen := util.Roundup(8+nameLen, 4)
	rec := make([]byte, recLen)
	util.Writen(rec, 4, 0, int(d.Ino))
	util.Writen(rec, 2, 4, recLen)
	util.Writen(rec, 2, 6, nameLen)
	copy(rec[8:], d.Name)
	return rec
}

// socket verbs are not meaningful on a plain file or directory.
func (f *File_t) Mmapi(off, ln int, shared bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.ENODEV
}
func (f *File_t) Accept(saddr fdops.Userio_i) (fdops.Fdops_i, uint, defs.Err_t) {
	return nil, 0, -defs.ENOTSOCK
}
func (f *File_t) Bind(saddr []uint8) defs.Err_t    { return -defs.ENOTSOCK }
func (f *File_t) Connect(saddr []uint8) defs.Err_t { return -defs.ENOTSOCK }
func (f *File_t) Listen(backlog int) (fdops.Fdops_i, defs.Err_t) {
	return nil, -defs.ENOTSOCK
}
func (f *File_t) Sendmsg(src fdops.Userio_i, toaddr []uint8, cmsg []uint8, flags int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (f *File_t) Recvmsg(dst fdops.Userio_i, fromsa fdops.Userio_i, cmsg fdops.Userio_i, flags int) (int, int, int, defs.Err_t) {
	return 0, 0, 0, -defs.ENOTSOCK
}
func (f *File_t) GetSockopt(opt int, bufarg fdops.Userio_i, intarg int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (f *File_t) SetSockopt(level, opt int, bufarg fdops.Userio_i, intarg int) defs.Err_t {
	return -defs.ENOTSOCK
}
func (f *File_t) Shutdown(read, write bool) defs.Err_t { return -defs.ENOTSOCK }
