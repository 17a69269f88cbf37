package vfs

import (
	"sync"

	"protura/circbuf"
	"protura/defs"
	"protura/fdops"
	"protura/ksync"
	"protura/limits"
	"protura/mem"
	"protura/proc"
)

// Pipe_t is the state shared by both ends of an anonymous or named
// pipe (spec.md §4.9 "Pipes": two wait queues, a ring of pages,
// read/write offsets, reader and writer counts).
type Pipe_t struct {
	mu               sync.Mutex
	buf              circbuf.Circbuf_t
	readers, writers int
	rwait, wwait     *ksync.Waitqueue_t
	limGiven         bool
}

// MkPipe allocates a new pipe backed by one physical page's worth of
// ring buffer (circbuf.Circbuf_t), against limits.Syslimit.Pipes's system-wide budget.
func MkPipe(phys mem.Page_i) (*Pipe_t, defs.Err_t) {
	if !limits.Syslimit.Pipes.Take() {
		limits.Lhits++
		return nil, -defs.ENOMEM
	}
	p := &Pipe_t{rwait: ksync.MkWaitqueue(), wwait: ksync.MkWaitqueue()}
	p.buf.Cb_init(mem.PGSIZE, phys)
	return p, 0
}

// block suspends the calling task on wq. If there is no current task
// (a direct, non-Fork-spawned caller such as a test), it falls back
// to a bare wait-queue wait with no task-state bookkeeping.
func block(wq *ksync.Waitqueue_t) {
	if t := proc.Current(); t != nil {
		proc.Sleep(t, wq, proc.INTERRUPTIBLE_SLEEPING)
		return
	}
	node := &ksync.WaitNode_t{}
	wq.Register(node)
	<-node.Ready
}

type pipeEnd struct {
	p      *Pipe_t
	isRead bool
}

func (p *Pipe_t) openEnd(flags int) fdops.Fdops_i {
	read := flags&0x3 != defs.O_WRONLY
	p.mu.Lock()
	if read {
		p.readers++
	} else {
		p.writers++
	}
	p.mu.Unlock()
	return &pipeEnd{p: p, isRead: read}
}

var _ fdops.Fdops_i = (*pipeEnd)(nil)

func (pe *pipeEnd) Close() defs.Err_t {
	p := pe.p
	p.mu.Lock()
	if pe.isRead {
		p.readers--
	} else {
		p.writers--
	}
	lastEnd := p.readers == 0 && p.writers == 0 && !p.limGiven
	if lastEnd {
		p.limGiven = true
	}
	p.mu.Unlock()
	if lastEnd {
		limits.Syslimit.Pipes.Give()
	}
	p.rwait.Wake()
	p.wwait.Wake()
	return 0
}

func (pe *pipeEnd) Reopen() defs.Err_t {
	p := pe.p
	p.mu.Lock()
	if pe.isRead {
		p.readers++
	} else {
		p.writers++
	}
	p.mu.Unlock()
	return 0
}

// Read blocks while the buffer is empty and at least one writer is
// open; returns 0 when the buffer is empty and no writer remains
// (spec.md §4.9 "Pipes").
func (pe *pipeEnd) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	p := pe.p
	p.mu.Lock()
	for p.buf.Empty() && p.writers > 0 {
		p.mu.Unlock()
		block(p.rwait)
		p.mu.Lock()
	}
	n, err := p.buf.Copyout(dst)
	p.mu.Unlock()
	p.wwait.WakeOne()
	return n, err
}

// Write blocks while the buffer lacks room and at least one reader is
// open; when no reader remains it raises SIGPIPE (left to the caller,
// since vfs has no signal-delivery mechanism of its own — see
// signal.Deliver) and returns -EPIPE. Writes up to the pipe's buffer
// size are atomic: such a write waits until the whole of it fits and
// then goes in with one Copyin, so it is never interleaved with
// another writer's bytes. Larger writes go in piece by piece.
func (pe *pipeEnd) Write(src fdops.Userio_i) (int, defs.Err_t) {
	p := pe.p
	total := 0
	for src.Remain() > 0 {
		p.mu.Lock()
		if p.readers == 0 {
			p.mu.Unlock()
			return total, -defs.EPIPE
		}
		need := 1
		if r := src.Remain(); r <= p.buf.Bufsz() {
			need = r
		}
		for p.buf.Left() < need && p.readers > 0 {
			p.mu.Unlock()
			block(p.wwait)
			p.mu.Lock()
		}
		if p.readers == 0 {
			p.mu.Unlock()
			return total, -defs.EPIPE
		}
		n, err := p.buf.Copyin(src)
		p.mu.Unlock()
		p.rwait.WakeOne()
		total += n
		if err != 0 {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, 0
}

func (pe *pipeEnd) Lseek(off int, whence int) (int, defs.Err_t) { return 0, -defs.ESPIPE }
func (pe *pipeEnd) Truncate(newlen uint) defs.Err_t             { return -defs.EINVAL }
func (pe *pipeEnd) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	return 0, -defs.ESPIPE
}
func (pe *pipeEnd) Fullpath() (string, defs.Err_t)       { return "", -defs.ENOSYS }
func (pe *pipeEnd) Pathi() fdops.Inode_i                 { return nil }
func (pe *pipeEnd) Fstat(st *fdops.StatAdapter) defs.Err_t { return -defs.ENOSYS }
func (pe *pipeEnd) Mmapi(off, ln int, shared bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.ENODEV
}
func (pe *pipeEnd) Accept(saddr fdops.Userio_i) (fdops.Fdops_i, uint, defs.Err_t) {
	return nil, 0, -defs.ENOTSOCK
}
func (pe *pipeEnd) Bind(saddr []uint8) defs.Err_t    { return -defs.ENOTSOCK }
func (pe *pipeEnd) Connect(saddr []uint8) defs.Err_t { return -defs.ENOTSOCK }
func (pe *pipeEnd) Listen(backlog int) (fdops.Fdops_i, defs.Err_t) {
	return nil, -defs.ENOTSOCK
}
func (pe *pipeEnd) Sendmsg(src fdops.Userio_i, toaddr []uint8, cmsg []uint8, flags int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (pe *pipeEnd) Recvmsg(dst fdops.Userio_i, fromsa fdops.Userio_i, cmsg fdops.Userio_i, flags int) (int, int, int, defs.Err_t) {
	return 0, 0, 0, -defs.ENOTSOCK
}
func (pe *pipeEnd) GetSockopt(opt int, bufarg fdops.Userio_i, intarg int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (pe *pipeEnd) SetSockopt(level, opt int, bufarg fdops.Userio_i, intarg int) defs.Err_t {
	return -defs.ENOTSOCK
}
func (pe *pipeEnd) Shutdown(read, write bool) defs.Err_t { return -defs.ENOTSOCK }
