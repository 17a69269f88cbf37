// Package proc implements C5: task states, the run queue, and
// fork/exit/wait/kill. Task state here is grounded directly on
// spec.md §4.5/§5; the fd-table and accounting fields reuse fd.Fd_t
// and accnt.Accnt_t exactly as spec.md's "Data model" describes a
// task owning both.
package proc

import (
	"sync"

	"protura/accnt"
	"protura/defs"
	"protura/fd"
	"protura/ksync"
	"protura/vm"
)

// State_t is one of the six task states spec.md §4.5 names.
type State_t int

const (
	NONE State_t = iota
	RUNNING
	SLEEPING
	INTERRUPTIBLE_SLEEPING
	STOPPED
	ZOMBIE
)

func (s State_t) String() string {
	switch s {
	case NONE:
		return "NONE"
	case RUNNING:
		return "RUNNING"
	case SLEEPING:
		return "SLEEPING"
	case INTERRUPTIBLE_SLEEPING:
		return "INTERRUPTIBLE_SLEEPING"
	case STOPPED:
		return "STOPPED"
	case ZOMBIE:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// Sigstate_i is the minimal surface proc needs from a task's signal
// state (pending/blocked sets, wake-on-unblocked-signal test) without
// importing the signal package, which itself needs no knowledge of
// proc. A concrete *signal.Sigstate_t satisfies this.
type Sigstate_i interface {
	AnyUnblockedPending() bool
}

// Task_t is one schedulable task. Fdtable is a plain slice indexed by
// descriptor number, matching the lowest-free-slot allocation idiom
// used throughout fd/fd.go's callers.
type Task_t struct {
	mu sync.Mutex

	tid  int
	pid  int
	ppid int
	pgid int
	sid  int

	state      State_t
	ticksRun   uint32
	exitStatus int
	killed     bool

	parent   *Task_t
	children []*Task_t

	Fdtable []*fd.Fd_t
	Cwd     *fd.Cwd_t
	Acct    accnt.Accnt_t
	Sig     Sigstate_i

	// Vm is the task's owned address space (spec.md §4.5's "optional
	// owned address space"); nil for a kernel task. EntryPoint/UserSP
	// record where the most recent exec wants the task to resume user
	// mode (this hosting model has no saved-register irq_frame to
	// install them into directly, see SPEC_FULL.md §0).
	Vm         *vm.Vm_t
	EntryPoint uintptr
	UserSP     uintptr

	childWait *waitqueueHandle
	waitNode  *ksync.WaitNode_t

	resume chan struct{}
}

func (t *Task_t) Tid() int  { return t.tid }
func (t *Task_t) Pid() int  { return t.pid }
func (t *Task_t) Ppid() int { return t.ppid }
func (t *Task_t) Pgid() int { return t.pgid }
func (t *Task_t) Sid() int  { return t.sid }

func (t *Task_t) State() State_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop transitions t to STOPPED, the target of SIGSTOP/SIGTSTP/
// SIGTTIN/SIGTTOU (spec.md §4.5).
func (t *Task_t) Stop() {
	t.setState(STOPPED)
}

// ContinueFromStop transitions t from STOPPED back to RUNNING, the
// target of SIGCONT (spec.md §4.5 "SIGCONT returns it to RUNNING").
func (t *Task_t) ContinueFromStop() {
	t.mu.Lock()
	if t.state == STOPPED {
		t.state = RUNNING
	}
	t.mu.Unlock()
}

func (t *Task_t) setState(s State_t) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// CloseOnExec closes every descriptor with FD_CLOEXEC set (spec.md
// §4.11 edge case: "for every open file with close-on-exec set, the
// descriptor is absent after exec; all others survive with identical
// offsets").
func (t *Task_t) CloseOnExec() {
	t.mu.Lock()
	tbl := append([]*fd.Fd_t(nil), t.Fdtable...)
	t.mu.Unlock()
	for i, slot := range tbl {
		if slot != nil && slot.Perms&fd.FD_CLOEXEC != 0 {
			t.CloseFd(i)
		}
	}
}

// SetVm installs as as t's address space, discarding whatever it
// previously owned (spec.md §4.11: "on success, none of the old
// address space remains mapped").
func (t *Task_t) SetVm(as *vm.Vm_t) {
	t.mu.Lock()
	t.Vm = as
	t.mu.Unlock()
}

// SetEntry records the entry point and initial stack pointer a
// binfmt loader computed, for whatever installs the task's next
// user-mode resume.
func (t *Task_t) SetEntry(entry, sp uintptr) {
	t.mu.Lock()
	t.EntryPoint = entry
	t.UserSP = sp
	t.mu.Unlock()
}

// AddFd installs fo at the lowest unused descriptor number.
func (t *Task_t) AddFd(fo *fd.Fd_t) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, slot := range t.Fdtable {
		if slot == nil {
			t.Fdtable[i] = fo
			return i
		}
	}
	t.Fdtable = append(t.Fdtable, fo)
	return len(t.Fdtable) - 1
}

// GetFd returns the descriptor at fdnum, or (nil, EBADF).
func (t *Task_t) GetFd(fdnum int) (*fd.Fd_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fdnum < 0 || fdnum >= len(t.Fdtable) || t.Fdtable[fdnum] == nil {
		return nil, -defs.EBADF
	}
	return t.Fdtable[fdnum], 0
}

// CloseFd removes the descriptor at fdnum, closing its fops.
func (t *Task_t) CloseFd(fdnum int) defs.Err_t {
	t.mu.Lock()
	if fdnum < 0 || fdnum >= len(t.Fdtable) || t.Fdtable[fdnum] == nil {
		t.mu.Unlock()
		return -defs.EBADF
	}
	fo := t.Fdtable[fdnum]
	t.Fdtable[fdnum] = nil
	t.mu.Unlock()
	return fo.Fops.Close()
}
