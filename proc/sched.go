package proc

import (
	"runtime"
	"sync"

	"protura/cpu"
	"protura/fd"
	"protura/idalloc"
	"protura/irq"
	"protura/ksync"
	"protura/limits"
)

// cpuToken models spec.md §5's "a single CPU runs one task at a time":
// whichever goroutine holds the token is the task actually executing
// kernel code; every suspension point (sleep, yield, blocking I/O)
// releases it so another runnable task's goroutine can proceed. This
// is the same giant-lock idiom the hosting-model notes use for
// cpu.Cpu0 (DESIGN.md), extended from "who is current" to "who may
// run".
var cpuToken = make(chan struct{}, 1)

func init() {
	cpuToken <- struct{}{}
}

var (
	schedMu  sync.Mutex
	tasks    = map[int]*Task_t{}
	initTask *Task_t // reparent target, spec.md §4.5 "reparent children to pid 1"

	// pidIda hands out pids the way original_source/include/protura/
	// ida.h's bitmap allocator hands out ids: the next free slot after
	// the last one issued, wrapping around, so a reaped task's pid
	// returns to use instead of a counter that only ever grows. Offset by 1 so pid 0 is never issued (pid 1 is the
	// conventional init task).
	pidIda = newPidIda()
)

func newPidIda() *idalloc.Ida_t {
	ida := &idalloc.Ida_t{}
	ida.Init(limits.Syslimit.Sysprocs)
	return ida
}

func allocPid() int {
	id := pidIda.Getid()
	if id < 0 {
		panic("out of pids")
	}
	return id + 1
}

// waitqueueHandle pairs a Waitqueue_t with its own node lifecycle so
// Task_t doesn't need to import ksync's node type into its exported
// surface.
type waitqueueHandle struct {
	wq *ksync.Waitqueue_t
}

func newWaitqueueHandle() *waitqueueHandle {
	return &waitqueueHandle{wq: ksync.MkWaitqueue()}
}

// NewTask allocates a task with no parent (used once, for pid 1).
func NewTask() *Task_t {
	pid := allocPid()
	schedMu.Lock()
	defer schedMu.Unlock()
	t := &Task_t{
		tid:       pid,
		pid:       pid,
		pgid:      pid,
		sid:       pid,
		state:     NONE,
		resume:    make(chan struct{}, 1),
		childWait: newWaitqueueHandle(),
	}
	tasks[t.tid] = t
	if initTask == nil {
		initTask = t
	}
	return t
}

// Fork allocates a child of parent, duplicating its open-file table
// (incrementing reference counts per spec.md §4.5) and working
// directory.
// entry is launched as the child's goroutine; callers typically block
// the child on its own wait channel until the parent schedules it in,
// mirroring "the child returns zero" without a real duplicated
// instruction stream.
func Fork(parent *Task_t, entry func(child *Task_t)) *Task_t {
	pid := allocPid()
	schedMu.Lock()
	child := &Task_t{
		tid:       pid,
		pid:       pid,
		ppid:      parent.pid,
		pgid:      parent.pgid,
		sid:       parent.sid,
		state:     NONE,
		resume:    make(chan struct{}, 1),
		childWait: newWaitqueueHandle(),
	}
	tasks[child.tid] = child
	schedMu.Unlock()

	parent.mu.Lock()
	parent.children = append(parent.children, child)
	child.Fdtable = make([]*fd.Fd_t, len(parent.Fdtable))
	for i, f := range parent.Fdtable {
		if f == nil {
			continue
		}
		nf, err := fd.Copyfd(f)
		if err != 0 {
			continue
		}
		child.Fdtable[i] = nf
	}
	child.Cwd = parent.Cwd
	parent.mu.Unlock()
	child.parent = parent

	child.setState(RUNNING)
	go func() {
		<-cpuToken
		cpu.SetCurrent(child)
		defer func() {
			cpuToken <- struct{}{}
		}()
		entry(child)
	}()
	return child
}

// Yield gives up the current goroutine's turn and lets Go's own
// scheduler run another runnable task's goroutine — spec.md §4.5
// "pick the next RUNNING task in round-robin order": the cpuToken a
// forked task's entry holds (see Fork) is what makes "one task's
// kernel code runs at a time" true of the common case; Yield itself
// only needs to give the runtime a scheduling point.
func Yield(t *Task_t) {
	runtime.Gosched()
	t.mu.Lock()
	t.Acct.Utadd(0)
	t.mu.Unlock()
}

// Sleep suspends t on wq in the given state (SLEEPING or
// INTERRUPTIBLE_SLEEPING) until woken. Returns ERESTARTSYS-shaped
// interruption signaling is left to callers that pass
// INTERRUPTIBLE_SLEEPING and check t.Sig.
func Sleep(t *Task_t, wq *ksync.Waitqueue_t, state State_t) {
	node := &ksync.WaitNode_t{}
	wq.Register(node)
	t.mu.Lock()
	t.state = state
	t.waitNode = node
	t.mu.Unlock()

	<-node.Ready

	t.mu.Lock()
	t.state = RUNNING
	t.waitNode = nil
	t.mu.Unlock()
}

// Wake transitions t from SLEEPING/INTERRUPTIBLE_SLEEPING/STOPPED to
// RUNNING, releasing its wait-queue node if it is currently parked on
// one (spec.md §4.5 "wake(t)").
func Wake(t *Task_t) {
	t.mu.Lock()
	node := t.waitNode
	switch t.state {
	case SLEEPING, INTERRUPTIBLE_SLEEPING, STOPPED:
		t.state = RUNNING
	}
	t.mu.Unlock()
	if node != nil && node.Queue != nil {
		node.Queue.WakeNode(node)
	}
}

// Exit tears down t: closes every fd, reparents children to pid 1,
// moves to ZOMBIE, and wakes the parent's wait queue (standing in for
// SIGCHLD delivery, which the signal package delivers separately).
func Exit(t *Task_t, status int) {
	t.mu.Lock()
	for i, f := range t.Fdtable {
		if f != nil {
			f.Fops.Close()
			t.Fdtable[i] = nil
		}
	}
	kids := t.children
	t.children = nil
	t.exitStatus = status
	t.state = ZOMBIE
	t.mu.Unlock()

	schedMu.Lock()
	it := initTask
	schedMu.Unlock()
	if it != nil {
		it.mu.Lock()
		for _, k := range kids {
			k.mu.Lock()
			k.ppid = it.pid
			k.mu.Unlock()
			it.children = append(it.children, k)
		}
		it.mu.Unlock()
	}

	if t.parent != nil {
		t.parent.childWait.wq.Wake()
	}
}

// Waitpid blocks INTERRUPTIBLE until a child of parent matching pid
// (-1 for any) is ZOMBIE, then reaps it (spec.md §4.5 "wait/waitpid").
// Returns (-1, 0, false) if parent has no matching children at all.
func Waitpid(parent *Task_t, pid int) (int, int, bool) {
	for {
		parent.mu.Lock()
		for i, c := range parent.children {
			if pid != -1 && c.pid != pid {
				continue
			}
			c.mu.Lock()
			if c.state == ZOMBIE {
				status := c.exitStatus
				cpid := c.pid
				c.mu.Unlock()
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				parent.mu.Unlock()
				schedMu.Lock()
				delete(tasks, cpid)
				schedMu.Unlock()
				pidIda.Putid(cpid - 1)
				return cpid, status, true
			}
			c.mu.Unlock()
		}
		if len(parent.children) == 0 {
			parent.mu.Unlock()
			return -1, 0, false
		}
		parent.mu.Unlock()
		Sleep(parent, parent.childWait.wq, INTERRUPTIBLE_SLEEPING)
	}
}

// Kill locates pid, sets its signal as pending (the caller supplies
// the mechanism via deliver, since proc has no knowledge of sigset
// layout), and wakes it if INTERRUPTIBLE_SLEEPING.
func Kill(pid int, deliver func(t *Task_t)) bool {
	schedMu.Lock()
	t, ok := tasks[pid]
	schedMu.Unlock()
	if !ok {
		return false
	}
	deliver(t)
	t.mu.Lock()
	st := t.state
	t.mu.Unlock()
	if st == INTERRUPTIBLE_SLEEPING || st == STOPPED {
		Wake(t)
	}
	return true
}

// Current returns the task whose goroutine is presently holding
// cpuToken, or nil outside of one (e.g. a test calling Sleep/Wake
// directly). Callers that block on a wait queue owned by a package
// other than proc (vfs pipes, binfmt) go through this instead of
// reaching into cpu directly so they don't need their own type
// assertion on cpu.TaskHandle.
func Current() *Task_t {
	t, _ := cpu.Current().(*Task_t)
	return t
}

// Lookup returns the task with the given pid, if live.
func Lookup(pid int) (*Task_t, bool) {
	schedMu.Lock()
	defer schedMu.Unlock()
	t, ok := tasks[pid]
	return t, ok
}

// RegisterPreemption hooks the scheduler's tick accounting into irq's
// tick dispatcher (spec.md §4.4/§4.5: the timer tick "marks the
// current CPU for reschedule when the slice is exhausted").
func RegisterPreemption(sliceTicks uint32) {
	irq.RegisterTickHook(func(tick uint32) {
		cur, ok := cpu.Current().(*Task_t)
		if !ok || cur == nil {
			return
		}
		cur.mu.Lock()
		cur.ticksRun++
		spent := cur.ticksRun >= sliceTicks
		if spent {
			cur.ticksRun = 0
		}
		cur.mu.Unlock()
		if spent {
			cpu.Cpu0.Lock()
			cpu.Cpu0.Resched = true
			cpu.Cpu0.Unlock()
		}
	})
}
