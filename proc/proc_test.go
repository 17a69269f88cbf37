package proc

import (
	"testing"
	"time"

	"protura/defs"
	"protura/fd"
	"protura/fdops"
)

func TestForkExitWait(t *testing.T) {
	parent := NewTask()
	parent.setState(RUNNING)

	done := make(chan bool, 1)
	child := Fork(parent, func(c *Task_t) {
		Exit(c, 7)
		done <- true
	})
	if child.ppid != parent.pid {
		t.Fatalf("child ppid = %d, want %d", child.ppid, parent.pid)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("child never exited")
	}

	// Give Exit's state transition a moment to land before Waitpid scans.
	for i := 0; i < 100 && child.State() != ZOMBIE; i++ {
		time.Sleep(time.Millisecond)
	}

	pid, status, ok := Waitpid(parent, -1)
	if !ok {
		t.Fatal("expected a reapable zombie child")
	}
	if pid != child.pid {
		t.Fatalf("reaped pid = %d, want %d", pid, child.pid)
	}
	if status != 7 {
		t.Fatalf("status = %d, want 7", status)
	}
}

func TestWaitpidNoChildren(t *testing.T) {
	parent := NewTask()
	_, _, ok := Waitpid(parent, -1)
	if ok {
		t.Fatal("expected no reapable children")
	}
}

func TestExitReparentsToInit(t *testing.T) {
	// initTask is set once, by whichever test runs first; reparenting
	// always targets that task regardless of which root this test uses.
	root := NewTask()
	mid := Fork(root, func(c *Task_t) {})
	grandchild := Fork(mid, func(c *Task_t) {})

	Exit(mid, 0)

	schedMu.Lock()
	it := initTask
	schedMu.Unlock()

	if grandchild.ppid != it.pid {
		t.Fatalf("grandchild ppid = %d, want init task pid %d", grandchild.ppid, it.pid)
	}
	it.mu.Lock()
	found := false
	for _, k := range it.children {
		if k.pid == grandchild.pid {
			found = true
		}
	}
	it.mu.Unlock()
	if !found {
		t.Fatal("expected orphaned grandchild to be reparented to the init task")
	}
}

func TestKillWakesInterruptibleSleeper(t *testing.T) {
	task := NewTask()
	task.setState(RUNNING)

	wq := task.childWait.wq
	asleep := make(chan bool, 1)
	woke := make(chan bool, 1)
	go func() {
		asleep <- true
		Sleep(task, wq, INTERRUPTIBLE_SLEEPING)
		woke <- true
	}()
	<-asleep
	time.Sleep(20 * time.Millisecond)

	delivered := false
	Kill(task.pid, func(tt *Task_t) { delivered = true })
	if !delivered {
		t.Fatal("expected deliver callback to run")
	}

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("sleeper never woke")
	}
}

func TestFdTableLowestFree(t *testing.T) {
	task := NewTask()
	a := &fd.Fd_t{Fops: nullFops{}}
	b := &fd.Fd_t{Fops: nullFops{}}
	c := &fd.Fd_t{Fops: nullFops{}}

	i0 := task.AddFd(a)
	i1 := task.AddFd(b)
	task.CloseFd(i0)
	i2 := task.AddFd(c)

	if i2 != i0 {
		t.Fatalf("expected reused fd slot %d, got %d", i0, i2)
	}
	if _, err := task.GetFd(i1); err != 0 {
		t.Fatalf("GetFd(%d) err = %v, want 0", i1, err)
	}
	if _, err := task.GetFd(i0); err != 0 {
		t.Fatalf("GetFd(%d) err = %v, want 0 (slot reused)", i0, err)
	}
}

// nullFops is a minimal Fdops_i stub satisfying the interface for
// fd-table bookkeeping tests; every operation is a no-op/ENOSYS-shaped
// stand-in.
type nullFops struct{}

func (nullFops) Close() defs.Err_t                                  { return 0 }
func (nullFops) Fstat(st *fdops.StatAdapter) defs.Err_t              { return 0 }
func (nullFops) Lseek(off, whence int) (int, defs.Err_t)             { return 0, 0 }
func (nullFops) Mmapi(off, ln int, shared bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, 0
}
func (nullFops) Pathi() fdops.Inode_i                                { return nil }
func (nullFops) Read(dst fdops.Userio_i) (int, defs.Err_t)           { return 0, 0 }
func (nullFops) Reopen() defs.Err_t                                  { return 0 }
func (nullFops) Write(src fdops.Userio_i) (int, defs.Err_t)          { return 0, 0 }
func (nullFops) Fullpath() (string, defs.Err_t)                      { return "", 0 }
func (nullFops) Truncate(newlen uint) defs.Err_t                     { return 0 }
func (nullFops) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	return 0, 0
}
func (nullFops) Accept(saddr fdops.Userio_i) (fdops.Fdops_i, uint, defs.Err_t) {
	return nil, 0, -defs.ENOTSOCK
}
func (nullFops) Bind(saddr []uint8) defs.Err_t    { return -defs.ENOTSOCK }
func (nullFops) Connect(saddr []uint8) defs.Err_t { return -defs.ENOTSOCK }
func (nullFops) Listen(backlog int) (fdops.Fdops_i, defs.Err_t) {
	return nil, -defs.ENOTSOCK
}
func (nullFops) Sendmsg(src fdops.Userio_i, toaddr, cmsg []uint8, flags int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (nullFops) Recvmsg(dst fdops.Userio_i, fromsa fdops.Userio_i, cmsg fdops.Userio_i, flags int) (int, int, int, defs.Err_t) {
	return 0, 0, 0, -defs.ENOTSOCK
}
func (nullFops) GetSockopt(opt int, bufarg fdops.Userio_i, intarg int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (nullFops) SetSockopt(level, opt int, bufarg fdops.Userio_i, intarg int) defs.Err_t {
	return -defs.ENOTSOCK
}
func (nullFops) Shutdown(read, write bool) defs.Err_t { return -defs.ENOTSOCK }
