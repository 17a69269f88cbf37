// Package procfs implements C12's /proc surface: the task_api info
// types original_source/include/uapi/protura/task_api.h describes,
// and a small named-entry registry modeled on
// original_source/include/protura/fs/procfs.h's procfs_dir/
// procfs_entry for the flat informational files (/proc/mounts,
// /proc/version, /proc/klog).
package procfs

import (
	"protura/fd"
	"protura/proc"
	"protura/vm"
)

// Ioctl command numbers for /proc/task_api (task_api.h).
const (
	TASKIO_MEM_INFO  = 20
	TASKIO_FILE_INFO = 21
)

// TaskApiState mirrors uapi task_api.h's enum task_api_state.
type TaskApiState int

const (
	TaskApiNone TaskApiState = iota
	TaskApiSleeping
	TaskApiIntrSleeping
	TaskApiRunning
	TaskApiStopped
	TaskApiZombie
)

func stateOf(s proc.State_t) TaskApiState {
	switch s {
	case proc.NONE:
		return TaskApiNone
	case proc.SLEEPING:
		return TaskApiSleeping
	case proc.INTERRUPTIBLE_SLEEPING:
		return TaskApiIntrSleeping
	case proc.RUNNING:
		return TaskApiRunning
	case proc.STOPPED:
		return TaskApiStopped
	case proc.ZOMBIE:
		return TaskApiZombie
	default:
		return TaskApiNone
	}
}

// TaskApiInfo mirrors uapi task_api.h's struct task_api_info, trimmed
// to the fields this port can actually populate (no tty/signal-mask
// plumbing reaches procfs; Sig is exposed through proc.Sigstate_i
// elsewhere, not here).
type TaskApiInfo struct {
	Pid, Ppid, Pgid, Sid int
	State                TaskApiState
	Name                 string
}

// InfoFromTask builds a TaskApiInfo snapshot of t.
func InfoFromTask(t *proc.Task_t, name string) TaskApiInfo {
	return TaskApiInfo{
		Pid:   t.Pid(),
		Ppid:  t.Ppid(),
		Pgid:  t.Pgid(),
		Sid:   t.Sid(),
		State: stateOf(t.State()),
		Name:  name,
	}
}

// TaskApiMemRegion mirrors task_api.h's struct task_api_mem_region.
type TaskApiMemRegion struct {
	Start, End               uintptr
	IsRead, IsWrite, IsExec bool
}

// TaskApiMemInfo mirrors struct task_api_mem_info (TASKIO_MEM_INFO).
// The original caps regions at 10 (a fixed ioctl reply buffer); this
// port keeps that cap for the same reason — it's still a fixed-size
// wire reply, even though nothing here serializes it over a byte pipe.
type TaskApiMemInfo struct {
	Pid     int
	Regions []TaskApiMemRegion
}

const maxMemRegions = 10

// MemInfoFromVm builds a TASKIO_MEM_INFO reply from a task's address
// space, truncating at maxMemRegions the way the original's fixed
// array does.
func MemInfoFromVm(pid int, as *vm.Vm_t) TaskApiMemInfo {
	info := TaskApiMemInfo{Pid: pid}
	if as == nil {
		return info
	}
	for _, r := range as.Regions() {
		if len(info.Regions) >= maxMemRegions {
			break
		}
		info.Regions = append(info.Regions, TaskApiMemRegion{
			Start:   r.Start,
			End:     r.End,
			IsRead:  r.Prot&vm.PROT_READ != 0,
			IsWrite: r.Prot&vm.PROT_WRITE != 0,
			IsExec:  r.Prot&vm.PROT_EXEC != 0,
		})
	}
	return info
}

// TaskApiFile mirrors struct task_api_file, limited to what a plain
// fd.Fd_t exposes generically (permission bits); per-file dev/inode/
// size are not reported.
type TaskApiFile struct {
	InUse, IsReadable, IsWritable, IsCloexec bool
}

// TaskApiFileInfo mirrors struct task_api_file_info (TASKIO_FILE_INFO).
type TaskApiFileInfo struct {
	Pid   int
	Files []TaskApiFile
}

// FileInfoFromTask walks t's fd table into a TASKIO_FILE_INFO reply.
func FileInfoFromTask(t *proc.Task_t, table []*fd.Fd_t) TaskApiFileInfo {
	info := TaskApiFileInfo{Pid: t.Pid(), Files: make([]TaskApiFile, len(table))}
	for i, f := range table {
		if f == nil {
			continue
		}
		info.Files[i] = TaskApiFile{
			InUse:      true,
			IsReadable: f.Perms&fd.FD_READ != 0,
			IsWritable: f.Perms&fd.FD_WRITE != 0,
			IsCloexec:  f.Perms&fd.FD_CLOEXEC != 0,
		}
	}
	return info
}
