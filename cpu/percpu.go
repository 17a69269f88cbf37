// Package cpu implements C2: the per-CPU block, the "current task"
// pointer, and FPU feature sizing. Spec.md's Non-goals rule out SMP,
// so there is exactly one cpu_t; what would otherwise be
// runtime.CPUHint()/runtime.Gptr()/runtime.Setgptr() collapses here to
// a single package-level struct behind a mutex (see SPEC_FULL.md §0 —
// this is the one hosting substitution every other package depends on).
package cpu

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// TaskHandle is satisfied by *proc.Task_t without cpu importing proc
// (proc imports cpu, not the reverse).
type TaskHandle interface {
	Tid() int
}

// Cpu_t is the per-CPU block: currently running task, nested-interrupt
// depth, and a preemption-pending flag set by the timer tick.
type Cpu_t struct {
	sync.Mutex
	cur        TaskHandle
	Intrdepth  int
	Resched    bool
	FPSaveSize int
}

// Cpu0 is the sole cpu_t — spec.md §5 "a single CPU runs one task at a
// time" — kept as a named variable rather than an array-of-one so call
// sites read like "the current cpu" the way cpu_local() does for the
// teacher, not like an indexed lookup.
var Cpu0 = &Cpu_t{}

// Current returns the task running on this CPU, or nil if it is idle.
func Current() TaskHandle {
	Cpu0.Lock()
	defer Cpu0.Unlock()
	return Cpu0.cur
}

// SetCurrent installs t as the running task. Passing nil marks the
// CPU idle.
func SetCurrent(t TaskHandle) {
	Cpu0.Lock()
	Cpu0.cur = t
	Cpu0.Unlock()
}

// DetectFeatures sizes the saved FPU area according to the widest
// extension actually available, mirroring how
// arch/x86/include/arch/task.h sizes the save area per supported
// feature set — done once at boot via golang.org/x/sys/cpu instead of
// a runtime.Cpuid call.
func DetectFeatures() {
	switch {
	case cpu.X86.HasAVX512F:
		Cpu0.FPSaveSize = 2688
	case cpu.X86.HasAVX2, cpu.X86.HasAVX:
		Cpu0.FPSaveSize = 832
	case cpu.X86.HasSSE2:
		Cpu0.FPSaveSize = 512
	default:
		Cpu0.FPSaveSize = 108 // legacy x87 FSAVE frame
	}
}
