// Package klog implements the `kprintf` half of C12: a formatted
// message is multicast to every registered log output (spec.md §4.12:
// "multicasts it to every registered log output (serial, VT console,
// in-memory ring, framebuffer console)"), gated by a level compared
// against a runtime threshold, and never sleeps — it uses only an
// IRQ-safe spinlock (spec.md §5: "kprintf never sleeps").
//
// Level filtering follows the idiom the teacher uses for an
// always-compiled-in, rarely-hot-path gate: its stats.Stats/stats.Timing
// are package-level bool/int values compared before doing any work,
// not a generic logging framework with hooks and structured fields.
// klog.Threshold plays the same role here.
package klog

import (
	"fmt"

	"protura/caller"
	"protura/irq"
	"protura/ksync"
)

// Level is kprintf's severity, least to most verbose (spec.md §4.12:
// "ERROR, WARNING, NORMAL, DEBUG, TRACE").
type Level int

const (
	ERROR Level = iota
	WARNING
	NORMAL
	DEBUG
	TRACE
)

func (l Level) String() string {
	switch l {
	case ERROR:
		return "ERROR"
	case WARNING:
		return "WARNING"
	case NORMAL:
		return "NORMAL"
	case DEBUG:
		return "DEBUG"
	case TRACE:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// Output_i is one log destination. Every registered output sees every
// record that passes the threshold (spec.md §4.12: "Each output
// implements its own (putchar, putnstr)" — collapsed here to a single
// whole-line write since none of this port's outputs benefit from a
// separate putchar path).
type Output_i interface {
	WriteLine(level Level, line string)
}

// Threshold is the runtime verbosity gate; records above it are
// dropped before formatting. DEBUG and TRACE are compiled in but
// normally filtered, the same way a Stats/Timing const stays compiled
// in but false by default.
var Threshold = NORMAL

var (
	mu      ksync.Spinlock_t
	outputs []Output_i
)

// RegisterOutput adds out to the multicast set.
func RegisterOutput(out Output_i) {
	mu.Lock()
	defer mu.Unlock()
	outputs = append(outputs, out)
}

// Kp formats and multicasts a record at level, dropping it if level is
// more verbose than Threshold.
func Kp(level Level, format string, a ...interface{}) {
	if level > Threshold {
		return
	}
	line := fmt.Sprintf(format, a...)

	mu.Lock()
	defer mu.Unlock()
	for _, out := range outputs {
		out.WriteLine(level, line)
	}
}

// RebootOnPanic selects Panic's behavior once it has finished logging
// (spec.md §4.12: "either reboots or halts based on a flag"). This
// host has no reboot primitive of its own, so both paths terminate the
// process; the flag only changes which message is printed first, kept
// for parity with the original's boot-configurable behavior.
var RebootOnPanic = false

// Panic logs format at ERROR, dumps the call stack, and terminates the
// process (spec.md §4.12's panic path, minus an actual reboot/halt
// instruction neither of which this host can issue).
func Panic(format string, a ...interface{}) {
	Kp(ERROR, "PANIC: "+format, a...)
	caller.Callerdump(2)
	if RebootOnPanic {
		Kp(ERROR, "rebooting\n")
	} else {
		Kp(ERROR, "halting\n")
	}
	panic(fmt.Sprintf(format, a...))
}

// PanicFault is Panic's trap-handler variant: before dumping the call
// stack it decodes and prints the instruction that faulted, the way a
// real kernel's oops dump shows the offending opcode alongside the
// symbolized backtrace. f.Text/f.Rip are left zero-valued by callers
// that have no captured instruction bytes, in which case the decode
// line reports an empty instruction rather than a spurious crash.
func PanicFault(f *irq.IrqFrame_t, mode64 bool, format string, a ...interface{}) {
	Kp(ERROR, "PANIC: "+format, a...)
	Kp(ERROR, "vector=%d errcode=%#x rip=%#x: %s\n", f.Vector, f.ErrCode, f.Rip, caller.DecodeFault(f.Text, f.Rip, mode64))
	caller.Callerdump(2)
	if RebootOnPanic {
		Kp(ERROR, "rebooting\n")
	} else {
		Kp(ERROR, "halting\n")
	}
	panic(fmt.Sprintf(format, a...))
}
