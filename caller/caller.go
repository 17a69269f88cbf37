// Package caller provides call-stack diagnostics used by panic
// dumps (C12) and by tools that want to warn on a given code path
// being reached from more than one distinct caller chain.
package caller

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/arch/x86/x86asm"
)

// Callerdump prints the call stack starting at the given skip depth.
func Callerdump(start int) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Printf("%s", s)
}

// DecodeFault disassembles the instruction at the start of text (the
// bytes captured at the faulting rip) and returns it in GNU/AT&T
// syntax, the form a panic dump prints alongside the symbolized
// stack. mode64 selects 64-bit decoding; text shorter than any valid
// x86 encoding or holding an instruction x86asm doesn't recognize
// yields a message saying so rather than an error value, since a
// panic dump must never itself fail to print.
func DecodeFault(text []byte, rip uint64, mode64 bool) string {
	mode := 32
	if mode64 {
		mode = 64
	}
	inst, err := x86asm.Decode(text, mode)
	if err != nil {
		return fmt.Sprintf("<undecodable instruction at %#x: %v>", rip, err)
	}
	return x86asm.GNUSyntax(inst, rip, nil)
}

// Distinct_caller_t tracks whether a call chain has been seen before,
// used to rate-limit noisy warnings to once per distinct caller path.
type Distinct_caller_t struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
	Whitel  map[string]bool
}

func (dc *Distinct_caller_t) pchash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("pchash: empty stack")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Len returns the number of unique caller paths recorded so far.
func (dc *Distinct_caller_t) Len() int {
	dc.Lock()
	defer dc.Unlock()
	return len(dc.did)
}

// Distinct reports whether the current call chain is new. On a new
// chain it also returns a formatted stack trace for logging.
func (dc *Distinct_caller_t) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}
	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz, got := 30, 30; got >= sz; sz *= 2 {
		pcs = make([]uintptr, sz)
		got = runtime.Callers(3, pcs)
		if got == 0 {
			return false, ""
		}
	}
	h := dc.pchash(pcs)
	if dc.did[h] {
		return false, ""
	}
	dc.did[h] = true

	frames := runtime.CallersFrames(pcs)
	fs := ""
	for {
		fr, more := frames.Next()
		if dc.Whitel[fr.Function] {
			return false, ""
		}
		if fs == "" {
			fs = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		} else {
			fs += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, fs
}
