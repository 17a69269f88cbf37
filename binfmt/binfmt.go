// Package binfmt implements C11: the binary-format registry and the
// argv/envp stack layout exec builds on top of whichever handler
// claims a file.
//
// No source package here has a standalone binfmt/elf abstraction, so
// this package is grounded directly on
// original_source/include/protura/fs/binfmt.h's struct binfmt/
// exe_params shape and original_source/src/fs/binfmt_script.c's
// load_script, translated into a small interface
// plus two implementers instead of a linked list of function-pointer
// structs (spec.md §9's "vtable → interface" redesign note), and on
// spec.md §4.11 for the registry-walk and stack-build semantics.
package binfmt

import (
	"bytes"
	"sync"

	"protura/defs"
	"protura/fdops"
	"protura/mem"
	"protura/vfs"
	"protura/vm"
)

// ExeParams_t is the staged state of one exec (original_source's
// struct exe_params): the file currently being loaded, its name for
// /proc and argv[0] purposes, and the argv/envp strings already
// copied into kernel memory out of the caller's address space. A
// script handler mutates Exe/Filename/Argv in place and re-dispatches
// through Load, exactly as load_script rewrites params before calling
// binary_load again.
type ExeParams_t struct {
	Exe      fdops.Fdops_i
	Filename string
	Argv     []string
	Envp     []string

	// Root/Cwd/Cred let a script handler resolve its interpreter path
	// through the same namei used to find the original executable.
	Root, Cwd *vfs.Inode_t
	Cred      vfs.Cred_t
}

// Binfmt_i is one binary-format handler (spec.md §4.11): "each handler
// inspects the first bytes of the file against its magic and, on
// match, populates the new address space". Load returns the populated
// address space and its entry point.
type Binfmt_i interface {
	Name() string
	Magic() []byte
	Load(params *ExeParams_t, phys mem.Page_i) (*vm.Vm_t, uintptr, defs.Err_t)
}

var (
	registryMu sync.Mutex
	registry   []Binfmt_i
)

// Register appends fmt to the list binfmt.Load walks, in registration
// order (spec.md §4.11 "walked in order").
func Register(fmt Binfmt_i) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, fmt)
}

func init() {
	Register(ELF)
	Register(Script)
}

// readAt reads len(buf) bytes from f at off into buf via a kernel-side
// Userio_i, the same trick vm.Fault's file-backed path uses to treat
// an in-kernel buffer like user memory.
func readAt(f fdops.Fdops_i, buf []byte, off int) (int, defs.Err_t) {
	fb := &vm.Fakeubuf_t{}
	fb.Fake_init(buf)
	return f.Pread(fb, off)
}

// Load walks the registry, matching each handler's magic against the
// start of params.Exe, and delegates to the first match (spec.md
// §4.11). ENOEXEC if nothing claims it.
func Load(params *ExeParams_t, phys mem.Page_i) (*vm.Vm_t, uintptr, defs.Err_t) {
	registryMu.Lock()
	formats := append([]Binfmt_i(nil), registry...)
	registryMu.Unlock()

	maxMagic := 0
	for _, f := range formats {
		if n := len(f.Magic()); n > maxMagic {
			maxMagic = n
		}
	}
	head := make([]byte, maxMagic)
	n, err := readAt(params.Exe, head, 0)
	if err != 0 {
		return nil, 0, -defs.ENOEXEC
	}
	head = head[:n]

	for _, f := range formats {
		magic := f.Magic()
		if len(head) < len(magic) {
			continue
		}
		if bytes.Equal(head[:len(magic)], magic) {
			return f.Load(params, phys)
		}
	}
	return nil, 0, -defs.ENOEXEC
}

// TrampolineVA is the fixed, read-execute-only address every exec
// maps the sigreturn stub at (spec.md §4.11 "A trampoline page...is
// always mapped into the user address space"; spec.md §5 "its address
// is stable for the life of the address space"). It sits one page
// below the user/kernel split so it never collides with a binary's own
// mappings.
var TrampolineVA = vm.KBASE - uintptr(mem.PGSIZE)

// trampolineStub stands in for the real sigreturn trampoline's machine
// code (push the sigreturn syscall number, trap). This host never
// executes user instructions (SPEC_FULL.md §0), so the bytes are never
// run; what matters is that the page exists at a stable address for
// signal.Frame_t.TrampolineRA to point at.
var trampolineStub = []byte{0xb8, 0x77, 0x00, 0x00, 0x00, 0xcd, 0x80}

func mapTrampoline(as *vm.Vm_t) defs.Err_t {
	if err := as.AddRegion(&vm.VmRegion_t{
		Start: TrampolineVA,
		End:   TrampolineVA + uintptr(mem.PGSIZE),
		Prot:  vm.PROT_READ | vm.PROT_EXEC,
		Typ:   vm.MAP_ANON,
	}); err != 0 {
		return err
	}
	return as.KernelWrite(TrampolineVA, trampolineStub)
}

// Stack layout constants (spec.md §4.11): the user stack sits directly
// below the trampoline page.
const UStackPages = 16

var (
	UStackTop    = TrampolineVA
	UStackBottom = UStackTop - uintptr(UStackPages*mem.PGSIZE)
)

// writeAt copies data into as starting at va through the normal
// (protection-checked) user-write path, faulting pages in as needed.
func writeAt(as *vm.Vm_t, va uintptr, data []byte) defs.Err_t {
	ub := &vm.Userbuf_t{}
	ub.Ub_init(as, va, len(data))
	n, err := ub.Uiowrite(data)
	if err != 0 {
		return err
	}
	if n != len(data) {
		return -defs.EFAULT
	}
	return 0
}

// buildStack lays out argv/envp top-down below UStackTop: the envp
// strings, the argv strings, then (word-aligned) the envp NULL
// terminator, the envp pointer array, the argv NULL terminator, the
// argv pointer array, and argc. Read upward from the returned stack
// pointer that is argc, argv[0..argc-1], NULL, envp[...], NULL.
// Returns the stack pointer argc's word sits at, which is also where
// the new task's user-mode entry expects %esp.
func buildStack(as *vm.Vm_t, params *ExeParams_t) (uintptr, defs.Err_t) {
	if err := as.AddRegion(&vm.VmRegion_t{
		Start: UStackBottom,
		End:   UStackTop,
		Prot:  vm.PROT_READ | vm.PROT_WRITE,
		Typ:   vm.MAP_ANON,
	}); err != 0 {
		return 0, err
	}

	sp := UStackTop
	pushStr := func(s string) (uintptr, defs.Err_t) {
		b := append([]byte(s), 0)
		sp -= uintptr(len(b))
		if err := writeAt(as, sp, b); err != 0 {
			return 0, err
		}
		return sp, 0
	}
	pushWord := func(v uint32) defs.Err_t {
		sp -= 4
		var w [4]byte
		w[0] = byte(v)
		w[1] = byte(v >> 8)
		w[2] = byte(v >> 16)
		w[3] = byte(v >> 24)
		return writeAt(as, sp, w[:])
	}

	envPtrs := make([]uintptr, len(params.Envp))
	for i := len(params.Envp) - 1; i >= 0; i-- {
		va, err := pushStr(params.Envp[i])
		if err != 0 {
			return 0, err
		}
		envPtrs[i] = va
	}
	argvPtrs := make([]uintptr, len(params.Argv))
	for i := len(params.Argv) - 1; i >= 0; i-- {
		va, err := pushStr(params.Argv[i])
		if err != 0 {
			return 0, err
		}
		argvPtrs[i] = va
	}

	sp &^= 0x3 // word-align the pointer arrays

	if err := pushWord(0); err != 0 { // envp NULL terminator
		return 0, err
	}
	for i := len(envPtrs) - 1; i >= 0; i-- {
		if err := pushWord(uint32(envPtrs[i])); err != 0 {
			return 0, err
		}
	}
	if err := pushWord(0); err != 0 { // argv NULL terminator
		return 0, err
	}
	for i := len(argvPtrs) - 1; i >= 0; i-- {
		if err := pushWord(uint32(argvPtrs[i])); err != 0 {
			return 0, err
		}
	}
	if err := pushWord(uint32(len(params.Argv))); err != 0 { // argc
		return 0, err
	}

	return sp, 0
}

// Exec performs spec.md §4.11's full sequence short of tearing down a
// caller's previous address space (the caller does that itself, via
// Task_t.SetVm, only once Exec has succeeded — "on failure, the
// caller's address space is unchanged"): populate a fresh address
// space from the matching binfmt handler, map the trampoline page, and
// build the initial user stack.
func Exec(params *ExeParams_t, phys mem.Page_i) (as *vm.Vm_t, entry, sp uintptr, err defs.Err_t) {
	as, entry, err = Load(params, phys)
	if err != 0 {
		return nil, 0, 0, err
	}
	if err := mapTrampoline(as); err != 0 {
		return nil, 0, 0, err
	}
	sp, err = buildStack(as, params)
	if err != 0 {
		return nil, 0, 0, err
	}
	return as, entry, sp, 0
}
