package binfmt

import (
	"encoding/binary"
	"strings"
	"testing"

	"protura/defs"
	"protura/mem"
	"protura/ustr"
	"protura/vfs"
	"protura/vm"
)

func freshRoot(t *testing.T) (*vfs.Inode_t, vfs.Cred_t) {
	t.Helper()
	cred := vfs.Cred_t{Uid: 0, Gid: 0}
	sb := vfs.MkSuperblock(1, cred)
	return sb.Root(), cred
}

// fakeio adapts a plain []byte to fdops.Userio_i, mirroring vfs_test's
// own self-contained helper of the same name and for the same reason:
// this package's tests must not reach into another package's unit-test
// internals.
type fakeio struct {
	buf []byte
	off int
}

func (f *fakeio) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, f.buf[f.off:])
	f.off += n
	return n, 0
}
func (f *fakeio) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(f.buf[f.off:], src)
	f.off += n
	return n, 0
}
func (f *fakeio) Remain() int  { return len(f.buf) - f.off }
func (f *fakeio) Totalsz() int { return len(f.buf) }

func writeFile(t *testing.T, root *vfs.Inode_t, cred vfs.Cred_t, path string, data []byte) {
	t.Helper()
	if strings.HasPrefix(path, "/bin/") {
		vfs.Mkdir(root, root, ustr.Ustr("/bin"), 0755, cred) // ignore EEXIST from a prior call
	}
	f, err := vfs.Open(root, root, ustr.Ustr(path), defs.O_CREAT|defs.O_RDWR, 0755, cred)
	if err != 0 {
		t.Fatalf("create %s: %v", path, err)
	}
	if _, err := f.Write(&fakeio{buf: data}); err != 0 {
		t.Fatalf("write %s: %v", path, err)
	}
}

// buildElf32 assembles a minimal 32-bit ELF image with a single
// PT_LOAD segment carrying text at vaddr, entering at entry.
func buildElf32(entry, vaddr uint32, text []byte) []byte {
	buf := make([]byte, ehdrSize+phdrSize+len(text))
	binary.LittleEndian.PutUint32(buf[0:4], elfMagic)
	binary.LittleEndian.PutUint16(buf[16:18], 2)           // e_type (ET_EXEC), unchecked
	binary.LittleEndian.PutUint16(buf[18:20], 3)           // e_machine (EM_386), unchecked
	binary.LittleEndian.PutUint32(buf[20:24], 1)           // e_version
	binary.LittleEndian.PutUint32(buf[24:28], entry)       // e_entry
	binary.LittleEndian.PutUint32(buf[28:32], ehdrSize)    // e_phoff
	binary.LittleEndian.PutUint16(buf[40:42], ehdrSize)    // e_ehsize
	binary.LittleEndian.PutUint16(buf[42:44], phdrSize)    // e_phentsize
	binary.LittleEndian.PutUint16(buf[44:46], 1)           // e_phnum

	ph := buf[ehdrSize:]
	textOff := ehdrSize + phdrSize
	binary.LittleEndian.PutUint32(ph[0:4], ptLoad)
	binary.LittleEndian.PutUint32(ph[4:8], uint32(textOff))
	binary.LittleEndian.PutUint32(ph[8:12], vaddr)
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(text)))
	binary.LittleEndian.PutUint32(ph[20:24], uint32(len(text)))
	binary.LittleEndian.PutUint32(ph[24:28], pfRead|pfExec)

	copy(buf[textOff:], text)
	return buf
}

func TestElfLoadCreatesLoadableRegionAtEntry(t *testing.T) {
	root, cred := freshRoot(t)
	const vaddr = 0x100000
	const entry = vaddr + 4
	writeFile(t, root, cred, "/bin/prog", buildElf32(entry, vaddr, []byte("hello-text-segment")))

	phys := mem.Phys_init(64)
	exe, err := vfs.Open(root, root, ustr.Ustr("/bin/prog"), defs.O_RDONLY, 0, cred)
	if err != 0 {
		t.Fatalf("open: %v", err)
	}

	params := &ExeParams_t{Exe: exe, Filename: "/bin/prog", Argv: []string{"/bin/prog"}, Root: root, Cwd: root, Cred: cred}
	as, gotEntry, loadErr := ELF.Load(params, phys)
	if loadErr != 0 {
		t.Fatalf("elf load: %v", loadErr)
	}
	if gotEntry != entry {
		t.Fatalf("entry = %#x, want %#x", gotEntry, entry)
	}
	if r := as.FindRegion(vaddr); r == nil {
		t.Fatal("expected a region covering the text segment's vaddr")
	}
}

func TestExecBuildsStackWithArgvAndEnvp(t *testing.T) {
	root, cred := freshRoot(t)
	writeFile(t, root, cred, "/bin/prog", buildElf32(0x100000, 0x100000, []byte("x")))

	phys := mem.Phys_init(64)
	exe, err := vfs.Open(root, root, ustr.Ustr("/bin/prog"), defs.O_RDONLY, 0, cred)
	if err != 0 {
		t.Fatalf("open: %v", err)
	}

	params := &ExeParams_t{
		Exe: exe, Filename: "/bin/prog",
		Argv: []string{"/bin/prog", "-v"}, Envp: []string{"HOME=/root"},
		Root: root, Cwd: root, Cred: cred,
	}
	as, entry, sp, execErr := Exec(params, phys)
	if execErr != 0 {
		t.Fatalf("exec: %v", execErr)
	}
	if entry != 0x100000 {
		t.Fatalf("entry = %#x", entry)
	}
	if sp == 0 || sp >= UStackTop || sp < UStackBottom {
		t.Fatalf("sp = %#x out of stack range [%#x,%#x)", sp, UStackBottom, UStackTop)
	}
	if as.FindRegion(TrampolineVA) == nil {
		t.Fatal("expected trampoline page to be mapped")
	}

	// argc lives at sp.
	ub := &vm.Userbuf_t{}
	ub.Ub_init(as, sp, 4)
	var argcBytes [4]byte
	if _, err := ub.Uioread(argcBytes[:]); err != 0 {
		t.Fatalf("read argc: %v", err)
	}
	argc := binary.LittleEndian.Uint32(argcBytes[:])
	if argc != 2 {
		t.Fatalf("argc = %d, want 2", argc)
	}
}

func TestScriptLoadPrependsInterpreterAndScriptPath(t *testing.T) {
	root, cred := freshRoot(t)
	writeFile(t, root, cred, "/bin/sh", buildElf32(0x200000, 0x200000, []byte("shell")))
	writeFile(t, root, cred, "/script", []byte("#!/bin/sh\nrest-of-line-ignored\n"))

	phys := mem.Phys_init(64)
	exe, err := vfs.Open(root, root, ustr.Ustr("/script"), defs.O_RDONLY, 0, cred)
	if err != 0 {
		t.Fatalf("open script: %v", err)
	}

	params := &ExeParams_t{
		Exe: exe, Filename: "/script",
		Argv: []string{"/script", "hello"}, Root: root, Cwd: root, Cred: cred,
	}
	as, entry, loadErr := Script.Load(params, phys)
	if loadErr != 0 {
		t.Fatalf("script load: %v", loadErr)
	}
	if entry != 0x200000 {
		t.Fatalf("entry = %#x, want interpreter's entry", entry)
	}
	if as.FindRegion(0x200000) == nil {
		t.Fatal("expected interpreter's text region")
	}

	want := []string{"/bin/sh", "/script", "hello"}
	if len(params.Argv) != len(want) {
		t.Fatalf("argv = %v, want %v", params.Argv, want)
	}
	for i := range want {
		if params.Argv[i] != want[i] {
			t.Fatalf("argv = %v, want %v", params.Argv, want)
		}
	}
}

func TestScriptWithNoMagicIsRejected(t *testing.T) {
	root, cred := freshRoot(t)
	writeFile(t, root, cred, "/notascript", []byte("plain text, no shebang\n"))
	phys := mem.Phys_init(16)
	exe, _ := vfs.Open(root, root, ustr.Ustr("/notascript"), defs.O_RDONLY, 0, cred)

	params := &ExeParams_t{Exe: exe, Filename: "/notascript", Root: root, Cwd: root, Cred: cred}
	if _, _, err := Load(params, phys); err != -defs.ENOEXEC {
		t.Fatalf("load of unrecognized file = %v, want ENOEXEC", err)
	}
}
