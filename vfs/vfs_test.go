package vfs

import (
	"testing"

	"protura/defs"
	"protura/mem"
	"protura/stat"
	"protura/ustr"
)

func freshRoot(t *testing.T) (*Inode_t, Cred_t) {
	t.Helper()
	cred := Cred_t{Uid: 0, Gid: 0}
	sb := MkSuperblock(1, cred)
	return sb.Root(), cred
}

func p(s string) ustr.Ustr { return ustr.Ustr(s) }

func TestCreateOpenWriteRead(t *testing.T) {
	root, cred := freshRoot(t)

	f, err := Open(root, root, p("/hello"), defs.O_CREAT|defs.O_RDWR, 0644, cred)
	if err != 0 {
		t.Fatalf("open/create: %v", err)
	}
	ub := &fakeio{buf: []byte("hello world")}
	n, err := f.Write(ub)
	if err != 0 || n != len("hello world") {
		t.Fatalf("write = (%d,%v)", n, err)
	}

	f2, err := Open(root, root, p("/hello"), defs.O_RDONLY, 0, cred)
	if err != 0 {
		t.Fatalf("reopen: %v", err)
	}
	dst := &fakeio{buf: make([]byte, 32)}
	n, err = f2.Read(dst)
	if err != 0 || string(dst.buf[:n]) != "hello world" {
		t.Fatalf("read = (%d,%q,%v)", n, dst.buf[:n], err)
	}
}

func TestOexclFailsIfExists(t *testing.T) {
	root, cred := freshRoot(t)
	if _, err := Open(root, root, p("/x"), defs.O_CREAT, 0644, cred); err != 0 {
		t.Fatalf("create: %v", err)
	}
	if _, err := Open(root, root, p("/x"), defs.O_CREAT|defs.O_EXCL, 0644, cred); err != -defs.EEXIST {
		t.Fatalf("O_EXCL reopen = %v, want EEXIST", err)
	}
}

func TestMkdirAndNamei(t *testing.T) {
	root, cred := freshRoot(t)
	if err := Mkdir(root, root, p("/a"), 0755, cred); err != 0 {
		t.Fatalf("mkdir: %v", err)
	}
	if err := Mkdir(root, root, p("/a/b"), 0755, cred); err != 0 {
		t.Fatalf("mkdir nested: %v", err)
	}
	ip, err := Namei(root, root, p("/a/b/.."), cred)
	if err != 0 {
		t.Fatalf("namei with ..: %v", err)
	}
	want, _ := Namei(root, root, p("/a"), cred)
	if ip != want {
		t.Fatal("'..' did not resolve back to /a")
	}
}

func TestUnlinkRequiresEmptyDir(t *testing.T) {
	root, cred := freshRoot(t)
	Mkdir(root, root, p("/d"), 0755, cred)
	Open(root, root, p("/d/f"), defs.O_CREAT, 0644, cred)
	if err := Unlink(root, root, p("/d"), true, cred); err != -defs.ENOTEMPTY {
		t.Fatalf("unlink non-empty dir = %v, want ENOTEMPTY", err)
	}
	Unlink(root, root, p("/d/f"), false, cred)
	if err := Unlink(root, root, p("/d"), true, cred); err != 0 {
		t.Fatalf("unlink now-empty dir = %v", err)
	}
}

func TestPermissionDeniedForOtherUser(t *testing.T) {
	root, owner := freshRoot(t)
	Open(root, root, p("/secret"), defs.O_CREAT, 0600, owner)

	other := Cred_t{Uid: 99, Gid: 99}
	if _, err := Open(root, root, p("/secret"), defs.O_RDONLY, 0, other); err != -defs.EACCES {
		t.Fatalf("cross-uid open = %v, want EACCES", err)
	}
}

func TestStatReflectsWrites(t *testing.T) {
	root, cred := freshRoot(t)
	f, _ := Open(root, root, p("/f"), defs.O_CREAT|defs.O_RDWR, 0644, cred)
	f.Write(&fakeio{buf: []byte("1234567")})

	var st stat.Stat_t
	if err := Stat(root, root, p("/f"), &st, cred); err != 0 {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() != 7 {
		t.Fatalf("size = %d, want 7", st.Size())
	}
	if !st.IsReg() {
		t.Fatal("expected regular file mode bit")
	}
}

func TestReaddirLists(t *testing.T) {
	root, cred := freshRoot(t)
	Open(root, root, p("/a"), defs.O_CREAT, 0644, cred)
	Open(root, root, p("/b"), defs.O_CREAT, 0644, cred)

	f, err := Open(root, root, p("/"), defs.O_RDONLY, 0, cred)
	if err != 0 {
		t.Fatalf("open root: %v", err)
	}
	dst := &fakeio{buf: make([]byte, 512)}
	n, err := f.Read(dst)
	if err != 0 || n == 0 {
		t.Fatalf("readdir = (%d,%v)", n, err)
	}
}

func TestPipeReadBlocksThenUnblocksOnWrite(t *testing.T) {
	pipe, _ := MkPipe(mem.Phys_init(4))
	rd := pipe.openEnd(defs.O_RDONLY)
	wr := pipe.openEnd(defs.O_WRONLY)

	done := make(chan struct{})
	var got int
	var rerr defs.Err_t
	dst := &fakeio{buf: make([]byte, 16)}
	go func() {
		got, rerr = rd.Read(dst)
		close(done)
	}()

	n, err := wr.Write(&fakeio{buf: []byte("hi")})
	if err != 0 || n != 2 {
		t.Fatalf("write = (%d,%v)", n, err)
	}
	<-done
	if rerr != 0 || got != 2 || string(dst.buf[:got]) != "hi" {
		t.Fatalf("read = (%d,%q,%v)", got, dst.buf[:got], rerr)
	}
}

func TestPipeWriteReturnsEPIPEWithNoReaders(t *testing.T) {
	pipe, _ := MkPipe(mem.Phys_init(4))
	wr := pipe.openEnd(defs.O_WRONLY)
	if _, err := wr.Write(&fakeio{buf: []byte("x")}); err != -defs.EPIPE {
		t.Fatalf("write with no readers = %v, want EPIPE", err)
	}
}

func TestPipeReadReturnsZeroWhenDrainedAndNoWriters(t *testing.T) {
	pipe, _ := MkPipe(mem.Phys_init(4))
	rd := pipe.openEnd(defs.O_RDONLY)
	wr := pipe.openEnd(defs.O_WRONLY)
	wr.Close()

	dst := &fakeio{buf: make([]byte, 16)}
	n, err := rd.Read(dst)
	if err != 0 || n != 0 {
		t.Fatalf("read from drained, writer-less pipe = (%d,%v), want (0,0)", n, err)
	}
}

func TestMountCrossesAndDotDotReturns(t *testing.T) {
	root, cred := freshRoot(t)
	Mkdir(root, root, p("/mnt"), 0755, cred)
	mntIno, _ := Namei(root, root, p("/mnt"), cred)

	other := MkSuperblock(2, cred)
	if err := Mount(mntIno, other); err != 0 {
		t.Fatalf("mount: %v", err)
	}
	Mkdir(other.Root(), other.Root(), p("/sub"), 0755, cred)

	crossed, err := Namei(root, root, p("/mnt/sub"), cred)
	if err != 0 {
		t.Fatalf("namei crossing mount: %v", err)
	}
	if crossed.sb != other {
		t.Fatal("expected crossed inode to belong to the mounted superblock")
	}

	back, err := Namei(root, root, p("/mnt/.."), cred)
	if err != 0 || back != root {
		t.Fatalf("'..' from mount root = (%v,%v), want root", back, err)
	}
}

// fakeio adapts a plain []byte to fdops.Userio_i without going through
// vm.Fakeubuf_t; importing vm here would work, but this keeps the
// test self-contained, scoped to one package the way a small unit
// test usually stays.
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
