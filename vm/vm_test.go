package vm

import (
	"testing"

	"protura/defs"
	"protura/mem"
)

func freshPhys(t *testing.T, npages int) *mem.Physmem_t {
	t.Helper()
	return mem.Phys_init(npages)
}

func TestFaultAnonThenReadWrite(t *testing.T) {
	phys := freshPhys(t, 16)
	as := MkVm(phys)
	as.AddRegion(&VmRegion_t{Start: 0x1000, End: 0x3000, Prot: PROT_READ | PROT_WRITE, Typ: MAP_ANON})

	ub := &Userbuf_t{}
	ub.Ub_init(as, 0x1000, 8)
	n, err := ub.Uiowrite([]byte("ABCDEFGH"))
	if err != 0 || n != 8 {
		t.Fatalf("Uiowrite = (%d,%v), want (8,0)", n, err)
	}

	ub2 := &Userbuf_t{}
	ub2.Ub_init(as, 0x1000, 8)
	dst := make([]byte, 8)
	n, err = ub2.Uioread(dst)
	if err != 0 || n != 8 || string(dst) != "ABCDEFGH" {
		t.Fatalf("Uioread = (%d,%q,%v), want (8,ABCDEFGH,0)", n, dst, err)
	}
}

func TestFaultUnmappedIsEFAULT(t *testing.T) {
	phys := freshPhys(t, 4)
	as := MkVm(phys)
	if err := as.Fault(0xdead0000); err != -defs.EFAULT {
		t.Fatalf("Fault on unmapped va = %v, want EFAULT", err)
	}
}

func TestWriteToReadOnlyFails(t *testing.T) {
	phys := freshPhys(t, 4)
	as := MkVm(phys)
	as.AddRegion(&VmRegion_t{Start: 0x1000, End: 0x2000, Prot: PROT_READ, Typ: MAP_ANON})
	ub := &Userbuf_t{}
	ub.Ub_init(as, 0x1000, 4)
	if _, err := ub.Uiowrite([]byte("xxxx")); err != -defs.EFAULT {
		t.Fatalf("write to read-only mapping = %v, want EFAULT", err)
	}
}

func TestBrkGrowAndShrink(t *testing.T) {
	phys := freshPhys(t, 64)
	as := MkVm(phys)

	b := as.Brk(0x10000, 0)
	if b != 0x10000 {
		t.Fatalf("initial brk = %#x, want 0x10000", b)
	}
	b = as.Brk(0x10000, 0x10000+5000)
	// the segment must cover the requested brk
	if as.brkRegion.End < b {
		t.Fatalf("brk segment end %#x does not cover brk %#x", as.brkRegion.End, b)
	}

	used, _ := phys.Pgcount()
	// shrink back to the original start
	as.Brk(0x10000, 0x10000)
	usedAfter, _ := phys.Pgcount()
	if usedAfter > used {
		t.Fatalf("shrinking brk should not increase used pages: before=%d after=%d", used, usedAfter)
	}
}

func TestFakeubufRoundtrip(t *testing.T) {
	buf := make([]byte, 4)
	fb := &Fakeubuf_t{}
	fb.Fake_init(buf)
	n, err := fb.Uiowrite([]byte{1, 2, 3, 4})
	if err != 0 || n != 4 {
		t.Fatalf("Uiowrite = (%d,%v)", n, err)
	}
	if buf[0] != 1 || buf[3] != 4 {
		t.Fatalf("buf = %v, want [1 2 3 4]", buf)
	}
}
