package mem

import "testing"

func freshPhys(npages int) *Physmem_t {
	return Phys_init(npages)
}

func TestRefpgAllocFree(t *testing.T) {
	phys := freshPhys(16)
	pg, pa, ok := phys.Refpg_new()
	if !ok {
		t.Fatal("alloc failed")
	}
	if phys.Refcnt(pa) != 1 {
		t.Fatalf("refcnt = %d, want 1", phys.Refcnt(pa))
	}
	for _, b := range pg {
		if b != 0 {
			t.Fatal("page not zeroed")
		}
	}
	phys.Refup(pa)
	if phys.Refcnt(pa) != 2 {
		t.Fatal("refup didn't take")
	}
	if phys.Refdown(pa) {
		t.Fatal("should not be freed yet")
	}
	if !phys.Refdown(pa) {
		t.Fatal("should be freed now")
	}
}

func TestExhaustion(t *testing.T) {
	phys := freshPhys(2)
	_, _, ok1 := phys.Refpg_new()
	_, _, ok2 := phys.Refpg_new()
	_, _, ok3 := phys.Refpg_new()
	if !ok1 || !ok2 {
		t.Fatal("expected first two allocations to succeed")
	}
	if ok3 {
		t.Fatal("expected third allocation to fail")
	}
}

func TestBootAllocHandoff(t *testing.T) {
	regions := []MemRegion{{Base: 0x1000, Len: 0x3000}}
	ba := MkBootAlloc(regions)
	a := ba.Alloc(0x1000, 0x1000)
	if a != 0x1000 {
		t.Fatalf("first alloc = %#x", a)
	}
	rest := ba.Close()
	if len(rest) != 1 || rest[0].Base != 0x2000 {
		t.Fatalf("unexpected handoff remainder: %+v", rest)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on use-after-close")
		}
	}()
	ba.Alloc(1, 1)
}

func TestKmallocRoundtrip(t *testing.T) {
	freshPhys(64)
	Kheap_init(Physmem)
	b := Kheap.Kzalloc(100, KMALLOC_NORMAL)
	if b == nil || len(b) != 100 {
		t.Fatalf("kzalloc: got %v", b)
	}
	for _, v := range b {
		if v != 0 {
			t.Fatal("kzalloc didn't zero")
		}
	}
	copy(b, []byte("hello"))
	Kheap.Kfree(b)
	b2 := Kheap.Kmalloc(100, KMALLOC_NORMAL)
	if len(b2) != 100 {
		t.Fatalf("reuse: got len %d", len(b2))
	}
}
