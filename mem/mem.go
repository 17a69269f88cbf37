// Package mem implements C1: the physical page allocator, the
// direct-mapped "physical memory" arena, and the kmalloc heap.
//
// Physical memory was originally hosted as an actual direct-mapped
// region of the machine's address space, filled in by a modified Go
// runtime (runtime.Get_phys, runtime.Cpuid, the VDIRECT page-table
// slot in mem/dmap.go). This port cannot touch the Go runtime, so
// physical memory is instead a single `[]byte` arena and a physical
// address is simply an offset into it (see SPEC_FULL.md §0).
// Refcounting and the kmalloc slab layer above the page allocator
// otherwise keep that same structure. Free pages sit on one list of
// single pages: there are no buddy orders, no multi-page allocations,
// and neighbouring free pages are never coalesced.
package mem

import (
	"fmt"
	"sync"
	"sync/atomic"

	"protura/util"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

/// Pa_t represents a physical address: an offset into Physmem's arena.
type Pa_t uintptr

/// Bytepg_t is a byte-addressed page.
type Bytepg_t [PGSIZE]uint8

/// Pg2bytes reinterprets a raw arena slice as a fixed-size page. Panics
/// if the slice is shorter than one page; a longer slice is cut to its
/// first PGSIZE bytes — callers always pass a page-aligned sub-slice
/// of Physmem.Arena.
func Pg2bytes(s []uint8) *Bytepg_t {
	if len(s) < PGSIZE {
		panic("short page")
	}
	return (*Bytepg_t)(s[:PGSIZE])
}

/// Page_i abstracts physical page allocation for every consumer
/// (circbuf, the block cache, vm) so none of them need to reach into
/// Physmem_t directly.
type Page_i interface {
	Refpg_new() ([]uint8, Pa_t, bool)
	Refpg_new_nozero() ([]uint8, Pa_t, bool)
	Refcnt(Pa_t) int
	Dmap(Pa_t) []uint8
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

type physpg_t struct {
	refcnt int32
	nexti  uint32 // index of next page on the free list, ^uint32(0) if none
}

/// Physmem_t manages all "physical" memory for the system: a flat byte
/// arena plus one descriptor per page tracking its refcount and free-
/// list linkage (spec.md §3 "Physical page").
type Physmem_t struct {
	Arena []byte
	pgs   []physpg_t
	freei uint32
	nfree int32
	sync.Mutex
	inited bool
}

const noFree = ^uint32(0)

/// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

/// Phys_init reserves an arena of npages 4KiB frames and threads them
/// onto the free list. This stands in for a runtime.Get_phys()-style
/// multiboot walk (see SPEC_FULL.md §0).
func Phys_init(npages int) *Physmem_t {
	phys := Physmem
	phys.Arena = make([]byte, npages*PGSIZE)
	phys.pgs = make([]physpg_t, npages)
	for i := range phys.pgs {
		phys.pgs[i] = physpg_t{refcnt: 0, nexti: uint32(i + 1)}
	}
	phys.pgs[npages-1].nexti = noFree
	phys.freei = 0
	phys.nfree = int32(npages)
	phys.inited = true
	fmt.Printf("mem: reserved %d pages (%dKB)\n", npages, npages*PGSIZE/1024)
	return phys
}

func (phys *Physmem_t) pgslice(idx uint32) []uint8 {
	off := int(idx) * PGSIZE
	return phys.Arena[off : off+PGSIZE]
}

/// Refcnt returns the current reference count of the page at pa.
func (phys *Physmem_t) Refcnt(pa Pa_t) int {
	idx := uint32(pa) >> PGSHIFT
	return int(atomic.LoadInt32(&phys.pgs[idx].refcnt))
}

/// Refup increments the reference count of the page at pa.
func (phys *Physmem_t) Refup(pa Pa_t) {
	idx := uint32(pa) >> PGSHIFT
	c := atomic.AddInt32(&phys.pgs[idx].refcnt, 1)
	if c <= 0 {
		panic("refup on freed page")
	}
}

/// Refdown decrements the reference count of pa, returning the page
/// to the free list and reporting true when it reaches zero.
func (phys *Physmem_t) Refdown(pa Pa_t) bool {
	idx := uint32(pa) >> PGSHIFT
	c := atomic.AddInt32(&phys.pgs[idx].refcnt, -1)
	if c < 0 {
		panic("negative refcount")
	}
	if c != 0 {
		return false
	}
	phys.Lock()
	phys.pgs[idx].nexti = phys.freei
	phys.freei = idx
	phys.nfree++
	phys.Unlock()
	return true
}

func (phys *Physmem_t) alloc() (uint32, bool) {
	phys.Lock()
	defer phys.Unlock()
	if phys.freei == noFree {
		return 0, false
	}
	idx := phys.freei
	phys.freei = phys.pgs[idx].nexti
	phys.nfree--
	phys.pgs[idx].refcnt = 1
	return idx, true
}

/// Refpg_new allocates a zeroed page. The returned slice's refcount
/// starts at 1 (rather than 0, left for the caller to Refup — this
/// port folds that first Refup into the allocation since every
/// caller did it immediately anyway).
func (phys *Physmem_t) Refpg_new() ([]uint8, Pa_t, bool) {
	s, pa, ok := phys.Refpg_new_nozero()
	if !ok {
		return nil, 0, false
	}
	for i := range s {
		s[i] = 0
	}
	return s, pa, true
}

/// Refpg_new_nozero allocates an uninitialized page.
func (phys *Physmem_t) Refpg_new_nozero() ([]uint8, Pa_t, bool) {
	if !phys.inited {
		panic("phys not initialized")
	}
	idx, ok := phys.alloc()
	if !ok {
		return nil, 0, false
	}
	pa := Pa_t(idx) << Pa_t(PGSHIFT)
	return phys.pgslice(idx), pa, true
}

/// Dmap returns the byte slice backing the page containing pa,
/// rounded down to the page boundary — the direct-map analogue of the
/// teacher's Dmap, minus the virtual-address indirection.
func (phys *Physmem_t) Dmap(pa Pa_t) []uint8 {
	idx := uint32(pa) >> PGSHIFT
	return phys.pgslice(idx)
}

/// Dmap8 returns a byte slice starting exactly at pa (not rounded).
func (phys *Physmem_t) Dmap8(pa Pa_t) []uint8 {
	pg := phys.Dmap(pa)
	off := int(pa & PGOFFSET)
	return pg[off:]
}

/// Pgcount reports (used, free) page counts.
func (phys *Physmem_t) Pgcount() (used, free int) {
	phys.Lock()
	defer phys.Unlock()
	free = int(phys.nfree)
	return len(phys.pgs) - free, free
}

/// Pa2addr and Addr2pa convert between Pa_t and a plain uintptr;
/// kept as named conversions (rather than bare casts at call sites)
/// because every caller that crosses the mem/vm boundary needs the
/// same rounding rule applied via util.Rounddown.
func Pa2addr(pa Pa_t) uintptr { return uintptr(pa) }
func Addr2pa(a uintptr) Pa_t  { return Pa_t(util.Rounddown(a, uintptr(PGSIZE))) }
