package mem

import "sync"

// kmalloc flags: atomic allocations must not block (interrupt context).
const (
	KMALLOC_NORMAL = 0
	KMALLOC_ATOMIC = 1
)

// slabSizes are the power-of-two and hand-tuned bucket sizes the
// teacher's kmalloc uses; small kernel objects (task_t, vm_map_t,
// fd_t) cluster well below one page.
var slabSizes = []int{16, 32, 64, 128, 256, 512, 1024, 2048, PGSIZE}

type slab_t struct {
	sync.Mutex
	objsz int
	free  [][]byte
}

// OOMCallback_f is invoked when a slab allocation under normal flags
// fails; it should drop clean page-cache entries and return true if
// it freed anything, so the allocator can retry once.
type OOMCallback_f func() bool

// Kheap_t is the kmalloc heap: one slab per bucket size plus a
// fallback to whole pages straight from Physmem for big allocations.
type Kheap_t struct {
	slabs []*slab_t
	phys  Page_i
	oom   OOMCallback_f
}

var Kheap = &Kheap_t{}

// Kheap_init wires the heap to a page source; called once at boot
// after Phys_init.
func Kheap_init(phys Page_i) {
	Kheap.phys = phys
	Kheap.slabs = make([]*slab_t, len(slabSizes))
	for i, sz := range slabSizes {
		Kheap.slabs[i] = &slab_t{objsz: sz}
	}
}

// RegisterOOM installs the callback invoked when kmalloc(NORMAL) would
// otherwise fail.
func RegisterOOM(cb OOMCallback_f) { Kheap.oom = cb }

func bucketFor(size int) int {
	for i, sz := range slabSizes {
		if size <= sz {
			return i
		}
	}
	panic("kmalloc: size too large")
}

// Kmalloc returns a byte slice of length size whose capacity is the
// bucket size it was carved from, or nil if flags is KMALLOC_NORMAL and allocation genuinely
// fails even after invoking the OOM callback (KMALLOC_ATOMIC never
// invokes it, matching "must not block").
func (h *Kheap_t) Kmalloc(size int, flags int) []byte {
	if size <= 0 {
		panic("kmalloc: bad size")
	}
	bi := bucketFor(size)
	s := h.slabs[bi]

	s.Lock()
	if n := len(s.free); n > 0 {
		b := s.free[n-1]
		s.free = s.free[:n-1]
		s.Unlock()
		return b[:size]
	}
	s.Unlock()

	pg, _, ok := h.phys.Refpg_new_nozero()
	if !ok {
		if flags == KMALLOC_ATOMIC || h.oom == nil || !h.oom() {
			return nil
		}
		pg, _, ok = h.phys.Refpg_new_nozero()
		if !ok {
			return nil
		}
	}
	objsz := slabSizes[bi]
	n := PGSIZE / objsz
	s.Lock()
	for i := 1; i < n; i++ {
		s.free = append(s.free, pg[i*objsz:(i+1)*objsz:(i+1)*objsz])
	}
	s.Unlock()
	return pg[0:objsz:objsz][:size]
}

// Kzalloc is Kmalloc with the result zeroed.
func (h *Kheap_t) Kzalloc(size int, flags int) []byte {
	b := h.Kmalloc(size, flags)
	if b == nil {
		return nil
	}
	full := b[:cap(b)]
	for i := range full {
		full[i] = 0
	}
	return b
}

// Kfree returns b to the slab matching its capacity.
func (h *Kheap_t) Kfree(b []byte) {
	bi := bucketFor(cap(b))
	s := h.slabs[bi]
	s.Lock()
	s.free = append(s.free, b[:cap(b)])
	s.Unlock()
}

// Ksize returns the bucket size a request for n bytes would round up to.
func Ksize(n int) int {
	return slabSizes[bucketFor(n)]
}
