package mem

import "protura/util"

// MemRegion describes one usable physical range discovered at boot,
// standing in for the multiboot memory map a runtime.Get_phys()-style
// walk would discover page by page.
type MemRegion struct {
	Base Pa_t
	Len  uintptr
}

// BootAlloc_t is the very first allocator: a bump pointer over a list
// of usable regions, closed permanently once the page allocator takes
// over (spec.md §4.1 "Contract").
type BootAlloc_t struct {
	regions []MemRegion
	ri      int
	cursor  Pa_t
	closed  bool
}

// MkBootAlloc constructs a boot allocator over the given regions, in
// the order they should be consumed.
func MkBootAlloc(regions []MemRegion) *BootAlloc_t {
	b := &BootAlloc_t{regions: regions}
	if len(regions) > 0 {
		b.cursor = regions[0].Base
	}
	return b
}

// Alloc returns a physical address of a length-byte, alignment-byte
// aligned block, panicking if none of the remaining regions can
// satisfy it. Once Close is called every subsequent Alloc panics —
// calls into the boot allocator after handoff are a fatal bug.
func (b *BootAlloc_t) Alloc(length int, alignment int) Pa_t {
	pa, ok := b.AllocNopanic(length, alignment)
	if !ok {
		panic("boot allocator exhausted")
	}
	return pa
}

// AllocNopanic is Alloc without the exhaustion panic: it returns
// ok=false when no remaining region fits. It still panics once Close
// has been called.
func (b *BootAlloc_t) AllocNopanic(length int, alignment int) (Pa_t, bool) {
	if b.closed {
		panic("boot allocator used after handoff")
	}
	for b.ri < len(b.regions) {
		r := b.regions[b.ri]
		start := Pa_t(util.Roundup(uintptr(b.cursor), uintptr(alignment)))
		end := r.Base + Pa_t(r.Len)
		if start+Pa_t(length) <= end {
			b.cursor = start + Pa_t(length)
			return start, true
		}
		b.ri++
		if b.ri < len(b.regions) {
			b.cursor = b.regions[b.ri].Base
		}
	}
	return 0, false
}

// Close hands whatever regions remain over to the page allocator and
// permanently disables further boot allocations.
func (b *BootAlloc_t) Close() []MemRegion {
	remaining := []MemRegion{}
	if b.ri < len(b.regions) {
		r := b.regions[b.ri]
		if b.cursor < r.Base+Pa_t(r.Len) {
			remaining = append(remaining, MemRegion{
				Base: b.cursor,
				Len:  uintptr(r.Base+Pa_t(r.Len)) - uintptr(b.cursor),
			})
		}
		remaining = append(remaining, b.regions[b.ri+1:]...)
	}
	b.closed = true
	return remaining
}
