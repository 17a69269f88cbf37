// Package fs implements C8: the block cache. A hash table keyed by
// (device, sector) maps to shared buffers; an LRU list tracks
// currently unreferenced ones for reclaim. Grounded on fs/blk.go's
// Bdev_block_t/Bdev_req_t/Disk_i shape (kept under renamed
// Buf_t/Device_i types since this port has no on-disk log/superblock
// layer above the cache itself) and fs/super.go's field-accessor
// idiom, reused here for the MBR partition table in partition.go.
package fs

import (
	"container/list"
	"sync"
	"time"

	"protura/hashtable"
	"protura/limits"
)

// BSIZE is the size of a cached block in bytes, matching the
// teacher's fs/blk.go.
const BSIZE = 4096

type Bdevcmd_t uint

const (
	BDEV_READ Bdevcmd_t = iota
	BDEV_WRITE
)

// Bdev_req_t is a single synchronous or async disk request, submitted
// to a Device_i and acknowledged over AckCh.
type Bdev_req_t struct {
	Cmd    Bdevcmd_t
	Sector int
	Data   []byte
	AckCh  chan bool
}

// Device_i is the contract external drivers implement (spec.md §4.8
// "Device submission contract"): read into Data (and set it valid) or
// write from Data, synchronously or via an interrupt-completion path
// that eventually sends on AckCh.
type Device_i interface {
	Submit(req *Bdev_req_t) bool
	Stats() string
}

// Buf_t is one cached block buffer. The mutex embedded here must be
// held to read or modify Data; Bread returns a buffer already locked,
// and the caller releases with Brelease.
type Buf_t struct {
	mu     sync.Mutex
	Dev    int
	Sector int
	Data   [BSIZE]byte
	valid  bool
	dirty  bool
	refcnt int
	disk   Device_i
}

func (b *Buf_t) Lock()   { b.mu.Lock() }
func (b *Buf_t) Unlock() { b.mu.Unlock() }

// MarkDirty records that Data has been modified in memory and must be
// written back before the buffer can be reclaimed.
func (b *Buf_t) MarkDirty() { b.dirty = true }

func (b *Buf_t) fill() {
	req := &Bdev_req_t{Cmd: BDEV_READ, Sector: b.Sector, Data: b.Data[:], AckCh: make(chan bool)}
	if b.disk.Submit(req) {
		<-req.AckCh
	}
	b.valid = true
}

func (b *Buf_t) writeback() {
	if !b.dirty {
		return
	}
	req := &Bdev_req_t{Cmd: BDEV_WRITE, Sector: b.Sector, Data: b.Data[:], AckCh: make(chan bool)}
	if b.disk.Submit(req) {
		<-req.AckCh
	}
	b.dirty = false
}

// Cache_t is the block cache: one (device, sector) hash table plus an
// LRU list of currently-unreferenced buffers available for reclaim.
type Cache_t struct {
	mu      sync.Mutex
	ht      *hashtable.Hashtable_t
	lru     *list.List
	elems   map[*Buf_t]*list.Element
	devices map[int]Device_i
	maxBufs int
	partOpen map[int]int
}

func MkCache(maxBufs int) *Cache_t {
	return &Cache_t{
		ht:      hashtable.MkHash(64),
		lru:     list.New(),
		elems:   make(map[*Buf_t]*list.Element),
		devices: make(map[int]Device_i),
		maxBufs: maxBufs,
	}
}

// RegisterDevice installs dev under id. If dev's sector 0 carries an
// MBR signature, up to four partition devices are also registered
// under synthetic ids returned in the second value (spec.md §4.8
// "Partitions").
func (c *Cache_t) RegisterDevice(id int, dev Device_i) []int {
	c.mu.Lock()
	c.devices[id] = dev
	c.mu.Unlock()

	return c.scanPartitions(id, dev)
}

func (c *Cache_t) devFor(dev int) Device_i {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices[dev]
}

// Bread acquires or creates the buffer for (dev, sector), marks it
// referenced, locks it, reads it in if not yet valid, and returns it
// locked (spec.md §4.8 "bread").
func (c *Cache_t) Bread(dev, sector int) *Buf_t {
	key := hashtable.DevSector{Dev: dev, Sector: sector}

	c.mu.Lock()
	var b *Buf_t
	if v, ok := c.ht.Get(key); ok {
		b = v.(*Buf_t)
		if e, ok := c.elems[b]; ok {
			c.lru.Remove(e)
			delete(c.elems, b)
		}
	} else {
		if !limits.Syslimit.Blocks.Taken(1) {
			limits.Lhits++
			c.evictIfNeeded()
			limits.Syslimit.Blocks.Taken(1) // best effort; Bread has no error path to refuse on
		}
		b = &Buf_t{Dev: dev, Sector: sector, disk: c.devices[dev]}
		c.ht.Set(key, b)
	}
	b.refcnt++
	c.evictIfNeeded()
	c.mu.Unlock()

	b.Lock()
	if !b.valid {
		b.fill()
	}
	return b
}

// Brelease unlocks b and, if no other caller holds a reference,
// returns it to the LRU list for future reclaim.
func (c *Cache_t) Brelease(b *Buf_t) {
	b.Unlock()
	c.mu.Lock()
	b.refcnt--
	if b.refcnt == 0 {
		c.elems[b] = c.lru.PushFront(b)
	}
	c.mu.Unlock()
}

// evictIfNeeded reclaims LRU-tail buffers (writing back if dirty)
// until the cache is back at or under its configured size. Caller
// must hold c.mu.
func (c *Cache_t) evictIfNeeded() {
	for c.ht.Size() > c.maxBufs && c.lru.Len() > 0 {
		e := c.lru.Back()
		b := e.Value.(*Buf_t)
		c.lru.Remove(e)
		delete(c.elems, b)
		c.ht.Del(hashtable.DevSector{Dev: b.Dev, Sector: b.Sector})
		limits.Syslimit.Blocks.Given(1)

		b.Lock()
		b.writeback()
		b.Unlock()
	}
}

// Sync walks every cached buffer and writes back the dirty ones,
// waiting for each to complete before returning (spec.md §4.8
// "sync() forces an immediate flush and waits for completion").
func (c *Cache_t) Sync() {
	for _, p := range c.ht.Elems() {
		b := p.Value.(*Buf_t)
		b.Lock()
		b.writeback()
		b.Unlock()
	}
}

// Bdflushd runs until stop is closed, sweeping dirty buffers every
// delay (spec.md §4.8 "a kernel task that sleeps CONFIG_BDFLUSH_DELAY
// seconds between sweeps"). Intended to be run in its own goroutine.
func Bdflushd(c *Cache_t, delay time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(delay)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.Sync()
		}
	}
}
