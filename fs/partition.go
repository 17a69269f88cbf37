package fs

import (
	"encoding/binary"
	"errors"
)

// ErrPartitionsOpen is returned by RescanPartitions when a prior
// partition device for the same disk is still open (spec.md §4.8
// "Repartitioning is refused while any partition device is open").
var ErrPartitionsOpen = errors.New("fs: repartition refused, a partition device is open")

// partEntry is one parsed MBR partition table entry.
type partEntry struct {
	Bootable byte
	Type     byte
	LBAStart uint32
	LBALen   uint32
}

// parseMBR reads the four partition entries out of a raw sector-0
// buffer, returning nil if the 0x55AA boot signature is absent. An
// entry whose type byte is 0 (unused slot) is skipped.
func parseMBR(buf []byte) []partEntry {
	if len(buf) < 512 || buf[510] != 0x55 || buf[511] != 0xAA {
		return nil
	}
	var entries []partEntry
	for i := 0; i < 4; i++ {
		off := 446 + i*16
		typ := buf[off+4]
		if typ == 0 {
			continue
		}
		entries = append(entries, partEntry{
			Bootable: buf[off],
			Type:     typ,
			LBAStart: binary.LittleEndian.Uint32(buf[off+8 : off+12]),
			LBALen:   binary.LittleEndian.Uint32(buf[off+12 : off+16]),
		})
	}
	return entries
}

// partitionDevice translates sector numbers by adding the partition's
// first-sector offset before forwarding to the backing disk device
// (spec.md §4.8 "Partitions").
type partitionDevice struct {
	base        Device_i
	startSector int
}

func (p *partitionDevice) Submit(req *Bdev_req_t) bool {
	shifted := &Bdev_req_t{Cmd: req.Cmd, Sector: req.Sector + p.startSector, Data: req.Data, AckCh: req.AckCh}
	return p.base.Submit(shifted)
}

func (p *partitionDevice) Stats() string { return p.base.Stats() }

// scanPartitions reads sector 0 of dev directly (bypassing the cache,
// since no (device, sector) entry exists for it yet) and, if an MBR
// is present, registers up to four partition devices under synthetic
// ids baseID*16+1..baseID*16+4. Returns the ids created, in table
// order.
func (c *Cache_t) scanPartitions(baseID int, dev Device_i) []int {
	buf := make([]byte, BSIZE)
	req := &Bdev_req_t{Cmd: BDEV_READ, Sector: 0, Data: buf, AckCh: make(chan bool)}
	if dev.Submit(req) {
		<-req.AckCh
	}

	entries := parseMBR(buf)
	if entries == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []int
	for i, e := range entries {
		id := baseID*16 + i + 1
		c.devices[id] = &partitionDevice{base: dev, startSector: int(e.LBAStart)}
		ids = append(ids, id)
	}
	return ids
}

// OpenPartition/ClosePartition track how many callers currently have a
// given partition device open, enforcing the repartition-refusal rule
// above. Disk block devices that are never partitioned need not call
// these.
func (c *Cache_t) OpenPartition(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partOpen == nil {
		c.partOpen = make(map[int]int)
	}
	c.partOpen[id]++
}

func (c *Cache_t) ClosePartition(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partOpen[id] > 0 {
		c.partOpen[id]--
	}
}

// RescanPartitions re-reads sector 0 of baseID's underlying disk
// device and replaces its partition table, refusing if any partition
// device from a previous scan is still open.
func (c *Cache_t) RescanPartitions(baseID int) ([]int, error) {
	c.mu.Lock()
	for id, n := range c.partOpen {
		if id/16 == baseID && n > 0 {
			c.mu.Unlock()
			return nil, ErrPartitionsOpen
		}
	}
	dev := c.devices[baseID]
	c.mu.Unlock()

	return c.scanPartitions(baseID, dev), nil
}
