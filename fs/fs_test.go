package fs

import (
	"testing"
	"time"
)

// memDisk is an in-memory Device_i backing store for tests.
type memDisk struct {
	sectors map[int][]byte
	writes  int
}

func newMemDisk() *memDisk { return &memDisk{sectors: make(map[int][]byte)} }

func (d *memDisk) Submit(req *Bdev_req_t) bool {
	switch req.Cmd {
	case BDEV_READ:
		if s, ok := d.sectors[req.Sector]; ok {
			copy(req.Data, s)
		}
	case BDEV_WRITE:
		buf := make([]byte, len(req.Data))
		copy(buf, req.Data)
		d.sectors[req.Sector] = buf
		d.writes++
	}
	close(req.AckCh)
	return true
}

func (d *memDisk) Stats() string { return "memdisk" }

func TestBreadFillsAndCaches(t *testing.T) {
	disk := newMemDisk()
	disk.sectors[5] = append([]byte{0xAA, 0xBB}, make([]byte, BSIZE-2)...)

	c := MkCache(8)
	c.RegisterDevice(1, disk)

	b := c.Bread(1, 5)
	if b.Data[0] != 0xAA || b.Data[1] != 0xBB {
		t.Fatalf("bread did not fill from disk: %v", b.Data[:2])
	}
	c.Brelease(b)

	b2 := c.Bread(1, 5)
	if b2 != b {
		t.Fatal("expected second bread to hit the cache and return the same buffer")
	}
	c.Brelease(b2)
}

func TestEvictionWritesBackDirty(t *testing.T) {
	disk := newMemDisk()
	c := MkCache(1)
	c.RegisterDevice(1, disk)

	b := c.Bread(1, 0)
	b.Data[0] = 0x42
	b.MarkDirty()
	c.Brelease(b)

	// second sector forces eviction of sector 0 from a 1-buffer cache
	b2 := c.Bread(1, 1)
	c.Brelease(b2)

	if disk.sectors[0] == nil || disk.sectors[0][0] != 0x42 {
		t.Fatal("expected dirty buffer written back on eviction")
	}
}

func TestSyncFlushesAllDirty(t *testing.T) {
	disk := newMemDisk()
	c := MkCache(8)
	c.RegisterDevice(1, disk)

	for _, sec := range []int{0, 1, 2} {
		b := c.Bread(1, sec)
		b.Data[0] = byte(sec + 1)
		b.MarkDirty()
		c.Brelease(b)
	}
	c.Sync()

	for _, sec := range []int{0, 1, 2} {
		if disk.sectors[sec] == nil || disk.sectors[sec][0] != byte(sec+1) {
			t.Fatalf("sector %d not flushed", sec)
		}
	}
}

func TestBdflushdSweepsOnSchedule(t *testing.T) {
	disk := newMemDisk()
	c := MkCache(8)
	c.RegisterDevice(1, disk)

	b := c.Bread(1, 0)
	b.Data[0] = 0x7
	b.MarkDirty()
	c.Brelease(b)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		Bdflushd(c, 5*time.Millisecond, stop)
		close(done)
	}()

	deadline := time.After(time.Second)
	for disk.sectors[0] == nil || disk.sectors[0][0] != 0x7 {
		select {
		case <-deadline:
			t.Fatal("bdflushd did not flush in time")
		case <-time.After(time.Millisecond):
		}
	}
	close(stop)
	<-done
}

func TestMBRPartitionDetection(t *testing.T) {
	disk := newMemDisk()
	mbr := make([]byte, BSIZE)
	mbr[510], mbr[511] = 0x55, 0xAA
	// one partition: type 0x83, LBA start 2048, length 1024 (all little-endian)
	off := 446
	mbr[off+4] = 0x83
	mbr[off+8], mbr[off+9], mbr[off+10], mbr[off+11] = 0x00, 0x08, 0x00, 0x00
	mbr[off+12], mbr[off+13], mbr[off+14], mbr[off+15] = 0x00, 0x04, 0x00, 0x00
	disk.sectors[0] = mbr

	c := MkCache(8)
	ids := c.RegisterDevice(1, disk)
	if len(ids) != 1 {
		t.Fatalf("expected 1 partition device, got %d", len(ids))
	}

	// writing sector 1 via the partition device must land at sector
	// 2048+1 on the underlying disk
	pdev := c.devices[ids[0]]
	req := &Bdev_req_t{Cmd: BDEV_WRITE, Sector: 1, Data: make([]byte, BSIZE), AckCh: make(chan bool)}
	req.Data[0] = 0x99
	pdev.Submit(req)

	if disk.sectors[2049] == nil || disk.sectors[2049][0] != 0x99 {
		t.Fatal("partition device did not translate sector offset correctly")
	}
}

func TestRescanRefusedWhilePartitionOpen(t *testing.T) {
	disk := newMemDisk()
	mbr := make([]byte, BSIZE)
	mbr[510], mbr[511] = 0x55, 0xAA
	off := 446
	mbr[off+4] = 0x83
	mbr[off+8] = 0x00
	mbr[off+12] = 0x10
	disk.sectors[0] = mbr

	c := MkCache(8)
	ids := c.RegisterDevice(1, disk)
	c.OpenPartition(ids[0])

	if _, err := c.RescanPartitions(1); err != ErrPartitionsOpen {
		t.Fatalf("RescanPartitions = %v, want ErrPartitionsOpen", err)
	}

	c.ClosePartition(ids[0])
	if _, err := c.RescanPartitions(1); err != nil {
		t.Fatalf("RescanPartitions after close = %v, want nil", err)
	}
}
