// Command mkfs builds a raw disk image carrying one MBR-partitioned
// data region, the on-disk layout fs.Cache_t's partition scanner
// understands (fs/partition.go's parseMBR). The original mkfs
// additionally populated a full on-disk inode tree from a host
// skeleton directory — this port's filesystem (vfs.Superblock_t) is
// in-memory only, so there is no on-disk inode format left to
// populate; mkfs's job shrinks to laying out the partition table a
// freshly attached disk device needs.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
)

const sectorSize = 512

func usage(me string) {
	fmt.Printf("%s <output image> <size in sectors>\n\nCreate a disk image with a single MBR partition spanning the whole device.\n", me)
	os.Exit(1)
}

func main() {
	if len(os.Args) != 3 {
		usage(os.Args[0])
	}
	path := os.Args[1]
	sectors, err := strconv.ParseUint(os.Args[2], 0, 32)
	if err != nil || sectors == 0 {
		fmt.Printf("bad sector count %q\n", os.Args[2])
		os.Exit(1)
	}

	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	if err := f.Truncate(int64(sectors) * sectorSize); err != nil {
		panic(err)
	}

	mbr := make([]byte, sectorSize)
	writePartitionEntry(mbr, 0, partEntry{
		Bootable: 0x80,
		Type:     0x83, // Linux-style native filesystem partition
		LBAStart: 1,
		LBALen:   uint32(sectors) - 1,
	})
	mbr[510], mbr[511] = 0x55, 0xAA

	if _, err := f.WriteAt(mbr, 0); err != nil {
		panic(err)
	}
	fmt.Printf("wrote %s: %d sectors, 1 partition starting at LBA 1\n", path, sectors)
}

// partEntry mirrors fs/partition.go's parseMBR's expected on-disk
// shape (bootable flag, type byte, LBA start, LBA length).
type partEntry struct {
	Bootable byte
	Type     byte
	LBAStart uint32
	LBALen   uint32
}

func writePartitionEntry(mbr []byte, idx int, e partEntry) {
	off := 446 + idx*16
	mbr[off] = e.Bootable
	mbr[off+4] = e.Type
	binary.LittleEndian.PutUint32(mbr[off+8:off+12], e.LBAStart)
	binary.LittleEndian.PutUint32(mbr[off+12:off+16], e.LBALen)
}
