package vfs

import (
	"sync"

	"protura/defs"
)

// Superblock_t owns one inode tree: its own monotonic inode-number
// counter and device id, plus (if mounted somewhere other than the
// global root) the inode it is mounted on, used by namei to cross
// ".." back out (spec.md §4.9 "Mount").
type Superblock_t struct {
	mu      sync.Mutex
	dev     defs.Dev_t
	nextIno defs.Ino_t
	root    *Inode_t

	mountPoint *Inode_t // nil for the true filesystem root
}

// MkSuperblock creates a fresh, empty filesystem with inode 1 as its
// root directory, owned by cred.
func MkSuperblock(dev defs.Dev_t, cred Cred_t) *Superblock_t {
	sb := &Superblock_t{dev: dev, nextIno: 1}
	sb.root = sb.newInode(ITYPE_DIR, 0755, cred)
	return sb
}

func (sb *Superblock_t) Root() *Inode_t { return sb.root }

func (sb *Superblock_t) newInode(typ Itype_t, mode uint, cred Cred_t) *Inode_t {
	sb.mu.Lock()
	ino := sb.nextIno
	sb.nextIno++
	sb.mu.Unlock()

	ip := &Inode_t{
		ino:  ino,
		dev:  sb.dev,
		sb:   sb,
		typ:  typ,
		mode: mode,
		uid:  cred.Uid,
		gid:  cred.Gid,
	}
	if typ == ITYPE_DIR {
		ip.children = make(map[string]*Inode_t)
		ip.nlink = 2 // "." and the parent's entry
	} else {
		ip.nlink = 1
	}
	return ip
}

// Mount installs target as the filesystem visible through at (spec.md
// §4.9 "A mount table maps an inode to a superblock"). at must be a
// directory (else ENOTDIR) with nothing already mounted on it (else
// EBUSY); whether it is empty is not checked.
func Mount(at *Inode_t, target *Superblock_t) defs.Err_t {
	at.mu.Lock()
	defer at.mu.Unlock()
	if at.typ != ITYPE_DIR {
		return -defs.ENOTDIR
	}
	if at.mountedHere != nil {
		return -defs.EBUSY
	}
	at.mountedHere = target
	target.mountPoint = at
	return 0
}

// Unmount detaches whatever filesystem is mounted on at.
func Unmount(at *Inode_t) defs.Err_t {
	at.mu.Lock()
	defer at.mu.Unlock()
	if at.mountedHere == nil {
		return -defs.EINVAL
	}
	at.mountedHere.mountPoint = nil
	at.mountedHere = nil
	return 0
}
