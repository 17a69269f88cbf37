// Package vfs implements C9: superblock/inode/file vtables, path
// resolution, permission checks, open, pipes, mounts, and dirent
// enumeration. Grounded on ufs.go's on-disk driver (the
// Fs_open/Fs_mkdir/Fs_unlink/Fs_rename/Fs_stat naming and the
// Dirdata_t/NDIRENTS dirent-record shape it references) and spec.md
// §4.9; no on-disk inode/superblock implementation was carried over,
// so the concrete storage here is a from-scratch in-memory inode tree
// rather than a block-backed one — see DESIGN.md for why.
package vfs

import (
	"sync"

	"protura/defs"
	"protura/fdops"
	"protura/ustr"
)

// Itype_t is an inode's type, independent of its permission bits.
type Itype_t int

const (
	ITYPE_REG Itype_t = iota
	ITYPE_DIR
	ITYPE_CHR
	ITYPE_BLK
	ITYPE_FIFO
	ITYPE_LNK
)

// Cred_t is the credential set a namei/permission check is performed
// against (spec.md §4.9 "Using the task's credentials").
type Cred_t struct {
	Uid, Gid uint
}

func (c Cred_t) isRoot() bool { return c.Uid == 0 }

// Permission bits tested by Perm, matching the low 3 bits of a POSIX
// mode triplet.
const (
	permX = 1
	permW = 2
	permR = 4
)

// Inode_t is an in-memory inode: a regular file's bytes, a directory's
// child map, a symlink's target, or a FIFO's pipe state, depending on
// Typ.
type Inode_t struct {
	mu sync.Mutex

	ino  defs.Ino_t
	dev  defs.Dev_t
	sb   *Superblock_t
	typ  Itype_t
	mode uint // permission bits only, no type bits
	uid  uint
	gid  uint
	nlink int

	parent *Inode_t // nil for an fs root

	data []byte // ITYPE_REG

	children map[string]*Inode_t // ITYPE_DIR
	order    []string            // stable dirent enumeration order

	target ustr.Ustr // ITYPE_LNK

	rdev int // ITYPE_CHR/ITYPE_BLK, a defs.D_* device id

	pipe *Pipe_t // ITYPE_FIFO

	mountedHere *Superblock_t // non-nil once another fs is mounted here
}

func (ip *Inode_t) Ino() defs.Ino_t  { return ip.ino }
func (ip *Inode_t) Devno() defs.Dev_t { return ip.dev }
func (ip *Inode_t) IsDir() bool      { return ip.typ == ITYPE_DIR }

var _ fdops.Inode_i = (*Inode_t)(nil)

// Perm tests want (an OR of permX/permW/permR) against cred (spec.md
// §4.9 "Permission check"). Root bypasses every check except X on a
// regular file with no execute bit set anywhere.
func (ip *Inode_t) Perm(cred Cred_t, want uint) defs.Err_t {
	ip.mu.Lock()
	typ, mode, uid, gid := ip.typ, ip.mode, ip.uid, ip.gid
	ip.mu.Unlock()

	if cred.isRoot() {
		if want&permX != 0 && typ == ITYPE_REG && mode&0111 == 0 {
			return -defs.EACCES
		}
		return 0
	}

	var bits uint
	switch {
	case cred.Uid == uid:
		bits = (mode >> 6) & 7
	case cred.Gid == gid:
		bits = (mode >> 3) & 7
	default:
		bits = mode & 7
	}
	if want&bits != want {
		return -defs.EACCES
	}
	return 0
}

// lookup finds name among a directory inode's children.
func (ip *Inode_t) lookup(name ustr.Ustr) (*Inode_t, defs.Err_t) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.typ != ITYPE_DIR {
		return nil, -defs.ENOTDIR
	}
	child, ok := ip.children[string(name)]
	if !ok {
		return nil, -defs.ENOENT
	}
	return child, 0
}

// createChild adds a new inode named name to directory ip.
func (ip *Inode_t) createChild(name ustr.Ustr, typ Itype_t, mode uint, cred Cred_t) (*Inode_t, defs.Err_t) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.typ != ITYPE_DIR {
		return nil, -defs.ENOTDIR
	}
	if _, ok := ip.children[string(name)]; ok {
		return nil, -defs.EEXIST
	}
	child := ip.sb.newInode(typ, mode, cred)
	child.parent = ip
	ip.children[string(name)] = child
	ip.order = append(ip.order, string(name))
	return child, 0
}

// removeChild unlinks name from directory ip, requiring it to be a
// directory iff wantDir is set.
func (ip *Inode_t) removeChild(name ustr.Ustr, wantDir bool) defs.Err_t {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.typ != ITYPE_DIR {
		return -defs.ENOTDIR
	}
	child, ok := ip.children[string(name)]
	if !ok {
		return -defs.ENOENT
	}
	if wantDir && child.typ != ITYPE_DIR {
		return -defs.ENOTDIR
	}
	if !wantDir && child.typ == ITYPE_DIR {
		return -defs.EISDIR
	}
	if child.typ == ITYPE_DIR {
		child.mu.Lock()
		empty := len(child.children) == 0
		child.mu.Unlock()
		if !empty {
			return -defs.ENOTEMPTY
		}
	}
	delete(ip.children, string(name))
	for i, n := range ip.order {
		if n == string(name) {
			ip.order = append(ip.order[:i], ip.order[i+1:]...)
			break
		}
	}
	return 0
}

// Dent_t is one directory entry as returned by Readdir (spec.md §4.9
// "struct dent { ino, dent_len, name_len, name[] }").
type Dent_t struct {
	Ino  defs.Ino_t
	Name string
}

// Readdir returns the directory's entries in creation order.
func (ip *Inode_t) Readdir() ([]Dent_t, defs.Err_t) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.typ != ITYPE_DIR {
		return nil, -defs.ENOTDIR
	}
	ents := make([]Dent_t, 0, len(ip.order))
	for _, n := range ip.order {
		ents = append(ents, Dent_t{Ino: ip.children[n].ino, Name: n})
	}
	return ents, 0
}
