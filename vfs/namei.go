package vfs

import (
	"protura/bpath"
	"protura/defs"
	"protura/ustr"
)

// maxSymlinkHops bounds recursive symlink resolution; spec.md §4.9
// says to panic at or above this many hops within one namei call.
const maxSymlinkHops = 8

// Namei walks path component by component starting from root if path
// is absolute, cwd otherwise, checking directory+execute permission at
// each step, following symlinks, and crossing mount points (spec.md
// §4.9 "namei").
func Namei(root, cwd *Inode_t, path ustr.Ustr, cred Cred_t) (*Inode_t, defs.Err_t) {
	hops := 0
	return namei(root, cwd, path, cred, &hops)
}

func namei(root, cwd *Inode_t, path ustr.Ustr, cred Cred_t, hops *int) (*Inode_t, defs.Err_t) {
	cur := cwd
	if path.IsAbsolute() {
		cur = root
	}

	for _, comp := range bpath.Split(path) {
		if !cur.IsDir() {
			return nil, -defs.ENOTDIR
		}
		if err := cur.Perm(cred, permX); err != 0 {
			return nil, err
		}

		var next *Inode_t
		switch {
		case comp.Isdot():
			next = cur
		case comp.Isdotdot():
			if cur.sb.mountPoint != nil && cur == cur.sb.root {
				next = cur.sb.mountPoint
			} else if cur.parent != nil {
				next = cur.parent
			} else {
				next = cur
			}
		default:
			child, err := cur.lookup(comp)
			if err != 0 {
				return nil, err
			}
			next = child
		}

		for next.typ == ITYPE_LNK {
			*hops++
			if *hops >= maxSymlinkHops {
				panic("vfs: too many symlink hops resolving a path")
			}
			target, err := namei(root, cur, next.target, cred, hops)
			if err != 0 {
				return nil, err
			}
			next = target
		}

		if next.mountedHere != nil {
			next = next.mountedHere.root
		}
		cur = next
	}
	return cur, 0
}
