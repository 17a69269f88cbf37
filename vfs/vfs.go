package vfs

import (
	"protura/bpath"
	"protura/defs"
	"protura/fdops"
	"protura/stat"
	"protura/ustr"
)

// Open resolves path relative to root/cwd and returns an open
// Fdops_i, creating a regular file first if O_CREAT is set (spec.md
// §4.9 "Open"). mode is only consulted when a new inode is created.
func Open(root, cwd *Inode_t, path ustr.Ustr, flags int, mode uint, cred Cred_t) (fdops.Fdops_i, defs.Err_t) {
	child, err := Namei(root, cwd, path, cred)
	switch {
	case err == 0:
		if flags&defs.O_CREAT != 0 && flags&defs.O_EXCL != 0 {
			return nil, -defs.EEXIST
		}
	case err == -defs.ENOENT && flags&defs.O_CREAT != 0:
		dir, base := bpath.Dir(path), bpath.Base(path)
		parent, perr := Namei(root, cwd, dir, cred)
		if perr != 0 {
			return nil, perr
		}
		if err := parent.Perm(cred, permW); err != 0 {
			return nil, err
		}
		child, err = parent.createChild(base, ITYPE_REG, mode, cred)
		if err != 0 {
			return nil, err
		}
	default:
		return nil, err
	}

	var want uint
	switch flags & 0x3 {
	case defs.O_RDONLY:
		want = permR
	case defs.O_WRONLY:
		want = permW
	case defs.O_RDWR:
		want = permR | permW
	}
	if err := child.Perm(cred, want); err != 0 {
		return nil, err
	}

	child.mu.Lock()
	if flags&defs.O_TRUNC != 0 && child.typ == ITYPE_REG {
		child.data = nil
	}
	typ := child.typ
	child.mu.Unlock()

	if typ == ITYPE_FIFO {
		return child.pipe.openEnd(flags), 0
	}
	return &File_t{ino: child, flags: flags}, 0
}

// Mkdir creates an empty directory at path (spec.md §4.9's open
// description extends to mkdir/mknod the same way).
func Mkdir(root, cwd *Inode_t, path ustr.Ustr, mode uint, cred Cred_t) defs.Err_t {
	dir, base := bpath.Dir(path), bpath.Base(path)
	parent, err := Namei(root, cwd, dir, cred)
	if err != 0 {
		return err
	}
	if err := parent.Perm(cred, permW); err != 0 {
		return err
	}
	_, err = parent.createChild(base, ITYPE_DIR, mode, cred)
	return err
}

// Mkfifo creates a named pipe at path.
func Mkfifo(root, cwd *Inode_t, path ustr.Ustr, mode uint, cred Cred_t, pipe *Pipe_t) defs.Err_t {
	dir, base := bpath.Dir(path), bpath.Base(path)
	parent, err := Namei(root, cwd, dir, cred)
	if err != 0 {
		return err
	}
	if err := parent.Perm(cred, permW); err != 0 {
		return err
	}
	child, err := parent.createChild(base, ITYPE_FIFO, mode, cred)
	if err != 0 {
		return err
	}
	child.pipe = pipe
	return 0
}

// Unlink removes path, requiring it to be a directory iff wantDir.
func Unlink(root, cwd *Inode_t, path ustr.Ustr, wantDir bool, cred Cred_t) defs.Err_t {
	dir, base := bpath.Dir(path), bpath.Base(path)
	parent, err := Namei(root, cwd, dir, cred)
	if err != 0 {
		return err
	}
	if err := parent.Perm(cred, permW); err != 0 {
		return err
	}
	return parent.removeChild(base, wantDir)
}

// Rename moves the inode at oldp to newp, both resolved relative to
// the same root/cwd.
func Rename(root, cwd *Inode_t, oldp, newp ustr.Ustr, cred Cred_t) defs.Err_t {
	oldDir, oldBase := bpath.Dir(oldp), bpath.Base(oldp)
	newDir, newBase := bpath.Dir(newp), bpath.Base(newp)

	oldParent, err := Namei(root, cwd, oldDir, cred)
	if err != 0 {
		return err
	}
	newParent, err := Namei(root, cwd, newDir, cred)
	if err != 0 {
		return err
	}
	if err := oldParent.Perm(cred, permW); err != 0 {
		return err
	}
	if err := newParent.Perm(cred, permW); err != 0 {
		return err
	}

	oldParent.mu.Lock()
	child, ok := oldParent.children[string(oldBase)]
	if !ok {
		oldParent.mu.Unlock()
		return -defs.ENOENT
	}
	delete(oldParent.children, string(oldBase))
	for i, n := range oldParent.order {
		if n == string(oldBase) {
			oldParent.order = append(oldParent.order[:i], oldParent.order[i+1:]...)
			break
		}
	}
	oldParent.mu.Unlock()

	newParent.mu.Lock()
	if _, exists := newParent.children[string(newBase)]; exists {
		newParent.mu.Unlock()
		return -defs.EEXIST
	}
	child.parent = newParent
	newParent.children[string(newBase)] = child
	newParent.order = append(newParent.order, string(newBase))
	newParent.mu.Unlock()
	return 0
}

// Stat fills st from the inode resolved at path.
func Stat(root, cwd *Inode_t, path ustr.Ustr, st *stat.Stat_t, cred Cred_t) defs.Err_t {
	ip, err := Namei(root, cwd, path, cred)
	if err != 0 {
		return err
	}
	fillStat(ip, st)
	return 0
}

func fillStat(ip *Inode_t, st *stat.Stat_t) {
	ip.mu.Lock()
	defer ip.mu.Unlock()

	var ifmt uint
	switch ip.typ {
	case ITYPE_DIR:
		ifmt = stat.IFDIR
	case ITYPE_CHR:
		ifmt = stat.IFCHR
	case ITYPE_BLK:
		ifmt = stat.IFBLK
	case ITYPE_FIFO:
		ifmt = stat.IFIFO
	case ITYPE_LNK:
		ifmt = stat.IFLNK
	default:
		ifmt = stat.IFREG
	}

	st.Wdev(uint(ip.dev))
	st.Wino(uint(ip.ino))
	st.Wmode(ifmt | ip.mode)
	st.Wsize(uint(len(ip.data)))
	st.Wrdev(uint(ip.rdev))
	st.Wuid(ip.uid)
	st.Wblocks(uint(len(ip.data)+511) / 512)
}
