package procfs

import (
	"fmt"
	"sync"

	"golang.org/x/mod/semver"

	"protura/defs"
)

// Entry_i is one flat informational file under /proc (procfs.h's
// struct procfs_entry, trimmed to the one callback this port needs:
// render the current content on every read, rather than a persistent
// page cache).
type Entry_i interface {
	Name() string
	Read() ([]byte, defs.Err_t)
}

// Dir_t is a named collection of entries (procfs.h's struct
// procfs_dir); Root is the top-level /proc directory.
type Dir_t struct {
	mu      sync.Mutex
	entries map[string]Entry_i
}

var Root = &Dir_t{entries: make(map[string]Entry_i)}

// Register adds e under dir, replacing any prior entry of the same
// name (procfs_register_entry).
func (dir *Dir_t) Register(e Entry_i) {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	dir.entries[e.Name()] = e
}

// Lookup returns the entry named name, if any.
func (dir *Dir_t) Lookup(name string) (Entry_i, bool) {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	e, ok := dir.entries[name]
	return e, ok
}

// funcEntry adapts a plain render function to Entry_i, the shape most
// of the fixed informational files below need.
type funcEntry struct {
	name   string
	render func() ([]byte, defs.Err_t)
}

func (f funcEntry) Name() string                { return f.name }
func (f funcEntry) Read() ([]byte, defs.Err_t) { return f.render() }

// RegisterFunc is a convenience wrapper for the common case: an entry
// whose content is computed fresh on every read.
func (dir *Dir_t) RegisterFunc(name string, render func() ([]byte, defs.Err_t)) {
	dir.Register(funcEntry{name: name, render: render})
}

// KernelVersion is the string /proc/version reports; validated
// against the semver grammar before being served (SPEC_FULL.md §11:
// "validate and compare the kernel version string ... against the
// semver grammar").
var KernelVersion = "v0.1.0"

func init() {
	Root.RegisterFunc("version", versionEntry)
}

func versionEntry() ([]byte, defs.Err_t) {
	v := KernelVersion
	if !semver.IsValid(v) {
		return nil, -defs.EINVAL
	}
	return []byte(fmt.Sprintf("protura %s\n", semver.Canonical(v))), 0
}

// CompareVersions orders two kernel version strings using semver
// rules, for callers (e.g. a compatibility check in an installed
// module) that need to know which of two reported versions is newer.
func CompareVersions(a, b string) int {
	return semver.Compare(a, b)
}
