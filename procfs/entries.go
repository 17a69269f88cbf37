package procfs

import (
	"strings"
	"sync"

	"protura/defs"
	"protura/klog"
)

// KlogRing is the ring /proc/klog streams from, bound at boot via
// RegisterKlogRing once klog's RingOutput has been created (spec.md
// §4.12 special-files list: "/proc/klog exposing the in-memory log
// ring as a readable+pollable stream").
var KlogRing *klog.RingOutput

// RegisterKlogRing installs ring as both klog's ring output and the
// backing store for /proc/klog.
func RegisterKlogRing(ring *klog.RingOutput) {
	KlogRing = ring
	klog.RegisterOutput(ring)
	Root.RegisterFunc("klog", klogEntry)
}

func klogEntry() ([]byte, defs.Err_t) {
	if KlogRing == nil {
		return nil, 0
	}
	return []byte(strings.Join(KlogRing.Lines(), "")), 0
}

// Mount describes one entry procfs's /proc/mounts file reports.
type Mount struct {
	Device, MountPoint, FsType string
}

var (
	mountsMu sync.Mutex
	mounts   []Mount
)

// RegisterMount records one mounted filesystem for /proc/mounts.
func RegisterMount(m Mount) {
	mountsMu.Lock()
	defer mountsMu.Unlock()
	mounts = append(mounts, m)
	// keep the entry registered even if this is the first mount
	Root.RegisterFunc("mounts", mountsEntry)
}

func mountsEntry() ([]byte, defs.Err_t) {
	mountsMu.Lock()
	defer mountsMu.Unlock()
	var sb strings.Builder
	for _, m := range mounts {
		sb.WriteString(m.Device + " " + m.MountPoint + " " + m.FsType + "\n")
	}
	return []byte(sb.String()), 0
}
