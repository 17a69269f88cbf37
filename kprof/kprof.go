// Package kprof implements C12's diagnostics/accounting surface
// (`/dev/prof`, `/proc/task_api`'s TASKIO_MEM_INFO companion data): a
// pprof-compatible profile.Profile snapshot of per-task CPU accounting
// (accnt.Accnt_t) and the physical page allocator's free/used counts,
// so the in-process state can be inspected with any pprof-compatible
// viewer (SPEC_FULL.md §11's explicit mapping).
//
// The teacher has no standalone profiling package (its accounting
// lived inline in accnt and mem), so this package's job is purely the
// serialization step: take numbers those packages already track and
// lay them out as profile.Sample entries, one per task, with two
// value columns (user time, system time) plus a synthetic
// "page_allocator" sample carrying free/used page counts as a
// separate sample type.
package kprof

import (
	"bytes"
	"io"

	"github.com/google/pprof/profile"

	"protura/accnt"
	"protura/defs"
	"protura/fdops"
)

// TaskSample is one task's accounting snapshot, labeled by name for
// the profile viewer's call-tree display.
type TaskSample struct {
	Name string
	Acct *accnt.Accnt_t
}

// Build assembles a profile.Profile from a set of task samples plus
// the allocator's current page counts. Each task becomes one Sample
// under a synthetic Location named after it; the allocator's free/used
// counts become a second sample type on a dedicated "page_allocator"
// location so a pprof viewer can report both in one profile.
func Build(tasks []TaskSample, pgcount func() (used, free int)) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user_ns", Unit: "nanoseconds"},
			{Type: "sys_ns", Unit: "nanoseconds"},
		},
		DefaultSampleType: "user_ns",
	}

	var nextID uint64
	newID := func() uint64 {
		nextID++
		return nextID
	}

	addSample := func(name string, values ...int64) {
		fn := &profile.Function{ID: newID(), Name: name}
		loc := &profile.Location{ID: newID(), Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    values,
		})
	}

	for _, ts := range tasks {
		ts.Acct.Lock()
		u, s := ts.Acct.Userns, ts.Acct.Sysns
		ts.Acct.Unlock()
		addSample(ts.Name, u, s)
	}

	if pgcount != nil {
		used, free := pgcount()
		p.SampleType = append(p.SampleType, &profile.ValueType{Type: "pages_used", Unit: "count"}, &profile.ValueType{Type: "pages_free", Unit: "count"})
		// Every sample must carry a value for every declared sample
		// type, so pad the task samples' missing columns with zero and
		// give the allocator sample zeros for the time columns.
		for _, s := range p.Sample {
			s.Value = append(s.Value, 0, 0)
		}
		addSample("page_allocator", 0, 0, int64(used), int64(free))
	}

	return p
}

// Write serializes p in pprof's gzipped protobuf wire format.
func Write(w io.Writer, p *profile.Profile) error {
	return p.Write(w)
}

// Snapshot returns the current task accounting records and a page
// counter callback, recomputed fresh on every call so each /dev/prof
// read reflects live state rather than a cached dump.
type Snapshot func() (tasks []TaskSample, pgcount func() (used, free int))

// ProfFile_t is the D_PROF device's fdops implementation: every Read
// rebuilds the profile from the current Snapshot and returns it
// serialized, so a pprof-compatible viewer polling /dev/prof always
// sees live data rather than a cached dump. Only Read and Close carry
// meaning for this device; every other fdops method is stubbed out
// the way vfs.Pipe_t's pipeEnd stubs socket/mmap operations it does
// not support.
type ProfFile_t struct {
	collect Snapshot
}

var _ fdops.Fdops_i = (*ProfFile_t)(nil)

// NewProfFile builds the /dev/prof device backed by collect.
func NewProfFile(collect Snapshot) *ProfFile_t {
	return &ProfFile_t{collect: collect}
}

func (pf *ProfFile_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	tasks, pgcount := pf.collect()
	p := Build(tasks, pgcount)

	var buf bytes.Buffer
	if err := Write(&buf, p); err != nil {
		return 0, -defs.EINVAL
	}
	return dst.Uiowrite(buf.Bytes())
}

func (pf *ProfFile_t) Close() defs.Err_t                           { return 0 }
func (pf *ProfFile_t) Reopen() defs.Err_t                          { return 0 }
func (pf *ProfFile_t) Write(src fdops.Userio_i) (int, defs.Err_t)  { return 0, -defs.EINVAL }
func (pf *ProfFile_t) Lseek(off int, whence int) (int, defs.Err_t) { return 0, -defs.ESPIPE }
func (pf *ProfFile_t) Truncate(newlen uint) defs.Err_t             { return -defs.EINVAL }
func (pf *ProfFile_t) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	return pf.Read(dst)
}
func (pf *ProfFile_t) Fullpath() (string, defs.Err_t) { return "", -defs.ENOSYS }
func (pf *ProfFile_t) Pathi() fdops.Inode_i           { return nil }
func (pf *ProfFile_t) Fstat(st *fdops.StatAdapter) defs.Err_t { return -defs.ENOSYS }
func (pf *ProfFile_t) Mmapi(off, ln int, shared bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.ENODEV
}
func (pf *ProfFile_t) Accept(saddr fdops.Userio_i) (fdops.Fdops_i, uint, defs.Err_t) {
	return nil, 0, -defs.ENOTSOCK
}
func (pf *ProfFile_t) Bind(saddr []uint8) defs.Err_t    { return -defs.ENOTSOCK }
func (pf *ProfFile_t) Connect(saddr []uint8) defs.Err_t { return -defs.ENOTSOCK }
func (pf *ProfFile_t) Listen(backlog int) (fdops.Fdops_i, defs.Err_t) {
	return nil, -defs.ENOTSOCK
}
func (pf *ProfFile_t) Sendmsg(src fdops.Userio_i, toaddr []uint8, cmsg []uint8, flags int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (pf *ProfFile_t) Recvmsg(dst fdops.Userio_i, fromsa fdops.Userio_i, cmsg fdops.Userio_i, flags int) (int, int, int, defs.Err_t) {
	return 0, 0, 0, -defs.ENOTSOCK
}
func (pf *ProfFile_t) GetSockopt(opt int, bufarg fdops.Userio_i, intarg int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (pf *ProfFile_t) SetSockopt(level, opt int, bufarg fdops.Userio_i, intarg int) defs.Err_t {
	return -defs.ENOTSOCK
}
func (pf *ProfFile_t) Shutdown(read, write bool) defs.Err_t { return -defs.ENOTSOCK }
