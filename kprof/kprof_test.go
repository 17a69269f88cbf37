package kprof

import (
	"bytes"
	"testing"

	"github.com/google/pprof/profile"

	"protura/accnt"
	"protura/defs"
)

func TestBuildEncodesTaskAccounting(t *testing.T) {
	acct := &accnt.Accnt_t{}
	acct.Utadd(1000)
	acct.Systadd(2000)

	p := Build([]TaskSample{{Name: "init", Acct: acct}}, nil)

	if len(p.Sample) != 1 {
		t.Fatalf("samples = %d, want 1", len(p.Sample))
	}
	s := p.Sample[0]
	if s.Value[0] != 1000 || s.Value[1] != 2000 {
		t.Fatalf("values = %v, want [1000 2000]", s.Value)
	}
	if s.Location[0].Line[0].Function.Name != "init" {
		t.Fatalf("function name = %q", s.Location[0].Line[0].Function.Name)
	}
}

func TestBuildAppendsPageCounterSample(t *testing.T) {
	p := Build(nil, func() (used, free int) { return 7, 93 })

	if len(p.SampleType) != 4 {
		t.Fatalf("sample types = %d, want 4", len(p.SampleType))
	}
	last := p.Sample[len(p.Sample)-1]
	if last.Value[2] != 7 || last.Value[3] != 93 {
		t.Fatalf("page counter values = %v, want [.. .. 7 93]", last.Value)
	}
}

func TestBuildPadsTaskSamplesWhenPageCounterPresent(t *testing.T) {
	init := &accnt.Accnt_t{}
	p := Build([]TaskSample{{Name: "init", Acct: init}}, func() (used, free int) { return 1, 2 })

	if len(p.Sample[0].Value) != 4 {
		t.Fatalf("task sample values = %v, want length 4", p.Sample[0].Value)
	}
}

func TestWriteProducesValidProfile(t *testing.T) {
	acct := &accnt.Accnt_t{}
	acct.Utadd(42)
	p := Build([]TaskSample{{Name: "shell", Acct: acct}}, func() (used, free int) { return 3, 4 })

	var buf bytes.Buffer
	if err := Write(&buf, p); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, err := profile.Parse(&buf)
	if err != nil {
		t.Fatalf("profile.Parse: %v", err)
	}
	if len(parsed.Sample) != 2 {
		t.Fatalf("parsed samples = %d, want 2", len(parsed.Sample))
	}
}

type growio struct {
	buf bytes.Buffer
}

func (g *growio) Uioread(dst []uint8) (int, defs.Err_t) {
	n, _ := g.buf.Read(dst)
	return n, 0
}
func (g *growio) Uiowrite(src []uint8) (int, defs.Err_t) {
	n, _ := g.buf.Write(src)
	return n, 0
}
func (g *growio) Remain() int  { return 1 << 20 }
func (g *growio) Totalsz() int { return 1 << 20 }

func TestProfFileReadServesFreshSnapshot(t *testing.T) {
	calls := 0
	pf := NewProfFile(func() ([]TaskSample, func() (used, free int)) {
		calls++
		acct := &accnt.Accnt_t{}
		acct.Utadd(int64(calls))
		return []TaskSample{{Name: "task", Acct: acct}}, nil
	})

	dst := &growio{}
	n, err := pf.Read(dst)
	if err != 0 || n == 0 {
		t.Fatalf("Read = (%d, %v)", n, err)
	}

	parsed, perr := profile.Parse(&dst.buf)
	if perr != nil {
		t.Fatalf("profile.Parse: %v", perr)
	}
	if parsed.Sample[0].Value[0] != 1 {
		t.Fatalf("first read value = %d, want 1", parsed.Sample[0].Value[0])
	}
	if calls != 1 {
		t.Fatalf("collect called %d times, want 1", calls)
	}
}

func TestProfFileRejectsWrite(t *testing.T) {
	pf := NewProfFile(func() ([]TaskSample, func() (used, free int)) { return nil, nil })
	if _, err := pf.Write(&growio{}); err != -defs.EINVAL {
		t.Fatalf("Write err = %v, want EINVAL", err)
	}
}
