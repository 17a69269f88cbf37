package bpath

import (
	"testing"

	"protura/ustr"
)

func TestSplit(t *testing.T) {
	parts := Split(ustr.Ustr("/usr//local/bin/"))
	want := []string{"usr", "local", "bin"}
	if len(parts) != len(want) {
		t.Fatalf("got %d parts, want %d", len(parts), len(want))
	}
	for i, w := range want {
		if parts[i].String() != w {
			t.Errorf("part %d = %q, want %q", i, parts[i].String(), w)
		}
	}
}

func TestDirBase(t *testing.T) {
	p := ustr.Ustr("/a/b/c")
	if Dir(p).String() != "/a/b" {
		t.Errorf("Dir = %q", Dir(p).String())
	}
	if Base(p).String() != "c" {
		t.Errorf("Base = %q", Base(p).String())
	}
}
