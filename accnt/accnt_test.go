package accnt

import "testing"

func TestAddMerges(t *testing.T) {
	a := &Accnt_t{Userns: 1000, Sysns: 2000}
	b := &Accnt_t{Userns: 500, Sysns: 250}
	a.Add(b)
	if a.Userns != 1500 || a.Sysns != 2250 {
		t.Fatalf("got %d/%d", a.Userns, a.Sysns)
	}
}

func TestFetchLayout(t *testing.T) {
	a := &Accnt_t{Userns: 2_500_000_000, Sysns: 0}
	buf := a.Fetch()
	if len(buf) != 32 {
		t.Fatalf("len = %d, want 32", len(buf))
	}
}
