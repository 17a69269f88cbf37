package vtconsole

import (
	"strings"
	"testing"

	"protura/klog"
)

func TestWriteLineAdvancesAndWraps(t *testing.T) {
	c := NewConsole(4, 5)
	c.WriteLine(klog.NORMAL, "hi\n")
	if got := c.String(); !strings.HasPrefix(got, "hi\n") {
		t.Fatalf("got %q", got)
	}
}

func TestLongLineWrapsAcrossRows(t *testing.T) {
	c := NewConsole(4, 4)
	c.WriteLine(klog.NORMAL, "abcdefgh\n")
	rows := strings.Split(strings.TrimRight(c.String(), "\n"), "\n")
	if len(rows) < 2 {
		t.Fatalf("expected wrap across rows, got %q", c.String())
	}
}

func TestScrollDropsTopRowOnOverflow(t *testing.T) {
	c := NewConsole(2, 10)
	c.WriteLine(klog.NORMAL, "first\n")
	c.WriteLine(klog.NORMAL, "second\n")
	c.WriteLine(klog.NORMAL, "third\n")
	got := c.String()
	if strings.Contains(got, "first") {
		t.Fatalf("expected first row to have scrolled off, got %q", got)
	}
	if !strings.Contains(got, "second") || !strings.Contains(got, "third") {
		t.Fatalf("expected second/third rows present, got %q", got)
	}
}

func TestWideRuneOccupiesTwoCells(t *testing.T) {
	c := NewConsole(2, 4)
	// U+FF21 FULLWIDTH LATIN CAPITAL LETTER A is East Asian Fullwidth.
	c.WriteLine(klog.NORMAL, "ＡＡ\n")
	row := c.Row(0)
	if row[0] != 'Ａ' || row[1] != 0 {
		t.Fatalf("expected continuation cell after wide rune, got %v", row)
	}
}
