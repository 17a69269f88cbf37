package klog

import (
	"strings"
	"testing"

	"protura/irq"
)

type captureOutput struct {
	lines []string
}

func (c *captureOutput) WriteLine(level Level, line string) {
	c.lines = append(c.lines, line)
}

func resetOutputs(outs ...Output_i) {
	mu.Lock()
	outputs = append([]Output_i(nil), outs...)
	mu.Unlock()
}

func TestKpMulticastsToAllOutputs(t *testing.T) {
	a, b := &captureOutput{}, &captureOutput{}
	resetOutputs(a, b)
	Threshold = NORMAL

	Kp(NORMAL, "hello %d\n", 7)

	if len(a.lines) != 1 || !strings.Contains(a.lines[0], "hello 7") {
		t.Fatalf("output a = %v", a.lines)
	}
	if len(b.lines) != 1 || !strings.Contains(b.lines[0], "hello 7") {
		t.Fatalf("output b = %v", b.lines)
	}
}

func TestKpDropsBelowThreshold(t *testing.T) {
	a := &captureOutput{}
	resetOutputs(a)
	Threshold = WARNING

	Kp(DEBUG, "should not appear\n")
	Kp(ERROR, "should appear\n")

	if len(a.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %v", len(a.lines), a.lines)
	}
}

func TestRingOutputWrapsOldestFirst(t *testing.T) {
	r := NewRingOutput(3)
	for i := 0; i < 5; i++ {
		r.WriteLine(NORMAL, string(rune('a'+i)))
	}
	lines := r.Lines()
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, want := range []string{"c", "d", "e"} {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("lines[%d] = %q, want to contain %q", i, lines[i], want)
		}
	}
}

func TestPanicFaultPrintsDecodedInstruction(t *testing.T) {
	a := &captureOutput{}
	resetOutputs(a)
	Threshold = NORMAL

	defer func() {
		recover()
		found := false
		for _, line := range a.lines {
			if strings.Contains(line, "nop") {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected a decoded-instruction line, got %v", a.lines)
		}
	}()

	PanicFault(&irq.IrqFrame_t{Vector: 14, Rip: 0x4000, Text: []byte{0x90}}, true, "page fault")
}

func TestWriterOutputPrefixesLevel(t *testing.T) {
	var sb strings.Builder
	out := WriterOutput{W: &sb}
	out.WriteLine(ERROR, "boom\n")
	if !strings.HasPrefix(sb.String(), "[ERROR] boom") {
		t.Fatalf("got %q", sb.String())
	}
}
