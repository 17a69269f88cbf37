package signal

import (
	"testing"

	"protura/irq"
	"protura/proc"
)

func TestSigsetAddDelHas(t *testing.T) {
	var s Sigset_t
	s.Add(SIGUSR1)
	if !s.Has(SIGUSR1) {
		t.Fatal("expected SIGUSR1 set")
	}
	s.Del(SIGUSR1)
	if s.Has(SIGUSR1) {
		t.Fatal("expected SIGUSR1 cleared")
	}
}

func TestSetMaskRefusesUnblockable(t *testing.T) {
	st := MkSigstate()
	var set Sigset_t
	set.Add(SIGKILL)
	set.Add(SIGSTOP)
	set.Add(SIGUSR1)
	st.SetMask(SIG_BLOCK, set)
	if st.Blocked.Has(SIGKILL) || st.Blocked.Has(SIGSTOP) {
		t.Fatal("SIGKILL/SIGSTOP must never be blockable")
	}
	if !st.Blocked.Has(SIGUSR1) {
		t.Fatal("expected SIGUSR1 blocked")
	}
}

func TestNextDeliverableLowestFirst(t *testing.T) {
	st := MkSigstate()
	st.Raise(SIGTERM)
	st.Raise(SIGHUP)
	sig, ok := st.NextDeliverable()
	if !ok || sig != SIGHUP {
		t.Fatalf("got (%d,%v), want (SIGHUP,true)", sig, ok)
	}
	sig, ok = st.NextDeliverable()
	if !ok || sig != SIGTERM {
		t.Fatalf("got (%d,%v), want (SIGTERM,true)", sig, ok)
	}
}

func TestNextDeliverableSkipsBlocked(t *testing.T) {
	st := MkSigstate()
	st.Raise(SIGUSR1)
	st.Blocked.Add(SIGUSR1)
	if _, ok := st.NextDeliverable(); ok {
		t.Fatal("blocked signal must not be deliverable")
	}
}

func TestDeliverHandlerBuildsFrameAndMergesMask(t *testing.T) {
	st := MkSigstate()
	st.Actions[SIGUSR1] = Sigaction_t{Disp: SIG_HANDLED, Handler: 0x1000}
	st.Raise(SIGUSR1)

	task := proc.NewTask()
	interrupted := irq.IrqFrame_t{Rip: 0x4000}
	frame, entry, ok := Deliver(task, st, interrupted, 0x2000)
	if !ok {
		t.Fatal("expected a deliverable signal")
	}
	if entry != 0x1000 {
		t.Fatalf("handler entry = %#x, want 0x1000", entry)
	}
	if frame.Signo != SIGUSR1 {
		t.Fatalf("frame.Signo = %d, want SIGUSR1", frame.Signo)
	}
	if frame.SavedFrame.Rip != interrupted.Rip {
		t.Fatalf("frame.SavedFrame.Rip = %#x, want %#x", frame.SavedFrame.Rip, interrupted.Rip)
	}
	if !st.Blocked.Has(SIGUSR1) {
		t.Fatal("expected signal itself merged into blocked set during handler run")
	}
}

func TestDeliverDefaultIgnoreSkipsToNext(t *testing.T) {
	st := MkSigstate()
	st.Raise(SIGCHLD) // default ignore
	st.Raise(SIGPROF) // numbered above SIGCHLD, so SIGCHLD is taken first
	st.Actions[SIGPROF] = Sigaction_t{Disp: SIG_HANDLED, Handler: 0x42}

	task := proc.NewTask()
	frame, entry, ok := Deliver(task, st, irq.IrqFrame_t{}, 0)
	if !ok || entry != 0x42 || frame.Signo != SIGPROF {
		t.Fatalf("expected ignored SIGCHLD to fall through to SIGPROF handler, got frame=%+v entry=%#x ok=%v", frame, entry, ok)
	}
}

func TestSigreturnRestoresPriorBlocked(t *testing.T) {
	st := MkSigstate()
	st.Blocked.Add(SIGTERM)
	saved := irq.IrqFrame_t{Vector: 0x80}
	f := Frame_t{SavedFrame: saved, PriorBlocked: 0, Signo: SIGUSR1}
	st.Blocked.Add(SIGUSR1) // simulate in-handler merge

	restored := Sigreturn(st, f)
	if st.Blocked != 0 {
		t.Fatalf("Blocked after sigreturn = %#x, want 0", st.Blocked)
	}
	if restored.Vector != 0x80 {
		t.Fatalf("restored frame vector = %#x, want 0x80", restored.Vector)
	}
}

func TestSigwaitConsumesAndReturns(t *testing.T) {
	st := MkSigstate()
	st.Raise(SIGUSR2)
	var set Sigset_t
	set.Add(SIGUSR2)
	sig, ok := st.Sigwait(set)
	if !ok || sig != SIGUSR2 {
		t.Fatalf("got (%d,%v), want (SIGUSR2,true)", sig, ok)
	}
	if st.Pending.Has(SIGUSR2) {
		t.Fatal("expected signal consumed from pending")
	}
}
