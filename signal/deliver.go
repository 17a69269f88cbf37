package signal

import (
	"protura/irq"
	"protura/proc"
)

// Frame_t is the signal frame pushed onto the user stack: the saved
// user irq_frame, the blocked set in effect before delivery, and the
// signal number — exactly the layout spec.md §4.6 describes ("saved
// user irq_frame... saved prior blocked set... signal number... the
// trampoline return address"). TrampolineRA is filled in by whatever
// owns the trampoline page (vm/binfmt); it is carried here only so
// Deliver's caller can hand it to the new instruction pointer setup.
type Frame_t struct {
	SavedFrame   irq.IrqFrame_t
	PriorBlocked Sigset_t
	Signo        int
	TrampolineRA uintptr
}

// Deliver consults t's signal state for the lowest unblocked pending
// signal and applies its action (spec.md §4.6). For SIG_DFL it
// performs the default action directly (terminate task, stop it, or
// continue it). For a handler, it returns a Frame_t the caller
// installs as the task's next user-mode entry, with cur — the
// irq_frame t was interrupted at when signal delivery was checked —
// saved inside it so Sigreturn has something real to restore; sa_mask
// and the raised signal are merged into Blocked before return. Returns
// ok=false if there was nothing deliverable.
func Deliver(t *proc.Task_t, st *Sigstate_t, cur irq.IrqFrame_t, trampoline uintptr) (frame Frame_t, handlerEntry uintptr, ok bool) {
	sig, have := st.NextDeliverable()
	if !have {
		return Frame_t{}, 0, false
	}

	act := st.Actions[sig]
	switch act.Disp {
	case SIG_IGN:
		return Deliver(t, st, cur, trampoline)
	case SIG_HANDLED:
		prior := st.Blocked
		st.Blocked |= act.Mask
		st.Blocked.Add(sig)
		if act.Flags&SA_ONESHOT != 0 {
			st.Actions[sig] = Sigaction_t{Disp: SIG_DFL}
		}
		return Frame_t{SavedFrame: cur, PriorBlocked: prior, Signo: sig, TrampolineRA: trampoline}, act.Handler, true
	default: // SIG_DFL
		applyDefault(t, sig)
		if t.State() == proc.ZOMBIE {
			return Frame_t{}, 0, false
		}
		return Deliver(t, st, cur, trampoline)
	}
}

func applyDefault(t *proc.Task_t, sig int) {
	switch defaultFor(sig) {
	case DefIgnore:
		// no-op
	case DefStop:
		t.Stop()
	case DefCont:
		t.ContinueFromStop()
	case DefTerm, DefCore:
		proc.Exit(t, 128+sig)
	}
}

// Sigreturn restores the saved frame and prior blocked set (spec.md
// §4.6 "Sigreturn"): the trampoline's dedicated syscall calls this
// with the frame it pushed, and the task resumes at the instruction
// that was originally about to execute.
func Sigreturn(st *Sigstate_t, f Frame_t) irq.IrqFrame_t {
	st.Blocked = f.PriorBlocked
	return f.SavedFrame
}
