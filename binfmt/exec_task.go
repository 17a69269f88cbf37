package binfmt

import (
	"protura/defs"
	"protura/mem"
	"protura/proc"
)

// ExecTask runs Exec and installs the result onto t: the task's new
// address space replaces its old one and close-on-exec descriptors are
// dropped (spec.md §4.11's exec edge cases), all only after Exec has
// already succeeded so a failed exec leaves t exactly as it was.
func ExecTask(t *proc.Task_t, params *ExeParams_t, phys mem.Page_i) defs.Err_t {
	as, entry, sp, err := Exec(params, phys)
	if err != 0 {
		return err
	}
	t.CloseOnExec()
	t.SetVm(as)
	t.SetEntry(entry, sp)
	return 0
}
