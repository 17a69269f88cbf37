package binfmt

import (
	"bytes"

	"protura/defs"
	"protura/mem"
	"protura/ustr"
	"protura/vfs"
	"protura/vm"
)

type scriptBinfmt struct{}

// Script is the registered handler for "#!"-style interpreter scripts.
var Script Binfmt_i = scriptBinfmt{}

func (scriptBinfmt) Name() string  { return "script" }
func (scriptBinfmt) Magic() []byte { return []byte("#!") }

// Load reads the interpreter path out of the file's first line and
// rewrites params in place to exec the interpreter with the script's
// own path prepended to argv (spec.md §4.11: "reads the interpreter
// path, recursively exec's it with the script path prepended to the
// argument list"; original_source/src/fs/binfmt_script.c's
// load_script does the same rewrite-and-recurse on its exe_params).
func (scriptBinfmt) Load(params *ExeParams_t, phys mem.Page_i) (*vm.Vm_t, uintptr, defs.Err_t) {
	head := make([]byte, 256)
	n, err := readAt(params.Exe, head, 0)
	if err != 0 {
		return nil, 0, -defs.ENOEXEC
	}
	head = head[:n]

	end := bytes.IndexByte(head, '\n')
	if end < 0 {
		end = len(head)
	}
	line := head[:end]
	if len(line) < 3 || line[0] != '#' || line[1] != '!' {
		return nil, 0, -defs.ENOEXEC
	}
	interp := string(bytes.TrimSpace(line[2:]))
	if interp == "" {
		return nil, 0, -defs.ENOEXEC
	}

	interpFile, operr := vfs.Open(params.Root, params.Cwd, ustr.Ustr(interp), defs.O_RDONLY, 0, params.Cred)
	if operr != 0 {
		return nil, 0, -defs.ENOEXEC
	}

	rest := params.Argv
	if len(rest) > 0 {
		rest = rest[1:]
	}
	scriptPath := params.Filename

	params.Exe = interpFile
	params.Filename = interp
	params.Argv = append([]string{interp, scriptPath}, rest...)

	return Load(params, phys)
}
