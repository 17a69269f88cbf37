// Package cmdline implements half of C12: the kernel command line is
// parsed once at boot into a fixed set of name/value pairs, with typed
// accessors returning a caller-supplied default on a missing or
// malformed entry.
//
// Grounded directly on original_source/src/kernel/cmdline.c's state
// machine (STATE_ARG_BEGIN/EQUALS/VALUE_BEGIN/END walking the line
// character by character) and original_source/include/protura/
// cmdline.h's three-function surface (kernel_cmdline_init,
// kernel_cmdline_get_bool, kernel_cmdline_get_string). The teacher's
// retrieved tree has no cmdline source of its own, so the parser's
// shape follows the original C exactly; only the storage (a Go slice
// instead of a fixed cmd_args[64] array) changes.
package cmdline

import (
	"strconv"
	"strings"
	"sync"

	"protura/klog"
)

type arg struct {
	name, value string
}

var (
	mu   sync.Mutex
	args []arg
)

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

const (
	stateArgBegin = iota
	stateArgEquals
	stateValueBegin
	stateArgEnd
)

func addArg(name, value string) {
	klog.Kp(klog.NORMAL, "Kernel arg: %s=%s\n", name, value)
	args = append(args, arg{name: name, value: value})
}

// Init parses line into name=value pairs (cmdline.c's
// kernel_cmdline_init), replacing any previously parsed command line.
func Init(line string) {
	mu.Lock()
	defer mu.Unlock()
	args = nil

	state := stateArgBegin
	nameStart, nameEnd, valueStart := 0, 0, 0

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch state {
		case stateArgBegin:
			if !isWhitespace(c) {
				nameStart = i
				state = stateArgEquals
			}
		case stateArgEquals:
			if c == '=' {
				nameEnd = i
				state = stateValueBegin
			} else if isWhitespace(c) {
				// no value for this arg; ignore it
				state = stateArgBegin
			}
		case stateValueBegin:
			if isWhitespace(c) {
				addArg(line[nameStart:nameEnd], "")
				state = stateArgBegin
			} else {
				valueStart = i
				state = stateArgEnd
			}
		case stateArgEnd:
			if isWhitespace(c) {
				addArg(line[nameStart:nameEnd], line[valueStart:i])
				state = stateArgBegin
			}
		}
	}

	if state == stateArgEnd {
		addArg(line[nameStart:nameEnd], line[valueStart:])
	}
}

func find(name string) (arg, bool) {
	mu.Lock()
	defer mu.Unlock()
	for _, a := range args {
		if a.name == name {
			return a, true
		}
	}
	return arg{}, false
}

// GetString returns the value of name, or def if name was not given
// on the command line.
func GetString(name, def string) string {
	a, ok := find(name)
	if !ok {
		return def
	}
	return a.value
}

// GetBool parses the value of name as true/false/1/0 (case
// insensitive), returning def if name is absent or its value is not a
// recognized boolean (cmdline.c's parse_bool).
func GetBool(name string, def bool) bool {
	a, ok := find(name)
	if !ok {
		return def
	}
	switch strings.ToLower(a.value) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		klog.Kp(klog.WARNING, "Bool value for arg %q is invalid. Value: %q. using default: %v\n", a.name, a.value, def)
		return def
	}
}

// GetInt parses the value of name as a base-10 integer, returning def
// if name is absent or its value does not parse.
func GetInt(name string, def int) int {
	a, ok := find(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(a.value)
	if err != nil {
		klog.Kp(klog.WARNING, "Int value for arg %q is invalid. Value: %q. using default: %d\n", a.name, a.value, def)
		return def
	}
	return n
}
