// Package bpath splits paths into the components namei walks.
//
// The teacher's bpath package carried no retrieved source (only a
// go.mod stub); this is grounded on ustr.Ustr's path-predicate helpers
// and the walk described in spec.md §4.9 (namei).
package bpath

import "protura/ustr"

// Split breaks a path into its '/'-separated components, dropping
// empty components produced by repeated slashes. A leading '/' is not
// itself a component; callers test ustr.Ustr.IsAbsolute() separately.
func Split(p ustr.Ustr) []ustr.Ustr {
	var parts []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// Join glues components back together with '/' separators, prefixing
// a leading '/' when abs is set.
func Join(abs bool, parts ...ustr.Ustr) ustr.Ustr {
	var out ustr.Ustr
	if abs {
		out = append(out, '/')
	}
	for i, p := range parts {
		if i > 0 {
			out = append(out, '/')
		}
		out = append(out, p...)
	}
	return out
}

// Dir and Base split off the final component, the way path.Split
// does for a Ustr instead of a string.
func Dir(p ustr.Ustr) ustr.Ustr {
	parts := Split(p)
	if len(parts) == 0 {
		return ustr.MkUstrRoot()
	}
	return Join(p.IsAbsolute(), parts[:len(parts)-1]...)
}

func Base(p ustr.Ustr) ustr.Ustr {
	parts := Split(p)
	if len(parts) == 0 {
		return ustr.MkUstrRoot()
	}
	return parts[len(parts)-1]
}

// Canonicalize resolves "." and ".." components purely lexically
// (without touching the filesystem — namei still walks the result
// component by component and may find a different answer when
// symlinks are involved). Used by fd.Cwd_t to keep the cached cwd
// path in normal form after a chdir.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	abs := p.IsAbsolute()
	var out []ustr.Ustr
	for _, c := range Split(p) {
		switch {
		case c.Isdot():
			continue
		case c.Isdotdot():
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, c)
		}
	}
	return Join(abs, out...)
}
