package cmdline

import "protura/klog"

// Kparam_t binds one in-kernel variable to a command-line argument
// name, mirroring original_source/include/protura/kparam.h's
// struct kparam (name/param/type plus the optional setup hook, minus
// param_size since Go's type system already distinguishes *bool from
// *int from *string without a runtime size check).
type Kparam_t struct {
	Name  string
	Bool  *bool
	Int   *int
	Str   *string
	Setup func()
}

var kparams []Kparam_t

// RegisterParam adds p to the set KparamInit binds values into.
// Exactly one of p.Bool/p.Int/p.Str should be set.
func RegisterParam(p Kparam_t) {
	kparams = append(kparams, p)
}

// KparamInit loads every registered kparam's value from the already
// parsed command line (kparam.h: "Called after the cmdline is parsed,
// loads all the kparam values and calls setup() if necessary").
func KparamInit() {
	for _, p := range kparams {
		switch {
		case p.Bool != nil:
			*p.Bool = GetBool(p.Name, *p.Bool)
		case p.Int != nil:
			*p.Int = GetInt(p.Name, *p.Int)
		case p.Str != nil:
			*p.Str = GetString(p.Name, *p.Str)
		default:
			klog.Kp(klog.WARNING, "kparam %q registered with no bound variable\n", p.Name)
			continue
		}
		if p.Setup != nil {
			p.Setup()
		}
	}
}
