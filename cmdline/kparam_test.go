package cmdline

import "testing"

func TestKparamInitBindsRegisteredVariables(t *testing.T) {
	kparams = nil
	Init("debug=true retries=3 name=alpha")

	var debug bool
	var retries int
	var name string = "default"
	setupCalled := false

	RegisterParam(Kparam_t{Name: "debug", Bool: &debug})
	RegisterParam(Kparam_t{Name: "retries", Int: &retries})
	RegisterParam(Kparam_t{Name: "name", Str: &name, Setup: func() { setupCalled = true }})

	KparamInit()

	if !debug {
		t.Fatal("debug should have bound to true")
	}
	if retries != 3 {
		t.Fatalf("retries = %d, want 3", retries)
	}
	if name != "alpha" {
		t.Fatalf("name = %q, want alpha", name)
	}
	if !setupCalled {
		t.Fatal("setup hook should have run")
	}
}

func TestKparamInitKeepsDefaultWhenArgAbsent(t *testing.T) {
	kparams = nil
	Init("other=1")

	count := 42
	RegisterParam(Kparam_t{Name: "missing", Int: &count})
	KparamInit()

	if count != 42 {
		t.Fatalf("count = %d, want unchanged default 42", count)
	}
}
