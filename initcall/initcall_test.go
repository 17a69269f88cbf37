package initcall

import (
	"context"
	"sync"
	"testing"
)

func TestRunOrdersPhasesAndDependencies(t *testing.T) {
	Reset()

	var recOrder []string
	var recMu sync.Mutex
	rec := func(name string) func() error {
		return func() error {
			recMu.Lock()
			recOrder = append(recOrder, name)
			recMu.Unlock()
			return nil
		}
	}

	Register(Initcall_t{Name: "device_b", Phase: Device, Fn: rec("device_b")})
	Register(Initcall_t{Name: "core_a", Phase: Core, Fn: rec("core_a")})
	Register(Initcall_t{Name: "subsys_a", Phase: Subsys, Deps: []string{"core_a"}, Fn: rec("subsys_a")})

	if err := Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	idx := func(name string) int {
		for i, n := range recOrder {
			if n == name {
				return i
			}
		}
		t.Fatalf("%s never ran", name)
		return -1
	}
	if idx("core_a") >= idx("subsys_a") {
		t.Fatalf("core_a should run before subsys_a: %v", recOrder)
	}
	if idx("subsys_a") >= idx("device_b") {
		t.Fatalf("subsys_a should run before device_b: %v", recOrder)
	}
}

func TestRunPropagatesInitcallError(t *testing.T) {
	Reset()
	Register(Initcall_t{Name: "boom", Phase: Core, Fn: func() error { return errBoom }})

	if err := Run(context.Background()); err == nil {
		t.Fatal("expected Run to return the initcall's error")
	}
}

func TestRegisterDuplicateNamePanics(t *testing.T) {
	Reset()
	Register(Initcall_t{Name: "dup", Phase: Core, Fn: func() error { return nil }})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate initcall name")
		}
	}()
	Register(Initcall_t{Name: "dup", Phase: Core, Fn: func() error { return nil }})
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
