// Package initcall implements C12's boot sequencing: a cooperative
// three-phase scheme (core → subsys → device) where each registered
// initcall may declare dependencies on other initcalls by name, run
// exactly once, in an order that respects every declared dependency.
//
// Grounded on original_source/include/protura/initcall.h's
// initcall_core/initcall_subsys/initcall_device macros (three named
// phases, a dependency declared as "this runs after that") and
// spec.md §4.12's "cooperative three-phase scheme ... each fn invoked
// exactly once". No source package here had an initcall package of
// its own (init ordering was whatever order Go package init() runs
// in), so the phase/dependency graph is built directly from
// original_source, with
// SPEC_FULL.md §11 assigning golang.org/x/sync/errgroup to the
// same-phase fan-out: every initcall whose dependencies are already
// satisfied within a phase starts concurrently, and the phase doesn't
// advance until all of them finish — matching the teacher's
// concurrency-first style (per-CPU free lists, sync.Pool)
// applied to boot sequencing instead of a plain serial loop.
package initcall

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"protura/klog"
)

// Phase names an initcall's declared phase (initcall.h's core/subsys/
// device hooks). Phases run strictly in this order; every initcall in
// an earlier phase has finished before a later phase starts.
type Phase int

const (
	Core Phase = iota
	Subsys
	Device
	numPhases
)

func (p Phase) String() string {
	switch p {
	case Core:
		return "core"
	case Subsys:
		return "subsys"
	case Device:
		return "device"
	default:
		return "unknown"
	}
}

// Initcall_t is one boot-time hook (initcall.h's initcall_core/subsys/
// device(name, fn)). Deps names other initcalls — in any phase — that
// must have already run before Fn starts.
type Initcall_t struct {
	Name  string
	Phase Phase
	Deps  []string
	Fn    func() error
}

var registry []Initcall_t

// Register adds ic to the set Run walks. Panics on a duplicate name,
// the same class of mistake initcall_dependency's compile-time pointer
// check catches in the original.
func Register(ic Initcall_t) {
	for _, existing := range registry {
		if existing.Name == ic.Name {
			panic("initcall: duplicate name " + ic.Name)
		}
	}
	registry = append(registry, ic)
}

// Run executes every registered initcall exactly once, phase by phase,
// fanning out same-phase initcalls whose dependencies are already
// satisfied and barriering before the next phase starts. Returns the
// first error any initcall returns; a failing initcall still lets its
// phase-mates that don't depend on it finish before Run returns.
func Run(ctx context.Context) error {
	byPhase := make([][]Initcall_t, numPhases)
	for _, ic := range registry {
		byPhase[ic.Phase] = append(byPhase[ic.Phase], ic)
	}

	done := make(map[string]chan struct{}, len(registry))
	for _, ic := range registry {
		done[ic.Name] = make(chan struct{})
	}

	for phase := Phase(0); phase < numPhases; phase++ {
		ics := byPhase[phase]
		sort.Slice(ics, func(i, j int) bool { return ics[i].Name < ics[j].Name })

		g, gctx := errgroup.WithContext(ctx)
		for _, ic := range ics {
			ic := ic
			g.Go(func() error {
				for _, dep := range ic.Deps {
					ch, ok := done[dep]
					if !ok {
						return fmt.Errorf("initcall %q depends on unregistered %q", ic.Name, dep)
					}
					select {
					case <-ch:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				klog.Kp(klog.DEBUG, "initcall: running %s (%s)\n", ic.Name, ic.Phase)
				err := ic.Fn()
				close(done[ic.Name])
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("initcall phase %s: %w", phase, err)
		}
	}
	return nil
}

// Reset clears the registry. Exported only for tests that need a
// clean slate between runs; production boot calls Run exactly once.
func Reset() {
	registry = nil
}
