// Package pipeline wires C1-C9 (internal/expr through internal/astgen)
// plus internal/loader and internal/emit into the single per-contract
// run spec §1/§2 describes, so that both cmd/decompile (one file) and
// cmd/corpus (many files, concurrently) share exactly one
// implementation of the lift -> discover -> optimize -> structure ->
// emit sequence.
package pipeline

import (
	"fmt"
	"time"

	"decomp/internal/astgen"
	"decomp/internal/cfg"
	"decomp/internal/config"
	"decomp/internal/decode"
	"decomp/internal/derrors"
	"decomp/internal/emit"
	"decomp/internal/funcdisc"
	"decomp/internal/lifter"
	"decomp/internal/loader"
	"decomp/internal/optimize"
	"decomp/internal/rewrite"
	"decomp/internal/structure"
)

// Decompile loads bytecode from path and runs the full pipeline.
func Decompile(path string, c config.Config) (string, emit.Stats, error) {
	raw, err := loader.Load(path)
	if err != nil {
		return "", emit.Stats{}, err
	}
	return DecompileBytecode(raw, c)
}

// DecompileBytecode runs lift -> function discovery -> the fixed-point
// rewrite/propagate/DCE driver -> structure -> emit over one contract
// (spec §1's pipeline, §5's "single-threaded, non-concurrent per
// contract" model).
func DecompileBytecode(bytecode []byte, c config.Config) (string, emit.Stats, error) {
	deadline := time.Now().Add(time.Duration(c.TimeoutSeconds) * time.Second)

	ops := decode.Decode(bytecode)
	contract := lifter.Lift(ops, bytecode)

	if err := discoverFunctions(contract, deadline); err != nil {
		return "", emit.Stats{}, err
	}

	names := functionNames(contract)

	funcs := make([]emit.Function, 0, len(contract.Functions))
	for _, fn := range contract.Functions {
		if time.Now().After(deadline) {
			return "", emit.Stats{}, derrors.NewTimeBudgetExceeded(names[fn])
		}
		optimizeFunction(fn, c)

		loops := structure.FindLoops(fn)
		follows := structure.ConditionalFollows(fn, loops)
		body, stats := astgen.Convert(fn, loops, follows)

		funcs = append(funcs, emit.Function{
			Fn:    fn,
			Name:  names[fn],
			Body:  body,
			Stats: stats,
		})
	}

	out, total := emit.EmitContract(funcs, len(ops))
	return out, total, nil
}

// discoverFunctions runs internal function discovery (spec §4.8) to a
// fixed point, then external dispatcher discovery, then internal
// discovery again in case a newly cloned external function's body itself
// contains call-target patterns.
func discoverFunctions(contract *cfg.Contract, deadline time.Time) error {
	if err := discoverInternalToFixedPoint(contract, deadline); err != nil {
		return err
	}
	if discovered := funcdisc.ExternalFunctionDiscovery(contract); len(discovered) > 0 {
		if err := discoverInternalToFixedPoint(contract, deadline); err != nil {
			return err
		}
	}
	return nil
}

func discoverInternalToFixedPoint(contract *cfg.Contract, deadline time.Time) error {
	for {
		if time.Now().After(deadline) {
			return derrors.NewTimeBudgetExceeded("function discovery")
		}
		changed := false
		for _, fn := range append([]*cfg.Function{}, contract.Functions...) {
			if newFn, ok := funcdisc.DiscoverInternal(contract, fn); ok {
				contract.AddFunction(newFn)
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
}

// optimizeFunction runs the fixed-point rewrite/propagate/DCE driver
// (spec §4.5-§4.7) over one function. Flatten failing (spec: two paths
// disagreeing on a node's entry stack pointer) is absorbed as "no
// change" at this pass boundary rather than aborting the whole run (spec
// §7: StructuringFailure is recoverable). c.StepBudget is closed over so
// EliminateDeadAssigns runs against the configured dataflow step budget
// (spec §5) instead of dataflow's hardcoded default.
func optimizeFunction(fn *cfg.Function, c config.Config) {
	funcdisc.Flatten(fn)
	eliminateDeadAssigns := func(fn *cfg.Function) bool {
		return optimize.EliminateDeadAssignsWithBudget(fn, c.StepBudget)
	}
	optimize.RunToFixedPoint(fn,
		rewrite.SimplifyFunction,
		rewrite.RecognizeNamedStorage,
		rewrite.RecognizeAsserts,
		optimize.PropagateFunction,
		eliminateDeadAssigns,
		optimize.UnusedVariableElimination,
		optimize.MergeBasicBlocks,
	)
}

// functionNames assigns spec §6's output names: "loader" for address 0,
// sequential "func0", "func1", ... for each discovered entry point
// (external functions, spec §3: created as an entry point from the
// dispatcher) in contract order, and an address-qualified name for any
// purely internal helper function, since §6 only names a convention for
// entry points — internal helpers are an implementation detail of how
// an entry point's body was split, not a function a caller selects by
// selector.
func functionNames(contract *cfg.Contract) map[*cfg.Function]string {
	names := make(map[*cfg.Function]string, len(contract.Functions))
	externalIdx := 0
	for _, fn := range contract.Functions {
		switch {
		case fn == contract.Loader():
			names[fn] = "loader"
		case fn.External:
			names[fn] = fmt.Sprintf("func%d", externalIdx)
			externalIdx++
		default:
			names[fn] = fmt.Sprintf("internal_%x", fn.Address)
		}
	}
	return names
}
