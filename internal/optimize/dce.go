package optimize

import (
	"decomp/internal/cfg"
	"decomp/internal/dataflow"
	"decomp/internal/expr"
)

// EliminateDeadAssigns removes assignments whose LHS is never used on any
// path before either being redefined or the path terminating (spec §4.7).
// Storage and NamedStorageAccess writes are never eliminated since they are
// externally observable; Mem writes are only eliminated when no unmodeled
// call could have observed them before a redefinition or termination.
func EliminateDeadAssigns(fn *cfg.Function) bool {
	return EliminateDeadAssignsWithBudget(fn, dataflow.DefaultMaxSteps)
}

// EliminateDeadAssignsWithBudget is EliminateDeadAssigns with an explicit
// dataflow step budget (spec §5), so a configured Config.StepBudget
// actually reaches the explorer this pass runs instead of always falling
// back to dataflow.DefaultMaxSteps.
func EliminateDeadAssignsWithBudget(fn *cfg.Function, budget int) bool {
	changed := false
	ex := dataflow.NewExplorerWithBudget(budget)
	for _, b := range fn.Nodes() {
		for i := 0; i < len(b.Instructions); i++ {
			instr := b.Instructions[i]
			if instr.Kind != cfg.InstrAssign || len(instr.Results) == 0 {
				continue
			}
			lhs := instr.Results[0]
			if !isEliminationCandidate(lhs) {
				continue
			}
			dead, err := isDeadAssign(ex, b, i, lhs)
			if err != nil || !dead {
				continue
			}
			b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
			i--
			changed = true
		}
	}
	return changed
}

// isEliminationCandidate reports whether lhs is a kind of identifier this
// pass is ever allowed to remove a write to (spec §4.7: Storage and
// NamedStorageAccess stores are observable and must never be dropped).
func isEliminationCandidate(lhs expr.Expression) bool {
	switch lhs.(type) {
	case *expr.Storage, *expr.NamedStorageAccess:
		return false
	default:
		return true
	}
}

func isDeadAssign(ex *dataflow.Explorer, defBlock *cfg.BasicBlock, defIdx int, lhs expr.Expression) (bool, error) {
	start := dataflow.ProgramPoint{Block: defBlock, Instr: defIdx}
	foundUse := false
	abandoned := false

	atStart := func(at dataflow.ProgramPoint) bool {
		return at.Block == defBlock && at.Instr == defIdx
	}

	err := ex.Explore(start, lhs, dataflow.Forward, dataflow.Handlers{
		OnMustDefine: func(at dataflow.ProgramPoint) dataflow.HandlerResult {
			if atStart(at) {
				return dataflow.Continue
			}
			// A must-redefinition ends this path's liveness concern safely.
			return dataflow.StopExploringPath
		},
		OnMayDefine: func(at dataflow.ProgramPoint) dataflow.HandlerResult {
			if atStart(at) {
				return dataflow.Continue
			}
			// Ambiguous aliasing: cannot conclude the slot was redefined, so
			// refuse to call the original assignment dead.
			abandoned = true
			return dataflow.StopExploringAltogether
		},
		OnMayUse: func(at dataflow.ProgramPoint) dataflow.HandlerResult {
			if atStart(at) {
				return dataflow.Continue
			}
			foundUse = true
			return dataflow.StopExploringAltogether
		},
		OnUnusedAssign: func(at dataflow.ProgramPoint) dataflow.HandlerResult {
			return dataflow.StopExploringPath
		},
		OnTerminate: func(at dataflow.ProgramPoint) dataflow.HandlerResult {
			return dataflow.Continue
		},
	})
	if err != nil {
		// Step budget exceeded: keep the assignment rather than risk
		// removing a write that is actually live.
		return false, err
	}
	if abandoned {
		return false, nil
	}
	return !foundUse, nil
}

// UnusedVariableElimination drops assignments to *expr.Var identifiers whose
// id is never referenced as a use anywhere else in the function (spec §4.7
// "UnusedVariableElimination"). Unlike EliminateDeadAssigns this is a
// whole-function liveness scan rather than a per-path walk, appropriate for
// Vars since their identity never depends on basic-block context.
func UnusedVariableElimination(fn *cfg.Function) bool {
	used := map[uint64]bool{}
	markUses := func(instr *cfg.Instruction) {
		for _, a := range instr.Args {
			expr.Walk(a, func(n expr.Expression) {
				if v, ok := n.(*expr.Var); ok {
					used[v.ID()] = true
				}
			})
		}
	}
	for _, b := range fn.Nodes() {
		for _, instr := range b.Instructions {
			markUses(instr)
		}
		if b.Terminator != nil {
			markUses(b.Terminator)
		}
	}

	changed := false
	for _, b := range fn.Nodes() {
		for i := 0; i < len(b.Instructions); i++ {
			instr := b.Instructions[i]
			if instr.Kind != cfg.InstrAssign || len(instr.Results) == 0 {
				continue
			}
			v, ok := instr.Results[0].(*expr.Var)
			if !ok || used[v.ID()] {
				continue
			}
			b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
			i--
			changed = true
		}
	}
	return changed
}

// LocalVariableElimination is the cheap prepass the fixed-point driver runs
// once before the first full propagation/DCE round: it is the same scan as
// UnusedVariableElimination, run early to shrink the function before the
// more expensive per-path passes see it.
func LocalVariableElimination(fn *cfg.Function) bool {
	return UnusedVariableElimination(fn)
}
