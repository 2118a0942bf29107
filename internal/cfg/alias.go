package cfg

import (
	"fmt"

	"decomp/internal/expr"
)

// CheckNoAliasedExpressions verifies spec invariant 4: no single
// Expression object appears inside two distinct Instructions. UnusedValue
// is exempt — it is a stateless, zero-size sentinel with no identity to
// alias, and Go's interface equality for it reflects structural sameness
// rather than the shared-pointer bug this check exists to catch.
func CheckNoAliasedExpressions(blocks []*BasicBlock) error {
	owner := make(map[expr.Expression]*Instruction)

	check := func(instr *Instruction) error {
		var roots []expr.Expression
		roots = append(roots, instr.Results...)
		roots = append(roots, instr.Args...)
		if instr.Loc != nil && instr.Loc.Expr != nil {
			roots = append(roots, instr.Loc.Expr)
		}
		for _, root := range roots {
			var aliasErr error
			expr.Walk(root, func(e expr.Expression) {
				if aliasErr != nil {
					return
				}
				if _, isUnused := e.(expr.UnusedValue); isUnused {
					return
				}
				if prevOwner, ok := owner[e]; ok && prevOwner != instr {
					aliasErr = fmt.Errorf("cfg: expression %q aliased between two distinct instructions", e.String())
					return
				}
				owner[e] = instr
			})
			if aliasErr != nil {
				return aliasErr
			}
		}
		return nil
	}

	for _, b := range blocks {
		for _, instr := range b.Instructions {
			if err := check(instr); err != nil {
				return err
			}
		}
		if b.Terminator != nil {
			if err := check(b.Terminator); err != nil {
				return err
			}
		}
	}
	return nil
}
