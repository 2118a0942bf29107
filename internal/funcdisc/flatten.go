package funcdisc

import (
	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// Flatten implements spec §4.8 step 8: compute a consistent stack pointer
// at every node of fn, replace every Stack(offset) with a canonical Var for
// that absolute slot, and zero every block's SPDelta. Returns false (and
// leaves fn unmodified in spirit, though partially visited) if two paths to
// the same node disagree on its entry sp — the stated flatten failure mode.
func Flatten(fn *cfg.Function) bool {
	entrySp := map[*cfg.BasicBlock]int{fn.HeaderNode: 0}
	order := []*cfg.BasicBlock{fn.HeaderNode}
	for i := 0; i < len(order); i++ {
		b := order[i]
		sp := entrySp[b]
		next := sp + b.SPDelta
		for _, s := range b.Successors {
			if existing, seen := entrySp[s]; seen {
				if existing != next {
					return false
				}
				continue
			}
			entrySp[s] = next
			order = append(order, s)
		}
	}

	locals := make(map[int]*expr.Var)
	canonical := func(slot int) *expr.Var {
		if v, ok := locals[slot]; ok {
			return v
		}
		v := fn.Vars.New("")
		locals[slot] = v
		return v
	}

	replace := func(e expr.Expression, sp int) expr.Expression {
		return expr.Transform(e, func(node expr.Expression) expr.Expression {
			s, ok := node.(*expr.Stack)
			if !ok {
				return node
			}
			return canonical(sp + s.Offset).Copy()
		})
	}

	for i, p := range fn.Params {
		fn.Params[i] = replace(p, 0)
	}

	for _, b := range order {
		sp := entrySp[b]
		for _, instr := range b.Instructions {
			for i, r := range instr.Results {
				instr.Results[i] = replace(r, sp)
			}
			for i, a := range instr.Args {
				instr.Args[i] = replace(a, sp)
			}
		}
		if b.Terminator != nil {
			for i, a := range b.Terminator.Args {
				b.Terminator.Args[i] = replace(a, sp)
			}
			for i, r := range b.Terminator.Results {
				b.Terminator.Results[i] = replace(r, sp)
			}
			if b.Terminator.Loc != nil && b.Terminator.Loc.Expr != nil {
				b.Terminator.Loc.Expr = replace(b.Terminator.Loc.Expr, sp)
			}
		}
		b.SPDelta = 0
	}
	fn.Flattened = true
	return true
}
