// Package rewrite implements spec §4.5/C5: local expression- and
// node-level algebraic simplifications plus the pattern recognizers for
// mapping/array storage accesses and assert reconstruction. It runs as
// part of the fixed-point driver alongside internal/optimize and
// internal/funcdisc.
package rewrite

import (
	"decomp/internal/cfg"
	"decomp/internal/expr"
	"decomp/internal/word"
)

var wordOne = word.One()

// SimplifyFunction applies local algebraic simplifications to every
// expression reachable in fn (constant folding plus the identity laws that
// hold unconditionally under modulo-2^256 arithmetic), reporting whether
// anything changed.
func SimplifyFunction(fn *cfg.Function) bool {
	changed := false
	simplifyRoot := func(root expr.Expression) expr.Expression {
		out := expr.Transform(root, simplify)
		if !expr.StructuralEquals(out, root) {
			changed = true
		}
		return out
	}

	for _, b := range fn.Nodes() {
		for _, instr := range b.Instructions {
			simplifyInstruction(instr, simplifyRoot)
		}
		if b.Terminator != nil {
			simplifyInstruction(b.Terminator, simplifyRoot)
		}
	}
	return changed
}

func simplifyInstruction(instr *cfg.Instruction, simplifyRoot func(expr.Expression) expr.Expression) {
	// Results are identifiers (LHS); simplifying them would change what they
	// denote, so only Args and the terminator's branch expression are
	// rewritten.
	for i, a := range instr.Args {
		instr.Args[i] = simplifyRoot(a)
	}
	if instr.Loc != nil && instr.Loc.Expr != nil {
		instr.Loc.Expr = simplifyRoot(instr.Loc.Expr)
	}
}

// simplify is the bottom-up visit function driving expr.Transform: by the
// time it sees a node, every child has already been simplified.
func simplify(e expr.Expression) expr.Expression {
	switch n := e.(type) {
	case *expr.BinaryOp:
		return simplifyBinaryOp(n)
	case *expr.UnaryOp:
		return simplifyUnaryOp(n)
	default:
		return e
	}
}

func asLit(e expr.Expression) (*expr.Lit, bool) {
	l, ok := e.(*expr.Lit)
	return l, ok
}

func simplifyBinaryOp(n *expr.BinaryOp) expr.Expression {
	if _, ok := asLit(n.Left); ok {
		if _, ok := asLit(n.Right); ok {
			// Both sides are already-folded literals: evaluate directly.
			// Evaluate never touches env for a literal-only subtree.
			v, err := n.Evaluate(nil)
			if err == nil {
				return expr.NewLit(v)
			}
		}
	}

	switch n.Op {
	case expr.OpAdd:
		if isLitZero(n.Left) {
			return n.Right
		}
		if isLitZero(n.Right) {
			return n.Left
		}
	case expr.OpSub:
		if isLitZero(n.Right) {
			return n.Left
		}
		if expr.StructuralEquals(n.Left, n.Right) {
			return expr.LitUint64(0)
		}
	case expr.OpMul:
		if isLitZero(n.Left) || isLitZero(n.Right) {
			return expr.LitUint64(0)
		}
		if isLitOne(n.Left) {
			return n.Right
		}
		if isLitOne(n.Right) {
			return n.Left
		}
	case expr.OpDiv, expr.OpSDiv:
		if isLitOne(n.Right) {
			return n.Left
		}
	case expr.OpAnd:
		if isLitZero(n.Left) || isLitZero(n.Right) {
			return expr.LitUint64(0)
		}
		if expr.StructuralEquals(n.Left, n.Right) {
			return n.Left
		}
	case expr.OpOr:
		if isLitZero(n.Left) {
			return n.Right
		}
		if isLitZero(n.Right) {
			return n.Left
		}
		if expr.StructuralEquals(n.Left, n.Right) {
			return n.Left
		}
	case expr.OpXor:
		if isLitZero(n.Left) {
			return n.Right
		}
		if isLitZero(n.Right) {
			return n.Left
		}
		if expr.StructuralEquals(n.Left, n.Right) {
			return expr.LitUint64(0)
		}
	}
	return n
}

func simplifyUnaryOp(n *expr.UnaryOp) expr.Expression {
	if _, ok := asLit(n.X); ok {
		v, err := n.Evaluate(nil)
		if err == nil {
			return expr.NewLit(v)
		}
	}
	if n.Op == expr.OpNeg {
		if inner, ok := n.X.(*expr.UnaryOp); ok && inner.Op == expr.OpNeg {
			// Bitwise NOT is its own inverse: ~~x == x.
			return inner.X
		}
	}
	return n
}

func isLitZero(e expr.Expression) bool {
	l, ok := e.(*expr.Lit)
	return ok && l.Value.IsZero()
}

func isLitOne(e expr.Expression) bool {
	l, ok := e.(*expr.Lit)
	return ok && l.Value.Eq(wordOne)
}
