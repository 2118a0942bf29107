// Package dataflow implements the iterative dataflow framework of spec §4.5
// (C4) — a reusable DFS walker used by propagation and dead-code
// elimination — plus the identifier equality oracle of spec §4.4, which is
// the single point where every other analysis's aliasing decisions live.
package dataflow

import (
	"decomp/internal/expr"
	"decomp/internal/word"
)

// MustBeEqual reports whether a and b definitely refer to the same
// location at runtime (spec §4.4). sameBB must be true for any Stack
// comparison to even be considered — Stack offsets are only meaningful
// within one basic block (spec §3).
func MustBeEqual(a, b expr.Expression, sameBB bool) bool {
	switch av := a.(type) {
	case *expr.Stack:
		bv, ok := b.(*expr.Stack)
		return ok && sameBB && av.Offset == bv.Offset

	case *expr.Mem:
		bv, ok := b.(*expr.Mem)
		if !ok {
			return false
		}
		if literalsMatch(av.Addr, bv.Addr) && literalsMatch(av.Length, bv.Length) {
			return true
		}
		// Optimistic for identifier lengths: two Mems whose address and
		// length are pairwise must-equal count as the same cell, even
		// when the lengths are not literals.
		return MustBeEqual(av.Addr, bv.Addr, sameBB) && MustBeEqual(av.Length, bv.Length, sameBB)

	case *expr.Storage:
		bv, ok := b.(*expr.Storage)
		if !ok {
			return false
		}
		if litA, ok := av.Addr.(*expr.Lit); ok {
			litB, ok := bv.Addr.(*expr.Lit)
			return ok && litA.Value.Eq(litB.Value)
		}
		return MustBeEqual(av.Addr, bv.Addr, sameBB)

	case *expr.NamedStorageAccess:
		bv, ok := b.(*expr.NamedStorageAccess)
		return ok && av.Kind == bv.Kind && av.Num == bv.Num && MustBeEqual(av.Offset, bv.Offset, sameBB)

	case *expr.GlobalVar:
		bv, ok := b.(*expr.GlobalVar)
		return ok && av.Name == bv.Name

	case *expr.Var:
		bv, ok := b.(*expr.Var)
		// Var identity does not depend on block context: a flattened local
		// is the same variable wherever it is read.
		return ok && av.ID() == bv.ID()

	case *expr.Lit:
		bv, ok := b.(*expr.Lit)
		return ok && av.Value.Eq(bv.Value)

	default:
		// Pure value expressions (BinaryOp, UnaryOp, PureFunctionCall,
		// Sequence) have no identity of their own; two syntactically
		// identical trees denote the same value wherever they appear, so
		// structural comparison is safe — identifier equality only ever
		// asks for syntactic sameness, never equivalence under rewriting.
		if expr.IsIdentifier(a) || expr.IsIdentifier(b) {
			return false
		}
		return expr.StructuralEquals(a, b)
	}
}

func literalsMatch(a, b expr.Expression) bool {
	la, ok := a.(*expr.Lit)
	if !ok {
		return false
	}
	lb, ok := b.(*expr.Lit)
	return ok && la.Value.Eq(lb.Value)
}

// MayBeEqual reports whether a and b might alias — true unless we can
// prove disjointness (spec §4.4).
func MayBeEqual(a, b expr.Expression, sameBB bool) bool {
	if MustBeEqual(a, b, sameBB) {
		return true
	}

	switch av := a.(type) {
	case *expr.Stack:
		bv, ok := b.(*expr.Stack)
		if !ok {
			return false
		}
		if !sameBB {
			// Cross-block stack identity is unprovable either way; spec
			// §4.4 mandates the conservative answer.
			return true
		}
		// Within one block, two different offsets are always genuinely
		// distinct slots.
		return av.Offset == bv.Offset

	case *expr.Mem:
		bv, ok := b.(*expr.Mem)
		if !ok {
			return false
		}
		if freeMemPointerCannotAlias(av, bv) || freeMemPointerCannotAlias(bv, av) {
			return false
		}
		litAddrA, okA := av.Addr.(*expr.Lit)
		litLenA, okLA := av.Length.(*expr.Lit)
		litAddrB, okB := bv.Addr.(*expr.Lit)
		litLenB, okLB := bv.Length.(*expr.Lit)
		if okA && okLA && okB && okLB {
			return rangesIntersect(litAddrA.Value, litLenA.Value, litAddrB.Value, litLenB.Value)
		}
		// At least one side is not fully literal: cannot prove disjoint.
		return true

	case *expr.Storage:
		bv, ok := b.(*expr.Storage)
		if !ok {
			return false
		}
		litA, okA := av.Addr.(*expr.Lit)
		litB, okB := bv.Addr.(*expr.Lit)
		if okA && okB {
			return litA.Value.Eq(litB.Value)
		}
		return true

	case *expr.NamedStorageAccess:
		bv, ok := b.(*expr.NamedStorageAccess)
		return ok && av.Kind == bv.Kind && av.Num == bv.Num

	case *expr.GlobalVar:
		bv, ok := b.(*expr.GlobalVar)
		return ok && av.Name == bv.Name

	case *expr.Var:
		bv, ok := b.(*expr.Var)
		return ok && av.ID() == bv.ID()

	default:
		if expr.IsIdentifier(a) != expr.IsIdentifier(b) {
			return false
		}
		return expr.StructuralEquals(a, b)
	}
}

// freeMemPointerCannotAlias implements spec §4.4's special case: the free
// memory pointer cell cannot alias a memory cell whose own address is
// itself a load of the free memory pointer (that would make the pointer
// point at itself).
func freeMemPointerCannotAlias(fmpCandidate, other *expr.Mem) bool {
	if !expr.IsFreeMemPointer(fmpCandidate) {
		return false
	}
	return expr.IsFreeMemPointer(other.Addr)
}

func rangesIntersect(addrA, lenA, addrB, lenB *word.Word) bool {
	endA := new(word.Word).Add(addrA, lenA)
	endB := new(word.Word).Add(addrB, lenB)
	// [addrA, endA) intersects [addrB, endB) iff addrA < endB && addrB < endA.
	return addrA.Lt(endB) && addrB.Lt(endA)
}
