package expr

// Transform implements the "visit-and-modify" contract mentioned in spec
// §4.1: it walks e bottom-up, rebuilding every node from its (possibly
// already-rewritten) children, then calls visit on the rebuilt node. This
// lets a rewrite pass (internal/rewrite, C5) be written as a single
// bottom-up visitor instead of one recursive function per Expression
// variant.
func Transform(e Expression, visit func(Expression) Expression) Expression {
	children := e.Children()
	if len(children) == 0 {
		return visit(e)
	}
	newChildren := make([]Expression, len(children))
	for i, c := range children {
		newChildren[i] = Transform(c, visit)
	}
	return visit(e.Rebuild(newChildren))
}

// Walk calls fn on every node of e, in the same bottom-up-safe pre-order
// used by read-only passes (dataflow's used-identifier scan, the printer).
// fn must not mutate e's tree; use Transform for rewriting.
func Walk(e Expression, fn func(Expression)) {
	fn(e)
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}

// StructuralEquals is the conservative structural comparison exposed by the
// expression tree (spec §4.1). It recurses into value-producing nodes
// (literals, operators, sequences, pure calls) and, for identifier nodes,
// only claims equality for the cases that are always safe in isolation
// (literal Stack offsets compared without block context, Storage/GlobalVar
// by literal address/name). It is deliberately NOT the aliasing oracle:
// callers reasoning about whether two identifiers denote the same runtime
// location must use internal/dataflow's MustBeEqual/MayBeEqual instead,
// which take basic-block context into account (spec §4.4).
func StructuralEquals(a, b Expression) bool {
	switch av := a.(type) {
	case *Lit:
		bv, ok := b.(*Lit)
		return ok && av.Value.Eq(bv.Value)
	case UnusedValue:
		_, ok := b.(UnusedValue)
		return ok
	case *Stack:
		bv, ok := b.(*Stack)
		return ok && av.Offset == bv.Offset
	case *GlobalVar:
		bv, ok := b.(*GlobalVar)
		return ok && av.Name == bv.Name
	case *Var:
		bv, ok := b.(*Var)
		return ok && av.id == bv.id
	case *Mem:
		bv, ok := b.(*Mem)
		return ok && StructuralEquals(av.Addr, bv.Addr) && StructuralEquals(av.Length, bv.Length)
	case *Storage:
		bv, ok := b.(*Storage)
		return ok && StructuralEquals(av.Addr, bv.Addr)
	case *NamedStorageAccess:
		bv, ok := b.(*NamedStorageAccess)
		return ok && av.Kind == bv.Kind && av.Num == bv.Num && StructuralEquals(av.Offset, bv.Offset)
	case *BinaryOp:
		bv, ok := b.(*BinaryOp)
		if !ok || av.Op != bv.Op {
			return false
		}
		if StructuralEquals(av.Left, bv.Left) && StructuralEquals(av.Right, bv.Right) {
			return true
		}
		return av.Op.Commutative() && StructuralEquals(av.Left, bv.Right) && StructuralEquals(av.Right, bv.Left)
	case *UnaryOp:
		bv, ok := b.(*UnaryOp)
		return ok && av.Op == bv.Op && StructuralEquals(av.X, bv.X)
	case *PureFunctionCall:
		bv, ok := b.(*PureFunctionCall)
		if !ok || av.Name != bv.Name || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !StructuralEquals(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	case *Sequence:
		bv, ok := b.(*Sequence)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !StructuralEquals(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
