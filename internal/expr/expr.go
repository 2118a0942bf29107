// Package expr implements the typed expression tree described in spec §3/§4.1:
// a sum type of identifiers (stack slot, local var, memory slice, storage
// cell, global, named-storage access), literals, binary/unary operators,
// pure calls, and byte-sequences.
//
// Every variant supports deep copy, child iteration, pure evaluation against
// a value environment, and a single visit-and-modify contract so that passes
// can substitute sub-expressions uniformly (spec §4.1).
package expr

import "decomp/internal/word"

// Expression is the closed sum type every node in the tree implements.
type Expression interface {
	// Copy returns a deep, alias-free clone.
	Copy() Expression
	// Evaluate computes this expression's value against env. Used by the
	// interpreter collaborator (internal/interp); inside the pipeline only
	// internal/rewrite's constant folding calls it, on literal-only
	// subtrees with a nil env.
	Evaluate(env Env) (*word.Word, error)
	// Children returns the direct sub-expressions, in evaluation order.
	Children() []Expression
	// Rebuild returns a copy of this node with its children replaced by
	// newChildren (same order as Children returned them). Passes combine
	// Children+Rebuild to implement visit-and-modify without a type switch
	// per call site.
	Rebuild(newChildren []Expression) Expression
	String() string
}

// Env is the value environment pure evaluation runs against. Implemented by
// internal/interp; kept as an interface here so internal/expr never depends
// on the interpreter (spec §1: the interpreter is an external collaborator).
type Env interface {
	StackValue(offset int) (*word.Word, error)
	MemValue(addr, length *word.Word) (*word.Word, error)
	StorageValue(addr *word.Word) (*word.Word, error)
	NamedStorageValue(kind NamedStorageKind, num int, offset *word.Word) (*word.Word, error)
	GlobalValue(name string) (*word.Word, error)
	VarValue(v *Var) (*word.Word, error)
	PureCall(name string, args []*word.Word) (*word.Word, error)
}

// IsIdentifier reports whether e is one of the location-denoting variants
// (Stack, Mem, Storage, NamedStorageAccess, GlobalVar, Var) for which raw
// equality is unsafe and callers must go through the equality oracle in
// internal/dataflow (spec §4.1, §4.4).
func IsIdentifier(e Expression) bool {
	switch e.(type) {
	case *Stack, *Mem, *Storage, *NamedStorageAccess, *GlobalVar, *Var:
		return true
	default:
		return false
	}
}

// IsFreeMemPointer reports whether e is the reserved Mem(0x40, 0x20)
// sentinel (spec §4.1).
func IsFreeMemPointer(e Expression) bool {
	m, ok := e.(*Mem)
	if !ok {
		return false
	}
	addr, ok := m.Addr.(*Lit)
	if !ok || !word.IsFreeMemPointerAddr(addr.Value) {
		return false
	}
	length, ok := m.Length.(*Lit)
	if !ok || !word.IsFreeMemPointerLen(length.Value) {
		return false
	}
	return true
}

// visitLeaf is a helper for variants with no children: Rebuild must still
// validate the (empty) newChildren slice to catch pass bugs early.
func visitLeaf(name string, newChildren []Expression) {
	if len(newChildren) != 0 {
		panic(name + ".Rebuild called with non-empty children")
	}
}
