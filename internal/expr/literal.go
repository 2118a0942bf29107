package expr

import "decomp/internal/word"

// Lit is a 256-bit unsigned integer literal (spec §3).
type Lit struct {
	Value *word.Word
}

// NewLit wraps a word as a literal expression.
func NewLit(v *word.Word) *Lit { return &Lit{Value: v} }

// LitUint64 is a convenience constructor for small literals.
func LitUint64(v uint64) *Lit { return &Lit{Value: word.FromUint64(v)} }

func (l *Lit) Copy() Expression { return &Lit{Value: new(word.Word).Set(l.Value)} }

func (l *Lit) Evaluate(Env) (*word.Word, error) { return new(word.Word).Set(l.Value), nil }

func (l *Lit) Children() []Expression { return nil }

func (l *Lit) Rebuild(newChildren []Expression) Expression {
	visitLeaf("Lit", newChildren)
	return l.Copy()
}

func (l *Lit) String() string { return "0x" + l.Value.Hex()[2:] }

// UnusedValue is the sentinel RHS meaning "this slot is no longer
// meaningful" (spec §3). Written by the lifter's pop-then-clobber rule
// (§4.3) and consumed by dead-code elimination (§4.7).
type UnusedValue struct{}

func (UnusedValue) Copy() Expression { return UnusedValue{} }

func (UnusedValue) Evaluate(Env) (*word.Word, error) { return nil, ErrUnusedValueEvaluated }

func (UnusedValue) Children() []Expression { return nil }

func (u UnusedValue) Rebuild(newChildren []Expression) Expression {
	visitLeaf("UnusedValue", newChildren)
	return u
}

func (UnusedValue) String() string { return "<unused>" }

// ErrUnusedValueEvaluated is returned when the interpreter is asked to
// evaluate a slot that was marked unused; reaching one is always a bug in
// an earlier pass (propagation should never have let it be read).
var ErrUnusedValueEvaluated = errUnusedValueEvaluated{}

type errUnusedValueEvaluated struct{}

func (errUnusedValueEvaluated) Error() string { return "evaluated a slot marked UnusedValue" }
