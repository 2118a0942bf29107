package expr

import (
	"strings"

	"decomp/internal/word"
)

// PureFunctionCall is a side-effect-free call (e.g. SHA3) — spec §3. Being
// pure is what lets propagation substitute it wholesale and lets dead-code
// elimination drop an unused assignment of it like any other dead assign.
type PureFunctionCall struct {
	Name string
	Args []Expression
}

func (c *PureFunctionCall) Copy() Expression {
	args := make([]Expression, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.Copy()
	}
	return &PureFunctionCall{Name: c.Name, Args: args}
}

func (c *PureFunctionCall) Evaluate(env Env) (*word.Word, error) {
	args := make([]*word.Word, len(c.Args))
	for i, a := range c.Args {
		v, err := a.Evaluate(env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return env.PureCall(c.Name, args)
}

func (c *PureFunctionCall) Children() []Expression { return c.Args }

func (c *PureFunctionCall) Rebuild(newChildren []Expression) Expression {
	if len(newChildren) != len(c.Args) {
		panic("PureFunctionCall.Rebuild argument count mismatch")
	}
	return &PureFunctionCall{Name: c.Name, Args: newChildren}
}

func (c *PureFunctionCall) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Sequence is a byte-concatenation of sub-values (spec §3), used to express
// e.g. ABI-style packed encodings recovered from successive MSTORE calls.
type Sequence struct {
	Elems []Expression
}

func (s *Sequence) Copy() Expression {
	elems := make([]Expression, len(s.Elems))
	for i, e := range s.Elems {
		elems[i] = e.Copy()
	}
	return &Sequence{Elems: elems}
}

func (s *Sequence) Evaluate(env Env) (*word.Word, error) {
	// A concatenation has no single scalar value; callers that need the
	// byte representation should walk Elems directly. Evaluate is kept for
	// interface uniformity and to let generic substitution/propagation code
	// treat Sequence like any other node.
	return nil, errSequenceNotScalar
}

func (s *Sequence) Children() []Expression { return s.Elems }

func (s *Sequence) Rebuild(newChildren []Expression) Expression {
	if len(newChildren) != len(s.Elems) {
		panic("Sequence.Rebuild element count mismatch")
	}
	return &Sequence{Elems: newChildren}
}

func (s *Sequence) String() string {
	parts := make([]string, len(s.Elems))
	for i, e := range s.Elems {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, " ++ ") + "}"
}

type errSeq struct{}

func (errSeq) Error() string { return "Sequence has no scalar value" }

var errSequenceNotScalar = errSeq{}
