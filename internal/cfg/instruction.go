// Package cfg implements the high-level instruction and basic-block graph
// of spec §3/§4.2 (C2): assign/jump/jcond/call/vmcall/ret/assert
// instructions, basic blocks with predecessor/successor edges and a
// stack-pointer delta, functions that own their blocks, and the contract
// that owns its functions.
package cfg

import (
	"fmt"
	"strings"

	"decomp/internal/expr"
)

// InstrKind enumerates the high-level instruction types of spec §3.
type InstrKind int

const (
	InstrAssign InstrKind = iota
	InstrJump
	InstrJCond
	InstrCall
	InstrVMCall
	InstrRet
	InstrAssert
)

func (k InstrKind) String() string {
	switch k {
	case InstrAssign:
		return "assign"
	case InstrJump:
		return "jump"
	case InstrJCond:
		return "jcond"
	case InstrCall:
		return "call"
	case InstrVMCall:
		return "vmcall"
	case InstrRet:
		return "ret"
	case InstrAssert:
		return "assert"
	default:
		return "?"
	}
}

// Loc is an instruction's jump/call target (spec §3: "loc is either an
// Expression (jump/ret target) or a callee handle"). Exactly one of Expr,
// Callee, VMCall is set, depending on the owning instruction's Kind:
//   - InstrJump/InstrJCond: Expr is the (possibly non-literal) branch
//     target; JCond's condition itself lives in the instruction's Args.
//   - InstrCall: Callee names the internal function being invoked.
//   - InstrVMCall: VMCall names the external/system operation (e.g.
//     "revert", "log1", "call", "return") that isn't modeled as a Function.
type Loc struct {
	Expr   expr.Expression
	Callee *Function
	VMCall string
}

func (l *Loc) String() string {
	if l == nil {
		return ""
	}
	switch {
	case l.Callee != nil:
		return fmt.Sprintf("func_%x", l.Callee.Address)
	case l.VMCall != "":
		return l.VMCall
	case l.Expr != nil:
		return l.Expr.String()
	default:
		return "<empty loc>"
	}
}

// Instruction is one high-level operation (spec §3): `{ type, results,
// args, loc }`.
type Instruction struct {
	Kind    InstrKind
	Results []expr.Expression
	Args    []expr.Expression
	Loc     *Loc
}

// NewAssign builds an assign instruction: results[0] = rhs.
func NewAssign(lhs, rhs expr.Expression) *Instruction {
	return &Instruction{Kind: InstrAssign, Results: []expr.Expression{lhs}, Args: []expr.Expression{rhs}}
}

// NewJump builds a direct or indirect jump instruction.
func NewJump(target expr.Expression) *Instruction {
	return &Instruction{Kind: InstrJump, Loc: &Loc{Expr: target}}
}

// NewJCond builds a conditional jump. cond is the branch condition; target
// is the true-branch destination (the false branch is always the owning
// block's fall-through successor).
func NewJCond(cond, target expr.Expression) *Instruction {
	return &Instruction{Kind: InstrJCond, Args: []expr.Expression{cond}, Loc: &Loc{Expr: target}}
}

// NewCall builds a call instruction to an internal function.
func NewCall(results []expr.Expression, callee *Function, args []expr.Expression) *Instruction {
	return &Instruction{Kind: InstrCall, Results: results, Args: args, Loc: &Loc{Callee: callee}}
}

// NewVMCall builds a call to an external/system operation.
func NewVMCall(results []expr.Expression, name string, args []expr.Expression) *Instruction {
	return &Instruction{Kind: InstrVMCall, Results: results, Args: args, Loc: &Loc{VMCall: name}}
}

// NewRet builds a return instruction.
func NewRet(values []expr.Expression) *Instruction {
	return &Instruction{Kind: InstrRet, Args: values}
}

// NewAssert builds an assert instruction recovered by the rewrite pass
// (spec §4.5/C5: "assert reconstruction").
func NewAssert(cond expr.Expression) *Instruction {
	return &Instruction{Kind: InstrAssert, Args: []expr.Expression{cond}}
}

// IsTerminator reports whether this instruction kind is only ever valid as
// a basic block's Terminator (spec I1).
func (i *Instruction) IsTerminator() bool {
	switch i.Kind {
	case InstrJump, InstrJCond, InstrRet:
		return true
	case InstrVMCall:
		return i.Loc != nil && terminatingVMCalls[i.Loc.VMCall]
	default:
		return false
	}
}

// terminatingVMCalls lists the system operations that end control flow
// within the contract (spec §4.3: "for terminating vmcalls, moves the call
// to terminator").
var terminatingVMCalls = map[string]bool{
	"return":       true,
	"revert":       true,
	"stop":         true,
	"selfdestruct": true,
	"invalid":      true,
}

// IsTerminatingVMCall reports whether name is one of the system operations
// that always ends a basic block.
func IsTerminatingVMCall(name string) bool { return terminatingVMCalls[name] }

// Copy returns a deep, alias-free clone of the instruction (spec §5:
// "passes that reuse an expression must deep-copy it").
func (i *Instruction) Copy() *Instruction {
	cp := &Instruction{Kind: i.Kind}
	if len(i.Results) > 0 {
		cp.Results = make([]expr.Expression, len(i.Results))
		for idx, r := range i.Results {
			cp.Results[idx] = r.Copy()
		}
	}
	if len(i.Args) > 0 {
		cp.Args = make([]expr.Expression, len(i.Args))
		for idx, a := range i.Args {
			cp.Args[idx] = a.Copy()
		}
	}
	if i.Loc != nil {
		loc := *i.Loc
		if i.Loc.Expr != nil {
			loc.Expr = i.Loc.Expr.Copy()
		}
		cp.Loc = &loc
	}
	return cp
}

func (i *Instruction) String() string {
	var b strings.Builder
	if len(i.Results) > 0 {
		parts := make([]string, len(i.Results))
		for idx, r := range i.Results {
			parts[idx] = r.String()
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(" = ")
	}
	b.WriteString(i.Kind.String())
	if i.Loc != nil && i.Loc.String() != "" {
		b.WriteString(" ")
		b.WriteString(i.Loc.String())
	}
	if len(i.Args) > 0 {
		parts := make([]string, len(i.Args))
		for idx, a := range i.Args {
			parts[idx] = a.String()
		}
		b.WriteString("(")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}
