package emit

import (
	"fmt"

	"decomp/internal/astgen"
	"decomp/internal/cfg"
	"decomp/internal/expr"
	"decomp/internal/word"
)

// inductionNames is the fixed rotation spec §6 names for loop induction
// variables: single letters for the first two nesting levels, doubled
// letters once those run out.
var inductionNames = []string{"i", "j", "ii", "jj"}

// renderCtx carries the naming decisions one function's emission needs:
// parameter/result names keyed by stack offset, and the induction-variable
// name currently in scope for each nested loop being walked.
type renderCtx struct {
	paramOffset map[int]string
	numRetvals  int
	loopDepth   int
	induction   []inductionBinding

	// calleeNames maps a call instruction's callee back to the spec §6
	// output name (loader/funcN/internal_<addr>) that function itself
	// was emitted under, so a call expression and the callee's own
	// `function ... {` header always agree.
	calleeNames map[*cfg.Function]string
}

type inductionBinding struct {
	offset int
	varID  uint64
	name   string
	hasVar bool
	hasStk bool
}

func newRenderCtx(fn *cfg.Function) *renderCtx {
	rc := &renderCtx{paramOffset: make(map[int]string), numRetvals: fn.NumRetvals}
	for i, p := range fn.Params {
		if s, ok := p.(*expr.Stack); ok {
			rc.paramOffset[s.Offset] = fmt.Sprintf("param%d", i)
		}
	}
	return rc
}

func (rc *renderCtx) paramList() []string {
	names := make([]string, len(rc.paramOffset))
	for idx := range names {
		names[idx] = fmt.Sprintf("param%d", idx)
	}
	return names
}

func (rc *renderCtx) resultHeader() string {
	switch rc.numRetvals {
	case 0:
		return ""
	case 1:
		return "returns (result) "
	default:
		names := make([]string, rc.numRetvals)
		for i := range names {
			names[i] = fmt.Sprintf("result%d", i)
		}
		s := "returns ("
		for i, n := range names {
			if i > 0 {
				s += ", "
			}
			s += n
		}
		return s + ") "
	}
}

// pushLoop inspects l's header for a trailing Lt/SLt condition and, if
// found, binds its non-literal operand to the next induction-variable name
// in rotation for the duration of this loop's body.
func (rc *renderCtx) pushLoop(l *astgen.Loop) {
	binding := inductionBinding{name: inductionNames[min(rc.loopDepth, len(inductionNames)-1)]}
	if cond := loopCondition(l); cond != nil {
		if bop, ok := cond.(*expr.BinaryOp); ok && (bop.Op == expr.OpLt || bop.Op == expr.OpSLt) {
			if v := nonLiteralOperand(bop); v != nil {
				switch vv := v.(type) {
				case *expr.Var:
					binding.hasVar = true
					binding.varID = vv.ID()
				case *expr.Stack:
					binding.hasStk = true
					binding.offset = vv.Offset
				}
			}
		}
	}
	rc.induction = append(rc.induction, binding)
	rc.loopDepth++
}

func (rc *renderCtx) popLoop() {
	rc.loopDepth--
	rc.induction = rc.induction[:len(rc.induction)-1]
}

func loopCondition(l *astgen.Loop) expr.Expression {
	for _, n := range l.Header {
		if ifNode, ok := n.(*astgen.IfElse); ok {
			return ifNode.Cond
		}
	}
	return nil
}

func nonLiteralOperand(b *expr.BinaryOp) expr.Expression {
	_, leftLit := b.Left.(*expr.Lit)
	_, rightLit := b.Right.(*expr.Lit)
	switch {
	case !leftLit && rightLit:
		return b.Left
	case leftLit && !rightLit:
		return b.Right
	default:
		return nil
	}
}

func (rc *renderCtx) inductionNameFor(e expr.Expression) (string, bool) {
	for i := len(rc.induction) - 1; i >= 0; i-- {
		bind := rc.induction[i]
		switch v := e.(type) {
		case *expr.Var:
			if bind.hasVar && v.ID() == bind.varID {
				return bind.name, true
			}
		case *expr.Stack:
			if bind.hasStk && v.Offset == bind.offset {
				return bind.name, true
			}
		}
	}
	return "", false
}

// render renders e as C-like source text, substituting parameter and
// induction-variable names and collapsing And(mask, x) into a cast where
// the mask matches a recognized pattern (spec §6).
func (rc *renderCtx) render(e expr.Expression) string {
	if e == nil {
		return ""
	}
	if name, ok := rc.inductionNameFor(e); ok {
		return name
	}
	switch v := e.(type) {
	case *expr.Stack:
		if name, ok := rc.paramOffset[v.Offset]; ok {
			return name
		}
		return v.String()
	case *expr.BinaryOp:
		if v.Op == expr.OpAnd {
			if cast, ok := rc.castFor(v); ok {
				return cast
			}
		}
		return "(" + rc.render(v.Left) + " " + v.Op.Symbol() + " " + rc.render(v.Right) + ")"
	case *expr.UnaryOp:
		return v.Op.Symbol() + rc.render(v.X)
	case *expr.Mem:
		return "mem[" + rc.render(v.Addr) + " : " + rc.render(v.Length) + "]"
	case *expr.Storage:
		return "storage[" + rc.render(v.Addr) + "]"
	case *expr.NamedStorageAccess:
		return v.String()
	case *expr.PureFunctionCall:
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			parts[i] = rc.render(a)
		}
		return v.Name + "(" + joinComma(parts) + ")"
	case *expr.Sequence:
		return v.String()
	default:
		return e.String()
	}
}

func joinComma(parts []string) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += ", "
		}
		s += p
	}
	return s
}

// castFor recognizes And(mask, x)/And(x, mask) where mask is a literal
// bitmask of the low N bytes and renders the well-known casts spec §6
// names (address/byte), generalizing to uintN(x) for N in 16, 32, 64 and
// 128; other widths are not rendered as casts.
func (rc *renderCtx) castFor(b *expr.BinaryOp) (string, bool) {
	mask, x, ok := splitMask(b)
	if !ok {
		return "", false
	}
	bits := maskBitWidth(mask)
	if bits == 0 {
		return "", false
	}
	rendered := rc.render(x)
	switch bits {
	case 160:
		return "address(" + rendered + ")", true
	case 8:
		return "byte(" + rendered + ")", true
	case 16, 32, 64, 128:
		return fmt.Sprintf("uint%d(%s)", bits, rendered), true
	default:
		return "", false
	}
}

func splitMask(b *expr.BinaryOp) (*word.Word, expr.Expression, bool) {
	if l, ok := b.Left.(*expr.Lit); ok {
		return l.Value, b.Right, true
	}
	if l, ok := b.Right.(*expr.Lit); ok {
		return l.Value, b.Left, true
	}
	return nil, nil, false
}

// maskBitWidth returns n if mask equals exactly (1<<n)-1 for some n in
// {8,16,32,64,128,160,256} (a contiguous run of low set bits whose width
// matches a recognizable scalar size), else 0.
func maskBitWidth(mask *word.Word) int {
	for _, n := range []int{8, 16, 32, 64, 128, 160, 256} {
		if mask.Eq(allOnes(n)) {
			return n
		}
	}
	return 0
}

func allOnes(bits int) *word.Word {
	bytes := bits / 8
	buf := make([]byte, bytes)
	for i := range buf {
		buf[i] = 0xff
	}
	return word.FromBytes(buf)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
