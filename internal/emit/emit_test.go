package emit

import (
	"strings"
	"testing"

	"decomp/internal/astgen"
	"decomp/internal/cfg"
	"decomp/internal/expr"
	"decomp/internal/structure"
)

func TestEmitFunctionNamesParamsAndResult(t *testing.T) {
	fn := cfg.NewFunction(0x10)
	header := fn.NewBlock(0x10)
	fn.HeaderNode = header
	fn.Params = []expr.Expression{&expr.Stack{Offset: 0}, &expr.Stack{Offset: -1}}
	fn.NumRetvals = 1

	header.Instructions = []*cfg.Instruction{
		cfg.NewAssign(&expr.Stack{Offset: -2}, &expr.BinaryOp{Op: expr.OpAdd, Left: &expr.Stack{Offset: 0}, Right: &expr.Stack{Offset: -1}}),
	}
	header.Terminator = cfg.NewRet([]expr.Expression{&expr.Stack{Offset: -2}})

	body, stats := astgen.Convert(fn, nil, nil)
	out, total := EmitContract([]Function{{Fn: fn, Name: "func_10", Body: body, Stats: stats}}, 7)

	if !strings.Contains(out, "contract Decompiled {") {
		t.Errorf("expected contract wrapper, got %q", out)
	}
	if !strings.Contains(out, "func_10(param0, param1) returns (result) {") {
		t.Errorf("expected named params and result, got %q", out)
	}
	if !strings.Contains(out, "param0") || !strings.Contains(out, "param1") {
		t.Errorf("expected body to reference named params, got %q", out)
	}
	if total.NumEVMInstrs != 7 {
		t.Errorf("expected NumEVMInstrs 7, got %d", total.NumEVMInstrs)
	}
}

func TestEmitAddressCast(t *testing.T) {
	rc := &renderCtx{paramOffset: map[int]string{}}
	mask := allOnes(160)
	and := &expr.BinaryOp{Op: expr.OpAnd, Left: &expr.Lit{Value: mask}, Right: &expr.Stack{Offset: 0}}
	got := rc.render(and)
	if got != "address(stack[0])" {
		t.Errorf("expected address cast, got %q", got)
	}
}

func TestEmitByteCast(t *testing.T) {
	rc := &renderCtx{paramOffset: map[int]string{}}
	and := &expr.BinaryOp{Op: expr.OpAnd, Left: &expr.Stack{Offset: 0}, Right: &expr.Lit{Value: allOnes(8)}}
	got := rc.render(and)
	if got != "byte(stack[0])" {
		t.Errorf("expected byte cast, got %q", got)
	}
}

func TestEmitNoMatchingMaskRendersPlainAnd(t *testing.T) {
	rc := &renderCtx{paramOffset: map[int]string{}}
	and := &expr.BinaryOp{Op: expr.OpAnd, Left: &expr.Lit{Value: expr.LitUint64(3).Value}, Right: &expr.Stack{Offset: 0}}
	got := rc.render(and)
	if got != "(0x3 & stack[0])" {
		t.Errorf("expected plain rendering, got %q", got)
	}
}

func TestEmitInductionVariableNaming(t *testing.T) {
	fn := cfg.NewFunction(0)
	header := fn.NewBlock(0x10)
	body := fn.NewBlock(0x20)
	follow := fn.NewBlock(0x30)
	fn.HeaderNode = header

	iVar := fn.Vars.New("")
	cond := &expr.BinaryOp{Op: expr.OpLt, Left: iVar, Right: expr.LitUint64(10)}
	header.Terminator = cfg.NewJCond(cond, expr.LitUint64(0x20))
	header.AddSuccessor(body)
	header.AddSuccessor(follow)

	body.Terminator = cfg.NewJump(expr.LitUint64(0x10))
	body.AddSuccessor(header)

	follow.Terminator = cfg.NewVMCall(nil, "stop", nil)

	loops := structure.FindLoops(fn)
	follows := structure.ConditionalFollows(fn, loops)
	astBody, stats := astgen.Convert(fn, loops, follows)

	out, _ := EmitContract([]Function{{Fn: fn, Name: "func_0", Body: astBody, Stats: stats}}, 0)
	if !strings.Contains(out, "if ((i < 0xa))") {
		t.Errorf("expected induction variable i in condition, got %q", out)
	}
}
