package astgen

import (
	"testing"

	"decomp/internal/cfg"
	"decomp/internal/expr"
	"decomp/internal/structure"
)

func buildWhileLoopFn(t *testing.T) *cfg.Function {
	t.Helper()
	fn := cfg.NewFunction(0)
	header := fn.NewBlock(0x10)
	body := fn.NewBlock(0x20)
	follow := fn.NewBlock(0x30)
	fn.HeaderNode = header

	header.Terminator = cfg.NewJCond(expr.LitUint64(1), expr.LitUint64(0x20))
	header.AddSuccessor(body)
	header.AddSuccessor(follow)

	body.Terminator = cfg.NewJump(expr.LitUint64(0x10))
	body.AddSuccessor(header)

	follow.Terminator = cfg.NewVMCall(nil, "stop", nil)
	return fn
}

func TestConvertWhileLoopProducesLoopWithContinueAndBreak(t *testing.T) {
	fn := buildWhileLoopFn(t)
	loops := structure.FindLoops(fn)
	follows := structure.ConditionalFollows(fn, loops)

	body, stats := Convert(fn, loops, follows)
	if stats.NumGotos != 0 {
		t.Errorf("expected no gotos, got %d", stats.NumGotos)
	}
	if len(body) != 2 {
		t.Fatalf("expected [Loop, Sequence], got %d nodes", len(body))
	}
	loop, ok := body[0].(*Loop)
	if !ok {
		t.Fatalf("expected first node to be a Loop, got %T", body[0])
	}
	if len(loop.Header) != 2 {
		t.Fatalf("expected loop header to hold [Sequence, IfElse], got %d nodes", len(loop.Header))
	}
	ifNode, ok := loop.Header[1].(*IfElse)
	if !ok {
		t.Fatalf("expected second loop-header node to be an IfElse, got %T", loop.Header[1])
	}
	if len(ifNode.True) != 2 {
		t.Fatalf("expected true branch [Sequence, Continue], got %d nodes", len(ifNode.True))
	}
	if _, ok := ifNode.True[1].(*Continue); !ok {
		t.Errorf("expected true branch to end in Continue, got %T", ifNode.True[1])
	}
	if len(ifNode.False) != 1 {
		t.Fatalf("expected false branch [Break], got %d nodes", len(ifNode.False))
	}
	if _, ok := ifNode.False[0].(*Break); !ok {
		t.Errorf("expected false branch to be Break, got %T", ifNode.False[0])
	}
	if _, ok := body[1].(*Sequence); !ok {
		t.Errorf("expected trailing node after the loop to be a Sequence, got %T", body[1])
	}
}

func buildDiamondFn(t *testing.T) *cfg.Function {
	t.Helper()
	fn := cfg.NewFunction(0)
	header := fn.NewBlock(0x10)
	left := fn.NewBlock(0x20)
	right := fn.NewBlock(0x30)
	join := fn.NewBlock(0x40)
	fn.HeaderNode = header

	header.Terminator = cfg.NewJCond(expr.LitUint64(1), expr.LitUint64(0x20))
	header.AddSuccessor(left)
	header.AddSuccessor(right)

	left.Terminator = cfg.NewJump(expr.LitUint64(0x40))
	left.AddSuccessor(join)

	right.Terminator = cfg.NewJump(expr.LitUint64(0x40))
	right.AddSuccessor(join)

	join.Terminator = cfg.NewVMCall(nil, "stop", nil)
	return fn
}

func TestConvertDiamondProducesIfElseThenJoin(t *testing.T) {
	fn := buildDiamondFn(t)
	loops := structure.FindLoops(fn)
	follows := structure.ConditionalFollows(fn, loops)

	body, stats := Convert(fn, loops, follows)
	if stats.NumGotos != 0 {
		t.Errorf("expected no gotos, got %d", stats.NumGotos)
	}
	if len(body) != 3 {
		t.Fatalf("expected [Sequence, IfElse, Sequence], got %d nodes", len(body))
	}
	if _, ok := body[0].(*Sequence); !ok {
		t.Errorf("expected header Sequence first, got %T", body[0])
	}
	ifNode, ok := body[1].(*IfElse)
	if !ok {
		t.Fatalf("expected an IfElse, got %T", body[1])
	}
	if len(ifNode.True) != 1 || len(ifNode.False) != 1 {
		t.Errorf("expected single-statement branches, got %d/%d", len(ifNode.True), len(ifNode.False))
	}
	joinSeq, ok := body[2].(*Sequence)
	if !ok {
		t.Fatalf("expected trailing join Sequence, got %T", body[2])
	}
	if joinSeq.Origin.Address != 0x40 {
		t.Errorf("expected join sequence to originate at 0x40, got %#x", joinSeq.Origin.Address)
	}
}
