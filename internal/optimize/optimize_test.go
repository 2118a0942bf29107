package optimize

import (
	"testing"

	"decomp/internal/cfg"
	"decomp/internal/expr"
)

func TestPropagateSameBlockSimpleSubstitution(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	d := expr.NewVarDispenser()
	x := d.New("x")

	a.Instructions = append(a.Instructions,
		cfg.NewAssign(x, expr.LitUint64(42)),
		cfg.NewAssign(&expr.Stack{Offset: 0}, &expr.BinaryOp{Op: expr.OpAdd, Left: x, Right: expr.LitUint64(1)}),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	if !PropagateFunction(f) {
		t.Fatal("expected propagation to report a change")
	}
	add := a.Instructions[1].Args[0].(*expr.BinaryOp)
	lit, ok := add.Left.(*expr.Lit)
	if !ok || lit.Value.Uint64() != 42 {
		t.Fatalf("expected x to propagate to literal 42, got %v", add.Left)
	}
}

func TestPropagateTakesNearestDefinitionAfterRedefinition(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	d := expr.NewVarDispenser()
	x := d.New("x")

	a.Instructions = append(a.Instructions,
		cfg.NewAssign(x, expr.LitUint64(1)),
		cfg.NewAssign(x, expr.LitUint64(2)),
		cfg.NewAssign(&expr.Stack{Offset: 0}, x),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	PropagateFunction(f)
	if _, ok := a.Instructions[2].Args[0].(*expr.Var); ok {
		t.Fatalf("expected the use of x to be replaced by its nearest definition (x=2), got %v", a.Instructions[2].Args[0])
	}
	lit, ok := a.Instructions[2].Args[0].(*expr.Lit)
	if !ok || lit.Value.Uint64() != 2 {
		t.Fatalf("expected literal 2 from the redefinition, not 1 from across it, got %v", a.Instructions[2].Args[0])
	}
}

func TestPropagateNeverSubstitutesUnusedValue(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	d := expr.NewVarDispenser()
	x := d.New("x")

	a.Instructions = append(a.Instructions,
		cfg.NewAssign(x, expr.UnusedValue{}),
		cfg.NewAssign(&expr.Stack{Offset: 0}, x),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	PropagateFunction(f)
	if _, ok := a.Instructions[1].Args[0].(*expr.Var); !ok {
		t.Fatal("expected the use of x to remain unsubstituted since its only definition is UnusedValue")
	}
}

func TestPropagateSkipsInliningVMCallResultIntoAnExpression(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	d := expr.NewVarDispenser()
	x := d.New("x")

	a.Instructions = append(a.Instructions,
		cfg.NewVMCall([]expr.Expression{x}, "balance", []expr.Expression{expr.LitUint64(0)}),
		cfg.NewAssign(&expr.Stack{Offset: 0}, &expr.BinaryOp{Op: expr.OpAdd, Left: x, Right: expr.LitUint64(1)}),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	PropagateFunction(f)
	add := a.Instructions[1].Args[0].(*expr.BinaryOp)
	if _, ok := add.Left.(*expr.Var); !ok {
		t.Fatal("expected the vmcall result to remain a variable reference rather than be inlined into a sub-expression")
	}
}

func TestPropagateMovesVMCallDefinitionToItsWholeUseInstruction(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	d := expr.NewVarDispenser()
	x := d.New("x")

	a.Instructions = append(a.Instructions,
		cfg.NewVMCall([]expr.Expression{x}, "balance", []expr.Expression{expr.LitUint64(0)}),
		cfg.NewAssign(&expr.Stack{Offset: 0}, x),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	if !PropagateFunction(f) {
		t.Fatal("expected propagation to report a change")
	}
	if len(a.Instructions) != 1 {
		t.Fatalf("expected the original vmcall definition to be dropped once folded into its only use, got %v", a.Instructions)
	}
	use := a.Instructions[0]
	if use.Kind != cfg.InstrVMCall || use.Loc.VMCall != "balance" {
		t.Fatalf("expected the use instruction to become the balance vmcall, got %v", use)
	}
	if len(use.Results) != 1 {
		t.Fatalf("expected one result, got %v", use.Results)
	}
	stk, ok := use.Results[0].(*expr.Stack)
	if !ok || stk.Offset != 0 {
		t.Fatalf("expected the use's own result (Stack offset 0) to be kept, got %v", use.Results[0])
	}
}

func TestPropagateDoesNotMoveVMCallUsedMoreThanOnce(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	d := expr.NewVarDispenser()
	x := d.New("x")

	a.Instructions = append(a.Instructions,
		cfg.NewVMCall([]expr.Expression{x}, "balance", []expr.Expression{expr.LitUint64(0)}),
		cfg.NewAssign(&expr.Stack{Offset: 0}, x),
		cfg.NewAssign(&expr.Stack{Offset: 1}, x),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	PropagateFunction(f)
	if len(a.Instructions) != 3 {
		t.Fatalf("expected the vmcall definition kept since it has two uses, got %v", a.Instructions)
	}
	if a.Instructions[0].Kind != cfg.InstrVMCall {
		t.Fatalf("expected the definition to remain a vmcall, got %v", a.Instructions[0])
	}
}

func TestEliminateDeadAssignRemovesUnreadStackSlot(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	a.Instructions = append(a.Instructions,
		cfg.NewAssign(&expr.Stack{Offset: 0}, expr.LitUint64(1)),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	if !EliminateDeadAssigns(f) {
		t.Fatal("expected the never-read stack assignment to be eliminated")
	}
	if len(a.Instructions) != 0 {
		t.Fatalf("expected the dead assignment to be removed, got %v", a.Instructions)
	}
}

func TestEliminateDeadAssignNeverTouchesStorage(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	a.Instructions = append(a.Instructions,
		cfg.NewAssign(&expr.Storage{Addr: expr.LitUint64(0)}, expr.LitUint64(1)),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", nil)

	if EliminateDeadAssigns(f) {
		t.Fatal("a Storage write must never be eliminated regardless of liveness")
	}
	if len(a.Instructions) != 1 {
		t.Fatal("Storage assignment was removed")
	}
}

func TestUnusedVariableEliminationDropsUnreferencedVar(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	d := expr.NewVarDispenser()
	unused := d.New("dead")
	used := d.New("live")

	a.Instructions = append(a.Instructions,
		cfg.NewAssign(unused, expr.LitUint64(1)),
		cfg.NewAssign(used, expr.LitUint64(2)),
	)
	a.Terminator = cfg.NewVMCall(nil, "return", []expr.Expression{used})

	if !UnusedVariableElimination(f) {
		t.Fatal("expected the unreferenced var assignment to be removed")
	}
	if len(a.Instructions) != 1 {
		t.Fatalf("expected only the live assignment to remain, got %v", a.Instructions)
	}
}

func TestMergeBasicBlocksFoldsSinglePredecessorJump(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	b := f.NewBlock(1)
	f.HeaderNode = a

	a.Instructions = append(a.Instructions, cfg.NewAssign(&expr.Stack{Offset: 0}, expr.LitUint64(1)))
	a.Terminator = cfg.NewJump(expr.LitUint64(b.Address))
	a.AddSuccessor(b)

	b.Instructions = append(b.Instructions, cfg.NewAssign(&expr.Stack{Offset: 1}, expr.LitUint64(2)))
	b.Terminator = cfg.NewVMCall(nil, "return", nil)

	if !MergeBasicBlocks(f) {
		t.Fatal("expected the single-predecessor jump to be merged")
	}
	if len(a.Instructions) != 2 {
		t.Fatalf("expected both blocks' instructions concatenated, got %v", a.Instructions)
	}
	if a.Terminator.Kind != cfg.InstrVMCall {
		t.Fatalf("expected a to inherit b's terminator, got %v", a.Terminator)
	}
}

func TestMergeBasicBlocksSkipsMultiPredecessorSuccessor(t *testing.T) {
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	other := f.NewBlock(1)
	shared := f.NewBlock(2)
	f.HeaderNode = a

	a.Terminator = cfg.NewJump(expr.LitUint64(shared.Address))
	a.AddSuccessor(shared)
	other.Terminator = cfg.NewJump(expr.LitUint64(shared.Address))
	other.AddSuccessor(shared)
	shared.Terminator = cfg.NewVMCall(nil, "return", nil)

	if MergeBasicBlocks(f) {
		t.Fatal("must not merge a successor reachable from more than one predecessor")
	}
}
