package dataflow

import (
	"testing"

	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// straightLineFunction builds a -> b -> c: a assigns the given variable, b
// assigns it again only when defInB is set, and c reads it into a stack
// slot before ending in a terminating vmcall. a and b have no terminator.
func straightLineFunction(t *testing.T, v *expr.Var, defInB bool) (*cfg.Function, *cfg.BasicBlock, *cfg.BasicBlock, *cfg.BasicBlock) {
	t.Helper()
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	b := f.NewBlock(1)
	c := f.NewBlock(2)
	a.AddSuccessor(b)
	b.AddSuccessor(c)
	f.HeaderNode = a

	a.Instructions = append(a.Instructions, cfg.NewAssign(v.Copy(), expr.LitUint64(1)))
	if defInB {
		b.Instructions = append(b.Instructions, cfg.NewAssign(v.Copy(), expr.LitUint64(2)))
	}
	c.Instructions = append(c.Instructions, cfg.NewAssign(&expr.Stack{Offset: 0}, v.Copy()))
	c.Terminator = cfg.NewVMCall(nil, "return", nil)
	return f, a, b, c
}

func TestExploreForwardFindsMustDefine(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	_, a, _, _ := straightLineFunction(t, v, false)

	var hits int
	err := NewExplorer().Explore(ProgramPoint{Block: a, Instr: 0}, v, Forward, Handlers{
		OnMustDefine: func(ProgramPoint) HandlerResult {
			hits++
			return Continue
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one must-define hit (a's own assign), got %d", hits)
	}
}

func TestExploreForwardFindsUse(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	_, a, _, _ := straightLineFunction(t, v, false)

	var used []ProgramPoint
	err := NewExplorer().Explore(ProgramPoint{Block: a, Instr: 0}, v, Forward, Handlers{
		OnMayUse: func(at ProgramPoint) HandlerResult {
			used = append(used, at)
			return Continue
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(used) != 1 {
		t.Fatalf("expected exactly one use (block c's read), got %d", len(used))
	}
}

func TestExploreStopExploringPathHaltsThatBranchOnly(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	_, a, _, _ := straightLineFunction(t, v, true)

	var useSeen bool
	err := NewExplorer().Explore(ProgramPoint{Block: a, Instr: 0}, v, Forward, Handlers{
		OnMustDefine: func(at ProgramPoint) HandlerResult {
			if at.Block == a {
				return Continue
			}
			return StopExploringPath
		},
		OnMayUse: func(ProgramPoint) HandlerResult {
			useSeen = true
			return Continue
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if useSeen {
		t.Error("the redefinition in b should have stopped this path before reaching c's use")
	}
}

func TestExploreReportsTerminatingVMCall(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	_, a, _, c := straightLineFunction(t, v, false)

	var terminatedAt *ProgramPoint
	err := NewExplorer().Explore(ProgramPoint{Block: a, Instr: 0}, v, Forward, Handlers{
		OnTerminate: func(at ProgramPoint) HandlerResult {
			terminatedAt = &at
			return Continue
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terminatedAt == nil || terminatedAt.Block != c {
		t.Fatal("expected termination to be reported at block c's terminating vmcall")
	}
}

func TestExploreBackwardFindsDefinitionFromUse(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	_, _, _, c := straightLineFunction(t, v, false)

	var hits int
	err := NewExplorer().Explore(ProgramPoint{Block: c, Instr: 0}, v, Backward, Handlers{
		OnMustDefine: func(ProgramPoint) HandlerResult {
			hits++
			return Continue
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected to walk back and find exactly one must-define (a's assign), got %d", hits)
	}
}

func TestExploreTerminatesOnCycle(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	b := f.NewBlock(1)
	a.AddSuccessor(b)
	b.AddSuccessor(a) // cycle
	f.HeaderNode = a

	a.Instructions = append(a.Instructions, cfg.NewAssign(&expr.Stack{Offset: 0}, v.Copy()))
	b.Instructions = append(b.Instructions, cfg.NewAssign(&expr.Stack{Offset: 1}, v.Copy()))

	if err := NewExplorer().Explore(ProgramPoint{Block: a, Instr: 0}, v, Forward, Handlers{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExploreStepBudgetExceeded(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	f := cfg.NewFunction(0)
	a := f.NewBlock(0)
	f.HeaderNode = a
	for i := 0; i < 100; i++ {
		a.Instructions = append(a.Instructions, cfg.NewAssign(&expr.Stack{Offset: i}, v.Copy()))
	}

	ex := &Explorer{MaxSteps: 5}
	err := ex.Explore(ProgramPoint{Block: a, Instr: 0}, v, Forward, Handlers{})
	if err != ErrExplorationFailed {
		t.Fatalf("expected ErrExplorationFailed, got %v", err)
	}
}
