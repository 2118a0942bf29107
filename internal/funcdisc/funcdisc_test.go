package funcdisc

import (
	"testing"

	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// buildCallTargetFixture builds a minimal contract shaped like spec §4.8's
// call-target pattern: two callers each push a distinct literal return
// address, push one argument, and jump into a shared body that has no
// instructions of its own and jumps back indirectly.
func buildCallTargetFixture(t *testing.T) (*cfg.Contract, *cfg.BasicBlock) {
	t.Helper()
	contract := cfg.NewContract(nil)
	loader := contract.Loader()

	body := loader.NewBlock(0x100)
	ret1 := loader.NewBlock(0x10)
	ret2 := loader.NewBlock(0x20)
	caller1 := loader.NewBlock(0x1)
	caller2 := loader.NewBlock(0x2)

	loader.HeaderNode = caller1
	caller1.NextBB = caller2

	// caller1: push an (unused by this fixture) arg at slot -1, then push
	// the return address 0x10 last so it ends up on top (slot 0, the
	// block's own exit-relative convention) before jumping to body.
	caller1.Instructions = []*cfg.Instruction{
		cfg.NewAssign(&expr.Stack{Offset: -1}, expr.LitUint64(7)),
		cfg.NewAssign(&expr.Stack{Offset: 0}, expr.LitUint64(0x10)),
	}
	caller1.SPDelta = 2
	caller1.Terminator = cfg.NewJump(expr.LitUint64(0x100))
	caller1.AddSuccessor(body)

	caller2.Instructions = []*cfg.Instruction{
		cfg.NewAssign(&expr.Stack{Offset: -1}, expr.LitUint64(9)),
		cfg.NewAssign(&expr.Stack{Offset: 0}, expr.LitUint64(0x20)),
	}
	caller2.SPDelta = 2
	caller2.Terminator = cfg.NewJump(expr.LitUint64(0x100))
	caller2.AddSuccessor(body)

	// body: entered at sp=2 (return addr at offset 0 relative to entry,
	// param at offset -1); indirect jump back using Stack(0) as target.
	body.SPDelta = 0
	body.Terminator = cfg.NewJump(&expr.Stack{Offset: 0})

	ret1.Terminator = cfg.NewVMCall(nil, "stop", nil)
	ret2.Terminator = cfg.NewVMCall(nil, "stop", nil)

	return contract, body
}

func TestDiscoverInternalSplitsCallTarget(t *testing.T) {
	contract, body := buildCallTargetFixture(t)
	loader := contract.Loader()

	newFn, ok := tryMakeCallTarget(contract, loader, body)
	if !ok {
		t.Fatal("expected call-target discovery to succeed")
	}
	if newFn.NumRetvals < 0 {
		t.Errorf("expected non-negative NumRetvals, got %d", newFn.NumRetvals)
	}
	if !newFn.Flattened {
		t.Error("expected the new function to be flattened")
	}
}

func TestResolveStackVarFindsLiteralDefinition(t *testing.T) {
	b := cfg.NewFunction(0).NewBlock(0)
	b.SPDelta = 1
	b.Instructions = []*cfg.Instruction{
		cfg.NewAssign(&expr.Stack{Offset: 0}, expr.LitUint64(0x42)),
	}
	lit, key, ok := resolveStackVar(b, 0)
	if !ok || lit != 0x42 {
		t.Fatalf("expected to resolve literal 0x42, got %#x ok=%v", lit, ok)
	}
	if key == "" {
		t.Error("expected a non-empty definition key")
	}
}
