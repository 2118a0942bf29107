package lifter

import (
	"testing"

	"decomp/internal/decode"
)

// buildOps mirrors decode.Decode without needing a full bytecode blob, so
// tests can assemble a block directly from opcodes.
func buildOps(codes ...decode.Opcode) []decode.Op {
	ops := make([]decode.Op, len(codes))
	for i, c := range codes {
		ops[i] = decode.Op{PC: uint64(i), Code: c}
	}
	return ops
}

func TestLiftSimpleAddStop(t *testing.T) {
	code := []byte{
		0x60, 0x01, // PUSH1 1
		0x60, 0x02, // PUSH1 2
		0x01,       // ADD
		0x00,       // STOP
	}
	ops := decode.Decode(code)
	contract := Lift(ops, code)
	loader := contract.Loader()
	if loader.HeaderNode == nil {
		t.Fatal("expected a header node")
	}
	bb := loader.HeaderNode
	if bb.Terminator == nil {
		t.Fatal("expected a terminator")
	}
	if bb.Terminator.Loc == nil || bb.Terminator.Loc.VMCall != "stop" {
		t.Fatalf("expected stop terminator, got %v", bb.Terminator)
	}
	if len(bb.Successors) != 0 {
		t.Fatalf("stop block should have no successors, got %d", len(bb.Successors))
	}
}

func TestLiftSplitsBlocksAtJumpdest(t *testing.T) {
	code := []byte{
		0x60, 0x05, // PUSH1 5 (jump target)
		0x56,       // JUMP
		0x5b,       // JUMPDEST @5 (padding misalignment aside, enough for split check)
		0x00,       // STOP
	}
	ops := decode.Decode(code)
	groups := splitBlocks(ops)
	if len(groups) != 2 {
		t.Fatalf("expected 2 blocks (split at JUMPDEST), got %d", len(groups))
	}
	if groups[1][0].Code != decode.JUMPDEST {
		t.Fatalf("expected second block to start at JUMPDEST, got %s", groups[1][0].Code)
	}
}

func TestLiftJumpToUnknownTargetGoesToRevertSink(t *testing.T) {
	code := []byte{
		0x60, 0xff, // PUSH1 0xff (not a real address in this tiny program)
		0x56, // JUMP
	}
	ops := decode.Decode(code)
	contract := Lift(ops, code)
	loader := contract.Loader()
	bb := loader.HeaderNode
	if len(bb.Successors) != 1 {
		t.Fatalf("expected 1 successor, got %d", len(bb.Successors))
	}
	sink := bb.Successors[0]
	if sink.Terminator == nil || sink.Terminator.Loc.VMCall != "revert" {
		t.Fatalf("expected jump to unresolvable target to land on revert sink, got %v", sink.Terminator)
	}
}

func TestLiftJCondWiresBothSuccessors(t *testing.T) {
	code := []byte{
		0x60, 0x00, // PUSH1 0 (cond)
		0x60, 0x06, // PUSH1 6 (target, JUMPDEST below)
		0x57,       // JUMPI @4
		0x00,       // STOP (fallthrough @5)
		0x5b,       // JUMPDEST @6
		0x00,       // STOP
	}
	ops := decode.Decode(code)
	contract := Lift(ops, code)
	bb := contract.Loader().HeaderNode
	if bb.Terminator == nil || bb.Terminator.Kind.String() != "jcond" {
		t.Fatalf("expected jcond terminator, got %v", bb.Terminator)
	}
	if len(bb.Successors) != 2 {
		t.Fatalf("expected 2 successors for jcond, got %d", len(bb.Successors))
	}
}

func TestLiftDupAndSwapPreserveStackDepth(t *testing.T) {
	code := []byte{
		0x60, 0x01, // PUSH1 1
		0x60, 0x02, // PUSH1 2
		0x80, // DUP1
		0x90, // SWAP1
		0x00, // STOP
	}
	ops := decode.Decode(code)
	contract := Lift(ops, code)
	bb := contract.Loader().HeaderNode
	if len(bb.Instructions) == 0 {
		t.Fatal("expected lifted instructions for dup/swap sequence")
	}
}

func TestLiftEmptyBytecodeProducesStopOnlyContract(t *testing.T) {
	contract := Lift(nil, nil)
	loader := contract.Loader()
	if loader.HeaderNode == nil || loader.HeaderNode.Terminator.Loc.VMCall != "stop" {
		t.Fatal("expected a synthesized stop block for empty bytecode")
	}
}
