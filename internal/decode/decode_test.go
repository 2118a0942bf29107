package decode

import "testing"

func TestDecodePushEmitsArgument(t *testing.T) {
	code := []byte{0x60, 0x2a, 0x00} // PUSH1 0x2a, STOP
	ops := Decode(code)
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(ops))
	}
	if ops[0].Code != PUSH1Byte() {
		t.Fatalf("expected PUSH1, got %s", ops[0].Code)
	}
	if ops[0].Arg == nil || ops[0].Arg.Uint64() != 0x2a {
		t.Fatalf("expected pushed arg 0x2a, got %v", ops[0].Arg)
	}
	if ops[1].PC != 2 || ops[1].Code != STOP {
		t.Fatalf("expected STOP at pc=2, got %+v", ops[1])
	}
}

func PUSH1Byte() Opcode { return Opcode(0x60) }

func TestDecodeTruncatedPushIsZeroPadded(t *testing.T) {
	code := []byte{0x61, 0xff} // PUSH2 with only one byte of immediate data
	ops := Decode(code)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(ops))
	}
	if ops[0].Arg.Uint64() != 0xff00 {
		t.Fatalf("expected zero-padded 0xff00, got %#x", ops[0].Arg.Uint64())
	}
}

func TestOpcodeStringSynthesizesFamilyNames(t *testing.T) {
	if Opcode(0x80).String() != "DUP1" {
		t.Errorf("expected DUP1, got %s", Opcode(0x80).String())
	}
	if Opcode(0x9f).String() != "SWAP16" {
		t.Errorf("expected SWAP16, got %s", Opcode(0x9f).String())
	}
	if Opcode(0xa4).String() != "LOG4" {
		t.Errorf("expected LOG4, got %s", Opcode(0xa4).String())
	}
	if Opcode(0x0c).String() != "INVALID" {
		t.Errorf("expected INVALID for unassigned byte, got %s", Opcode(0x0c).String())
	}
}

func TestIsValidOpcode(t *testing.T) {
	if !IsValidOpcode(ADD) {
		t.Error("ADD should be valid")
	}
	if IsValidOpcode(Opcode(0x0c)) {
		t.Error("0x0c should not be valid")
	}
}
