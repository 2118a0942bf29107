package word

import "testing"

func TestIsFreeMemPointerAddr(t *testing.T) {
	if !IsFreeMemPointerAddr(FromUint64(0x40)) {
		t.Error("0x40 should be recognized as the free memory pointer address")
	}
	if IsFreeMemPointerAddr(FromUint64(0x41)) {
		t.Error("0x41 should not be recognized as the free memory pointer address")
	}
}

func TestSignExtend(t *testing.T) {
	// SIGNEXTEND(0, 0xff) == all-ones (sign bit of the low byte propagated)
	got := SignExtend(FromUint64(0), FromUint64(0xff))
	want := new(Word).Not(Zero())
	if !got.Eq(want) {
		t.Errorf("SignExtend(0, 0xff) = %s, want %s", got.Hex(), want.Hex())
	}

	// SIGNEXTEND(0, 0x7f) == 0x7f (sign bit clear, no extension)
	got = SignExtend(FromUint64(0), FromUint64(0x7f))
	if !got.Eq(FromUint64(0x7f)) {
		t.Errorf("SignExtend(0, 0x7f) = %s, want 0x7f", got.Hex())
	}
}

func TestIsNegative(t *testing.T) {
	if IsNegative(FromUint64(1)) {
		t.Error("1 should not be negative")
	}
	allOnes := new(Word).Not(Zero())
	if !IsNegative(allOnes) {
		t.Error("all-ones should be negative under signed interpretation")
	}
}
