package dataflow

import (
	"testing"

	"decomp/internal/expr"
)

func TestMustBeEqualStackRequiresSameBlock(t *testing.T) {
	a := &expr.Stack{Offset: 3}
	b := &expr.Stack{Offset: 3}
	if MustBeEqual(a, b, false) {
		t.Error("Stack offsets must never be compared across blocks")
	}
	if !MustBeEqual(a, b, true) {
		t.Error("same-offset Stack slots within one block must be equal")
	}
}

func TestMustBeEqualVarIgnoresBlockContext(t *testing.T) {
	d := expr.NewVarDispenser()
	v := d.New("x")
	other := v.Copy().(*expr.Var)
	if !MustBeEqual(v, other, false) {
		t.Error("a Var copy must still be the same variable across blocks")
	}
}

func TestMayBeEqualStackCrossBlockIsConservative(t *testing.T) {
	a := &expr.Stack{Offset: 1}
	b := &expr.Stack{Offset: 2}
	if !MayBeEqual(a, b, false) {
		t.Error("cross-block Stack comparisons must default to may-alias")
	}
	if MayBeEqual(a, b, true) {
		t.Error("distinct offsets within one block are genuinely disjoint")
	}
}

func TestMayBeEqualMemDisjointLiteralRanges(t *testing.T) {
	a := &expr.Mem{Addr: expr.LitUint64(0x00), Length: expr.LitUint64(0x20)}
	b := &expr.Mem{Addr: expr.LitUint64(0x20), Length: expr.LitUint64(0x20)}
	if MayBeEqual(a, b, true) {
		t.Error("adjacent non-overlapping literal memory ranges must not alias")
	}
}

func TestMayBeEqualMemOverlappingLiteralRanges(t *testing.T) {
	a := &expr.Mem{Addr: expr.LitUint64(0x00), Length: expr.LitUint64(0x20)}
	b := &expr.Mem{Addr: expr.LitUint64(0x10), Length: expr.LitUint64(0x20)}
	if !MayBeEqual(a, b, true) {
		t.Error("overlapping literal memory ranges must alias")
	}
}

func TestFreeMemPointerCannotAliasItsOwnTarget(t *testing.T) {
	fmp := &expr.Mem{Addr: expr.LitUint64(0x40), Length: expr.LitUint64(0x20)}
	target := &expr.Mem{Addr: fmp.Copy(), Length: expr.LitUint64(0x20)}
	if MayBeEqual(fmp, target, true) {
		t.Error("the free memory pointer cell must never alias a load through itself")
	}
}

func TestMayBeEqualMemNonLiteralIsConservative(t *testing.T) {
	d := expr.NewVarDispenser()
	a := &expr.Mem{Addr: d.New("p"), Length: expr.LitUint64(0x20)}
	b := &expr.Mem{Addr: expr.LitUint64(0x100), Length: expr.LitUint64(0x20)}
	if !MayBeEqual(a, b, true) {
		t.Error("a non-literal memory address must be treated as possibly aliasing")
	}
}

func TestMustBeEqualStorageByLiteralAddress(t *testing.T) {
	a := &expr.Storage{Addr: expr.LitUint64(5)}
	b := &expr.Storage{Addr: expr.LitUint64(5)}
	if !MustBeEqual(a, b, false) {
		t.Error("storage cells at the same literal slot must be equal")
	}
}

func TestNamedStorageAccessIdentityBySlotAndOffset(t *testing.T) {
	a := &expr.NamedStorageAccess{Kind: expr.NamedStorageMapping, Num: 0, Offset: expr.LitUint64(1)}
	b := &expr.NamedStorageAccess{Kind: expr.NamedStorageMapping, Num: 0, Offset: expr.LitUint64(1)}
	c := &expr.NamedStorageAccess{Kind: expr.NamedStorageMapping, Num: 1, Offset: expr.LitUint64(1)}
	if !MustBeEqual(a, b, false) {
		t.Error("identical named storage accesses must be equal")
	}
	if MustBeEqual(a, c, false) {
		t.Error("named storage accesses on different base slots must differ")
	}
}

func TestGlobalVarIdentityByName(t *testing.T) {
	a := &expr.GlobalVar{Name: "caller"}
	b := &expr.GlobalVar{Name: "caller"}
	c := &expr.GlobalVar{Name: "origin"}
	if !MustBeEqual(a, b, false) || MustBeEqual(a, c, false) {
		t.Error("GlobalVar equality must be by name only")
	}
}

func TestMustBeEqualTypeMismatchIsFalse(t *testing.T) {
	s := &expr.Stack{Offset: 0}
	v := expr.NewVarDispenser().New("x")
	if MustBeEqual(s, v, true) {
		t.Error("identifiers of different kinds can never be must-equal")
	}
}
