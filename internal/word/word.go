// Package word provides the 256-bit machine-word arithmetic shared by the
// expression tree (internal/expr) and the interpreter (internal/interp).
//
// Arithmetic is performed modulo 2^256, matching the target machine's
// semantics exactly (spec §4.1: "faithful machine emulation for test
// oracles"). Signed operations sign-extend through SignExtend rather than
// relying on Go's native signed integer types, since the machine word is
// wider than any native signed type.
package word

import "github.com/holiman/uint256"

// Word is the 256-bit unsigned integer used throughout the decompiler.
type Word = uint256.Int

// Zero returns a fresh zero word.
func Zero() *Word { return new(Word) }

// One returns a fresh word equal to 1.
func One() *Word { return new(Word).SetOne() }

// FromUint64 builds a word from a native uint64.
func FromUint64(v uint64) *Word { return new(Word).SetUint64(v) }

// FromBytes builds a word from big-endian bytes, truncating/zero-extending to
// 32 bytes as uint256.SetBytes does.
func FromBytes(b []byte) *Word { return new(Word).SetBytes(b) }

// MustFromDecimal parses a base-10 literal, panicking on malformed input.
// Used only by tests and fixtures, never by the pipeline itself.
func MustFromDecimal(s string) *Word {
	w, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return w
}

// FreeMemPointerAddr is the reserved address of the "free memory pointer"
// slot (spec §3: Mem(addr=0x40, length=0x20) is the reserved sentinel).
const FreeMemPointerAddr = 0x40

// FreeMemPointerLen is the reserved length of the free-memory-pointer cell.
const FreeMemPointerLen = 0x20

// IsFreeMemPointerAddr reports whether w equals the literal free-memory
// pointer address (0x40).
func IsFreeMemPointerAddr(w *Word) bool {
	return w != nil && w.Eq(FromUint64(FreeMemPointerAddr))
}

// IsFreeMemPointerLen reports whether w equals the literal free-memory
// pointer cell length (0x20).
func IsFreeMemPointerLen(w *Word) bool {
	return w != nil && w.Eq(FromUint64(FreeMemPointerLen))
}

// SignExtend implements the machine's SIGNEXTEND operation: given a byte
// index b (0-based from the least significant byte) and a value x, sign
// extends x from (b+1) bytes to the full 256 bits.
func SignExtend(b, x *Word) *Word {
	if b.Cmp(FromUint64(31)) >= 0 {
		return new(Word).Set(x)
	}
	return new(Word).ExtendSign(x, b)
}

// IsNegative reports whether w's top bit is set (i.e. it represents a
// negative value under the machine's two's-complement signed
// interpretation).
func IsNegative(w *Word) bool {
	b := w.Bytes32()
	return b[0]&0x80 != 0
}

// Sign interprets w as a two's-complement signed 256-bit integer and
// returns its sign: -1, 0, or 1.
func Sign(w *Word) int {
	if w.IsZero() {
		return 0
	}
	if IsNegative(w) {
		return -1
	}
	return 1
}
