package decode

import "decomp/internal/word"

// Op is one low-level instruction (spec §4.3 input): `{PC, Code, Arg}`.
// Arg is non-nil only for PUSH ops.
type Op struct {
	PC   uint64
	Code Opcode
	Arg  *word.Word
}

// Decode turns a raw bytecode blob into an ordered slice of low-level ops
// (spec §1/§4.3). A PUSHn whose immediate bytes run past the end of code
// is zero-padded, matching real EVM client behavior for truncated trailing
// pushes. Bytes that don't correspond to any known opcode still decode to
// an Op (Code holds the raw byte, which Opcode.String renders as
// "INVALID") rather than being dropped — internal/lifter is responsible
// for turning an unrecognized opcode into a revert vmcall (spec §4.3
// failure mode), not the decoder.
func Decode(code []byte) []Op {
	var ops []Op
	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		start := pc
		pc++
		if n, ok := IsPush(op); ok {
			buf := make([]byte, n)
			copy(buf, code[pc:min(len(code), pc+n)])
			ops = append(ops, Op{PC: uint64(start), Code: op, Arg: word.FromBytes(buf)})
			pc += n
			continue
		}
		ops = append(ops, Op{PC: uint64(start), Code: op})
	}
	return ops
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// IsValidOpcode reports whether op appears in the known mnemonic table
// (PUSH/DUP/SWAP/LOG families count as valid; anything else byte value
// that isn't a named single-byte opcode does not).
func IsValidOpcode(op Opcode) bool {
	if _, ok := IsPush(op); ok {
		return true
	}
	if _, ok := IsDup(op); ok {
		return true
	}
	if _, ok := IsSwap(op); ok {
		return true
	}
	if _, ok := IsLog(op); ok {
		return true
	}
	_, ok := names[op]
	return ok
}
