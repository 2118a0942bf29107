// Package interp is the evaluator/interpreter collaborator (spec §6): it
// executes either the pre-structuring IR graph (internal/cfg) or the
// post-conversion AST (internal/astgen) over a calldata input and reports
// the resulting output words, used only by the test harness to check the
// round-trip property of spec §8 (the same contract, run both ways,
// produces the same outputs).
package interp

import (
	"errors"
	"fmt"

	"decomp/internal/expr"
	"decomp/internal/word"

	"golang.org/x/crypto/sha3"
)

// ErrOutOfGas is returned once a run exceeds its step budget (spec §8's
// endless-loop case). ErrAssertionFailure is returned when a reconstructed
// assert's condition evaluates to zero.
var (
	ErrOutOfGas         = errors.New("interp: step budget exceeded")
	ErrAssertionFailure = errors.New("interp: assertion failed")
)

// world is the mutable state shared across every function-call frame in
// one run: linear memory, persistent storage, and the calldata/bytecode
// the running contract reads from. Stack and locals are per-call and live
// in frame instead (spec §3: "Stack equality is only meaningful within one
// basic block" — the interpreter mirrors that by giving every call its own
// stack and var space rather than one global one).
type world struct {
	memory       []byte
	storage      map[string]*word.Word
	namedStorage map[string]*word.Word
	calldata     []byte
	bytecode     []byte

	steps      int
	stepBudget int
}

// frame is one function call's local state.
type frame struct {
	stack map[int]*word.Word
	vars  map[uint64]*word.Word
}

func newFrame() *frame {
	return &frame{stack: make(map[int]*word.Word), vars: make(map[uint64]*word.Word)}
}

// Env is the per-call expr.Env implementation threaded through
// Expression.Evaluate.
type Env struct {
	w *world
	f *frame
}

// NewEnv starts a fresh run: empty memory/storage, the given calldata, and
// an empty top-level frame.
func NewEnv(calldata, bytecode []byte, stepBudget int) *Env {
	return &Env{
		w: &world{
			storage:      make(map[string]*word.Word),
			namedStorage: make(map[string]*word.Word),
			calldata:     calldata,
			bytecode:     bytecode,
			stepBudget:   stepBudget,
		},
		f: newFrame(),
	}
}

// callEnv returns a new Env for a nested function call: same world (memory,
// storage, calldata persist across the call), fresh frame.
func (e *Env) callEnv() *Env {
	return &Env{w: e.w, f: newFrame()}
}

// step counts one executed instruction against the run's step budget,
// returning ErrOutOfGas once it's exhausted — this is how an endless loop
// (spec §8 E5) turns into an interpreter error instead of hanging forever.
func (e *Env) step() error {
	e.w.steps++
	if e.w.steps > e.w.stepBudget {
		return ErrOutOfGas
	}
	return nil
}

func (e *Env) StackValue(offset int) (*word.Word, error) {
	if v, ok := e.f.stack[offset]; ok {
		return v, nil
	}
	return word.Zero(), nil
}

func (e *Env) setStack(offset int, v *word.Word) { e.f.stack[offset] = v }

func (e *Env) VarValue(v *expr.Var) (*word.Word, error) {
	if val, ok := e.f.vars[v.ID()]; ok {
		return val, nil
	}
	return word.Zero(), nil
}

func (e *Env) setVar(v *expr.Var, val *word.Word) { e.f.vars[v.ID()] = val }

func (e *Env) MemValue(addr, length *word.Word) (*word.Word, error) {
	a, n := addrLen(addr, length)
	return word.FromBytes(e.w.readMem(a, n)), nil
}

func (e *Env) setMem(addr, length *word.Word, v *word.Word) {
	a, n := addrLen(addr, length)
	e.w.writeMem(a, n, v)
}

func (e *Env) StorageValue(addr *word.Word) (*word.Word, error) {
	if v, ok := e.w.storage[addr.Hex()]; ok {
		return v, nil
	}
	return word.Zero(), nil
}

func (e *Env) setStorage(addr *word.Word, v *word.Word) { e.w.storage[addr.Hex()] = v }

func (e *Env) NamedStorageValue(kind expr.NamedStorageKind, num int, offset *word.Word) (*word.Word, error) {
	key := namedKey(kind, num, offset)
	if v, ok := e.w.namedStorage[key]; ok {
		return v, nil
	}
	return word.Zero(), nil
}

func (e *Env) setNamedStorage(kind expr.NamedStorageKind, num int, offset *word.Word, v *word.Word) {
	e.w.namedStorage[namedKey(kind, num, offset)] = v
}

func namedKey(kind expr.NamedStorageKind, num int, offset *word.Word) string {
	return fmt.Sprintf("%d:%d:%s", kind, num, offset.Hex())
}

// GlobalValue stubs the environment-opcode globals (ADDRESS, CALLER,
// TIMESTAMP, ...) as zero: this interpreter runs a contract in isolation,
// with no surrounding chain state to report truthfully.
func (e *Env) GlobalValue(name string) (*word.Word, error) {
	return word.Zero(), nil
}

// PureCall implements the side-effect-free operations spec §4.3 lifts to
// PureFunctionCall: calldataload and the bit-twiddling opcodes with no
// dedicated Expression variant.
func (e *Env) PureCall(name string, args []*word.Word) (*word.Word, error) {
	switch name {
	case "calldataload":
		off := int(args[0].Uint64())
		return word.FromBytes(readPadded(e.w.calldata, off, 32)), nil
	case "sha3":
		return nil, fmt.Errorf("sha3 must be called with a Mem argument, not evaluated as a word list")
	case "balance", "extcodesize", "extcodehash", "blockhash":
		return word.Zero(), nil
	case "byte":
		return applyByte(args[0], args[1]), nil
	case "shl":
		return new(word.Word).Lsh(args[1], uint(args[0].Uint64())), nil
	case "shr":
		return new(word.Word).Rsh(args[1], uint(args[0].Uint64())), nil
	case "sar":
		return new(word.Word).SRsh(args[1], uint(args[0].Uint64())), nil
	case "smod":
		return new(word.Word).SMod(args[0], args[1]), nil
	case "addmod":
		return new(word.Word).AddMod(args[0], args[1], args[2]), nil
	case "mulmod":
		return new(word.Word).MulMod(args[0], args[1], args[2]), nil
	default:
		return word.Zero(), nil
	}
}

// evalSha3 hashes the memory region a PureFunctionCall("sha3", [Mem]) node
// denotes. Called directly from expression evaluation glue rather than
// through PureCall since sha3's one argument is a Mem expression, not a
// word — evaluating it as a word first would lose the addr/length pair.
func (e *Env) evalSha3(m *expr.Mem) (*word.Word, error) {
	addr, err := m.Addr.Evaluate(e)
	if err != nil {
		return nil, err
	}
	length, err := m.Length.Evaluate(e)
	if err != nil {
		return nil, err
	}
	a, n := addrLen(addr, length)
	h := sha3.NewLegacyKeccak256()
	h.Write(e.w.readMem(a, n))
	return word.FromBytes(h.Sum(nil)), nil
}

func addrLen(addr, length *word.Word) (int, int) {
	return int(addr.Uint64()), int(length.Uint64())
}

func (w *world) readMem(addr, n int) []byte {
	if addr+n > len(w.memory) {
		return readPadded(w.memory, addr, n)
	}
	return append([]byte{}, w.memory[addr:addr+n]...)
}

func (w *world) writeMem(addr, n int, v *word.Word) {
	if addr+n > len(w.memory) {
		grown := make([]byte, addr+n)
		copy(grown, w.memory)
		w.memory = grown
	}
	src := rightAlignedBytes(v, n)
	copy(w.memory[addr:addr+n], src)
}

func (w *world) writeMemBytes(addr int, data []byte) {
	end := addr + len(data)
	if end > len(w.memory) {
		grown := make([]byte, end)
		copy(grown, w.memory)
		w.memory = grown
	}
	copy(w.memory[addr:end], data)
}

// readPadded reads n bytes from buf starting at off, zero-padding past
// buf's end the way real linear memory and calldata both behave.
func readPadded(buf []byte, off, n int) []byte {
	out := make([]byte, n)
	if off >= len(buf) {
		return out
	}
	copy(out, buf[off:min(len(buf), off+n)])
	return out
}

// rightAlignedBytes renders v as n bytes, big-endian, truncating or
// zero-padding on the left as memory writes narrower than a full word do.
func rightAlignedBytes(v *word.Word, n int) []byte {
	full := v.Bytes32()
	if n >= 32 {
		out := make([]byte, n)
		copy(out[n-32:], full[:])
		return out
	}
	return full[32-n:]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// applyByte implements the BYTE opcode: the i-th byte of x counting from
// the most significant end, or zero when i is out of range.
func applyByte(i, x *word.Word) *word.Word {
	idx := i.Uint64()
	if idx >= 32 {
		return word.Zero()
	}
	b := x.Bytes32()
	return word.FromUint64(uint64(b[idx]))
}
