package lifter

import (
	"decomp/internal/cfg"
	"decomp/internal/decode"
	"decomp/internal/expr"
)

// termKind classifies how a block's lifted op sequence ends (spec §4.3
// "init_terminators").
type termKind int

const (
	termFallthrough termKind = iota
	termJump
	termJCond
	termVMCall
)

// liftResult is one pass's output for a single basic block: the ordinary
// (non-terminator) instructions plus whatever operands the block's final
// op needs to build its terminator.
type liftResult struct {
	instrs     []*cfg.Instruction
	term       termKind
	termTarget expr.Expression   // jump/jcond target
	termCond   expr.Expression   // jcond condition
	termVMCall string            // terminating vmcall name
	termArgs   []expr.Expression // terminating vmcall args
}

// blockLifter holds the per-block virtual-stack state for one lifting pass
// (spec §4.3 step 1: "Maintain virtual_sp (signed) starting at 0").
type blockLifter struct {
	vars   *expr.VarDispenser
	sp     int
	instrs []*cfg.Instruction
}

// liftBlockOnce runs one lifting pass over ops starting at virtual_sp =
// spStart, returning the lifted block and its final virtual_sp (the
// caller computes SPDelta = final - spStart and decides whether a second
// pass is needed — spec §4.3 step 2).
func liftBlockOnce(vars *expr.VarDispenser, ops []decode.Op, spStart int) (liftResult, int) {
	bl := &blockLifter{vars: vars, sp: spStart}
	var res liftResult
	for _, op := range ops {
		if r, terminal := bl.step(op); terminal {
			res = r
			break
		}
	}
	res.instrs = bl.instrs
	return res, bl.sp
}

func (bl *blockLifter) emit(i *cfg.Instruction) { bl.instrs = append(bl.instrs, i) }

func (bl *blockLifter) slot(offset int) *expr.Stack { return &expr.Stack{Offset: offset} }

// push assigns e to the slot one above the current stack pointer and
// advances sp (spec §4.3: PUSH/DUP/arithmetic results all push this way).
func (bl *blockLifter) push(e expr.Expression) {
	bl.sp++
	bl.emit(cfg.NewAssign(bl.slot(bl.sp), e))
}

// pop implements spec §4.3's key rule: "pop assigns the tos expression to
// a temporary, then writes UnusedValue back to the stack slot" — this is
// what lets downstream dead-code elimination recognize the slot as dead.
// Returns a copy of the temporary so the caller can embed it in another
// instruction without aliasing the Var that owns the assign's LHS.
func (bl *blockLifter) pop() expr.Expression {
	s := bl.slot(bl.sp)
	tmp := bl.vars.New("")
	bl.emit(cfg.NewAssign(tmp, s.Copy()))
	bl.emit(cfg.NewAssign(s.Copy(), expr.UnusedValue{}))
	bl.sp--
	return tmp.Copy()
}

// popJumpTarget pops a jump destination like pop, but returns the literal
// itself when the block's last lifted instruction pushed it (PUSH then
// JUMP/JUMPI), so wireTerminator can resolve the edge directly.
func (bl *blockLifter) popJumpTarget() expr.Expression {
	var lit expr.Expression
	if n := len(bl.instrs); n > 0 && bl.instrs[n-1].Kind == cfg.InstrAssign {
		if l, ok := bl.instrs[n-1].Args[0].(*expr.Lit); ok {
			lit = l.Copy()
		}
	}
	if target := bl.pop(); lit == nil {
		return target
	}
	return lit
}

// dup implements spec §4.3: "DUPn pushes a copy of stack[sp+1-n]".
func (bl *blockLifter) dup(n int) {
	bl.push(bl.slot(bl.sp + 1 - n))
}

// swap implements spec §4.3: "SWAPn exchanges top with stack[sp-n] via a
// temporary local to enable later elimination".
func (bl *blockLifter) swap(n int) {
	top := bl.slot(bl.sp)
	other := bl.slot(bl.sp - n)
	tmp := bl.vars.New("")
	bl.emit(cfg.NewAssign(tmp, top.Copy()))
	bl.emit(cfg.NewAssign(top.Copy(), other.Copy()))
	bl.emit(cfg.NewAssign(other.Copy(), tmp.Copy()))
}

func (bl *blockLifter) popN(n int) []expr.Expression {
	args := make([]expr.Expression, n)
	for i := 0; i < n; i++ {
		args[i] = bl.pop()
	}
	return args
}

// binOp pops two operands (first-popped becomes Left) and pushes the
// result (spec §4.3: "arithmetic ops pop operands into temporaries and
// push a BinaryOp").
func (bl *blockLifter) binOp(op expr.BinOp) {
	l, r := bl.pop(), bl.pop()
	bl.push(&expr.BinaryOp{Op: op, Left: l, Right: r})
}

func (bl *blockLifter) unOp(op expr.UnOp) {
	x := bl.pop()
	bl.push(&expr.UnaryOp{Op: op, X: x})
}

// pureCall pops n operands and pushes a named pure call over them — the
// fallback used for opcodes (BYTE/SHL/SHR/SAR/ADDMOD/MULMOD/BALANCE/...)
// that don't have a dedicated Expression variant in spec §3's closed
// BinaryOp/UnaryOp sets.
func (bl *blockLifter) pureCall(name string, n int) {
	args := bl.popN(n)
	bl.push(&expr.PureFunctionCall{Name: name, Args: args})
}

func (bl *blockLifter) global(name string) { bl.push(&expr.GlobalVar{Name: name}) }

// vmcallSink pops n args and emits a side-effecting vmcall with no result
// (LOGn, CALLDATACOPY, CODECOPY, EXTCODECOPY, RETURNDATACOPY).
func (bl *blockLifter) vmcallSink(name string, n int) {
	args := bl.popN(n)
	bl.emit(cfg.NewVMCall(nil, name, args))
}

// vmcallPush pops n args and emits a side-effecting vmcall that pushes one
// result (CALL family, CREATE family).
func (bl *blockLifter) vmcallPush(name string, n int) {
	args := bl.popN(n)
	bl.sp++
	bl.emit(cfg.NewVMCall([]expr.Expression{bl.slot(bl.sp)}, name, args))
}

// step lifts a single low-level op. It returns (result, true) when op
// terminates the block (spec §4.3's terminator family); callers stop
// iterating at that point since block-splitting guarantees such an op is
// always last.
func (bl *blockLifter) step(op decode.Op) (liftResult, bool) {
	if n, ok := decode.IsPush(op.Code); ok {
		_ = n
		bl.push(expr.NewLit(op.Arg))
		return liftResult{}, false
	}
	if n, ok := decode.IsDup(op.Code); ok {
		bl.dup(n)
		return liftResult{}, false
	}
	if n, ok := decode.IsSwap(op.Code); ok {
		bl.swap(n)
		return liftResult{}, false
	}
	if topics, ok := decode.IsLog(op.Code); ok {
		bl.vmcallSink("log"+itoa(topics), 2+topics)
		return liftResult{}, false
	}

	switch op.Code {
	case decode.STOP:
		return liftResult{term: termVMCall, termVMCall: "stop"}, true
	case decode.RETURN:
		return liftResult{term: termVMCall, termVMCall: "return", termArgs: bl.popN(2)}, true
	case decode.REVERT:
		return liftResult{term: termVMCall, termVMCall: "revert", termArgs: bl.popN(2)}, true
	case decode.SELFDESTRUCT:
		return liftResult{term: termVMCall, termVMCall: "selfdestruct", termArgs: bl.popN(1)}, true
	case decode.INVALID:
		return liftResult{term: termVMCall, termVMCall: "invalid"}, true
	case decode.JUMP:
		return liftResult{term: termJump, termTarget: bl.popJumpTarget()}, true
	case decode.JUMPI:
		// spec/EVM operand order: target is popped first (stack top), cond
		// second.
		target := bl.popJumpTarget()
		cond := bl.pop()
		return liftResult{term: termJCond, termTarget: target, termCond: cond}, true
	case decode.JUMPDEST:
		return liftResult{}, false

	case decode.POP:
		bl.pop()
	case decode.ADD:
		bl.binOp(expr.OpAdd)
	case decode.MUL:
		bl.binOp(expr.OpMul)
	case decode.SUB:
		bl.binOp(expr.OpSub)
	case decode.DIV:
		bl.binOp(expr.OpDiv)
	case decode.SDIV:
		bl.binOp(expr.OpSDiv)
	case decode.MOD:
		bl.binOp(expr.OpMod)
	case decode.SMOD:
		bl.pureCall("smod", 2)
	case decode.ADDMOD:
		bl.pureCall("addmod", 3)
	case decode.MULMOD:
		bl.pureCall("mulmod", 3)
	case decode.EXP:
		bl.binOp(expr.OpExp)
	case decode.SIGNEXTEND:
		bl.binOp(expr.OpSignExtend)

	case decode.LT:
		bl.binOp(expr.OpLt)
	case decode.GT:
		bl.binOp(expr.OpGt)
	case decode.SLT:
		bl.binOp(expr.OpSLt)
	case decode.SGT:
		bl.binOp(expr.OpSGt)
	case decode.EQ:
		bl.binOp(expr.OpEq)
	case decode.ISZERO:
		bl.unOp(expr.OpNot)
	case decode.AND:
		bl.binOp(expr.OpAnd)
	case decode.OR:
		bl.binOp(expr.OpOr)
	case decode.XOR:
		bl.binOp(expr.OpXor)
	case decode.NOT:
		bl.unOp(expr.OpNeg)
	case decode.BYTE:
		bl.pureCall("byte", 2)
	case decode.SHL:
		bl.pureCall("shl", 2)
	case decode.SHR:
		bl.pureCall("shr", 2)
	case decode.SAR:
		bl.pureCall("sar", 2)

	case decode.SHA3:
		offset, length := bl.pop(), bl.pop()
		bl.push(&expr.PureFunctionCall{Name: "sha3", Args: []expr.Expression{&expr.Mem{Addr: offset, Length: length}}})

	case decode.ADDRESS:
		bl.global("address")
	case decode.BALANCE:
		bl.pureCall("balance", 1)
	case decode.ORIGIN:
		bl.global("origin")
	case decode.CALLER:
		bl.global("caller")
	case decode.CALLVALUE:
		bl.global("callvalue")
	case decode.CALLDATALOAD:
		bl.pureCall("calldataload", 1)
	case decode.CALLDATASIZE:
		bl.global("calldatasize")
	case decode.CALLDATACOPY:
		bl.vmcallSink("calldatacopy", 3)
	case decode.CODESIZE:
		bl.global("codesize")
	case decode.CODECOPY:
		bl.vmcallSink("codecopy", 3)
	case decode.GASPRICE:
		bl.global("gasprice")
	case decode.EXTCODESIZE:
		bl.pureCall("extcodesize", 1)
	case decode.EXTCODECOPY:
		bl.vmcallSink("extcodecopy", 4)
	case decode.RETURNDATASIZE:
		bl.global("returndatasize")
	case decode.RETURNDATACOPY:
		bl.vmcallSink("returndatacopy", 3)
	case decode.EXTCODEHASH:
		bl.pureCall("extcodehash", 1)

	case decode.BLOCKHASH:
		bl.pureCall("blockhash", 1)
	case decode.COINBASE:
		bl.global("coinbase")
	case decode.TIMESTAMP:
		bl.global("timestamp")
	case decode.NUMBER:
		bl.global("number")
	case decode.PREVRANDAO:
		bl.global("prevrandao")
	case decode.GASLIMIT:
		bl.global("gaslimit")
	case decode.CHAINID:
		bl.global("chainid")
	case decode.SELFBALANCE:
		bl.global("selfbalance")
	case decode.BASEFEE:
		bl.global("basefee")

	case decode.MLOAD:
		addr := bl.pop()
		bl.push(&expr.Mem{Addr: addr, Length: expr.LitUint64(0x20)})
	case decode.MSTORE:
		addr, val := bl.pop(), bl.pop()
		bl.emit(cfg.NewAssign(&expr.Mem{Addr: addr, Length: expr.LitUint64(0x20)}, val))
	case decode.MSTORE8:
		addr, val := bl.pop(), bl.pop()
		bl.emit(cfg.NewAssign(&expr.Mem{Addr: addr, Length: expr.LitUint64(1)}, val))
	case decode.SLOAD:
		slot := bl.pop()
		bl.push(&expr.Storage{Addr: slot})
	case decode.SSTORE:
		slot, val := bl.pop(), bl.pop()
		bl.emit(cfg.NewAssign(&expr.Storage{Addr: slot}, val))
	case decode.PC:
		bl.push(expr.LitUint64(op.PC))
	case decode.MSIZE:
		bl.global("msize")
	case decode.GAS:
		bl.global("gas")

	case decode.CREATE:
		bl.vmcallPush("create", 3)
	case decode.CALL:
		bl.vmcallPush("call", 7)
	case decode.CALLCODE:
		bl.vmcallPush("callcode", 7)
	case decode.DELEGATECALL:
		bl.vmcallPush("delegatecall", 6)
	case decode.CREATE2:
		bl.vmcallPush("create2", 4)
	case decode.STATICCALL:
		bl.vmcallPush("staticcall", 6)

	default:
		// Unknown opcode (spec §4.3 failure mode): treated as a revert,
		// ending the block. Reachable only when decode.IsValidOpcode would
		// have already flagged this same byte as invalid, since endsBlock
		// in lifter.go routes unknown bytes here as the block's last op.
		return liftResult{term: termVMCall, termVMCall: "revert"}, true
	}
	return liftResult{}, false
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
