package interp

import (
	"fmt"

	"decomp/internal/astgen"
	"decomp/internal/cfg"
	"decomp/internal/derrors"
	"decomp/internal/word"
)

// ctrlKind is the AST interpreter's local control signal: unlike the IR
// driver, which always walks from one concrete BasicBlock to another,
// astgen's Break/Continue/Loop nodes carry no block to jump to, so
// executing them has to bubble a signal up through however many IfElse
// levels separate them from the Loop they target.
type ctrlKind int

const (
	ctrlNormal ctrlKind = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

// RunAST executes a function's already-converted astgen.Block the same
// way Run executes its cfg.Function, so the two can be compared for the
// round-trip property (spec §8): same contract, same inputs, same
// outputs, however it is represented. funcASTs supplies the bodies of any
// functions fn calls into.
func RunAST(c *cfg.Contract, body astgen.Block, args []*word.Word, calldata, bytecode []byte, stepBudget int, funcASTs map[*cfg.Function]astgen.Block) (*Outcome, error) {
	env := NewEnv(calldata, bytecode, stepBudget)
	for i, a := range args {
		env.setStack(-i, a)
	}
	ctrl, outcome, err := execBlock(c, body, env, funcASTs)
	if err != nil {
		return nil, err
	}
	if ctrl != ctrlReturn {
		return &Outcome{}, nil
	}
	return outcome, nil
}

func execBlock(c *cfg.Contract, block astgen.Block, env *Env, funcASTs map[*cfg.Function]astgen.Block) (ctrlKind, *Outcome, error) {
	for _, node := range block {
		switch n := node.(type) {
		case *astgen.Sequence:
			ctrl, outcome, err := execSequence(c, n, env, funcASTs)
			if err != nil {
				return ctrlNormal, nil, err
			}
			if ctrl != ctrlNormal {
				return ctrl, outcome, nil
			}

		case *astgen.IfElse:
			cond, err := env.eval(n.Cond)
			if err != nil {
				return ctrlNormal, nil, err
			}
			branch := n.False
			if !cond.Eq(word.Zero()) {
				branch = n.True
			}
			ctrl, outcome, err := execBlock(c, branch, env, funcASTs)
			if err != nil {
				return ctrlNormal, nil, err
			}
			if ctrl != ctrlNormal {
				return ctrl, outcome, nil
			}

		case *astgen.Loop:
			for {
				ctrl, outcome, err := execBlock(c, n.Header, env, funcASTs)
				if err != nil {
					return ctrlNormal, nil, err
				}
				if ctrl == ctrlReturn {
					return ctrlReturn, outcome, nil
				}
				if ctrl == ctrlBreak {
					break
				}
				// ctrlContinue, and falling off the header's end without
				// hitting Break/Continue/Return, both mean the structured
				// while(true) loops again.
			}

		case *astgen.Break:
			return ctrlBreak, nil, nil

		case *astgen.Continue:
			return ctrlContinue, nil, nil

		case *astgen.IndirectJump:
			target, err := env.eval(n.Dest)
			if err != nil {
				return ctrlNormal, nil, err
			}
			return ctrlNormal, nil, derrors.NewInvalidJumpTarget(target.Uint64(), "interp: ast indirect jump")

		case *astgen.Goto:
			return ctrlNormal, nil, derrors.NewStructuringFailure(n.Label, "ast interpreter cannot execute an unresolved goto")
		}
	}
	return ctrlNormal, nil, nil
}

// execSequence runs one basic block's worth of folded instructions. A
// step is charged once per Sequence (mirroring the IR driver's
// once-per-block charge, since a Sequence is exactly one BasicBlock's
// content) rather than once per instruction.
func execSequence(c *cfg.Contract, seq *astgen.Sequence, env *Env, funcASTs map[*cfg.Function]astgen.Block) (ctrlKind, *Outcome, error) {
	if err := env.step(); err != nil {
		return ctrlNormal, nil, err
	}
	for _, instr := range seq.Instrs {
		switch instr.Kind {
		case cfg.InstrAssign, cfg.InstrAssert:
			if err := env.execInstr(instr); err != nil {
				return ctrlNormal, nil, err
			}
		case cfg.InstrRet:
			vals, err := env.evalAll(instr.Args)
			if err != nil {
				return ctrlNormal, nil, err
			}
			return ctrlReturn, &Outcome{Values: vals}, nil
		case cfg.InstrVMCall:
			outcome, terminal, err := env.execASTVMCall(instr)
			if err != nil {
				return ctrlNormal, nil, err
			}
			if terminal {
				return ctrlReturn, outcome, nil
			}
		case cfg.InstrCall:
			outcome, err := env.execASTCall(c, instr, funcASTs)
			if err != nil {
				return ctrlNormal, nil, err
			}
			if outcome != nil {
				return ctrlReturn, outcome, nil
			}
		default:
			return ctrlNormal, nil, fmt.Errorf("interp: unexpected instruction kind %s in ast sequence", instr.Kind)
		}
	}
	return ctrlNormal, nil, nil
}

func (e *Env) execASTVMCall(instr *cfg.Instruction) (*Outcome, bool, error) {
	name := instr.Loc.VMCall
	switch name {
	case "stop":
		return &Outcome{VMCall: "stop"}, true, nil
	case "selfdestruct":
		return &Outcome{VMCall: "selfdestruct"}, true, nil
	case "invalid":
		return &Outcome{VMCall: "invalid"}, true, nil
	case "return", "revert":
		vals, err := e.evalAll(instr.Args)
		if err != nil {
			return nil, false, err
		}
		outcome := &Outcome{VMCall: name}
		if len(vals) == 2 {
			data := e.w.readMem(int(vals[0].Uint64()), int(vals[1].Uint64()))
			outcome.Values = []*word.Word{word.FromBytes(data)}
		}
		return outcome, true, nil
	case "calldatacopy":
		vals, err := e.evalAll(instr.Args)
		if err != nil {
			return nil, false, err
		}
		if len(vals) == 3 {
			destOff, srcOff, length := int(vals[0].Uint64()), int(vals[1].Uint64()), int(vals[2].Uint64())
			e.w.writeMemBytes(destOff, readPadded(e.w.calldata, srcOff, length))
		}
		return nil, false, nil
	case "log0", "log1", "log2", "log3", "log4", "codecopy", "extcodecopy", "returndatacopy":
		return nil, false, nil
	case "create", "call", "delegatecall", "create2", "staticcall":
		if err := e.assignResults(instr.Results, nil); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	default:
		return nil, false, nil
	}
}

func (e *Env) execASTCall(c *cfg.Contract, instr *cfg.Instruction, funcASTs map[*cfg.Function]astgen.Block) (*Outcome, error) {
	args, err := e.evalAll(instr.Args)
	if err != nil {
		return nil, err
	}
	callee := instr.Loc.Callee
	body, ok := funcASTs[callee]
	if !ok {
		return nil, fmt.Errorf("interp: no AST precomputed for function at %#x", callee.Address)
	}
	callEnv := e.callEnv()
	for i, a := range args {
		callEnv.setStack(-i, a)
	}
	ctrl, outcome, err := execBlock(c, body, callEnv, funcASTs)
	if err != nil {
		return nil, err
	}
	if ctrl != ctrlReturn {
		outcome = &Outcome{}
	}
	if outcome.VMCall == "revert" || outcome.VMCall == "invalid" {
		return outcome, nil
	}
	if err := e.assignResults(instr.Results, outcome.Values); err != nil {
		return nil, err
	}
	return nil, nil
}
