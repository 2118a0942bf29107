package dataflow

import (
	"errors"

	"decomp/internal/cfg"
	"decomp/internal/expr"
)

// DefaultMaxSteps is the hard step budget bounding exploration (spec §4.5,
// §5): "a hard step budget (default 35 instructions) bounds exploration".
const DefaultMaxSteps = 35

// ErrExplorationFailed is raised when the step budget is exceeded; callers
// treat it as "unknown — answer conservatively" (spec §7 AnalysisGaveUp).
var ErrExplorationFailed = errors.New("dataflow: exploration exceeded the step budget")

// Direction is the direction an Explore walk proceeds across the CFG.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// ProgramPoint names a specific instruction within a basic block: either
// one of its ordinary Instructions, or (when Instr == len(Instructions))
// its Terminator.
type ProgramPoint struct {
	Block *cfg.BasicBlock
	Instr int
}

func instrCount(b *cfg.BasicBlock) int {
	n := len(b.Instructions)
	if b.Terminator != nil {
		n++
	}
	return n
}

func instrAt(b *cfg.BasicBlock, idx int) *cfg.Instruction {
	if idx >= 0 && idx < len(b.Instructions) {
		return b.Instructions[idx]
	}
	if idx == len(b.Instructions) && b.Terminator != nil {
		return b.Terminator
	}
	return nil
}

// HandlerResult is returned by every subscriber callback to steer the walk.
type HandlerResult int

const (
	Continue HandlerResult = iota
	StopExploringPath
	StopExploringAltogether
)

// Handlers holds the four per-identifier event subscriptions plus the
// single path-termination handler described in spec §4.5. Any field may be
// left nil.
type Handlers struct {
	OnMayDefine    func(at ProgramPoint) HandlerResult
	OnMustDefine   func(at ProgramPoint) HandlerResult
	OnMayUse       func(at ProgramPoint) HandlerResult
	OnUnusedAssign func(at ProgramPoint) HandlerResult
	// OnTerminate fires once per path that reaches a terminating vmcall
	// without the path having been stopped first.
	OnTerminate func(at ProgramPoint) HandlerResult
}

// Explorer is the reusable DFS walker of spec §4.5 (C4). It is stateless
// across Explore calls but reentrant: the usesCache persists to amortize
// repeated instruction scans.
type Explorer struct {
	MaxSteps  int
	usesCache map[*cfg.Instruction][]expr.Expression
}

// NewExplorer creates an explorer with the default step budget.
func NewExplorer() *Explorer {
	return NewExplorerWithBudget(DefaultMaxSteps)
}

// NewExplorerWithBudget creates an explorer with an explicit step budget,
// for callers threading a configured budget (spec §5) instead of the
// default. A non-positive budget falls back to DefaultMaxSteps, matching
// Explore's own guard.
func NewExplorerWithBudget(budget int) *Explorer {
	if budget <= 0 {
		budget = DefaultMaxSteps
	}
	return &Explorer{MaxSteps: budget, usesCache: make(map[*cfg.Instruction][]expr.Expression)}
}

// usedIdentifiers returns the identifier-kind sub-expressions of instr's
// Args (and, for jump/jcond, its branch-target expression) — the "used
// identifiers" spec §4.5 has the walker collect at every instruction.
// Cached by instruction identity to amortize repeated scans across paths.
func (ex *Explorer) usedIdentifiers(instr *cfg.Instruction) []expr.Expression {
	if cached, ok := ex.usesCache[instr]; ok {
		return cached
	}
	if ex.usesCache == nil {
		ex.usesCache = make(map[*cfg.Instruction][]expr.Expression)
	}
	var used []expr.Expression
	collect := func(root expr.Expression) {
		expr.Walk(root, func(e expr.Expression) {
			if expr.IsIdentifier(e) {
				used = append(used, e)
			}
		})
	}
	for _, a := range instr.Args {
		collect(a)
	}
	if instr.Loc != nil && instr.Loc.Expr != nil {
		collect(instr.Loc.Expr)
	}
	ex.usesCache[instr] = used
	return used
}

// isNonPureCall reports whether instr is a call/vmcall whose side effects
// on Mem/Storage are not modeled (spec §4.5: "Call instructions are
// treated as may-defining all Mem and Storage").
func isNonPureCall(instr *cfg.Instruction) bool {
	return instr.Kind == cfg.InstrCall || instr.Kind == cfg.InstrVMCall
}

// pathState is per-path exploration state; copied (not shared) whenever a
// path forks across multiple successors/predecessors, so that one path's
// progress never contaminates a sibling path's seen-set or sp offset.
type pathState struct {
	seen     map[*cfg.BasicBlock]bool
	spOffset *int // nil means "unknown" (spec §4.5)
}

func (s pathState) fork() pathState {
	seen := make(map[*cfg.BasicBlock]bool, len(s.seen))
	for k, v := range s.seen {
		seen[k] = v
	}
	var sp *int
	if s.spOffset != nil {
		v := *s.spOffset
		sp = &v
	}
	return pathState{seen: seen, spOffset: sp}
}

// Explore walks the CFG from start in direction dir, looking for how id
// (an identifier expression) is defined/used/terminated along every path,
// invoking the registered handlers as it goes (spec §4.5).
func (ex *Explorer) Explore(start ProgramPoint, id expr.Expression, dir Direction, h Handlers) error {
	budget := ex.MaxSteps
	if budget <= 0 {
		budget = DefaultMaxSteps
	}
	steps := 0
	st := pathState{seen: make(map[*cfg.BasicBlock]bool)}
	result := ex.walkBlock(start.Block, start.Instr, start.Block, id, dir, h, st, &steps, budget)
	if result == errBudgetExceeded {
		return ErrExplorationFailed
	}
	return nil
}

// sentinel walk outcomes threaded through the recursive walk without
// allocating an error per step.
type walkOutcome int

const (
	outcomeOK walkOutcome = iota
	outcomeStopAll
	errBudgetExceeded
)

func (ex *Explorer) walkBlock(b *cfg.BasicBlock, startIdx int, startBlock *cfg.BasicBlock, id expr.Expression, dir Direction, h Handlers, st pathState, steps *int, budget int) walkOutcome {
	sameBB := b == startBlock
	n := instrCount(b)

	indices := make([]int, 0, n)
	if dir == Forward {
		for i := startIdx; i < n; i++ {
			indices = append(indices, i)
		}
	} else {
		for i := startIdx; i >= 0; i-- {
			indices = append(indices, i)
		}
	}

	stoppedThisPath := false
	for _, idx := range indices {
		instr := instrAt(b, idx)
		if instr == nil {
			continue
		}
		*steps++
		if *steps > budget {
			return errBudgetExceeded
		}

		point := ProgramPoint{Block: b, Instr: idx}
		outcome, stop := ex.visit(instr, point, sameBB, id, h)
		if outcome == outcomeStopAll {
			return outcomeStopAll
		}
		if stop {
			stoppedThisPath = true
			break
		}
	}
	if stoppedThisPath {
		return outcomeOK
	}

	// Reached the edge of this block along this path: check for path
	// termination (a terminating vmcall) or recurse into neighbors.
	if dir == Forward && b.Terminator != nil && b.Terminator.Kind == cfg.InstrVMCall &&
		b.Terminator.Loc != nil && cfg.IsTerminatingVMCall(b.Terminator.Loc.VMCall) {
		if h.OnTerminate != nil {
			switch h.OnTerminate(ProgramPoint{Block: b, Instr: n - 1}) {
			case StopExploringAltogether:
				return outcomeStopAll
			}
		}
		return outcomeOK
	}

	if st.seen[b] {
		return outcomeOK
	}
	st.seen[b] = true

	neighbors := b.Successors
	if dir == Backward {
		neighbors = b.Predecessors
	}
	if len(neighbors) == 0 {
		return outcomeOK
	}

	nextSp := advanceSPOffset(b, dir, st.spOffset)
	for _, next := range neighbors {
		forked := st.fork()
		forked.spOffset = nextSp
		var nextStart int
		if dir == Forward {
			nextStart = 0
		} else {
			nextStart = instrCount(next) - 1
		}
		if outcome := ex.walkBlock(next, nextStart, startBlock, id, dir, h, forked, steps, budget); outcome != outcomeOK {
			return outcome
		}
	}
	return outcomeOK
}

// advanceSPOffset accumulates the running stack-pointer offset as
// exploration crosses a block boundary, going unknown whenever the
// crossed block has an imprecise successor (spec §4.5).
func advanceSPOffset(crossed *cfg.BasicBlock, dir Direction, cur *int) *int {
	if cur == nil {
		return nil
	}
	if crossed.HasImpreciseSuccessor() {
		return nil
	}
	v := *cur
	if dir == Forward {
		v += crossed.SPDelta
	} else {
		v -= crossed.SPDelta
	}
	return &v
}

// visit fires the appropriate events for one instruction and reports
// whether the path should stop here.
func (ex *Explorer) visit(instr *cfg.Instruction, point ProgramPoint, sameBB bool, id expr.Expression, h Handlers) (walkOutcome, bool) {
	// Unused-assignment: an assign whose RHS is the UnusedValue sentinel,
	// clobbering an identifier that may-equals id (spec §4.3, §4.6 step 2:
	// "unused-assignments to an RHS component count as redefinitions").
	if instr.Kind == cfg.InstrAssign && len(instr.Results) == 1 && len(instr.Args) == 1 {
		if _, isUnused := instr.Args[0].(expr.UnusedValue); isUnused {
			if MayBeEqual(instr.Results[0], id, sameBB) {
				if h.OnUnusedAssign != nil {
					switch h.OnUnusedAssign(point) {
					case StopExploringAltogether:
						return outcomeStopAll, true
					case StopExploringPath:
						return outcomeOK, true
					}
				}
			}
		}
	}

	// Definitions: instruction results.
	for _, r := range instr.Results {
		if !expr.IsIdentifier(r) {
			continue
		}
		if MustBeEqual(r, id, sameBB) {
			if h.OnMustDefine != nil {
				switch h.OnMustDefine(point) {
				case StopExploringAltogether:
					return outcomeStopAll, true
				case StopExploringPath:
					return outcomeOK, true
				}
			}
		} else if MayBeEqual(r, id, sameBB) {
			if h.OnMayDefine != nil {
				switch h.OnMayDefine(point) {
				case StopExploringAltogether:
					return outcomeStopAll, true
				case StopExploringPath:
					return outcomeOK, true
				}
			}
		}
	}

	// Unmodeled call side effects: may-define every Mem/Storage identifier.
	if isNonPureCall(instr) {
		if (isMemKind(id) || isStorageKind(id)) && h.OnMayDefine != nil {
			switch h.OnMayDefine(point) {
			case StopExploringAltogether:
				return outcomeStopAll, true
			case StopExploringPath:
				return outcomeOK, true
			}
		}
	}

	// Uses: sub-expressions of Args (and jump/jcond targets).
	for _, u := range ex.usedIdentifiers(instr) {
		if MayBeEqual(u, id, sameBB) {
			if h.OnMayUse != nil {
				switch h.OnMayUse(point) {
				case StopExploringAltogether:
					return outcomeStopAll, true
				case StopExploringPath:
					return outcomeOK, true
				}
			}
		}
	}

	return outcomeOK, false
}

func isMemKind(e expr.Expression) bool {
	_, ok := e.(*expr.Mem)
	return ok
}

func isStorageKind(e expr.Expression) bool {
	switch e.(type) {
	case *expr.Storage, *expr.NamedStorageAccess:
		return true
	default:
		return false
	}
}
