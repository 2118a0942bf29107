// Package derrors is the error taxonomy of spec §7: InputError,
// AnalysisGaveUp, StructuringFailure, InvalidJumpTarget, and
// TimeBudgetExceeded, plus the colorized reporter and JSON failure
// record the CLI boundary needs. Same fatih/color severity styling and
// builder shape as internal/errors/reporter.go, retargeted from source
// line/column positions to the bytecode addresses and pass names this
// system's errors carry.
package derrors

import "fmt"

// Kind is one of the five taxonomy entries spec §7 names.
type Kind int

const (
	InputError Kind = iota
	AnalysisGaveUp
	StructuringFailure
	InvalidJumpTarget
	TimeBudgetExceeded
)

func (k Kind) String() string {
	switch k {
	case InputError:
		return "input error"
	case AnalysisGaveUp:
		return "analysis gave up"
	case StructuringFailure:
		return "structuring failure"
	case InvalidJumpTarget:
		return "invalid jump target"
	case TimeBudgetExceeded:
		return "time budget exceeded"
	default:
		return "error"
	}
}

// Fatal reports whether this kind aborts the whole run (spec §7's
// propagation policy) rather than being absorbed at the nearest pass
// boundary as "no change".
func (k Kind) Fatal() bool {
	return k == InputError || k == TimeBudgetExceeded
}

// Error is a taxonomy-tagged error carrying enough context (a function or
// block address, a pass name) to report where it happened without a
// source position to point at.
type Error struct {
	Kind    Kind
	Message string
	Context string // e.g. "func_1a2b", "propagate pass", "bb_20"
	Cause   error
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewInputError(context, format string, args ...any) *Error {
	return &Error{Kind: InputError, Message: fmt.Sprintf(format, args...), Context: context}
}

func NewAnalysisGaveUp(context string, cause error) *Error {
	return &Error{Kind: AnalysisGaveUp, Message: "dataflow step budget exceeded", Context: context, Cause: cause}
}

func NewStructuringFailure(context, reason string) *Error {
	return &Error{Kind: StructuringFailure, Message: reason, Context: context}
}

func NewInvalidJumpTarget(addr uint64, context string) *Error {
	return &Error{Kind: InvalidJumpTarget, Message: fmt.Sprintf("no block at address %#x", addr), Context: context}
}

func NewTimeBudgetExceeded(context string) *Error {
	return &Error{Kind: TimeBudgetExceeded, Message: "wall-clock timeout", Context: context}
}

// Recoverable reports whether err is one of the two kinds spec §7 says
// callers absorb as "no change" rather than propagate (AnalysisGaveUp,
// StructuringFailure). Any other error, including a non-*Error, is
// treated as not recoverable by this policy.
func Recoverable(err error) bool {
	var de *Error
	if !asError(err, &de) {
		return false
	}
	return de.Kind == AnalysisGaveUp || de.Kind == StructuringFailure
}

func asError(err error, target **Error) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
