package derrors

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRecoverableClassifiesTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{NewAnalysisGaveUp("propagate pass", nil), true},
		{NewStructuringFailure("func_10", "no latching node"), true},
		{NewInputError("loader", "bad hex"), false},
		{NewInvalidJumpTarget(0x20, "func_10"), false},
		{NewTimeBudgetExceeded("func_10"), false},
		{errors.New("plain error"), false},
	}
	for _, c := range cases {
		if got := Recoverable(c.err); got != c.want {
			t.Errorf("Recoverable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestRecoverableFollowsWrappedCause(t *testing.T) {
	inner := NewStructuringFailure("func_10", "irreducible region")
	outer := fmt.Errorf("simplify pass: %w", inner)
	if !Recoverable(outer) {
		t.Error("expected Recoverable to unwrap to the StructuringFailure cause")
	}
}

func TestKindFatal(t *testing.T) {
	if !InputError.Fatal() {
		t.Error("expected InputError to be fatal")
	}
	if !TimeBudgetExceeded.Fatal() {
		t.Error("expected TimeBudgetExceeded to be fatal")
	}
	if AnalysisGaveUp.Fatal() || StructuringFailure.Fatal() || InvalidJumpTarget.Fatal() {
		t.Error("expected the other three kinds to not be fatal")
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := NewInvalidJumpTarget(0x1234, "func_10")
	msg := err.Error()
	if !bytes.Contains([]byte(msg), []byte("func_10")) {
		t.Errorf("expected message to include context, got %q", msg)
	}
	if !bytes.Contains([]byte(msg), []byte("0x1234")) {
		t.Errorf("expected message to include the address, got %q", msg)
	}
}

func TestReporterReportsFatalAndRecoverable(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.Report(NewInputError("loader", "odd-length hex string"))
	r.Report(NewStructuringFailure("func_10", "no latching node"))
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("odd-length hex string")) {
		t.Errorf("expected output to include input error message, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("no latching node")) {
		t.Errorf("expected output to include structuring failure message, got %q", out)
	}
}

func TestNewFailureRecordCarriesElapsedSeconds(t *testing.T) {
	rec := NewFailureRecord(NewInputError("loader", "boom"), 1500*time.Millisecond)
	if rec.RunningTime != 1.5 {
		t.Errorf("expected running_time 1.5, got %v", rec.RunningTime)
	}
	if rec.Failure.Error == "" {
		t.Error("expected a non-empty failure error string")
	}
}
