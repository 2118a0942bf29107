package derrors

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Reporter prints taxonomy errors to a stream, colorized per severity
// the way internal/errors/reporter.go does, but keyed off Kind.Fatal()
// instead of an error/warning/note/help ladder since this system only
// ever distinguishes fatal from recovered-and-logged.
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

func (r *Reporter) levelColor(k Kind) *color.Color {
	if k.Fatal() {
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.FgYellow, color.Bold)
}

// Report prints one line per error: a colorized kind tag, the message,
// and the context (if any). Non-*Error values are printed plain in red.
func (r *Reporter) Report(err error) {
	de, ok := err.(*Error)
	if !ok {
		color.New(color.FgRed, color.Bold).Fprint(r.out, "error: ")
		fmt.Fprintln(r.out, err)
		return
	}
	r.levelColor(de.Kind).Fprintf(r.out, "%s: ", de.Kind)
	fmt.Fprint(r.out, de.Message)
	if de.Context != "" {
		fmt.Fprintf(r.out, " (%s)", de.Context)
	}
	fmt.Fprintln(r.out)
	if de.Cause != nil {
		fmt.Fprintf(r.out, "  caused by: %v\n", de.Cause)
	}
}

// FailureRecord is the JSON shape cmd/decompile emits on stderr when a
// fatal error reaches the CLI boundary: {"failure":
// {"error": "<stack trace>"}, "running_time": <sec>}.
type FailureRecord struct {
	Failure     failurePayload `json:"failure"`
	RunningTime float64        `json:"running_time"`
}

type failurePayload struct {
	Error string `json:"error"`
}

// NewFailureRecord builds the record for a fatal err observed after
// elapsed wall-clock time.
func NewFailureRecord(err error, elapsed time.Duration) FailureRecord {
	return FailureRecord{
		Failure:     failurePayload{Error: err.Error()},
		RunningTime: elapsed.Seconds(),
	}
}
