package validate

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel carried by [Error]; raised in strict mode,
// returned inside a [Result] otherwise.
var ErrValidation = errors.New("validate: validation failed")

// Severity of a [Issue].
type Severity string

// Severity values.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Mode selects how a validator reacts to findings.
type Mode string

// Mode values.
const (
	// ModeStrict stops at the first error-severity issue.
	ModeStrict Mode = "strict"
	// ModeReport accumulates every issue and never stops.
	ModeReport Mode = "report"
	// ModeSample validates a seeded random fraction of the input.
	ModeSample Mode = "sample"
)

// ParseMode parses a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStrict, ModeReport, ModeSample:
		return Mode(s), nil
	}

	return "", fmt.Errorf("%w: unknown mode %q (one of: strict, report, sample)", ErrValidation, s)
}

// Issue is one validation finding.
type Issue struct {
	RecordID  string
	FieldPath string
	Severity  Severity
	Kind      string
	Message   string
}

// Result accumulates validation findings. The Errors and Warnings counters
// always equal the number of issues of that severity, and Conforms is true
// iff Errors is zero.
type Result struct {
	Conforms bool
	Errors   int
	Warnings int
	Issues   []Issue
}

// NewResult returns an empty, conforming Result.
func NewResult() *Result {
	return &Result{Conforms: true}
}

// Add appends issue, keeping the counters coherent.
func (r *Result) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)

	switch issue.Severity {
	case SeverityError:
		r.Errors++
		r.Conforms = false
	case SeverityWarning:
		r.Warnings++
	}
}

// Merge appends every issue of other into r.
func (r *Result) Merge(other *Result) {
	for _, issue := range other.Issues {
		r.Add(issue)
	}
}

// Error wraps a non-conforming [Result] for strict mode.
type Error struct {
	Result *Result
}

func (e *Error) Error() string {
	if len(e.Result.Issues) == 0 {
		return "validate: validation failed"
	}

	first := e.Result.Issues[0]

	return fmt.Sprintf("validate: %s: %s: %s (%d errors, %d warnings)",
		first.Kind, first.FieldPath, first.Message, e.Result.Errors, e.Result.Warnings)
}

func (e *Error) Unwrap() error { return ErrValidation }
