package mapping

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap with %w so callers can errors.Is against these.
var (
	// ErrParse is returned for a structurally invalid Mapping Config
	// document (bad YAML, or a YAML shape the schema doesn't allow).
	ErrParse = errors.New("mapping: parse error")

	// ErrSchema is returned when a parsed config fails descriptive
	// validation against the mapping config JSON Schema.
	ErrSchema = errors.New("mapping: schema validation failed")

	// ErrUnknownSlot names a reference to a sub-shape slot the config does
	// not declare. No function in this package returns it.
	ErrUnknownSlot = errors.New("mapping: unknown sub-shape slot")

	// ErrMissingRequired names a non-optional Field Rule that resolves to an
	// empty value. No function in this package returns it: the Field Mapper
	// reports that case as a [*MappingError] of kind [KindRequiredMissing],
	// which unwraps to [ErrMapping].
	ErrMissingRequired = errors.New("mapping: required field missing value")

	// ErrMapping is the family sentinel for per-record [MappingError]s
	// raised by [Mapper.Map]: every MappingError unwraps to this, so
	// callers can errors.Is(err, mapping.ErrMapping) regardless of Kind.
	ErrMapping = errors.New("mapping: mapping error")
)

// Kind distinguishes the per-record Field Mapper failure modes
// (MappingError variants).
type Kind string

// Kind values.
const (
	KindRequiredMissing Kind = "RequiredMissing"
	KindRaggedMultiValue Kind = "RaggedMultiValue"
	KindTypeMismatch    Kind = "TypeMismatch"
	KindInvalidScalar   Kind = "InvalidScalar"
	KindIDEmpty         Kind = "IDEmpty"
)

// MappingError is a per-record Field Mapper failure. It always unwraps to
// [ErrMapping], so errors.Is(err, ErrMapping) holds regardless of Kind, and
// carries enough context (Field, a remediation Hint) to produce the
// actionable message callers rely on.
type MappingError struct {
	Kind    Kind
	Field   string
	Message string
	Hint    string
}

func (e *MappingError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("mapping: %s: %s: %s", e.Kind, e.Field, e.Message)
	}

	return fmt.Sprintf("mapping: %s: %s: %s (%s)", e.Kind, e.Field, e.Message, e.Hint)
}

func (e *MappingError) Unwrap() error { return ErrMapping }

// newMappingError constructs a [MappingError] with a Hint listing the
// available source columns, for RequiredMissing/RaggedMultiValue messages
// that must tell the caller what was actually in the row.
func newMappingError(kind Kind, field, message string, raw RawRecord) *MappingError {
	return &MappingError{Kind: kind, Field: field, Message: message, Hint: availableColumnsHint(raw)}
}

func availableColumnsHint(raw RawRecord) string {
	if len(raw) == 0 {
		return "no source columns available"
	}

	cols := make([]string, 0, len(raw))
	for k := range raw {
		cols = append(cols, k)
	}

	return "available columns: " + joinSorted(cols)
}
