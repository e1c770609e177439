package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// builtins returns the fixed table of built-in transforms. Exact semantics
// are required by spec: see each function's doc comment.
func builtins() map[string]Func {
	return map[string]Func{
		"sex_prefix":       sexPrefix,
		"race_prefix":      racePrefix,
		"first_pipe_split": firstPipeSplit,
		"date_format":      dateFormat,
		"int_clean":        intClean,
		"code_list_lookup": unconfiguredCodeListLookup,
	}
}

// sexPrefix prepends "Sex_" to non-empty values.
func sexPrefix(v any) (any, error) {
	s, ok := asNonEmptyString(v)
	if !ok {
		return v, nil
	}

	return "Sex_" + s, nil
}

// racePrefix prepends "RaceAndEthnicity_" to non-empty values.
func racePrefix(v any) (any, error) {
	s, ok := asNonEmptyString(v)
	if !ok {
		return v, nil
	}

	return "RaceAndEthnicity_" + s, nil
}

// firstPipeSplit returns pure-digit strings verbatim (no numeric
// conversion, so large IDs never round-trip through a float), otherwise
// splits on "|" and returns the first segment.
func firstPipeSplit(v any) (any, error) {
	s, ok := toString(v)
	if !ok {
		return v, nil
	}

	if isAllDigits(s) {
		return s, nil
	}

	parts := strings.SplitN(s, "|", 2)

	return parts[0], nil
}

// dateFormat normalizes ISO-ish date strings to YYYY-MM-DD, rejecting
// impossible calendar dates and American MM-DD-YYYY input.
func dateFormat(v any) (any, error) {
	s, ok := toString(v)
	if !ok || s == "" {
		return v, nil
	}

	layouts := []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339, "2006/01/02"}

	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	if looksLikeAmericanDate(s) {
		return nil, fmt.Errorf("%w: %q looks like MM-DD-YYYY, expected ISO YYYY-MM-DD", ErrConfig, s)
	}

	return nil, fmt.Errorf("%w: %q is not a recognizable date", ErrConfig, s)
}

// looksLikeAmericanDate reports whether s matches MM-DD-YYYY or MM/DD/YYYY
// shape (first component <= 12, suggesting a month, with a 4-digit year
// last).
func looksLikeAmericanDate(s string) bool {
	var sep string

	switch {
	case strings.Contains(s, "/"):
		sep = "/"
	case strings.Contains(s, "-"):
		sep = "-"
	default:
		return false
	}

	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return false
	}

	first, err1 := strconv.Atoi(parts[0])
	_, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])

	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}

	return len(parts[2]) == 4 && first >= 1 && first <= 12 && year > 1000
}

// intClean strips non-digit characters and preserves full precision as a
// digit string; no value is ever routed through a float, and non-finite
// numeric input is rejected outright.
func intClean(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: non-finite value not allowed", ErrConfig)
		}
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return nil, fmt.Errorf("%w: non-finite value not allowed", ErrConfig)
		}
	}

	s, ok := toString(v)
	if !ok {
		return v, nil
	}

	if strings.EqualFold(s, "infinity") || strings.EqualFold(s, "-infinity") || strings.EqualFold(s, "nan") {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrConfig, s)
	}

	var b strings.Builder

	neg := strings.HasPrefix(s, "-")

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if digits == "" {
		return "", nil
	}

	if neg {
		return "-" + digits, nil
	}

	return digits, nil
}

// unconfiguredCodeListLookup is the placeholder registered under
// "code_list_lookup" until a caller binds a concrete table with
// [Registry.RegisterCodeList].
func unconfiguredCodeListLookup(any) (any, error) {
	return nil, fmt.Errorf("%w: code_list_lookup has no bound table, call Registry.RegisterCodeList first", ErrConfig)
}

// RegisterCodeList binds name to a code-list lookup transform backed by
// table: the human-readable input value is looked up and the corresponding
// named-individual IRI or notation is returned. Values absent from table
// are passed through unchanged so callers can choose to treat that as a
// validation error downstream.
func (r *Registry) RegisterCodeList(name string, table map[string]string) error {
	return r.Register(name, func(v any) (any, error) {
		s, ok := toString(v)
		if !ok {
			return v, nil
		}

		if mapped, found := table[s]; found {
			return mapped, nil
		}

		return v, nil
	})
}

func asNonEmptyString(v any) (string, bool) {
	s, ok := toString(v)
	if !ok || s == "" {
		return "", false
	}

	return s, true
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
