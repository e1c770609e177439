package shape

import (
	"errors"
	"fmt"
)

// ErrLoad is the family sentinel for [LoadError]; every LoadError unwraps
// to it so callers can errors.Is(err, shape.ErrLoad) regardless of Kind.
var ErrLoad = errors.New("shape: load error")

// Kind distinguishes [LoadError] variants.
type Kind string

// Kind values.
const (
	KindNotFound     Kind = "NotFound"
	KindParse        Kind = "Parse"
	KindInvalid      Kind = "Invalid"
	KindUnknownShape Kind = "UnknownShape"
)

// LoadError is a registry-level failure loading or validating a shape
// definition. Fatal for the pipeline run that triggers it.
type LoadError struct {
	Kind    Kind
	Name    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("shape: %s: %s: %s", e.Kind, e.Name, e.Message)
}

func (e *LoadError) Unwrap() error { return ErrLoad }

func notFound(name, format string, args ...any) *LoadError {
	return &LoadError{Kind: KindNotFound, Name: name, Message: fmt.Sprintf(format, args...)}
}

func parseErr(name string, err error) *LoadError {
	return &LoadError{Kind: KindParse, Name: name, Message: err.Error()}
}

func invalid(name, format string, args ...any) *LoadError {
	return &LoadError{Kind: KindInvalid, Name: name, Message: fmt.Sprintf(format, args...)}
}
