// Package cosmos prepares JSON-LD documents for a Cosmos DB container and
// performs bounded-concurrency bulk upserts with request-unit accounting.
// The document client itself is a caller-supplied collaborator; this
// package never constructs one.
package cosmos

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaclpipe/shaclpipe/jsonld"
)

// ErrCosmos is the family sentinel for [*Error]; every Error unwraps to it.
var ErrCosmos = errors.New("cosmos: error")

// Kind distinguishes the typed upsert failure modes.
type Kind string

// Kind values.
const (
	KindRateLimit Kind = "RateLimit"
	KindTooLarge  Kind = "TooLarge"
	KindConflict  Kind = "Conflict"
	KindAuth      Kind = "Auth"
	KindNetwork   Kind = "Network"
	KindIDEmpty   Kind = "IDEmpty"
)

// Error is one per-document upsert failure.
type Error struct {
	Kind      Kind
	ID        string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("cosmos: %s: document %q: %s", e.Kind, e.ID, e.Message)
}

func (e *Error) Unwrap() error { return ErrCosmos }

// UpsertResponse carries a single upsert's outcome.
type UpsertResponse struct {
	RUCharge   float64
	StatusCode int
}

// Client is the document-store contract the bulk upsert drives. The client
// is expected to retry rate-limit responses with backoff internally;
// payload-too-large and conflict errors are terminal per document. Upsert
// failures should be [*Error] values so they fold into the bulk result with
// their kind intact; any other error is reported as KindNetwork.
type Client interface {
	Upsert(ctx context.Context, doc *jsonld.Object, partitionKey string) (UpsertResponse, error)
	Close() error
}

// AsError folds an arbitrary upsert error into a typed [*Error] for id.
func AsError(id string, err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		if typed.ID == "" {
			typed = &Error{Kind: typed.Kind, ID: id, Message: typed.Message, Retryable: typed.Retryable}
		}

		return typed
	}

	return &Error{Kind: KindNetwork, ID: id, Message: err.Error(), Retryable: true}
}
