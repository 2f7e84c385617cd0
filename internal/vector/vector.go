// Package vector provides the namespace-isolated vector index surface for
// autovoyce.
//
// The index itself is a remote service; this package defines the Index
// contract plus the Store adapter that turns raw transcript text into
// embedded chunks and keeps every read and write confined to one session's
// namespace.
package vector

import (
	"context"
	"errors"
)

// ErrMissingNamespace is returned when a call reaches the store without a
// namespace. This is a programmer error in the call chain, never a condition
// to recover from: the namespace is the only isolation boundary between
// sessions, so no call may fall through to a default.
var ErrMissingNamespace = errors.New("vector: namespace is required")

// Vector is one embedded chunk ready for the index.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// Match is one ranked result from a similarity query.
type Match struct {
	ID    string
	Score float32
	Text  string
}

// Index is the remote similarity index, partitioned by namespace. Every call
// carries the namespace explicitly; implementations must never infer it from
// ambient state.
type Index interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Query(ctx context.Context, namespace string, values []float32, topK int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}
