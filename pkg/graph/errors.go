package graph

import (
	"errors"
	"fmt"
)

// Contract violations. The store and tracker panic with an error wrapping one
// of these; they indicate a caller bug rather than a data condition, so they
// are never returned as ordinary errors.
var (
	ErrNodeNotFound      = errors.New("node id not in use")
	ErrEdgeNotFound      = errors.New("edge id not in use")
	ErrNullID            = errors.New("null id")
	ErrTransactionOpen   = errors.New("transaction still open")
	ErrTransactionClosed = errors.New("transaction already committed")
	ErrStoreClosed       = errors.New("store closed")
)

func violation(err error, format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{err}, args...)...))
}
