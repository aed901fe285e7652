package ragerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to surface it.
type Kind string

const (
	KindDataFormat    Kind = "DATA_FORMAT"
	KindConnection    Kind = "CONNECTION"
	KindIngestion     Kind = "INGESTION"
	KindRetrieval     Kind = "RETRIEVAL"
	KindGeneration    Kind = "GENERATION"
	KindConfiguration Kind = "CONFIGURATION"
	KindTimeout       Kind = "TIMEOUT"
	KindInvalidInput  Kind = "INVALID_INPUT"
)

// Sentinels for errors.Is checks.
var (
	ErrDataFormat    = &Error{Kind: KindDataFormat}
	ErrConnection    = &Error{Kind: KindConnection}
	ErrIngestion     = &Error{Kind: KindIngestion}
	ErrRetrieval     = &Error{Kind: KindRetrieval}
	ErrGeneration    = &Error{Kind: KindGeneration}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
)

// Error is the classified error returned across package boundaries.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New wraps err with the given kind. Context cancellation and deadline errors
// are always reported as KindTimeout regardless of the requested kind.
func New(kind Kind, op string, err error) *Error {
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return ""
}

// Classify keeps an already classified error untouched and wraps anything else.
func Classify(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return New(kind, op, err)
}

// IngestionError reports how many documents the store accepted before failing.
type IngestionError struct {
	Accepted int
	Total    int
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("upsert accepted %d of %d documents: %v", e.Accepted, e.Total, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
