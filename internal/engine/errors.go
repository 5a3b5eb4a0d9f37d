package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/seedgraph/internal/batch"
	"github.com/roach88/seedgraph/internal/schema"
)

// PersistError represents a failure detected while persisting a batch.
//
// Persist errors include:
//   - Integrity: a reference cannot hold its target's key
//   - Desync: the result stream does not match the declared reads
//   - Resolve: a deferred key could not be produced
//   - Execute: the store rejected the batch
//
// PersistError wraps its cause so that errors.Is still reaches sentinels
// such as schema.ErrNoReferentialIntegrity and batch.ErrDesync.
type PersistError struct {
	// Code identifies the error category.
	Code PersistErrorCode

	// Message is a human-readable description.
	Message string

	// Record names the affected record, when there is one.
	Record string

	// Err is the underlying cause.
	Err error
}

// PersistErrorCode categorizes persist errors.
type PersistErrorCode string

const (
	// ErrCodeIntegrity indicates an incompatible foreign-key edge.
	ErrCodeIntegrity PersistErrorCode = "NO_REFERENTIAL_INTEGRITY"

	// ErrCodeDesync indicates the token stream did not line up with reads.
	ErrCodeDesync PersistErrorCode = "RESULT_DESYNC"

	// ErrCodeResolve indicates a deferred value could not be produced.
	ErrCodeResolve PersistErrorCode = "RESOLVE_FAILED"

	// ErrCodeValue indicates the value generator failed for a field.
	ErrCodeValue PersistErrorCode = "VALUE_FAILED"

	// ErrCodeExecute indicates the sink rejected a statement or the batch.
	ErrCodeExecute PersistErrorCode = "EXECUTE_FAILED"
)

// Error implements the error interface.
func (e *PersistError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Record != "" {
		msg += fmt.Sprintf(" (record=%s)", e.Record)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PersistError) Unwrap() error { return e.Err }

func newPersistError(code PersistErrorCode, record schema.RecordHandle, msg string, err error) *PersistError {
	pe := &PersistError{Code: code, Message: msg, Err: err}
	if record != nil {
		pe.Record = describe(record)
	}
	return pe
}

// IsDesyncError returns true if the error is a result-stream desync.
// Uses errors.As to handle wrapped errors.
func IsDesyncError(err error) bool {
	var pe *PersistError
	if errors.As(err, &pe) && pe.Code == ErrCodeDesync {
		return true
	}
	return errors.Is(err, batch.ErrDesync)
}

// IsIntegrityError returns true if the error is an incompatible reference.
func IsIntegrityError(err error) bool {
	var pe *PersistError
	if errors.As(err, &pe) && pe.Code == ErrCodeIntegrity {
		return true
	}
	return schema.IsIntegrityError(err)
}

// describe names a record for diagnostics.
func describe(h schema.RecordHandle) string {
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return h.Descriptor().Table
}
