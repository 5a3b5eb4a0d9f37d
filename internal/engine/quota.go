package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxRecords is the default limit on records per batch.
const DefaultMaxRecords = 100_000

// recordQuota counts the operations one session creates and enforces a
// limit. Reference graphs built by code can grow without bound through a
// runaway generator; the quota turns that into an error before anything
// is queued.
type recordQuota struct {
	limit   int
	current int
}

func newRecordQuota(limit int) *recordQuota {
	return &recordQuota{limit: limit}
}

// Check counts one more record and validates against the limit. A
// non-positive limit disables the check.
func (q *recordQuota) Check() error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return &RecordLimitError{Records: q.current, Limit: q.limit}
	}
	return nil
}

// RecordLimitError is returned when a batch reaches more records than
// the configured limit.
type RecordLimitError struct {
	Records int // Number of records discovered so far
	Limit   int // Maximum allowed records
}

// Error implements the error interface.
func (e *RecordLimitError) Error() string {
	return fmt.Sprintf("batch exceeded record limit: %d records > %d limit", e.Records, e.Limit)
}

// IsRecordLimitError returns true if the error is a RecordLimitError.
// Uses errors.As to handle wrapped errors.
func IsRecordLimitError(err error) bool {
	var re *RecordLimitError
	return errors.As(err, &re)
}
