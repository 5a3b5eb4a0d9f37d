package schema

import (
	"errors"
	"fmt"
)

// ErrNoReferentialIntegrity is the sentinel matched by every *IntegrityError.
var ErrNoReferentialIntegrity = errors.New("no referential integrity")

// IntegrityError reports a foreign-key edge whose declared types cannot be
// reconciled. It is raised when the edge is registered, before any write.
type IntegrityError struct {
	Table      string
	Field      string
	Referenced string
	Reason     string
}

func (e *IntegrityError) Error() string {
	if e.Referenced != "" {
		return fmt.Sprintf("%s: %s.%s -> %s: %s", ErrNoReferentialIntegrity, e.Table, e.Field, e.Referenced, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrNoReferentialIntegrity, e.Table, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrNoReferentialIntegrity) match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrNoReferentialIntegrity
}

// IsIntegrityError returns true if err is or wraps an *IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
