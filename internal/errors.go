package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers absent rooms, sessions and players. Surfaced to
	// the caller as-is, never retried.
	ErrNotFound = errors.New("not found")

	// ErrConflict rejects a mutation that contradicts room invariants,
	// e.g. kicking the creator. The snapshot stays unchanged.
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable marks a transient cache or database failure.
	// The operation is aborted; the engine never retries on its own.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrOperationFailed reports a collaborator call that failed after
	// validation passed, including half-applied create/join sequences
	// that were rolled back.
	ErrOperationFailed = errors.New("operation failed")
)

// ValidationError rejects malformed input synchronously with the specific
// violated constraint. No mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
