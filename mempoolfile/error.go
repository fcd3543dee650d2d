package mempoolfile

import (
	"fmt"

	"github.com/pkg/errors"
)

// DecodeError describes malformed or truncated snapshot file content. Both
// Op and Description are human-readable; Err holds the underlying cause when
// the failure surfaced from a lower-level codec and is nil otherwise.
type DecodeError struct {
	Op          string
	Description string
	Err         error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Description)
}

// Cause returns the underlying error, satisfying the pkg/errors causer
// interface so wrapped io errors stay reachable.
func (e *DecodeError) Cause() error {
	return e.Err
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// decodeError creates a DecodeError given a set of arguments.
func decodeError(op string, description string) *DecodeError {
	return &DecodeError{Op: op, Description: description}
}

// decodeErrorWrap creates a DecodeError that wraps an underlying error.
func decodeErrorWrap(op string, description string, err error) *DecodeError {
	return &DecodeError{Op: op, Description: description, Err: err}
}

// IsDecodeError returns whether err or any error in its chain is a
// DecodeError.
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}
