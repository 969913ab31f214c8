package dataset

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedInput matches every *MalformedInputError via errors.Is.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError reports an input collection that cannot be turned into a
// batch. Record is -1 when the failure is not tied to one record.
type MalformedInputError struct {
	Record int
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := e.Reason
	if e.Record >= 0 {
		msg = fmt.Sprintf("record %d: %s", e.Record, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "malformed input: " + msg
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(record int, err error, format string, args ...interface{}) error {
	return &MalformedInputError{Record: record, Reason: fmt.Sprintf(format, args...), Err: err}
}
