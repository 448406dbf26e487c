package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrLengthMismatch   = errors.New("protocol: length mismatch")
	ErrTypeMismatch     = errors.New("protocol: type mismatch")
	ErrUnknownSensorID  = errors.New("protocol: unknown sensor id")
	ErrDecode           = errors.New("protocol: decode error")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
)

// FieldError reports which field failed and the expected/actual values seen.
// Err is one of the sentinel errors above so callers can match with errors.Is.
type FieldError struct {
	Field    string
	Expected string
	Actual   string
	Err      error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: expected %s, got %s", e.Err, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%v: field %s: expected %s, got %s", e.Err, e.Field, e.Expected, e.Actual)
}

func (e *FieldError) Unwrap() error { return e.Err }

func lengthError(field string, expected, actual int) error {
	return &FieldError{
		Field:    field,
		Expected: fmt.Sprintf("%d bits", expected),
		Actual:   fmt.Sprintf("%d bits", actual),
		Err:      ErrLengthMismatch,
	}
}

func typeError(field, expected string, actual any) error {
	return &FieldError{
		Field:    field,
		Expected: expected,
		Actual:   fmt.Sprintf("%T", actual),
		Err:      ErrTypeMismatch,
	}
}
