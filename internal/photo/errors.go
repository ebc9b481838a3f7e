package photo

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. Every kind is fatal for the job.
type ErrorKind string

const (
	KindDecode    ErrorKind = "decode"
	KindIsolation ErrorKind = "isolation"
	KindEncoding  ErrorKind = "encoding"
)

// Error is returned by Processor.Process for every failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func decodeError(op string, err error) error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

func isolationError(op string, err error) error {
	return &Error{Kind: KindIsolation, Op: op, Err: err}
}

func encodingError(op string, err error) error {
	return &Error{Kind: KindEncoding, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a pipeline error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func IsDecode(err error) bool    { return KindOf(err) == KindDecode }
func IsIsolation(err error) bool { return KindOf(err) == KindIsolation }
func IsEncoding(err error) bool  { return KindOf(err) == KindEncoding }
