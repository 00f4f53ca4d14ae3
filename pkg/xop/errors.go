package xop

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// InputError is a validation failure caused by the message or the
// configuration. Its message is meant for the caller.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

func inputErrorf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is, or wraps, an InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// internalError carries the stack of the point where an unexpected
// failure was first seen
type internalError struct {
	err   error
	stack []byte
}

func (e *internalError) Error() string {
	return e.err.Error()
}

func (e *internalError) Unwrap() error {
	return e.err
}

func internal(err error) error {
	if err == nil {
		return nil
	}
	var ie *internalError
	if errors.As(err, &ie) || IsInputError(err) {
		return err
	}
	return &internalError{err: err, stack: debug.Stack()}
}

// stackOf returns the captured stack of an internal error, or the
// current stack if none was captured
func stackOf(err error) string {
	var ie *internalError
	if errors.As(err, &ie) {
		return string(ie.stack)
	}
	return string(debug.Stack())
}
