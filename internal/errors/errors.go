package errors

import (
	"errors"
	"fmt"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// coded is the single Error implementation. Values are immutable; the With
// methods return modified copies.
type coded struct {
	code    ErrorCode
	message string
	cause   error
	data    any
}

func (e *coded) Error() string {
	text := e.message
	if text == "" {
		text = GetErrorMessage(e.code)
	}

	// data is the more specific detail when both are set
	detail := e.data
	if detail == nil && e.cause != nil {
		detail = e.cause
	}
	if detail == nil {
		return text
	}

	return fmt.Sprintf("%s: %v", text, detail)
}

func (e *coded) Code() ErrorCode { return e.code }

func (e *coded) GetData() any { return e.data }

func (e *coded) Unwrap() error { return e.cause }

func (e *coded) WithMessage(msg string) Error {
	c := *e
	c.message = msg
	return &c
}

func (e *coded) WithData(data any) Error {
	c := *e
	c.data = data
	return &c
}

// Is matches any coded error with the same code, so a fresh value built from
// a code can be used as an errors.Is target.
func (e *coded) Is(target error) bool {
	var other *coded
	if !errors.As(target, &other) {
		return false
	}
	return other.code == e.code
}

type factory struct{}

// New returns the Factory used by every package to build coded errors
func New() Factory {
	return factory{}
}

func (factory) New(code ErrorCode) Error {
	return &coded{code: code}
}

func (factory) Wrap(code ErrorCode, err error) Error {
	return &coded{code: code, cause: err}
}

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &coded{code: code, message: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &coded{code: code, data: data}
}

// HasCode reports whether any error in err's chain carries the given code
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &coded{code: code})
}
