// Package apperr defines the error taxonomy shared by the scheduler and its
// collaborators.
package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeUnknown          = "UNKNOWN"
	CodeQuotaExhausted   = "QUOTA_EXHAUSTED"
	CodeAdapterTransient = "ADAPTER_TRANSIENT"
	CodeAdapterPermanent = "ADAPTER_PERMANENT"
	CodeAdapterAuth      = "ADAPTER_AUTH"
	CodeStateConflict    = "STATE_CONFLICT"
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION"
	CodeInternal         = "INTERNAL"
)

// Coded is implemented by every error that carries a taxonomy code.
type Coded interface {
	error
	Code() string
}

type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches any *Error with the same code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.message == "" && t.code == e.code
}

func New(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrQuotaExhausted = &Error{code: CodeQuotaExhausted}
	ErrStateConflict  = &Error{code: CodeStateConflict}
	ErrNotFound       = &Error{code: CodeNotFound}
	ErrValidation     = &Error{code: CodeValidation}
)

func StateConflict(message string) error {
	return &Error{code: CodeStateConflict, message: message}
}

func NotFound(message string) error {
	return &Error{code: CodeNotFound, message: message}
}

func Validation(message string) error {
	return &Error{code: CodeValidation, message: message}
}

func Internal(message string, cause error) error {
	return &Error{code: CodeInternal, message: message, err: cause}
}

// Code returns the taxonomy code of err, or CodeUnknown.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeUnknown
}

// IsExpected reports whether err belongs to a class that is recovered locally
// and never needs operator attention.
func IsExpected(err error) bool {
	switch Code(err) {
	case CodeQuotaExhausted, CodeAdapterTransient, CodeAdapterPermanent,
		CodeAdapterAuth, CodeStateConflict:
		return true
	}
	return false
}
