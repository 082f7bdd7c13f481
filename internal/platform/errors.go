package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/maheshrc27/persona-scheduler/internal/apperr"
	"github.com/maheshrc27/persona-scheduler/internal/models"
)

type ErrorKind int

const (
	// KindTransient covers network failures, timeouts and platform rate limits.
	KindTransient ErrorKind = iota
	// KindPermanent means retrying the same request cannot succeed.
	KindPermanent
	// KindAuth means the account credentials are invalid or expired.
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	ErrUnavailable = errors.New("platform adapter not available")
	ErrUnsupported = errors.New("action not supported by platform")
)

// Error is an expected adapter failure.
type Error struct {
	Kind     ErrorKind
	Platform models.Platform
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Platform, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Code() string {
	switch e.Kind {
	case KindAuth:
		return apperr.CodeAdapterAuth
	case KindPermanent:
		return apperr.CodeAdapterPermanent
	default:
		return apperr.CodeAdapterTransient
	}
}

func Transient(p models.Platform, op string, err error) *Error {
	return &Error{Kind: KindTransient, Platform: p, Op: op, Err: err}
}

func Permanent(p models.Platform, op string, err error) *Error {
	return &Error{Kind: KindPermanent, Platform: p, Op: op, Err: err}
}

func Auth(p models.Platform, op string, err error) *Error {
	return &Error{Kind: KindAuth, Platform: p, Op: op, Err: err}
}

// Unsupported reports an action the platform does not offer.
func Unsupported(p models.Platform, op string) *Error {
	return Permanent(p, op, ErrUnsupported)
}

// KindOf returns the kind of an expected failure. ok is false for internal faults.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// IsAuth reports whether err means the account must be reconnected.
func IsAuth(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindAuth
}

// ClassifyStatus maps an HTTP status onto an error kind. ok is false for
// success statuses.
func ClassifyStatus(status int) (kind ErrorKind, ok bool) {
	switch {
	case status < 400:
		return 0, false
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth, true
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return KindTransient, true
	default:
		return KindPermanent, true
	}
}
