package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can pick a status code
// without string matching.
type Kind int

const (
	KindValidation Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindGateway
	KindInternal
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error          { return &Error{Kind: KindValidation, Message: msg} }
func Unauthorized(msg string) error        { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) error           { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) error            { return &Error{Kind: KindNotFound, Message: msg} }
func Gateway(msg string, err error) error  { return &Error{Kind: KindGateway, Message: msg, Err: err} }
func Internal(msg string, err error) error { return &Error{Kind: KindInternal, Message: msg, Err: err} }

// Status maps an error to the HTTP status code of its kind. Unknown
// errors are treated as internal.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message. Unknown errors get a generic
// message so internals do not leak into responses.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
