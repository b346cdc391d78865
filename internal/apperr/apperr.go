// Package apperr defines the error kinds shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind sentinels. Match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrAuth       = errors.New("unauthorized")
	ErrStorage    = errors.New("storage failure")
	ErrUpload     = errors.New("upload failed")
)

// Error carries a kind, a client-safe message and the operation that failed.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation reports bad client input.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

// NotFound reports a missing post, media row or file.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

// Auth reports bad credentials or an invalid token.
func Auth(msg string) error {
	return &Error{Kind: ErrAuth, Msg: msg}
}

// Storage wraps a backend failure for op.
func Storage(op string, err error) error {
	return &Error{Kind: ErrStorage, Op: op, Msg: "storage operation failed", Err: err}
}

// Upload wraps a failed upload for op.
func Upload(op string, err error) error {
	return &Error{Kind: ErrUpload, Op: op, Msg: "file upload failed", Err: err}
}

// Status maps err to the HTTP status code of its kind. Unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether err is a client-caused condition that should not be
// logged as a server failure.
func Expected(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuth)
}

// Message returns the client-facing message for err. Server-side failures get
// a generic text so internals never leak.
func Message(err error) string {
	if !Expected(err) {
		return "internal server error"
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
