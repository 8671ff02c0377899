package errs

import (
	"errors"
)

// Kinds. Handlers map them to HTTP statuses.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("operation not permitted")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalid             = errors.New("invalid input")
)

var (
	ErrUsernameTaken = kindError(ErrConflict, "Username already registered")
	ErrBookExists    = kindError(ErrConflict, "Book already exists in library")
	ErrAlreadyIssued = kindError(ErrConflict, "Book is already issued")
	ErrBookIssued    = kindError(ErrConflict, "Book is currently issued and cannot be removed")

	ErrBadCredentials = kindError(ErrUnauthorized, "Incorrect username or password")

	ErrPasswordTooLong = kindError(ErrInvalid, "Password must be at most 72 bytes")

	ErrBookNotFound   = kindError(ErrNotFound, "Book not found")
	ErrLookupNotFound = kindError(ErrNotFound, "Book not found on Google Books")
	ErrTxNotFound     = kindError(ErrNotFound, "Transaction not found")
	ErrUserNotFound   = kindError(ErrNotFound, "User not found")
)

type kindErr struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &kindErr{kind: kind, msg: msg}
}

func (e *kindErr) Error() string { return e.msg }

func (e *kindErr) Unwrap() error { return e.kind }
