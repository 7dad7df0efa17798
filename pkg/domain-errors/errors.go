// Package domainerrors defines the coded error type shared by all Sigil
// modules. Stores return sentinel errors (pkg/platform/sentinel); services
// translate them into these coded errors; the transport maps codes onto HTTP
// statuses. Callers branch on codes with HasCode, never on message text.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. The set mirrors the ledger's error
// taxonomy: every mutating operation fails with exactly one of these.
type Code string

const (
	// CodeAlreadyExists: double initialization of a registry or store.
	CodeAlreadyExists Code = "already_exists"
	// CodeNotFound: registry, store, certificate, or batch absent where the
	// operation requires presence.
	CodeNotFound Code = "not_found"
	// CodeNotAuthorized: caller is not the registry admin or does not own
	// the store it is mutating.
	CodeNotAuthorized Code = "not_authorized"
	// CodeAlreadyRegistered: duplicate brand registration (identity or name).
	CodeAlreadyRegistered Code = "already_registered"
	// CodeInvalidArgument: batch capacity out of range, expiry not after
	// mint date, and similar input violations.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeCapacityExceeded: a mint would overflow the batch's declared capacity.
	CodeCapacityExceeded Code = "capacity_exceeded"
	// CodeIDCollision: the bounded ID regeneration loop exhausted its
	// retries. An integrity fault, not a user error.
	CodeIDCollision Code = "id_collision"
	// CodeExpired: a time-gated mutation attempted past the certificate's expiry.
	CodeExpired Code = "expired"
	// CodeAlreadyUsed: a mutation attempted on a consumed certificate.
	CodeAlreadyUsed Code = "already_used"

	// CodeInvalidInput: malformed identifiers or payloads at trust boundaries.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized: missing or invalid credentials at the transport layer.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal: infrastructure failure; safe fallback for unmapped errors.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It optionally wraps a cause so errors.Is
// still reaches store sentinels.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for ; err != nil; err = errors.Unwrap(err) {
		if errors.As(err, &de) && de.Code == code {
			return true
		}
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer responds with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeAlreadyExists, CodeAlreadyRegistered, CodeAlreadyUsed, CodeCapacityExceeded:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotAuthorized:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidArgument, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeExpired:
		return http.StatusGone
	case CodeIDCollision, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
