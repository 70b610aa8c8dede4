package serviceerr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeInvalidRequest Code = "invalid_request"

	// Sign-in flow codes
	CodeInvalidState        Code = "invalid_state"
	CodeTokenExchangeFailed Code = "token_exchange_failed"
	CodeInvalidIDToken      Code = "invalid_id_token"
	CodeMissingNonce        Code = "missing_nonce"
	CodeNonceMismatch       Code = "nonce_mismatch"

	// Local token codes
	CodeTokenNotValid Code = "token_not_valid"

	// Provider metadata codes
	CodeFetchError  Code = "fetch_error"
	CodeKeyNotFound Code = "key_not_found"

	// Custom codes
	CodeStorageError Code = "storage_error"
	CodeUnknown      Code = "unknown"
	CodeConflict     Code = "conflict"
	CodeNotFound     Code = "not_found"
)

// Error is a machine readable failure that is reported to the client.
type Error struct {
	Err         Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Err == e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeInvalidState, CodeInvalidIDToken, CodeMissingNonce, CodeNonceMismatch:
		return http.StatusBadRequest
	case CodeTokenExchangeFailed, CodeFetchError, CodeKeyNotFound:
		return http.StatusBadGateway
	case CodeTokenNotValid:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrInvalidRequest      = &Error{Err: CodeInvalidRequest}
	ErrInvalidState        = &Error{Err: CodeInvalidState, Description: "Invalid state."}
	ErrTokenExchangeFailed = &Error{Err: CodeTokenExchangeFailed, Description: "Failed to exchange the authorization code."}
	ErrInvalidIDToken      = &Error{Err: CodeInvalidIDToken, Description: "Invalid ID token."}
	ErrMissingNonce        = &Error{Err: CodeMissingNonce, Description: "No nonce in the ID token."}
	ErrNonceMismatch       = &Error{Err: CodeNonceMismatch, Description: "Invalid nonce."}
	ErrTokenNotValid       = &Error{Err: CodeTokenNotValid, Description: "Token is invalid or expired."}
	ErrFetchError          = &Error{Err: CodeFetchError, Description: "Failed to fetch the provider metadata."}
	ErrKeyNotFound         = &Error{Err: CodeKeyNotFound, Description: "Key not found in the provider metadata."}
	ErrStorageError        = &Error{Err: CodeStorageError, Description: "storage error"}
	ErrUnknown             = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrConflict            = &Error{Err: CodeConflict, Description: "already exists"}
	ErrNotFound            = &Error{Err: CodeNotFound, Description: "not found"}
)

// From returns the *Error wrapped in err, or ErrUnknown if there is none.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return ErrUnknown
}
