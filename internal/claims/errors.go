package claims

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes claim operation failures.
type ErrorCode string

const (
	// CodeUnauthorized: the caller could not be verified.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeNotFound: no claim exists under the id.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeStore: the durable store failed.
	CodeStore ErrorCode = "STORE_ERROR"

	// CodeInvalidArgument: input failed validation or a bound.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeInvalidTransition: the transition policy rejected the move.
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Error is returned by every Service operation.
type Error struct {
	Code    ErrorCode
	Message string

	// ClaimID is the affected claim, 0 when none.
	ClaimID ID

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ClaimID != 0 {
		msg = fmt.Sprintf("%s (claim=%d)", msg, e.ClaimID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized      = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "claim not found"}
	ErrStore             = &Error{Code: CodeStore, Message: "store failure"}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition, Message: "invalid transition"}
)

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err is nil or carries no code.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool { return CodeOf(err) == CodeUnauthorized }

// IsNotFound reports whether err is a missing claim.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsStoreError reports whether err is a store failure.
func IsStoreError(err error) bool { return CodeOf(err) == CodeStore }

// IsInvalidArgument reports whether err is a validation failure.
func IsInvalidArgument(err error) bool { return CodeOf(err) == CodeInvalidArgument }

// IsInvalidTransition reports whether err is a rejected status move.
func IsInvalidTransition(err error) bool { return CodeOf(err) == CodeInvalidTransition }

func invalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func notFound(id ID) *Error {
	return &Error{Code: CodeNotFound, Message: "claim not found", ClaimID: id}
}

func unauthorized(caller Principal, cause error) *Error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf("caller %q not verified", caller), Err: cause}
}

// storeFailure passes domain errors raised inside a unit through and wraps
// everything else as a store failure.
func storeFailure(id ID, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Code: CodeStore, Message: "store unit failed", ClaimID: id, Err: err}
}
