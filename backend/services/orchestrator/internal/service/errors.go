package service

import "errors"

// Kind classifies service failures so transports can map them to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindForbidden
	KindDuplicate
)

// Error is a classified failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation reports malformed or missing input.
func Validation(message string) error { return newError(KindValidation, message, nil) }

// NotFound reports a missing resource.
func NotFound(message string, cause error) error { return newError(KindNotFound, message, cause) }

// Conflict reports a request that clashes with current state.
func Conflict(message string, cause error) error { return newError(KindConflict, message, cause) }

// Unauthenticated reports a missing or unknown identity.
func Unauthenticated(message string) error { return newError(KindUnauthenticated, message, nil) }

// Forbidden reports an identity acting outside its rights.
func Forbidden(message string) error { return newError(KindForbidden, message, nil) }

// Duplicate reports a uniqueness violation.
func Duplicate(message string, cause error) error { return newError(KindDuplicate, message, cause) }

// Internal wraps an unexpected failure behind a generic message.
func Internal(message string, cause error) error { return newError(KindInternal, message, cause) }

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err, or fallback when err is unclassified.
func MessageOf(err error, fallback string) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}
