package services

import "errors"

// Failure kinds. Match them with errors.Is; the message of the returned
// *Error is safe to show to clients.
var (
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrAuth        = errors.New("authentication failed")
	ErrForbidden   = errors.New("forbidden")
	ErrOTP         = errors.New("otp verification failed")
	ErrDelivery    = errors.New("otp delivery failed")
	ErrRateLimited = errors.New("rate limited")
)

// Error is a domain failure with a client-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func validationError(message string) error { return newError(ErrValidation, message) }
func authError(message string) error       { return newError(ErrAuth, message) }
func otpError(message string) error        { return newError(ErrOTP, message) }

var errUserNotFound = newError(ErrNotFound, "User not found")
