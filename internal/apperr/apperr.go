// Package apperr defines the error categories surfaced outside the analysis core.
//
// Error taxonomy
//
//	ErrRecognitionFailed – the recognizer was unavailable or could not read the
//	                       input. Retryable and the only failure shown to users.
//
//	UserError            – the request itself was invalid (missing text/image,
//	                       malformed component list, ...).
//
// Source outages, missing matches and implausible values are recovered inside
// the pipeline and never become errors at this level.
package apperr

import (
	"errors"
	"fmt"
)

// ErrRecognitionFailed is returned when the recognizer cannot produce components.
var ErrRecognitionFailed = errors.New("recognition failed")

// RecognitionError wraps the underlying recognizer failure with a user-facing hint.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return ErrRecognitionFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrRecognitionFailed, e.Err)
}

func (e *RecognitionError) Unwrap() []error { return []error{ErrRecognitionFailed, e.Err} }

// Hint is the message shown to end users.
func (e *RecognitionError) Hint() string {
	return "We could not recognize the food. Please retry with a clearer image or a more detailed description."
}

// Recognition wraps err as a recognition failure.
func Recognition(err error) error { return &RecognitionError{Err: err} }

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool { return errors.Is(err, ErrRecognitionFailed) }

// UserError represents an invalid request.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// User creates a UserError with the given message.
func User(msg string) error { return &UserError{Message: msg} }

// Userf creates a formatted UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is (or wraps) a *UserError.
func IsUser(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}
