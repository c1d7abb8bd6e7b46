package room

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an expected, recoverable rejection.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "not_found"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeInvalidPhase      ErrorCode = "invalid_phase"
	CodeInvalidSubmission ErrorCode = "invalid_submission"
	CodeCapacityExceeded  ErrorCode = "capacity_exceeded"
	CodeAlreadyJoined     ErrorCode = "already_joined"
	CodeBadRequest        ErrorCode = "bad_request"
)

// Error wraps a code and human-readable message. Errors compare equal under
// errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Errorf builds an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrInvalidPhase      = &Error{Code: CodeInvalidPhase, Message: "action not allowed in current phase"}
	ErrInvalidSubmission = &Error{Code: CodeInvalidSubmission, Message: "invalid submission"}
	ErrCapacityExceeded  = &Error{Code: CodeCapacityExceeded, Message: "capacity exceeded"}
	ErrAlreadyJoined     = &Error{Code: CodeAlreadyJoined, Message: "already joined"}
	ErrBadRequest        = &Error{Code: CodeBadRequest, Message: "bad request"}
)

// AsError extracts a coordinator error, mapping anything else to a generic
// bad_request so callers always have a code to report.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeBadRequest, Message: err.Error()}
}
