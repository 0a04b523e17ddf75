// Package apperr defines the error taxonomy shared by the auth layer, the
// credential store adapters and the page handlers. Every error that reaches a
// handler is turned into a human-readable form message via MessageOf.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an AppError.
type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeConflict   Code = "CONFLICT"
	CodeAuth       Code = "AUTH"
	CodeStore      Code = "STORE"
	CodeToken      Code = "TOKEN"
)

// fallbackMessage is shown for errors that carry no user-facing message.
const fallbackMessage = "Something went wrong"

// AppError is an error with a classification code and a message that is safe
// to show to the user. Cause holds the underlying error, if any.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New returns an AppError without a cause.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap returns an AppError that wraps cause.
func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) *AppError { return New(CodeValidation, msg) }

func Conflict(msg string) *AppError { return New(CodeConflict, msg) }

func Auth(msg string) *AppError { return New(CodeAuth, msg) }

func Store(msg string, cause error) *AppError { return Wrap(CodeStore, msg, cause) }

func Token(msg string, cause error) *AppError { return Wrap(CodeToken, msg, cause) }

// CodeOf reports the code of the first AppError in err's chain, or "" if
// there is none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallbackMessage
}
