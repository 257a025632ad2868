package chatsphere

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes every error the engine can surface.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Activation-path failures.
	ErrorFetchFailed      // history unavailable; room proceeds on an empty baseline
	ErrorConnectionFailed // channel could not be established; requires re-activation
	ErrorNotConnected     // send attempted while the channel is not open
	ErrorDisconnected     // channel dropped after being open

	// Local validation failures.
	ErrorInvalidConfig
	ErrorInvalidMessage
	ErrorMalformedEvent
	ErrorSerialization
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorFetchFailed:
		return "fetch_failed"
	case ErrorConnectionFailed:
		return "connection_failed"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorInvalidMessage:
		return "invalid_message"
	case ErrorMalformedEvent:
		return "malformed_event"
	case ErrorSerialization:
		return "serialization_error"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ChatError is a structured error with code and context.
type ChatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is comparison by code.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a ChatError with the given code and message.
func NewError(code ErrorCode, message string) *ChatError {
	return &ChatError{Code: code, Message: message}
}

// WrapError wraps an existing error with a ChatError.
func WrapError(code ErrorCode, message string, err error) *ChatError {
	return &ChatError{Code: code, Message: message, Wrapped: err}
}

func hasCode(err error, code ErrorCode) bool {
	var ce *ChatError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}

// IsFetchError reports whether err is a history-fetch failure.
func IsFetchError(err error) bool { return hasCode(err, ErrorFetchFailed) }

// IsConnectionError reports whether err is a channel establishment or
// channel drop failure.
func IsConnectionError(err error) bool {
	return hasCode(err, ErrorConnectionFailed) || hasCode(err, ErrorDisconnected) || hasCode(err, ErrorNotConnected)
}

// IsMalformedEvent reports whether err came from rejecting an inbound frame.
func IsMalformedEvent(err error) bool { return hasCode(err, ErrorMalformedEvent) }
