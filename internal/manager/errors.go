package manager

import (
	"errors"
	"fmt"
	"net/http"
)

// capacityError signals that MaxSessions live sessions already exist (429).
type capacityError struct{ max int }

func (e capacityError) Error() string {
	return fmt.Sprintf("too many open inference sessions (max %d), please try again later", e.max)
}

func (capacityError) StatusCode() int { return http.StatusTooManyRequests }

// IsCapacityExceeded reports whether err indicates admission was refused.
func IsCapacityExceeded(err error) bool {
	var e capacityError
	return errors.As(err, &e)
}

// sessionNotFoundError is returned for unknown, closed or expired session ids.
type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

func (sessionNotFoundError) StatusCode() int { return http.StatusNotFound }

// ErrSessionNotFound returns the error used for a missing session id.
func ErrSessionNotFound(id string) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether err indicates a missing or expired session.
func IsSessionNotFound(err error) bool {
	var e sessionNotFoundError
	return errors.As(err, &e)
}

// validationError rejects a request before any engine work happens.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func (validationError) StatusCode() int { return http.StatusBadRequest }

// ErrValidation builds a validation error with a formatted message.
func ErrValidation(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a request validation failure.
// An unknown model counts as one.
func IsValidation(err error) bool {
	var e validationError
	return errors.As(err, &e) || IsModelNotFound(err)
}

// modelNotFoundError is returned when a requested model key or alias is not
// served.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func (modelNotFoundError) StatusCode() int { return http.StatusNotFound }

// ErrModelNotFound returns an error when a requested model id is not present in the registry.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// engineError wraps a failure reported by the model runtime or its tokenizer.
type engineError struct {
	op  string
	err error
}

func (e engineError) Error() string { return "engine " + e.op + ": " + e.err.Error() }

func (e engineError) Unwrap() error { return e.err }

func (engineError) StatusCode() int { return http.StatusBadGateway }

// IsEngineError reports whether err originated in the engine.
func IsEngineError(err error) bool {
	var e engineError
	return errors.As(err, &e)
}
