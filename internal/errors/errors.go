// Package errors defines the application error taxonomy. Every error carries a
// stable code so the HTTP and chat boundaries can decide what to expose.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown    = "UNKNOWN"
	CodeValidation = "VALIDATION"
	CodeExternal   = "EXTERNAL"
	CodeDatabase   = "DATABASE"
	CodeConfig     = "CONFIG"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Message returns the error message without the wrapped cause.
func (e *Error) Message() string {
	return e.message
}

// Code returns the code of the first ApplicationError in the chain,
// or CodeUnknown if there is none.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// ValidationError marks bad caller input or a malformed model payload.
type ValidationError struct {
	base Error
}

func (e *ValidationError) Error() string {
	return e.base.Error()
}

func (e *ValidationError) Code() string {
	return e.base.Code()
}

func (e *ValidationError) Unwrap() error {
	return e.base.Unwrap()
}

func NewValidationError(message string, cause error) error {
	return &ValidationError{
		base: Error{
			code:    CodeValidation,
			message: message,
			err:     cause,
		},
	}
}

// ExternalServiceError covers transport failures, timeouts and non-2xx
// answers from a third-party dependency.
type ExternalServiceError struct {
	base    Error
	service string
}

func (e *ExternalServiceError) Error() string {
	return e.service + ": " + e.base.Error()
}

func (e *ExternalServiceError) Code() string {
	return e.base.Code()
}

func (e *ExternalServiceError) Unwrap() error {
	return e.base.Unwrap()
}

// Service names the dependency that failed.
func (e *ExternalServiceError) Service() string {
	return e.service
}

func NewExternalServiceError(service, message string, cause error) error {
	return &ExternalServiceError{
		service: service,
		base: Error{
			code:    CodeExternal,
			message: message,
			err:     cause,
		},
	}
}

// PersistenceError wraps storage failures and constraint violations.
type PersistenceError struct {
	base Error
}

func (e *PersistenceError) Error() string {
	return e.base.Error()
}

func (e *PersistenceError) Code() string {
	return e.base.Code()
}

func (e *PersistenceError) Unwrap() error {
	return e.base.Unwrap()
}

func NewPersistenceError(message string, cause error) error {
	return &PersistenceError{
		base: Error{
			code:    CodeDatabase,
			message: message,
			err:     cause,
		},
	}
}

// ConfigError reports a missing or invalid operator setting.
type ConfigError struct {
	base Error
}

func (e *ConfigError) Error() string {
	return e.base.Error()
}

func (e *ConfigError) Code() string {
	return e.base.Code()
}

func (e *ConfigError) Unwrap() error {
	return e.base.Unwrap()
}

func NewConfigError(message string, cause error) error {
	return &ConfigError{
		base: Error{
			code:    CodeConfig,
			message: message,
			err:     cause,
		},
	}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsExternal reports whether err is, or wraps, an ExternalServiceError.
func IsExternal(err error) bool {
	var e *ExternalServiceError
	return errors.As(err, &e)
}

// IsPersistence reports whether err is, or wraps, a PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
