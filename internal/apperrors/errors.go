package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the class of an application error
type ErrorType string

const (
	ErrConfiguration      ErrorType = "CONFIGURATION"
	ErrStorage            ErrorType = "STORAGE"
	ErrRenderPrecondition ErrorType = "RENDER_PRECONDITION"
	ErrRenderOutput       ErrorType = "RENDER_OUTPUT"
)

// AppError represents an application error
type AppError struct {
	Type      ErrorType
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:      errType,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates an error for missing or invalid settings
func NewConfigurationError(message string, cause error) *AppError {
	return New(ErrConfiguration, message, cause)
}

// NewStorageError creates an error for a failed read or write against the store
func NewStorageError(message string, cause error) *AppError {
	return New(ErrStorage, message, cause)
}

// NewRenderPreconditionError creates an error for a missing render input
func NewRenderPreconditionError(message string, cause error) *AppError {
	return New(ErrRenderPrecondition, message, cause)
}

// NewRenderOutputError creates an error for a page that could not be written
func NewRenderOutputError(message string, cause error) *AppError {
	return New(ErrRenderOutput, message, cause)
}

func isType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsConfiguration checks if the error is a configuration error
func IsConfiguration(err error) bool {
	return isType(err, ErrConfiguration)
}

// IsStorage checks if the error is a storage error
func IsStorage(err error) bool {
	return isType(err, ErrStorage)
}

// IsRenderPrecondition checks if the error is a render precondition error
func IsRenderPrecondition(err error) bool {
	return isType(err, ErrRenderPrecondition)
}

// IsRenderOutput checks if the error is a render output error
func IsRenderOutput(err error) bool {
	return isType(err, ErrRenderOutput)
}
