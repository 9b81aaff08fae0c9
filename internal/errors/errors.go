package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeConfig represents configuration errors (missing or malformed settings)
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeVersion represents server-version probing errors
	ErrorTypeVersion ErrorType = "version"
	// ErrorTypeCommand represents external command execution errors
	ErrorTypeCommand ErrorType = "command"
	// ErrorTypeDump represents database dump errors
	ErrorTypeDump ErrorType = "dump"
	// ErrorTypeEncryption represents encryption errors
	ErrorTypeEncryption ErrorType = "encryption"
	// ErrorTypeUpload represents object upload errors
	ErrorTypeUpload ErrorType = "upload"
	// ErrorTypeStorage represents object storage access errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeRetention represents retention sweep errors
	ErrorTypeRetention ErrorType = "retention"
)

// AppError represents an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new application error of the given type
func New(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return New(ErrorTypeConfig, message, cause)
}

// NewVersionError creates a server-version probing error
func NewVersionError(message string, cause error) *AppError {
	return New(ErrorTypeVersion, message, cause)
}

// NewCommandError creates an external command error
func NewCommandError(message string, cause error) *AppError {
	return New(ErrorTypeCommand, message, cause)
}

// NewDumpError creates a dump error
func NewDumpError(message string, cause error) *AppError {
	return New(ErrorTypeDump, message, cause)
}

// NewEncryptionError creates an encryption error
func NewEncryptionError(message string, cause error) *AppError {
	return New(ErrorTypeEncryption, message, cause)
}

// NewUploadError creates an upload error
func NewUploadError(message string, cause error) *AppError {
	return New(ErrorTypeUpload, message, cause)
}

// NewStorageError creates a storage access error
func NewStorageError(message string, cause error) *AppError {
	return New(ErrorTypeStorage, message, cause)
}

// NewRetentionError creates a retention sweep error
func NewRetentionError(message string, cause error) *AppError {
	return New(ErrorTypeRetention, message, cause)
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}
