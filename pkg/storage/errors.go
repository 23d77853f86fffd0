package storage

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of storage error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested path does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrPermissionDenied indicates the operation is not permitted on the
	// path. A guarded backend reports denials with this code so callers
	// cannot tell a policy denial from a backend refusal.
	ErrPermissionDenied

	// ErrAlreadyExists indicates the path already exists.
	ErrAlreadyExists

	// ErrNotEmpty indicates a directory is not empty.
	ErrNotEmpty

	// ErrIsDirectory indicates the operation is not valid on a directory.
	ErrIsDirectory

	// ErrNotDirectory indicates the operation requires a directory.
	ErrNotDirectory

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument

	// ErrIOError indicates an I/O error occurred in the backend.
	ErrIOError

	// ErrNotSupported indicates the backend does not implement the
	// operation.
	ErrNotSupported
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrIsDirectory:
		return "IsDirectory"
	case ErrNotDirectory:
		return "NotDirectory"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrIOError:
		return "IOError"
	case ErrNotSupported:
		return "NotSupported"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// StoreError represents a storage error with an error code.
type StoreError struct {
	Code    ErrorCode
	Message string
	Path    string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFoundError creates a NotFound error.
func NewNotFoundError(path string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: "no such file or directory",
		Path:    path,
	}
}

// NewPermissionDeniedError creates a PermissionDenied error.
func NewPermissionDeniedError(path string) *StoreError {
	return &StoreError{
		Code:    ErrPermissionDenied,
		Message: "permission denied",
		Path:    path,
	}
}

// NewAlreadyExistsError creates an AlreadyExists error.
func NewAlreadyExistsError(path string) *StoreError {
	return &StoreError{
		Code:    ErrAlreadyExists,
		Message: "already exists",
		Path:    path,
	}
}

// NewNotEmptyError creates a NotEmpty error.
func NewNotEmptyError(path string) *StoreError {
	return &StoreError{
		Code:    ErrNotEmpty,
		Message: "directory not empty",
		Path:    path,
	}
}

// NewIsDirectoryError creates an IsDirectory error.
func NewIsDirectoryError(path string) *StoreError {
	return &StoreError{
		Code:    ErrIsDirectory,
		Message: "is a directory",
		Path:    path,
	}
}

// NewNotDirectoryError creates a NotDirectory error.
func NewNotDirectoryError(path string) *StoreError {
	return &StoreError{
		Code:    ErrNotDirectory,
		Message: "not a directory",
		Path:    path,
	}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewIOError creates an IOError wrapping a backend failure message.
func NewIOError(path, message string) *StoreError {
	return &StoreError{
		Code:    ErrIOError,
		Message: message,
		Path:    path,
	}
}

// NewNotSupportedError creates a NotSupported error.
func NewNotSupportedError(operation string) *StoreError {
	return &StoreError{
		Code:    ErrNotSupported,
		Message: fmt.Sprintf("operation not supported: %s", operation),
	}
}

// IsNotFoundError returns true if the error is a NotFound error.
func IsNotFoundError(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == ErrNotFound
	}
	return false
}

// IsPermissionDeniedError returns true if the error is a PermissionDenied error.
func IsPermissionDeniedError(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == ErrPermissionDenied
	}
	return false
}

// IsAlreadyExistsError returns true if the error is an AlreadyExists error.
func IsAlreadyExistsError(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == ErrAlreadyExists
	}
	return false
}

// IsNotEmptyError returns true if the error is a NotEmpty error.
func IsNotEmptyError(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == ErrNotEmpty
	}
	return false
}

// IsNotSupportedError returns true if the error is a NotSupported error.
func IsNotSupportedError(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == ErrNotSupported
	}
	return false
}
