package errors

import (
	stderrors "errors"
	"fmt"
)

// MorieError is the structured error type for morie.
// It carries enough context for logging, CLI presentation and errors.Is matching.
type MorieError struct {
	// Code is the unique error code (e.g., "ERR_207_CONTENT_STORE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *MorieError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MorieError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with MorieError sentinels.
func (e *MorieError) Is(target error) bool {
	if t, ok := target.(*MorieError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *MorieError) WithDetail(key, value string) *MorieError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *MorieError) WithSuggestion(suggestion string) *MorieError {
	e.Suggestion = suggestion
	return e
}

// New creates a new MorieError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *MorieError {
	return &MorieError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a MorieError from an existing error.
// The error's message becomes the MorieError message.
func Wrap(code string, err error) *MorieError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *MorieError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ContentStoreError reports an I/O failure, corrupt object or unresolvable
// reference in the repository.
func ContentStoreError(message string, cause error) *MorieError {
	return New(ErrCodeContentStore, message, cause)
}

// CacheStoreError reports a transaction or storage failure in the cache database.
func CacheStoreError(message string, cause error) *MorieError {
	return New(ErrCodeCacheStore, message, cause)
}

// NotFoundError reports a path absent from HEAD.
func NotFoundError(path string) *MorieError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s: not found", path), nil).WithDetail("path", path)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *MorieError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *MorieError {
	return New(ErrCodeInternal, message, cause)
}

// Sentinels for errors.Is matching by code.
var (
	ErrContentStore = &MorieError{Code: ErrCodeContentStore}
	ErrCacheStore   = &MorieError{Code: ErrCodeCacheStore}
	ErrNotFound     = &MorieError{Code: ErrCodeNotFound}
	ErrIndexFailed  = &MorieError{Code: ErrCodeIndexFailed}
)

// IsNotFound reports whether any error in err's chain is a NotFoundError.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var me *MorieError
	if stderrors.As(err, &me) {
		return me.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code of the outermost MorieError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var me *MorieError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return ""
}

// GetCategory extracts the category of the outermost MorieError in the chain.
func GetCategory(err error) Category {
	var me *MorieError
	if stderrors.As(err, &me) {
		return me.Category
	}
	return ""
}
