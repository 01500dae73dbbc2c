// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Surface errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// Classifier errors.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrAlreadyLoaded         = errors.New("classifier already loaded")
	ErrShapeMismatch         = errors.New("input shape mismatch")
	ErrEmptyScores           = errors.New("classifier returned no scores")

	// Database errors.
	ErrNotFound = errors.New("not found")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// InvalidArgumentf returns an error wrapping ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// LoadError reports that a classifier failed to initialize.
// A pipeline that receives one stays unavailable for the rest of its life.
type LoadError struct {
	Err  error
	Path string
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("classifier load failed: %v", e.Err)
	}
	return fmt.Sprintf("classifier load failed for %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// RunError reports that a single inference run failed.
type RunError struct {
	Err     error
	Trigger string
}

func (e *RunError) Error() string {
	if e.Trigger == "" {
		return fmt.Sprintf("inference failed: %v", e.Err)
	}
	return fmt.Sprintf("inference failed (%s): %v", e.Trigger, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
