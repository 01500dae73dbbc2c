package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidLimit   = errors.New("limit must be positive")
	ErrInvalidRecord  = errors.New("invalid prediction record")
	ErrInvalidSession = errors.New("invalid session")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRecord checks a prediction before it is stored. Only known digits
// are recorded.
func validateRecord(record *service.PredictionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(record.SessionID) == "" {
		return fmt.Errorf("%w: session ID is required", ErrInvalidRecord)
	}
	if record.Label < 0 || record.Label >= model.NumClasses {
		return fmt.Errorf("%w: label %d out of range", ErrInvalidRecord, record.Label)
	}
	if math.IsNaN(record.Confidence) || record.Confidence < 0 || record.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidRecord, record.Confidence)
	}
	if record.Trigger == "" {
		return fmt.Errorf("%w: trigger is required", ErrInvalidRecord)
	}
	return nil
}

func validateSession(session *service.SessionRecord) error {
	if session == nil {
		return fmt.Errorf("%w: session", ErrNilParameter)
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("%w: ID is required", ErrInvalidSession)
	}
	if strings.TrimSpace(session.Source) == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidSession)
	}
	return nil
}
