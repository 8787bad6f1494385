package possessions

import (
	"errors"
	"fmt"
	"strings"

	"estate-backend/internal/domain"
)

// Sentinels for errors.Is; the typed errors below unwrap to them.
var (
	ErrNotFound                    = errors.New("possession not found")
	ErrIllegalTransition           = errors.New("illegal possession status transition")
	ErrDuplicateActivePossession   = errors.New("plot already has an active possession")
	ErrValidationFailed            = errors.New("validation failed")
	ErrCodeAllocationExhausted     = errors.New("possession code allocation exhausted")
	ErrConflictingConcurrentUpdate = errors.New("possession was modified by another request")
	ErrDocumentStoreUnavailable    = errors.New("document store is not configured")
)

// NotFoundError names the id or code that did not resolve.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("Possession not found: %s", e.Key) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IllegalTransitionError carries both ends of the rejected move.
type IllegalTransitionError struct {
	From domain.PossessionStatus
	To   domain.PossessionStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("Cannot transition possession from %s to %s", e.From, e.To)
}
func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// DuplicateActivePossessionError surfaces the code of the record already holding the plot.
type DuplicateActivePossessionError struct {
	PlotID       string
	ExistingCode string
}

func (e *DuplicateActivePossessionError) Error() string {
	return fmt.Sprintf("Plot %s already has an active possession (%s)", e.PlotID, e.ExistingCode)
}
func (e *DuplicateActivePossessionError) Unwrap() error { return ErrDuplicateActivePossession }

// FieldError is one failed check on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failed check, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// fieldErrors accumulates FieldErrors; err() returns nil when nothing was added.
type fieldErrors []FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, FieldError{Field: field, Message: message})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
