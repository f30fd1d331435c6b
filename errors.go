package stride

import (
	"errors"
	"fmt"
)

// Common errors returned by the engine and store.
var (
	// ErrNotFound is returned when a record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidRating is returned when a feedback rating is outside [1, 5].
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrInsufficientData marks an analysis skipped for lack of history.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUpstreamRead marks a failed read from an activity or profile source.
	ErrUpstreamRead = errors.New("upstream read failed")

	// ErrPersistence marks a failed write to the pattern, preference or recommendation store.
	ErrPersistence = errors.New("persistence failed")

	// ErrSessionRefNotFound is returned when a session reference cannot be resolved.
	ErrSessionRefNotFound = errors.New("session reference not found")
)

// ValidationError is returned when configuration or input validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// InsufficientDataError reports an extractor threshold that was not met.
// Callers treat it as "skip", never as "abort".
type InsufficientDataError struct {
	PatternType PatternType
	Have        int
	Need        int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data (have %d, need %d)", e.PatternType, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// UpstreamError is returned when an activity, profile or readiness source fails.
// Extractable via errors.As(). Supports Unwrap().
type UpstreamError struct {
	Source string
	UserID string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream: %s for user %s: %v", e.Source, e.UserID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamRead }

// PersistenceError is returned when a store write fails. Every write is an
// idempotent upsert or an append, so the operation is safe to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// IsInsufficientData reports whether err signals a skipped analysis.
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func insufficient(t PatternType, have, need int) error {
	return &InsufficientDataError{PatternType: t, Have: have, Need: need}
}

func upstream(source, userID string, err error) error {
	return &UpstreamError{Source: source, UserID: userID, Err: err}
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	// A closed store is not a write failure callers should retry.
	if errors.Is(err, ErrStoreClosed) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
