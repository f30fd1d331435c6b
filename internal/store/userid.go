// Package store provides database location and identifier rules for Stride.
package store

import (
	"errors"
	"regexp"
)

// ErrInvalidUserID indicates the user ID format is invalid.
var ErrInvalidUserID = errors.New("invalid user ID: must be 1-128 characters of letters, digits, '-', '_', '.', '@'")

// userIDRegex validates user ID format. User IDs come from the surrounding
// service (auth subjects, emails, UUIDs) and never contain whitespace or
// path separators.
var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// ValidateUserID validates a user ID format.
func ValidateUserID(id string) error {
	if !userIDRegex.MatchString(id) {
		return ErrInvalidUserID
	}
	return nil
}
