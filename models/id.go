package models

import "github.com/google/uuid"

// NewEntryID mints a time-ordered UUIDv7 entry identifier, falling back to
// a random UUIDv4 if the monotonic clock source fails.
func NewEntryID() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}
