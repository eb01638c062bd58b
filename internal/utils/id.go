package utils

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns the first eight hex characters of a fresh ID, handy for
// human-facing names.
func ShortID() string {
	return NewID()[:8]
}
