package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// IsValidSessionID reports whether id looks like an identifier produced by
// NewSessionID. Callers may still pass arbitrary ids to the stores.
func IsValidSessionID(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
