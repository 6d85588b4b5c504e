package lib

import (
	"github.com/google/uuid"
)

// NewID generates a UUID version 4 string (RFC 4122) used to name a tunnel session.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns the first block of a session id for operator-facing replies.
func ShortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
