package models

import (
	"fmt"

	"github.com/google/uuid"
)

// NewLocalID generates a local entity id. Version 7 UUIDs embed a
// millisecond timestamp followed by a monotonic counter, so ids sort in
// creation order.
func NewLocalID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate local id: %w", err)
	}
	return id.String(), nil
}

// IsLocalID reports whether s parses as a local id.
func IsLocalID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
