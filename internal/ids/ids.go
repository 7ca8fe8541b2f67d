// Package ids generates surrogate keys for stored leads.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// UUIDv7 produces time-ordered UUID strings.
type UUIDv7 struct{}

// NewID returns a new UUIDv7.
func (UUIDv7) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid v7: %w", err)
	}
	return id.String(), nil
}
