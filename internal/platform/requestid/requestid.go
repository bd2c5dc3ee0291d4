// Package requestid mints opaque identifiers attached to every
// inbound HTTP request and echoed back in error bodies.
package requestid

import "github.com/google/uuid"

// New returns a fresh random request identifier.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
