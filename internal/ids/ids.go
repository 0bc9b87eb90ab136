// Package ids generates opaque identifiers for bookings and requests.
package ids

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns 16 random hex characters.
func New() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
