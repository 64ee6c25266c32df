// Package domain holds domain primitives shared across modules. Values are
// constructed through Parse/New functions at trust boundaries so invalid
// representations cannot circulate inside the core.
package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// ApplicationID is the human-legible identifier of a life-certificate
// application: the "ALC-" prefix followed by ten uppercase alphanumerics.
type ApplicationID string

const (
	applicationIDPrefix = "ALC-"
	applicationIDLen    = 10
	idAlphabet          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewApplicationID generates a fresh identifier using crypto/rand.
func NewApplicationID() ApplicationID {
	buf := make([]byte, applicationIDLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; treat it as fatal.
		panic(fmt.Sprintf("domain: read random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return ApplicationID(applicationIDPrefix + string(buf))
}

// ParseApplicationID validates an externally supplied identifier.
func ParseApplicationID(s string) (ApplicationID, error) {
	rest, ok := strings.CutPrefix(s, applicationIDPrefix)
	if !ok || len(rest) != applicationIDLen {
		return "", fmt.Errorf("malformed application id %q", s)
	}
	for _, r := range rest {
		if !strings.ContainsRune(idAlphabet, r) {
			return "", fmt.Errorf("malformed application id %q", s)
		}
	}
	return ApplicationID(s), nil
}

func (id ApplicationID) String() string { return string(id) }

// IsNil returns true for the zero value.
func (id ApplicationID) IsNil() bool { return id == "" }

// Short returns the truncated form used in user-facing notification text.
func (id ApplicationID) Short() string {
	s := string(id)
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
