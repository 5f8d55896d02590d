package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/plexhub/convault/internal/provider"
)

// A secret reference is the string "<provider>:<id>" written into the
// connectors configuration in place of plaintext. It round-trips exactly
// through FormatRef/ParseRef and resolves to at most one record.

// FormatRef renders the reference for a record.
func FormatRef(p provider.Type, id string) string {
	return fmt.Sprintf("%s:%s", p, id)
}

// ParseRef splits a reference into its provider tag and record id.
// Malformed references, including ones with an invalid UUID or an unknown
// provider tag, never parse.
func ParseRef(s string) (provider.Type, string, bool) {
	tag, id, found := strings.Cut(s, ":")
	if !found || tag == "" || id == "" {
		return "", "", false
	}

	switch provider.Type(tag) {
	case provider.TypePlain, provider.TypeKeychain:
	default:
		return "", "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		return "", "", false
	}

	return provider.Type(tag), id, true
}

// IsRef reports whether s is a well-formed secret reference.
func IsRef(s string) bool {
	_, _, ok := ParseRef(s)
	return ok
}
