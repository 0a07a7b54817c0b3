// Package idgen generates the identifiers handed out by the service: stored
// imports get time-sortable UUIDv7 IDs, requests get short random ones.
// Both carry a type prefix so an ID says what it names.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// NanoID returns a Generator of lower-case base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i, b := range buf {
			buf[i] = alphabet[int(b)%len(alphabet)]
		}
		return string(buf)
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// ParsePrefixed checks that id is prefix followed by a UUID and returns the
// canonical form.
func ParsePrefixed(prefix, id string) (string, error) {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return "", fmt.Errorf("idgen: %q lacks prefix %q", id, prefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID in %q: %w", id, err)
	}
	return prefix + u.String(), nil
}
