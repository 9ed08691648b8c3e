// Package id generates short, URL-safe unique identifiers.
package id

import (
	crand "crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a 26-character lowercase base32 identifier.
//
// The underlying bytes are 16 bytes of crypto-random data with UUIDv4
// version and variant bits set, so ids remain convertible to canonical
// UUID form if a future integration needs it.
func NewID() (string, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random id bytes: %w", err)
	}

	b[6] = (b[6] & 0x0F) | 0x40
	b[8] = (b[8] & 0x3F) | 0x80

	return strings.ToLower(encoding.EncodeToString(b[:])), nil
}
