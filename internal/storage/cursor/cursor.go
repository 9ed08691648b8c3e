// Package cursor provides opaque pagination token encoding for the event
// journal. Tokens carry the last seen seq plus a hash of the filter they
// were issued for, so a token replayed against a different match is
// rejected instead of silently returning the wrong page.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Direction indicates the pagination direction.
type Direction string

// DirectionForward paginates forward (seq > cursor).
const DirectionForward Direction = "fwd"

// Cursor represents the internal state of a pagination token.
type Cursor struct {
	// Seq is the sequence number to paginate from.
	Seq uint64 `json:"seq"`
	// Dir is the pagination direction.
	Dir Direction `json:"dir"`
	// FilterHash invalidates the token if the filter changes.
	FilterHash string `json:"filter_hash,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	if c.Dir != DirectionForward {
		return Cursor{}, fmt.Errorf("invalid cursor direction: %q", c.Dir)
	}

	return c, nil
}

// HashFilter computes a short hash of the filter string for cursor
// validation. Returns empty string for empty filter.
func HashFilter(filter string) string {
	if filter == "" {
		return ""
	}
	h := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(h[:8])
}

// ValidateFilterHash checks if the cursor's filter hash matches the current
// filter. Returns an error if the filter has changed since the cursor was
// created.
func ValidateFilterHash(c Cursor, currentFilter string) error {
	if c.FilterHash != HashFilter(currentFilter) {
		return fmt.Errorf("filter changed since cursor was created")
	}
	return nil
}

// NewForwardCursor creates a cursor for forward pagination (seq > cursor)
// from the given sequence.
func NewForwardCursor(seq uint64, filter string) Cursor {
	return Cursor{
		Seq:        seq,
		Dir:        DirectionForward,
		FilterHash: HashFilter(filter),
	}
}
