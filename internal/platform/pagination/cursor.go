// Package pagination implements the opaque keyset cursors used by list
// endpoints. Tokens encode the sort key of the last item on the previous
// page so Firestore queries can resume with StartAfter instead of offsets.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidToken reports a malformed or tampered page token.
var ErrInvalidToken = errors.New("pagination: invalid page token")

// Cursor identifies the last document of a page. Listings order by
// creation time descending with the document ID as tie-breaker, so both
// values are needed to resume deterministically.
type Cursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// IsZero reports whether the cursor carries no position.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// EncodeCursor serialises the cursor into a URL-safe page token.
// A zero cursor encodes to the empty string.
func EncodeCursor(c Cursor) string {
	if c.IsZero() {
		return ""
	}
	c.CreatedAt = c.CreatedAt.UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token
// yields a zero cursor, meaning the first page.
func DecodeCursor(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.IsZero() {
		return Cursor{}, fmt.Errorf("%w: empty cursor payload", ErrInvalidToken)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
