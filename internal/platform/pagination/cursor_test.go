package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeCursorRoundTrip(t *testing.T) {
	created := time.Date(2024, time.March, 20, 10, 30, 0, 0, time.UTC)
	token := EncodeCursor(Cursor{CreatedAt: created, ID: "ord_01HXYZ"})
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("DecodeCursor returned error: %v", err)
	}
	if !got.CreatedAt.Equal(created) || got.ID != "ord_01HXYZ" {
		t.Fatalf("unexpected cursor %+v", got)
	}
}

func TestEncodeCursorZeroYieldsEmptyToken(t *testing.T) {
	if token := EncodeCursor(Cursor{}); token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestDecodeCursorEmptyTokenIsFirstPage(t *testing.T) {
	got, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("DecodeCursor returned error: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero cursor, got %+v", got)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not-base64!!", "bm90LWpzb24", "e30"} {
		if _, err := DecodeCursor(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
