package security_test

import (
	"strings"
	"testing"

	"github.com/sokohub/sokohub-backend/pkg/security"
)

func TestRandomDigits(t *testing.T) {
	code, err := security.RandomDigits(5)
	if err != nil {
		t.Fatalf("RandomDigits returned error: %v", err)
	}
	if len(code) != 5 {
		t.Fatalf("expected 5 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected only digits, got %q", code)
		}
	}
}

func TestRandomStringRejectsBadInput(t *testing.T) {
	if _, err := security.RandomString(0, security.DigitCharset); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := security.RandomString(4, ""); err == nil {
		t.Fatal("expected error for empty charset")
	}
}

func TestRandomStringUsesCharset(t *testing.T) {
	value, err := security.RandomString(64, security.UpperAlphanumericCharset)
	if err != nil {
		t.Fatalf("RandomString returned error: %v", err)
	}
	for _, r := range value {
		if !strings.ContainsRune(security.UpperAlphanumericCharset, r) {
			t.Fatalf("unexpected rune %q in %q", r, value)
		}
	}
}
