package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/security"
)

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}

	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword returned empty string")
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	cases := map[string]string{
		"plain text":    "not-a-hash",
		"wrong variant": "$argon2i$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"old version":   "$argon2id$v=16$m=8,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"bad params":    "$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"bad salt":      "$argon2id$v=19$m=8,t=1,p=1$!!!$aGFzaGhhc2g",
		"empty hash":    "$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$",
	}
	for name, encoded := range cases {
		if _, err := security.VerifyPassword("irrelevant", encoded); !errors.Is(err, security.ErrInvalidHash) {
			t.Fatalf("%s: expected ErrInvalidHash, got %v", name, err)
		}
	}
}

func TestHashPasswordEncodesClampedParams(t *testing.T) {
	hash, err := security.HashPassword("pw", config.PasswordConfig{ArgonMemoryKB: 1, ArgonTime: 99, ArgonParallelism: 0})
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8,t=10,p=1$") {
		t.Fatalf("unexpected params in %q", hash)
	}
	if _, err := security.HashPassword("", config.PasswordConfig{}); err == nil {
		t.Fatal("expected empty password to be rejected")
	}
}
