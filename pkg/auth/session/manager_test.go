package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/redis/redistest"
)

func newTestManager(t *testing.T) (*Manager, *redistest.Memory) {
	t.Helper()
	client, mem := redistest.NewClient()
	manager, err := NewManager(client, config.JWTConfig{
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager, mem
}

func TestNewManagerRejectsShortRefreshTTL(t *testing.T) {
	client, _ := redistest.NewClient()
	_, err := NewManager(client, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	if err == nil {
		t.Fatal("expected refresh ttl shorter than access ttl to fail")
	}
}

func TestManagerGenerateAndRotate(t *testing.T) {
	manager, mem := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	token, err := manager.Generate(ctx, userID, "access-123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if mem.TTL("sh:session:access:access-123") != time.Hour {
		t.Fatalf("expected refresh ttl of one hour")
	}

	if _, _, err := manager.Rotate(ctx, userID, "access-123", "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token error, got %v", err)
	}
	if _, _, err := manager.Rotate(ctx, uuid.New(), "access-123", token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected foreign user to be rejected, got %v", err)
	}

	newAccessID, newToken, err := manager.Rotate(ctx, userID, "access-123", token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newToken == token || newAccessID == "access-123" {
		t.Fatal("expected fresh access id and token")
	}
	if ok, _ := manager.HasSession(ctx, "access-123"); ok {
		t.Fatal("old access session left behind")
	}
	if ok, _ := manager.HasSession(ctx, newAccessID); !ok {
		t.Fatal("expected new access session")
	}

	if _, _, err := manager.Rotate(ctx, userID, "access-123", token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("replayed refresh token should fail, got %v", err)
	}
}

func TestManagerRevoke(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.Generate(ctx, uuid.New(), "access-9"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := manager.Revoke(ctx, "access-9"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, err := manager.HasSession(ctx, "access-9"); err != nil || ok {
		t.Fatalf("expected revoked session, ok=%v err=%v", ok, err)
	}
}

func TestManagerStoresOnlyTokenDigest(t *testing.T) {
	manager, _ := newTestManager(t)
	client, mem := redistest.NewClient()
	manager.store = client
	ctx := context.Background()

	token, err := manager.Generate(ctx, uuid.New(), "access-7")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored, err := client.Get(ctx, "sh:session:access:access-7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.Contains(stored, token) {
		t.Fatal("raw refresh token must not be stored")
	}
	if !mem.Has("sh:session:access:access-7") {
		t.Fatal("expected session key")
	}
}

func TestSpendChallengeOnce(t *testing.T) {
	manager, mem := newTestManager(t)
	ctx := context.Background()

	if spent, err := manager.ChallengeSpent(ctx, "jti-1"); err != nil || spent {
		t.Fatalf("fresh challenge reported spent=%v err=%v", spent, err)
	}
	if err := manager.SpendChallenge(ctx, "jti-1"); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if spent, _ := manager.ChallengeSpent(ctx, "jti-1"); !spent {
		t.Fatal("expected challenge to be spent")
	}
	if mem.TTL("sh:login_challenge:jti-1") != 5*time.Minute {
		t.Fatal("expected challenge marker to live as long as the challenge")
	}
	if err := manager.SpendChallenge(ctx, "jti-1"); !errors.Is(err, ErrChallengeSpent) {
		t.Fatalf("expected ErrChallengeSpent, got %v", err)
	}
}
