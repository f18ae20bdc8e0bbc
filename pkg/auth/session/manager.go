// Package session keeps refresh sessions and spent login challenges in Redis.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/sokohub/sokohub-backend/pkg/config"
	redisclient "github.com/sokohub/sokohub-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrChallengeSpent      = errors.New("login challenge already used")
	errMissingAccessID     = errors.New("access id is required")
)

// store is satisfied by *redisclient.Client.
type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
	ChallengeKey(challengeID string) string
}

// record is stored under the access id (JWT jti). Only a digest of the
// refresh token is kept.
type record struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"token_hash"`
}

// Manager issues and rotates refresh tokens. Each access token id owns at
// most one refresh token; rotating deletes the old pair.
type Manager struct {
	store        store
	ttl          time.Duration
	challengeTTL time.Duration
}

// AccessSessionChecker is the read-only surface used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager requires the refresh ttl to outlive the access ttl.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl, accessTTL := cfg.RefreshTokenTTL(), cfg.AccessTokenTTL()
	if ttl <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: client, ttl: ttl, challengeTTL: cfg.LoginChallengeTTL()}, nil
}

// Generate stores a fresh refresh token for accessID and returns it.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errMissingAccessID
	}
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	payload, err := json.Marshal(record{UserID: userID, TokenHash: digest(token)})
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(payload), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate swaps the session behind oldAccessID for a new access id and
// refresh token. The old pair is unusable afterwards.
func (m *Manager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	oldKey := m.store.AccessSessionKey(oldAccessID)
	rec, err := m.load(ctx, oldKey)
	if err != nil {
		return "", "", err
	}
	if rec.UserID != userID || subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(digest(provided))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	newAccessID := NewAccessID()
	token, err := m.Generate(ctx, userID, newAccessID)
	if err != nil {
		return "", "", err
	}
	if err := m.store.Del(ctx, oldKey); err != nil {
		return "", "", err
	}
	return newAccessID, token, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errMissingAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has a refresh session. Logout
// and rotation remove it, which revokes the access token early.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errMissingAccessID
	}
	return m.exists(ctx, m.store.AccessSessionKey(accessID))
}

// SpendChallenge marks a login challenge as used. Only the first caller
// succeeds.
func (m *Manager) SpendChallenge(ctx context.Context, challengeID string) error {
	if strings.TrimSpace(challengeID) == "" {
		return ErrChallengeSpent
	}
	ok, err := m.store.SetNX(ctx, m.store.ChallengeKey(challengeID), "1", m.challengeTTL)
	switch {
	case err != nil:
		return err
	case !ok:
		return ErrChallengeSpent
	}
	return nil
}

func (m *Manager) ChallengeSpent(ctx context.Context, challengeID string) (bool, error) {
	if strings.TrimSpace(challengeID) == "" {
		return true, nil
	}
	return m.exists(ctx, m.store.ChallengeKey(challengeID))
}

// NewAccessID is used as the JWT jti and the session key suffix.
func NewAccessID() string {
	return uuid.NewString()
}

func (m *Manager) load(ctx context.Context, key string) (record, error) {
	var rec record
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, redislib.Nil) {
		return rec, ErrInvalidRefreshToken
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.TokenHash == "" {
		return rec, ErrInvalidRefreshToken
	}
	return rec, nil
}

func (m *Manager) exists(ctx context.Context, key string) (bool, error) {
	_, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
