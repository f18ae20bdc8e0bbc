package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAccessToken issues a signed JWT for the provided payload using the configured TTL.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := requireSigningConfig(cfg); err != nil {
		return "", err
	}
	if cfg.AccessTokenTTL() <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if payload.UserID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	if !payload.Role.IsValid() {
		return "", fmt.Errorf("invalid user role %q", payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		UserID:           payload.UserID,
		Role:             payload.Role,
		RegisteredClaims: registered(cfg, payload.UserID, jti, now, cfg.AccessTokenTTL()),
	}
	return sign(cfg, claims)
}

// ParseAccessToken checks signature, issuer and expiry.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return parseAccess(cfg, tokenString, false)
}

// ParseAccessTokenAllowExpired only checks the signature so refresh can read
// the jti of an expired access token.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return parseAccess(cfg, tokenString, true)
}

func parseAccess(cfg config.JWTConfig, tokenString string, allowExpired bool) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := parse(cfg, tokenString, claims, allowExpired); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil || !claims.Role.IsValid() {
		return nil, fmt.Errorf("access token missing subject")
	}
	return claims, nil
}

// MintLoginChallenge signs the pending-login token returned after a correct password.
func MintLoginChallenge(cfg config.JWTConfig, now time.Time, userID uuid.UUID, email string) (string, error) {
	if err := requireSigningConfig(cfg); err != nil {
		return "", err
	}
	if userID == uuid.Nil || strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("user id and email are required")
	}

	claims := LoginChallengeClaims{
		UserID:           userID,
		Email:            strings.ToLower(strings.TrimSpace(email)),
		Type:             TokenTypeLoginChallenge,
		RegisteredClaims: registered(cfg, userID, uuid.NewString(), now, cfg.LoginChallengeTTL()),
	}
	return sign(cfg, claims)
}

// ParseLoginChallenge validates a pending-login token, rejecting access tokens.
func ParseLoginChallenge(cfg config.JWTConfig, tokenString string) (*LoginChallengeClaims, error) {
	claims := &LoginChallengeClaims{}
	if err := parse(cfg, tokenString, claims, false); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeLoginChallenge {
		return nil, fmt.Errorf("unexpected token type %q", claims.Type)
	}
	if claims.UserID == uuid.Nil || claims.Email == "" {
		return nil, fmt.Errorf("login challenge missing subject")
	}
	return claims, nil
}

func registered(cfg config.JWTConfig, subject uuid.UUID, id string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        id,
	}
}

func requireSigningConfig(cfg config.JWTConfig) error {
	if cfg.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("jwt issuer is required")
	}
	return nil
}

func sign(cfg config.JWTConfig, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

func parse(cfg config.JWTConfig, tokenString string, claims jwt.Claims, allowExpired bool) error {
	if cfg.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	})
	return err
}
