package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/internal/users"
	pkgAuth "github.com/sokohub/sokohub-backend/pkg/auth"
	"github.com/sokohub/sokohub-backend/pkg/auth/session"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	invalidChallengeMessage   = "login session expired; sign in again"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Login(ctx context.Context, req LoginRequest) (*LoginChallenge, error)
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*TokenPair, error)
	ResendOTP(ctx context.Context, req ResendOTPRequest) error
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
}

type userRepository interface {
	users.PrincipalLookup
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, bool, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error)
	Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
	SpendChallenge(ctx context.Context, challengeID string) error
	ChallengeSpent(ctx context.Context, challengeID string) (bool, error)
}

type otpService interface {
	Issue(ctx context.Context, email, linkToken string) error
	Verify(ctx context.Context, email, candidate string) error
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	OTP            otpService
	Limiter        rateLimiter
	Logger         *logger.Logger
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	RateLimit      config.AuthRateLimitConfig
	Now            func() time.Time
}

type service struct {
	users     userRepository
	session   sessionManager
	otp       otpService
	limiter   rateLimiter
	logg      *logger.Logger
	jwtCfg    config.JWTConfig
	pwCfg     config.PasswordConfig
	rateLimit config.AuthRateLimitConfig
	now       func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.OTP == nil {
		return nil, fmt.Errorf("otp service is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		users:     params.UserRepo,
		session:   params.SessionManager,
		otp:       params.OTP,
		limiter:   params.Limiter,
		logg:      params.Logger,
		jwtCfg:    params.JWTConfig,
		pwCfg:     params.PasswordConfig,
		rateLimit: params.RateLimit,
		now:       now,
	}, nil
}

// Login checks the password and, on success, mails a code and returns the
// signed challenge the client must present with it.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginChallenge, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if err := s.allow(ctx, "login:id:"+strings.ToLower(identifier), s.rateLimit.LoginEmailLimit, s.rateLimit.LoginWindow); err != nil {
		return nil, err
	}
	if req.ClientIP != "" {
		if err := s.allow(ctx, "login:ip:"+req.ClientIP, s.rateLimit.LoginIPLimit, s.rateLimit.LoginWindow); err != nil {
			return nil, err
		}
	}

	user, err := users.ResolvePrincipal(ctx, s.users, identifier)
	if err != nil {
		if errors.Is(err, users.ErrPrincipalNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now()
	token, err := pkgAuth.MintLoginChallenge(s.jwtCfg, now, user.ID, user.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint login challenge")
	}
	if err := s.otp.Issue(ctx, user.Email, token); err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "login challenge issued")
	}
	return &LoginChallenge{
		ChallengeToken: token,
		ExpiresAt:      now.Add(s.jwtCfg.LoginChallengeTTL()),
		Email:          maskEmail(user.Email),
	}, nil
}

// VerifyOTP completes the second phase. The challenge can finish one login only.
func (s *service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*TokenPair, error) {
	claims, err := pkgAuth.ParseLoginChallenge(s.jwtCfg, req.ChallengeToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidChallengeMessage)
	}
	spent, err := s.session.ChallengeSpent(ctx, claims.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check login challenge")
	}
	if spent {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidChallengeMessage)
	}
	if err := s.otp.Verify(ctx, claims.Email, strings.TrimSpace(req.Code)); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			if burnErr := s.countFailedCode(ctx, claims.ID); burnErr != nil {
				return nil, burnErr
			}
		}
		return nil, err
	}
	if err := s.session.SpendChallenge(ctx, claims.ID); err != nil {
		if errors.Is(err, session.ErrChallengeSpent) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidChallengeMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "spend login challenge")
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, claims.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidChallengeMessage)
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	return s.issueTokens(ctx, user, now, session.NewAccessID(), "")
}

func (s *service) ResendOTP(ctx context.Context, req ResendOTPRequest) error {
	claims, err := pkgAuth.ParseLoginChallenge(s.jwtCfg, req.ChallengeToken)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidChallengeMessage)
	}
	spent, err := s.session.ChallengeSpent(ctx, claims.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check login challenge")
	}
	if spent {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidChallengeMessage)
	}
	return s.otp.Issue(ctx, claims.Email, req.ChallengeToken)
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, refreshToken, err := s.session.Rotate(ctx, claims.UserID, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate refresh token")
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		_ = s.session.Revoke(ctx, newAccessID)
		return nil, err
	}
	return s.issueTokens(ctx, user, s.now(), newAccessID, refreshToken)
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// issueTokens mints an access token for accessID. A refresh token is
// generated unless the caller already rotated one.
func (s *service) issueTokens(ctx context.Context, user *models.User, now time.Time, accessID, refreshToken string) (*TokenPair, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if refreshToken == "" {
		refreshToken, err = s.session.Generate(ctx, user.ID, accessID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
		}
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) activeUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// countFailedCode spends the login challenge once it has collected
// OTPVerifyAttempts wrong codes, which also blocks resends for it.
func (s *service) countFailedCode(ctx context.Context, challengeID string) error {
	attempts := s.rateLimit.OTPVerifyAttempts
	if s.limiter == nil || attempts <= 0 {
		return nil
	}
	ok, _, err := s.limiter.FixedWindowAllow(ctx, "otp:verify:"+challengeID, int64(attempts-1), s.jwtCfg.LoginChallengeTTL())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count failed otp")
	}
	if ok {
		return nil
	}
	if err := s.session.SpendChallenge(ctx, challengeID); err != nil && !errors.Is(err, session.ErrChallengeSpent) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "spend login challenge")
	}
	return nil
}

func (s *service) allow(ctx context.Context, scope string, limit int, window time.Duration) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	ok, _, err := s.limiter.FixedWindowAllow(ctx, scope, int64(limit), window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts; try again later")
	}
	return nil
}

// maskEmail keeps the first character of the local part: j***@example.com.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local[:1] + "***@" + domain
}
