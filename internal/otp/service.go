package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/internal/users"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/mail"
	"github.com/sokohub/sokohub-backend/pkg/security"
)

const invalidCodeMessage = "invalid or expired code"

type store interface {
	Create(ctx context.Context, record *models.EmailOTP) error
	Latest(ctx context.Context, email string) (*models.EmailOTP, error)
	Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Service issues and verifies email login codes.
type Service interface {
	Issue(ctx context.Context, email, linkToken string) error
	Verify(ctx context.Context, email, candidate string) error
}

// ServiceParams bundles the OTP dependencies.
type ServiceParams struct {
	Repo      store
	Mailer    mail.Sender
	Limiter   rateLimiter
	Logger    *logger.Logger
	OTP       config.OTPConfig
	RateLimit config.AuthRateLimitConfig
	MailFrom  string
	Now       func() time.Time
}

type service struct {
	repo      store
	mailer    mail.Sender
	limiter   rateLimiter
	logg      *logger.Logger
	cfg       config.OTPConfig
	rateLimit config.AuthRateLimitConfig
	from      string
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("otp repository required")
	}
	if params.Mailer == nil {
		return nil, errors.New("mail sender required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		mailer:    params.Mailer,
		limiter:   params.Limiter,
		logg:      params.Logger,
		cfg:       params.OTP,
		rateLimit: params.RateLimit,
		from:      params.MailFrom,
		now:       now,
	}, nil
}

// IsValid reports whether record is still inside its validity window at now.
func IsValid(record *models.EmailOTP, now time.Time, window time.Duration) bool {
	if record == nil {
		return false
	}
	return !now.After(record.CreatedAt.Add(window))
}

// Issue generates, stores and mails a fresh code. Mail failures are logged only.
func (s *service) Issue(ctx context.Context, email, linkToken string) error {
	email = users.NormalizeEmail(email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := s.allow(ctx, email); err != nil {
		return err
	}

	length := s.cfg.Length
	if length <= 0 {
		length = 5
	}
	code, err := security.RandomDigits(length)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}

	record := &models.EmailOTP{Email: email, Code: code, CreatedAt: s.now()}
	if err := s.repo.Create(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}

	mail.Dispatch(ctx, s.mailer, s.logg, mail.Message{
		Subject: "Your Sokohub login code",
		Body:    s.body(email, code, linkToken),
		From:    s.from,
		To:      []string{email},
	})
	return nil
}

// Verify accepts candidate only if it matches the latest unconsumed code in
// its window. Every failure looks the same to the caller.
func (s *service) Verify(ctx context.Context, email, candidate string) error {
	email = users.NormalizeEmail(email)
	record, err := s.repo.Latest(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}

	now := s.now()
	matches := subtle.ConstantTimeCompare([]byte(record.Code), []byte(candidate)) == 1
	if !matches || record.ConsumedAt != nil || !IsValid(record, now, s.cfg.Window()) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}

	consumed, err := s.repo.Consume(ctx, record.ID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume otp")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}
	return nil
}

func (s *service) allow(ctx context.Context, email string) error {
	if s.limiter == nil || s.rateLimit.OTPEmailLimit <= 0 {
		return nil
	}
	ok, _, err := s.limiter.FixedWindowAllow(ctx, "otp:"+email, int64(s.rateLimit.OTPEmailLimit), s.rateLimit.OTPWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp rate limit")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many codes requested; try again later")
	}
	return nil
}

func (s *service) body(email, code, linkToken string) string {
	minutes := int(s.cfg.Window() / time.Minute)
	link := s.verifyLink(email, code, linkToken)
	return fmt.Sprintf(
		"Your Sokohub login code is %s.\n\nIt expires in %d minutes. You can also sign in with this link:\n%s\n\nAnyone holding this link can sign in as you. Do not forward it.\n",
		code, minutes, link,
	)
}

func (s *service) verifyLink(email, code, linkToken string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("code", code)
	if linkToken != "" {
		q.Set("token", linkToken)
	}
	return s.cfg.VerifyURL + "?" + q.Encode()
}
