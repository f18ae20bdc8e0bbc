package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sokohub/sokohub-backend/internal/otp"
	"github.com/sokohub/sokohub-backend/internal/users"
	pkgAuth "github.com/sokohub/sokohub-backend/pkg/auth"
	"github.com/sokohub/sokohub-backend/pkg/auth/session"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db/dbtest"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/mail"
	"github.com/sokohub/sokohub-backend/pkg/redis/redistest"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type harness struct {
	svc     Service
	users   *users.Repository
	otpRepo *otp.Repository
	mails   *outbox
	jwt     config.JWTConfig
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{
		Secret:                   "test-secret",
		Issuer:                   "sokohub-test",
		ExpirationMinutes:        15,
		RefreshTokenTTLMinutes:   60,
		LoginChallengeTTLMinutes: 5,
	}
}

func newHarness(t *testing.T, rl config.AuthRateLimitConfig) harness {
	t.Helper()
	conn := dbtest.New(t)
	userRepo := users.NewRepository(conn)
	otpRepo := otp.NewRepository(conn)
	client, _ := redistest.NewClient()
	mails := &outbox{}
	jwtCfg := testJWT()

	otpSvc, err := otp.NewService(otp.ServiceParams{
		Repo:     otpRepo,
		Mailer:   mails,
		OTP:      config.OTPConfig{WindowMinutes: 3, Length: 5, VerifyURL: "https://soko.test/verify"},
		MailFrom: "no-reply@soko.test",
	})
	require.NoError(t, err)

	sessions, err := session.NewManager(client, jwtCfg)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		OTP:            otpSvc,
		Limiter:        client,
		JWTConfig:      jwtCfg,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
		RateLimit:      rl,
	})
	require.NoError(t, err)
	return harness{svc: svc, users: userRepo, otpRepo: otpRepo, mails: mails, jwt: jwtCfg}
}

func (h harness) register(t *testing.T, username, email string, role enums.UserRole) *users.UserDTO {
	t.Helper()
	dto, err := h.svc.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    email,
		Password: "correct-horse",
		Role:     role,
	})
	require.NoError(t, err)
	return dto
}

func (h harness) code(t *testing.T, email string) string {
	t.Helper()
	record, err := h.otpRepo.Latest(context.Background(), email)
	require.NoError(t, err)
	return record.Code
}

// login runs both phases and returns the issued tokens.
func (h harness) login(t *testing.T, identifier, email string) *TokenPair {
	t.Helper()
	ctx := context.Background()
	challenge, err := h.svc.Login(ctx, LoginRequest{Identifier: identifier, Password: "correct-horse"})
	require.NoError(t, err)
	pair, err := h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: h.code(t, email)})
	require.NoError(t, err)
	return pair
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestRegisterNormalizesAndHashes(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	dto := h.register(t, "mama_mboga", "  Mama@Soko.Test ", enums.UserRoleVendor)

	require.Equal(t, "mama@soko.test", dto.Email)
	require.Equal(t, enums.UserRoleVendor, dto.Role)

	stored, err := h.users.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	require.NotEqual(t, "correct-horse", stored.PasswordHash)
	require.True(t, stored.IsActive)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	_, err := h.svc.Register(context.Background(), RegisterRequest{
		Username: "x",
		Email:    "not-an-email",
		Password: "short",
		Role:     "admin",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	details, ok := pkgerrors.As(err).Details().([]fieldError)
	require.True(t, ok)
	require.Len(t, details, 4)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	h.register(t, "juma", "juma@soko.test", enums.UserRoleCustomer)

	_, err := h.svc.Register(context.Background(), RegisterRequest{
		Username: "juma2",
		Email:    "JUMA@soko.test",
		Password: "correct-horse",
		Role:     enums.UserRoleCustomer,
	})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestRegisterRateLimitedPerEmail(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{RegisterWindow: time.Minute, RegisterEmailLimit: 1})
	h.register(t, "amina", "amina@soko.test", enums.UserRoleCustomer)

	_, err := h.svc.Register(context.Background(), RegisterRequest{
		Username: "amina2",
		Email:    "amina@soko.test",
		Password: "correct-horse",
		Role:     enums.UserRoleCustomer,
	})
	requireCode(t, err, pkgerrors.CodeRateLimit)
}

func TestLoginRejectsBadPasswordGenerically(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	h.register(t, "wanjiru", "wanjiru@soko.test", enums.UserRoleCustomer)
	ctx := context.Background()

	_, wrongPassword := h.svc.Login(ctx, LoginRequest{Identifier: "wanjiru", Password: "nope-nope"})
	_, unknownUser := h.svc.Login(ctx, LoginRequest{Identifier: "ghost", Password: "correct-horse"})

	requireCode(t, wrongPassword, pkgerrors.CodeUnauthorized)
	requireCode(t, unknownUser, pkgerrors.CodeUnauthorized)
	require.Equal(t, pkgerrors.As(wrongPassword).Message(), pkgerrors.As(unknownUser).Message())
	require.Zero(t, h.mails.count())
}

func TestLoginByEmailIssuesChallenge(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	h.register(t, "otieno", "otieno@soko.test", enums.UserRoleCustomer)

	challenge, err := h.svc.Login(context.Background(), LoginRequest{Identifier: "OTIENO@soko.test", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, "o***@soko.test", challenge.Email)
	require.Equal(t, 1, h.mails.count())

	claims, err := pkgAuth.ParseLoginChallenge(h.jwt, challenge.ChallengeToken)
	require.NoError(t, err)
	require.Equal(t, "otieno@soko.test", claims.Email)
}

func TestVerifyOTPCompletesLoginOnce(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	user := h.register(t, "kamau", "kamau@soko.test", enums.UserRoleVendor)
	ctx := context.Background()

	challenge, err := h.svc.Login(ctx, LoginRequest{Identifier: "kamau", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: "00000x"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	code := h.code(t, "kamau@soko.test")
	pair, err := h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: code})
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, user.ID, pair.User.ID)

	claims, err := pkgAuth.ParseAccessToken(h.jwt, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, enums.UserRoleVendor, claims.Role)

	stored, err := h.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: code})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestVerifyOTPBurnsChallengeAfterRepeatedWrongCodes(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{OTPVerifyAttempts: 3})
	h.register(t, "otieno", "otieno@soko.test", enums.UserRoleCustomer)
	ctx := context.Background()

	challenge, err := h.svc.Login(ctx, LoginRequest{Identifier: "otieno", Password: "correct-horse"})
	require.NoError(t, err)
	code := h.code(t, "otieno@soko.test")

	for i := 0; i < 3; i++ {
		_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: "wrong"})
		requireCode(t, err, pkgerrors.CodeUnauthorized)
	}

	_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: code})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	err = h.svc.ResendOTP(ctx, ResendOTPRequest{ChallengeToken: challenge.ChallengeToken})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	fresh, err := h.svc.Login(ctx, LoginRequest{Identifier: "otieno", Password: "correct-horse"})
	require.NoError(t, err)
	_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: fresh.ChallengeToken, Code: h.code(t, "otieno@soko.test")})
	require.NoError(t, err)
}

func TestVerifyOTPToleratesFewerWrongCodes(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{OTPVerifyAttempts: 3})
	h.register(t, "achieng", "achieng@soko.test", enums.UserRoleCustomer)
	ctx := context.Background()

	challenge, err := h.svc.Login(ctx, LoginRequest{Identifier: "achieng", Password: "correct-horse"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: "wrong"})
		requireCode(t, err, pkgerrors.CodeUnauthorized)
	}
	_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: h.code(t, "achieng@soko.test")})
	require.NoError(t, err)
}

func TestResendOTPRefusedAfterLogin(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	h.register(t, "njeri", "njeri@soko.test", enums.UserRoleCustomer)
	ctx := context.Background()

	challenge, err := h.svc.Login(ctx, LoginRequest{Identifier: "njeri", Password: "correct-horse"})
	require.NoError(t, err)
	first := h.code(t, "njeri@soko.test")

	require.NoError(t, h.svc.ResendOTP(ctx, ResendOTPRequest{ChallengeToken: challenge.ChallengeToken}))
	require.Equal(t, 2, h.mails.count())
	second := h.code(t, "njeri@soko.test")

	if first != second {
		_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: first})
		requireCode(t, err, pkgerrors.CodeUnauthorized)
	}
	_, err = h.svc.VerifyOTP(ctx, VerifyOTPRequest{ChallengeToken: challenge.ChallengeToken, Code: second})
	require.NoError(t, err)

	err = h.svc.ResendOTP(ctx, ResendOTPRequest{ChallengeToken: challenge.ChallengeToken})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{})
	h.register(t, "baraka", "baraka@soko.test", enums.UserRoleCustomer)
	ctx := context.Background()
	pair := h.login(t, "baraka", "baraka@soko.test")

	rotated, err := h.svc.Refresh(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = h.svc.Refresh(ctx, RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	claims, err := pkgAuth.ParseAccessToken(h.jwt, rotated.AccessToken)
	require.NoError(t, err)
	require.NoError(t, h.svc.Logout(ctx, claims.ID))

	_, err = h.svc.Refresh(ctx, RefreshRequest{AccessToken: rotated.AccessToken, RefreshToken: rotated.RefreshToken})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginRateLimitedPerIdentifier(t *testing.T) {
	h := newHarness(t, config.AuthRateLimitConfig{LoginWindow: time.Minute, LoginEmailLimit: 2})
	h.register(t, "zawadi", "zawadi@soko.test", enums.UserRoleCustomer)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.svc.Login(ctx, LoginRequest{Identifier: "zawadi", Password: "wrong-pass"})
		requireCode(t, err, pkgerrors.CodeUnauthorized)
	}
	_, err := h.svc.Login(ctx, LoginRequest{Identifier: "zawadi", Password: "correct-horse"})
	requireCode(t, err, pkgerrors.CodeRateLimit)
}

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "a***@b.co", maskEmail("abc@b.co"))
	require.Equal(t, "nope", maskEmail("nope"))
}
