package auth

import (
	"context"
	"regexp"
	"strings"

	"github.com/sokohub/sokohub-backend/internal/users"
	dbpkg "github.com/sokohub/sokohub-backend/pkg/db"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/security"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{3,150}$`)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Register creates a customer or vendor account.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	username := strings.TrimSpace(req.Username)
	email := users.NormalizeEmail(req.Email)

	if err := validateRegistration(username, email, req); err != nil {
		return nil, err
	}
	if req.ClientIP != "" {
		if err := s.allow(ctx, "register:ip:"+req.ClientIP, s.rateLimit.RegisterIPLimit, s.rateLimit.RegisterWindow); err != nil {
			return nil, err
		}
	}
	if err := s.allow(ctx, "register:email:"+email, s.rateLimit.RegisterEmailLimit, s.rateLimit.RegisterWindow); err != nil {
		return nil, err
	}

	usernameTaken, emailTaken, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing user")
	}
	if usernameTaken || emailTaken {
		return nil, duplicateUserError(usernameTaken, emailTaken)
	}

	passwordHash, err := security.HashPassword(req.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        req.Phone,
		TaxID:        req.TaxID,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username or email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	}
	return users.FromModel(user), nil
}

func validateRegistration(username, email string, req RegisterRequest) error {
	var problems []fieldError
	if !usernamePattern.MatchString(username) {
		problems = append(problems, fieldError{Field: "username", Message: "3-150 letters, digits, '.', '_' or '-'"})
	}
	if !strings.Contains(email, "@") {
		problems = append(problems, fieldError{Field: "email", Message: "valid email required"})
	}
	if len(req.Password) < 8 {
		problems = append(problems, fieldError{Field: "password", Message: "at least 8 characters"})
	}
	if !req.Role.IsValid() {
		problems = append(problems, fieldError{Field: "role", Message: "role must be customer or vendor"})
	}
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid registration").WithDetails(problems)
}

func duplicateUserError(usernameTaken, emailTaken bool) error {
	var fields []fieldError
	if usernameTaken {
		fields = append(fields, fieldError{Field: "username", Message: "already taken"})
	}
	if emailTaken {
		fields = append(fields, fieldError{Field: "email", Message: "already registered"})
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "account already exists").WithDetails(fields)
}
