package users

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
)

// ErrPrincipalNotFound is returned when neither the username nor the email matches.
var ErrPrincipalNotFound = errors.New("principal not found")

// PrincipalLookup is the read surface ResolvePrincipal needs.
type PrincipalLookup interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ResolvePrincipal finds the account a login identifier refers to: an exact
// username match wins, then a case-insensitive email match.
func ResolvePrincipal(ctx context.Context, lookup PrincipalLookup, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrPrincipalNotFound
	}

	user, err := lookup.FindByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err = lookup.FindByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPrincipalNotFound
	}
	return nil, err
}
