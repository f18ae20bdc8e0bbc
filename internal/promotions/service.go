// Package promotions schedules the days on which active card holders receive
// the checkout discount.
package promotions

import (
	"context"
	"errors"
	"strings"
	"time"

	dbpkg "github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

const DayLayout = "2006-01-02"

// Service administers promotion days.
type Service interface {
	Add(ctx context.Context, day time.Time, description string) (*models.Promotion, error)
	List(ctx context.Context, from time.Time) ([]models.Promotion, error)
	Remove(ctx context.Context, day time.Time) error
	IsActive(ctx context.Context, at time.Time) (bool, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("promotions repository required")
	}
	return &service{repo: repo}, nil
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay reads a YYYY-MM-DD value.
func ParseDay(raw string) (time.Time, error) {
	day, err := time.Parse(DayLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "day must be YYYY-MM-DD")
	}
	return day, nil
}

func (s *service) Add(ctx context.Context, day time.Time, description string) (*models.Promotion, error) {
	if day.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "day is required")
	}
	promo := &models.Promotion{Day: Day(day), Description: strings.TrimSpace(description)}
	if err := s.repo.Create(ctx, promo); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion already scheduled for "+promo.Day.Format(DayLayout))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promotion")
	}
	return promo, nil
}

func (s *service) List(ctx context.Context, from time.Time) ([]models.Promotion, error) {
	if !from.IsZero() {
		from = Day(from)
	}
	rows, err := s.repo.List(ctx, from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promotions")
	}
	return rows, nil
}

func (s *service) Remove(ctx context.Context, day time.Time) error {
	deleted, err := s.repo.Delete(ctx, Day(day))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete promotion")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no promotion on "+Day(day).Format(DayLayout))
	}
	return nil
}

// IsActive reports whether a promotion covers the calendar day of at.
func (s *service) IsActive(ctx context.Context, at time.Time) (bool, error) {
	ok, err := s.repo.Exists(ctx, Day(at))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promotion")
	}
	return ok, nil
}
