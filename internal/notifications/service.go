package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

// RecentLimit is how many notifications the summary widget shows.
const RecentLimit = 5

// Service defines notification write, list and read operations.
type Service interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, message string, targetURL string) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (*string, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Notifier is the write-only surface other domains depend on.
type Notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, message string, targetURL string) error
}

type service struct {
	repo Repository
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// Summary feeds the header badge.
type Summary struct {
	UnreadCount int64                 `json:"unread_count"`
	Recent      []models.Notification `json:"recent"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

// Notify appends a notification inside tx so it commits with the change it reports.
func (s *service) Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, message string, targetURL string) error {
	if userID == uuid.Nil || strings.TrimSpace(message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient and message required")
	}
	row := &models.Notification{UserID: userID, Message: message}
	if targetURL != "" {
		row.TargetURL = &targetURL
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	recent, err := s.repo.Recent(ctx, userID, RecentLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent notifications")
	}
	if recent == nil {
		recent = []models.Notification{}
	}
	return &Summary{UnreadCount: count, Recent: recent}, nil
}

// MarkRead returns the notification's target URL so the client can follow it.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (*string, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return result.TargetURL, nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
