package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
)

// Repository persists issued codes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, record *models.EmailOTP) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Latest returns the most recently issued code for email.
func (r *Repository) Latest(ctx context.Context, email string) (*models.EmailOTP, error) {
	var record models.EmailOTP
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Consume marks the code used; it reports false when another verifier got there first.
func (r *Repository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EmailOTP{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", now)
	return res.RowsAffected > 0, res.Error
}

// PurgeBefore deletes codes created before cutoff, consumed or not.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.EmailOTP{})
	return res.RowsAffected, res.Error
}
