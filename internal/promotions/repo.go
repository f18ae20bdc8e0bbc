package promotions

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
)

// Repository persists promotion days.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, promo *models.Promotion) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

// List returns promotions on or after from, oldest first. A zero from lists everything.
func (r *Repository) List(ctx context.Context, from time.Time) ([]models.Promotion, error) {
	query := r.db.WithContext(ctx).Model(&models.Promotion{})
	if !from.IsZero() {
		query = query.Where("day >= ?", from)
	}
	var rows []models.Promotion
	err := query.Order("day ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Delete(ctx context.Context, day time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Where("day = ?", day).Delete(&models.Promotion{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Exists(ctx context.Context, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Promotion{}).Where("day = ?", day).Count(&count).Error
	return count > 0, err
}
