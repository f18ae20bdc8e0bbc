package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(q.limit)
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if q.customerID != nil {
		query = query.Where("customer_id = ?", *q.customerID)
	}
	if q.vendorID != nil {
		query = query.Where("vendor_id = ?", *q.vendorID)
	}
	if q.status != nil {
		query = query.Where("status = ?", *q.status)
	}
	if q.cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", q.cursor.CreatedAt, q.cursor.ID)
	}

	var rows []models.Order
	if err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > limit {
		last := rows[limit-1]
		return rows[:limit], &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

// Transition applies updates only while the order is still in from.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// MarkStockRestored flips the flag once; later callers get false.
func (r *repository) MarkStockRestored(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_restored = ?", id, false).
		Update("stock_restored", true)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) CountByStatus(ctx context.Context, vendorID uuid.UUID) (map[enums.OrderStatus]int64, error) {
	type statusCount struct {
		Status enums.OrderStatus
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Where("vendor_id = ?", vendorID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *repository) CreateReceipt(ctx context.Context, receipt *models.Receipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *repository) FindReceipt(ctx context.Context, orderID uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}
