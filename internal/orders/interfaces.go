package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and receipts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, query listQuery) ([]models.Order, *pagination.Cursor, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	MarkStockRestored(ctx context.Context, id uuid.UUID) (bool, error)
	CountByStatus(ctx context.Context, vendorID uuid.UUID) (map[enums.OrderStatus]int64, error)
	CreateReceipt(ctx context.Context, receipt *models.Receipt) error
	FindReceipt(ctx context.Context, orderID uuid.UUID) (*models.Receipt, error)
}

type listQuery struct {
	customerID *uuid.UUID
	vendorID   *uuid.UUID
	status     *enums.OrderStatus
	limit      int
	cursor     *pagination.Cursor
}
