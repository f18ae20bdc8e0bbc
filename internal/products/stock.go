package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

// DecrementStock removes qty units inside tx. The stock guard is evaluated by
// the UPDATE itself so concurrent checkouts cannot oversell.
func DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]any{"stock": gorm.Expr("stock - ?", qty)})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
			WithDetails(map[string]any{"product_id": productID, "requested": qty})
	}
	return rederiveStatus(ctx, tx, productID)
}

// IncrementStock returns qty units to the product inside tx.
func IncrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{"stock": gorm.Expr("stock + ?", qty)})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return rederiveStatus(ctx, tx, productID)
}

func rederiveStatus(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	var product models.Product
	if err := tx.WithContext(ctx).
		Select("id", "stock", "status").
		First(&product, "id = ?", productID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product stock")
	}
	next := DeriveStatus(product.Status, product.Stock)
	if next == product.Status {
		return nil
	}
	if err := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("status", next).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product status")
	}
	return nil
}
