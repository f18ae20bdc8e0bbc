package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/internal/products"
	dbpkg "github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes cart operations for customers.
type Service interface {
	GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	View(ctx context.Context, customerID uuid.UUID) (*View, error)
	Load(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, customerID, productID uuid.UUID) (*View, error)
	UpdateItem(ctx context.Context, customerID, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type service struct {
	repo     *Repository
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, productRepo productLoader) (Service, error) {
	if repo == nil {
		return nil, errors.New("cart repository required")
	}
	if productRepo == nil {
		return nil, errors.New("product loader required")
	}
	return &service{repo: repo, products: productRepo}, nil
}

// GetOrCreate returns the customer's cart, creating it on first use. A
// concurrent creator losing the unique race re-reads the winner's row.
func (s *service) GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByCustomer(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{CustomerID: customerID}
	if err := s.repo.Create(ctx, cart); err != nil {
		if !dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
		}
		existing, findErr := s.repo.FindByCustomer(ctx, customerID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload cart")
		}
		return existing, nil
	}
	return cart, nil
}

func (s *service) View(ctx context.Context, customerID uuid.UUID) (*View, error) {
	cart, err := s.Load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return NewView(cart), nil
}

// Load returns the cart with lines and products, creating an empty cart if needed.
func (s *service) Load(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if _, err := s.GetOrCreate(ctx, customerID); err != nil {
		return nil, err
	}
	cart, err := s.repo.LoadWithLines(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, customerID, productID uuid.UUID) (*View, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !products.IsInStock(product) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "product is out of stock")
	}

	cart, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := s.addOne(ctx, cart.ID, product); err != nil {
		return nil, err
	}
	return s.View(ctx, customerID)
}

func (s *service) addOne(ctx context.Context, cartID uuid.UUID, product *models.Product) error {
	line, err := s.repo.FindLine(ctx, cartID, product.ID)
	switch {
	case err == nil:
		return s.incrementLine(ctx, line.ID, product.Stock)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	line = &models.CartItem{CartID: cartID, ProductID: product.ID, Quantity: 1}
	if err := s.repo.CreateLine(ctx, line); err != nil {
		if !dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		existing, findErr := s.repo.FindLine(ctx, cartID, product.ID)
		if findErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload cart line")
		}
		return s.incrementLine(ctx, existing.ID, product.Stock)
	}
	return nil
}

func (s *service) incrementLine(ctx context.Context, itemID uuid.UUID, stock int) error {
	ok, err := s.repo.IncrementLine(ctx, itemID, stock)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart line")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "cart already holds all available stock").
			WithDetails(map[string]any{"available": stock})
	}
	return nil
}

func (s *service) UpdateItem(ctx context.Context, customerID, itemID uuid.UUID, quantity int) (*View, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	line, err := s.ownedLine(ctx, customerID, itemID)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		if err := s.repo.DeleteLine(ctx, line.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		return s.View(ctx, customerID)
	}

	product, err := s.products.FindByID(ctx, line.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if quantity > product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "quantity exceeds available stock").
			WithDetails(map[string]any{"available": product.Stock})
	}
	if err := s.repo.SetQuantity(ctx, line.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return s.View(ctx, customerID)
}

func (s *service) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*View, error) {
	line, err := s.ownedLine(ctx, customerID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteLine(ctx, line.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return s.View(ctx, customerID)
}

// Clear empties the cart inside the caller's transaction.
func (s *service) Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if err := s.repo.WithTx(tx).Clear(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) ownedLine(ctx context.Context, customerID, itemID uuid.UUID) (*models.CartItem, error) {
	line, err := s.repo.FindOwnedLine(ctx, customerID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return line, nil
}

// LineTotal is the product's current price times the line quantity.
func LineTotal(item models.CartItem) decimal.Decimal {
	if item.Product == nil {
		return decimal.Zero
	}
	return item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}
