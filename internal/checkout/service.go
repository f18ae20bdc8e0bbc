package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/internal/orders"
	"github.com/sokohub/sokohub-backend/internal/products"
	"github.com/sokohub/sokohub-backend/internal/wallet"
	pkgcheckout "github.com/sokohub/sokohub-backend/pkg/checkout"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/metrics"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type cartStore interface {
	Load(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type walletService interface {
	Get(ctx context.Context, userID uuid.UUID) (*wallet.CardDTO, error)
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, ref string) (*models.CardTransaction, error)
}

type promotionCalendar interface {
	IsActive(ctx context.Context, at time.Time) (bool, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, message string, targetURL string) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type idGenerator interface {
	OrderNumber() int64
	TransactionID() string
}

// StockReserver takes units out of stock inside the checkout transaction.
type StockReserver interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type productStock struct{}

func (productStock) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return products.DecrementStock(ctx, tx, productID, qty)
}

// Service turns a cart, or a single product, into one order per vendor.
type Service interface {
	CheckoutCart(ctx context.Context, customerID uuid.UUID, input Input) (*Result, error)
	CheckoutProduct(ctx context.Context, customerID, productID uuid.UUID, quantity int, input Input) (*Result, error)
}

// ServiceParams bundles checkout dependencies.
type ServiceParams struct {
	TxRunner     txRunner
	Carts        cartStore
	Products     productLoader
	Orders       orders.Repository
	Wallet       walletService
	Promotions   promotionCalendar
	Notifier     notifier
	Outbox       outboxPublisher
	IDs          idGenerator
	Stock        StockReserver
	Metrics      *metrics.CheckoutMetrics
	Logger       *logger.Logger
	DiscountRate decimal.Decimal
	Now          func() time.Time
}

type service struct {
	tx         txRunner
	carts      cartStore
	products   productLoader
	orders     orders.Repository
	wallet     walletService
	promotions promotionCalendar
	notifier   notifier
	outbox     outboxPublisher
	ids        idGenerator
	stock      StockReserver
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	rate       decimal.Decimal
	now        func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart store required")
	case params.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Wallet == nil:
		return nil, fmt.Errorf("wallet service required")
	case params.Promotions == nil:
		return nil, fmt.Errorf("promotion calendar required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.IDs == nil:
		return nil, fmt.Errorf("id generator required")
	}
	stock := params.Stock
	if stock == nil {
		stock = productStock{}
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:         params.TxRunner,
		carts:      params.Carts,
		products:   params.Products,
		orders:     params.Orders,
		wallet:     params.Wallet,
		promotions: params.Promotions,
		notifier:   params.Notifier,
		outbox:     params.Outbox,
		ids:        params.IDs,
		stock:      stock,
		metrics:    params.Metrics,
		logg:       params.Logger,
		rate:       params.DiscountRate,
		now:        now,
	}, nil
}

func (s *service) CheckoutCart(ctx context.Context, customerID uuid.UUID, input Input) (*Result, error) {
	if err := input.normalize(); err != nil {
		s.metrics.IncAttempt(metrics.CheckoutResultRejected)
		return nil, err
	}
	record, err := s.carts.Load(ctx, customerID)
	if err != nil {
		return nil, s.fail(err)
	}
	if len(record.Items) == 0 {
		s.metrics.IncAttempt(metrics.CheckoutResultRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lines := make([]Line, 0, len(record.Items))
	checks := make([]pkgcheckout.AvailabilityInput, 0, len(record.Items))
	for _, item := range record.Items {
		if item.Product == nil {
			return nil, s.fail(pkgerrors.New(pkgerrors.CodeNotFound, "product in cart no longer exists"))
		}
		lines = append(lines, lineFor(item.Product, item.Quantity))
		checks = append(checks, availability(item.Product, item.Quantity))
	}
	if err := pkgcheckout.ValidateAvailability(checks); err != nil {
		return nil, s.fail(err)
	}
	return s.place(ctx, customerID, lines, input, &record.ID)
}

// CheckoutProduct is the buy-now path: one synthetic line, cart untouched.
func (s *service) CheckoutProduct(ctx context.Context, customerID, productID uuid.UUID, quantity int, input Input) (*Result, error) {
	if err := input.normalize(); err != nil {
		s.metrics.IncAttempt(metrics.CheckoutResultRejected)
		return nil, err
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.fail(pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
		}
		return nil, s.fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product"))
	}
	if product.Status == enums.ProductStatusInactive {
		return nil, s.fail(pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
	}
	if err := pkgcheckout.ValidateAvailability([]pkgcheckout.AvailabilityInput{availability(product, quantity)}); err != nil {
		return nil, s.fail(err)
	}
	return s.place(ctx, customerID, []Line{lineFor(product, quantity)}, input, nil)
}

func (s *service) place(ctx context.Context, customerID uuid.UUID, lines []Line, input Input, cartID *uuid.UUID) (*Result, error) {
	now := s.now()
	card, err := s.card(ctx, customerID)
	if err != nil {
		return nil, s.fail(err)
	}

	rate := decimal.Zero
	if card != nil && card.Usable && s.rate.IsPositive() {
		active, err := s.promotions.IsActive(ctx, now)
		if err != nil {
			return nil, s.fail(err)
		}
		if active {
			rate = s.rate
		}
	}

	groups := GroupByVendor(lines)
	priced := make([]PricedGroup, 0, len(groups))
	result := &Result{PaymentMethod: input.PaymentMethod, Subtotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero}
	for _, group := range groups {
		p := Price(group, rate)
		priced = append(priced, p)
		result.Subtotal = result.Subtotal.Add(p.Subtotal)
		result.Discount = result.Discount.Add(p.Discount)
		result.Total = result.Total.Add(p.Total)
	}

	walletFunded := input.PaymentMethod == enums.PaymentMethodWallet
	if walletFunded {
		if card == nil || !card.Usable {
			return nil, s.fail(pkgerrors.New(pkgerrors.CodeInsufficientFunds, "an active Sokohub Card is required"))
		}
		if card.Balance.LessThan(result.Total) {
			return nil, s.fail(pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
				WithDetails(map[string]any{"required": result.Total, "balance": card.Balance}))
		}
		txID := s.ids.TransactionID()
		result.TransactionID = &txID
	}

	created := make([]*models.Order, 0, len(priced))
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		for _, group := range priced {
			order := s.buildOrder(customerID, group, input, result.TransactionID, now)
			if err := repo.Create(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			for _, line := range group.Lines {
				if err := s.stock.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}
			if err := s.notifier.Notify(ctx, tx, order.VendorID,
				fmt.Sprintf("New order #%d: %d item(s), total %s", order.OrderNumber, len(order.Items), order.Total.StringFixed(2)),
				"/vendor/orders/"+order.ID.String()); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: customerID, Role: string(enums.UserRoleCustomer)},
				Data:          orders.EventData(order),
				OccurredAt:    now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
			}
			created = append(created, order)
		}

		if walletFunded {
			if _, err := s.wallet.Debit(ctx, tx, customerID, result.Total, *result.TransactionID); err != nil {
				return err
			}
		}
		if cartID != nil {
			if err := s.carts.Clear(ctx, tx, *cartID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(err)
	}

	result.Orders = make([]orders.OrderDTO, 0, len(created))
	for _, order := range created {
		result.Orders = append(result.Orders, orders.NewOrderDTO(order))
	}
	s.metrics.IncAttempt(metrics.CheckoutResultSuccess)
	s.metrics.ObserveOrders(string(input.PaymentMethod), len(created), result.Total)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithUserID(ctx, customerID.String()), map[string]any{
			"orders":         len(created),
			"total":          result.Total.StringFixed(2),
			"payment_method": input.PaymentMethod,
		})
		s.logg.Info(logCtx, "checkout completed")
	}
	return result, nil
}

func (s *service) buildOrder(customerID uuid.UUID, group PricedGroup, input Input, txID *string, now time.Time) *models.Order {
	order := &models.Order{
		OrderNumber:     s.ids.OrderNumber(),
		CustomerID:      customerID,
		VendorID:        group.VendorID,
		Subtotal:        group.Subtotal,
		Discount:        group.Discount,
		Total:           group.Total,
		Status:          enums.OrderStatusPending,
		DeliveryAddress: input.DeliveryAddress,
		Phone:           input.Phone,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusPending,
		Items:           make([]models.OrderItem, 0, len(group.Lines)),
	}
	if txID != nil {
		paidAt := now
		order.Status = enums.OrderStatusPaid
		order.PaymentStatus = enums.PaymentStatusPaid
		order.TransactionID = txID
		order.PaidAt = &paidAt
	}
	for _, line := range group.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			Price:       line.Price,
		})
	}
	return order
}

// card returns the customer's card, or nil when they never requested one.
func (s *service) card(ctx context.Context, customerID uuid.UUID) (*wallet.CardDTO, error) {
	card, err := s.wallet.Get(ctx, customerID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return card, nil
}

// fail records the outcome metric and passes err through.
func (s *service) fail(err error) error {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		s.metrics.IncAttempt(metrics.CheckoutResultInsufficientStock)
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds):
		s.metrics.IncAttempt(metrics.CheckoutResultInsufficientFunds)
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		s.metrics.IncAttempt(metrics.CheckoutResultRejected)
	default:
		s.metrics.IncAttempt(metrics.CheckoutResultError)
	}
	return err
}

func lineFor(product *models.Product, quantity int) Line {
	return Line{
		ProductID:   product.ID,
		ProductName: product.Name,
		VendorID:    product.VendorID,
		Quantity:    quantity,
		UnitPrice:   product.Price,
	}
}

func availability(product *models.Product, quantity int) pkgcheckout.AvailabilityInput {
	return pkgcheckout.AvailabilityInput{
		ProductID:   product.ID,
		ProductName: product.Name,
		Purchasable: products.IsInStock(product),
		Available:   product.Stock,
		Quantity:    quantity,
	}
}
