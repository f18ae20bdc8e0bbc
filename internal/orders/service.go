package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/internal/products"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, message string, targetURL string) error
}

type walletCreditor interface {
	Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, ref string) (*models.CardTransaction, error)
}

type idGenerator interface {
	TransactionID() string
	ReceiptNumber(orderNumber int64) string
}

// StockRestorer returns units to a product when an order is cancelled.
type StockRestorer interface {
	IncrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type productStock struct{}

func (productStock) IncrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return products.IncrementStock(ctx, tx, productID, qty)
}

// Service drives the order state machine and order reads.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params ListParams) (*OrderList, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, params ListParams) (*OrderList, error)
	Pay(ctx context.Context, customerID, orderID uuid.UUID) (*OrderDTO, error)
	Approve(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error)
	Ship(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error)
	Deliver(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	Receipt(ctx context.Context, actor Actor, orderID uuid.UUID) (*ReceiptDTO, error)
	VendorCounts(ctx context.Context, vendorID uuid.UUID) (map[enums.OrderStatus]int64, error)
}

// ServiceParams bundles order dependencies.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Outbox   outboxPublisher
	Notifier notifier
	Wallet   walletCreditor
	IDs      idGenerator
	Stock    StockRestorer
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	notifier notifier
	wallet   walletCreditor
	ids      idGenerator
	stock    StockRestorer
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Wallet == nil:
		return nil, fmt.Errorf("wallet required")
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
		repo:     params.Repo,
		tx:       params.TxRunner,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		wallet:   params.Wallet,
		ids:      params.IDs,
		stock:    stock,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.owned(ctx, s.repo, actor, orderID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params ListParams) (*OrderList, error) {
	return s.list(ctx, listQuery{customerID: &customerID}, params)
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID, params ListParams) (*OrderList, error) {
	return s.list(ctx, listQuery{vendorID: &vendorID}, params)
}

func (s *service) list(ctx context.Context, q listQuery, params ListParams) (*OrderList, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	q.status = params.Status
	q.limit = params.Limit
	q.cursor = cursor

	rows, next, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, NewOrderDTO(&rows[i]))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// transition describes one forward move of the state machine.
type transition struct {
	from    enums.OrderStatus
	to      enums.OrderStatus
	event   enums.OutboxEventType
	message string
	// apply adds extra column updates and runs side effects inside tx.
	apply func(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time, updates map[string]any) error
}

func (s *service) Pay(ctx context.Context, customerID, orderID uuid.UUID) (*OrderDTO, error) {
	actor := Actor{UserID: customerID, Role: enums.UserRoleCustomer}
	return s.advance(ctx, actor, orderID, transition{
		from:    enums.OrderStatusPending,
		to:      enums.OrderStatusPaid,
		event:   enums.EventOrderPaid,
		message: "Order #%d has been paid",
		apply: func(_ context.Context, _ *gorm.DB, order *models.Order, now time.Time, updates map[string]any) error {
			txID := s.ids.TransactionID()
			updates["payment_status"] = enums.PaymentStatusPaid
			updates["transaction_id"] = txID
			updates["paid_at"] = now
			return nil
		},
	})
}

func (s *service) Approve(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error) {
	actor := Actor{UserID: vendorID, Role: enums.UserRoleVendor}
	return s.advance(ctx, actor, orderID, transition{
		from:    enums.OrderStatusPaid,
		to:      enums.OrderStatusApproved,
		event:   enums.EventOrderApproved,
		message: "Order #%d was approved; your receipt is ready",
		apply: func(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time, updates map[string]any) error {
			updates["approved_at"] = now
			return s.issueReceipt(ctx, tx, order, now)
		},
	})
}

func (s *service) Ship(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error) {
	actor := Actor{UserID: vendorID, Role: enums.UserRoleVendor}
	return s.advance(ctx, actor, orderID, transition{
		from:    enums.OrderStatusApproved,
		to:      enums.OrderStatusShipped,
		event:   enums.EventOrderShipped,
		message: "Order #%d has shipped",
		apply: func(_ context.Context, _ *gorm.DB, _ *models.Order, now time.Time, updates map[string]any) error {
			updates["shipped_at"] = now
			return nil
		},
	})
}

func (s *service) Deliver(ctx context.Context, vendorID, orderID uuid.UUID) (*OrderDTO, error) {
	actor := Actor{UserID: vendorID, Role: enums.UserRoleVendor}
	return s.advance(ctx, actor, orderID, transition{
		from:    enums.OrderStatusShipped,
		to:      enums.OrderStatusDelivered,
		event:   enums.EventOrderDelivered,
		message: "Order #%d was delivered",
		apply: func(_ context.Context, _ *gorm.DB, _ *models.Order, now time.Time, updates map[string]any) error {
			updates["delivered_at"] = now
			return nil
		},
	})
}

// advance runs a forward transition. Repeating the action that produced the
// current status returns the order unchanged.
func (s *service) advance(ctx context.Context, actor Actor, orderID uuid.UUID, step transition) (*OrderDTO, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.owned(ctx, repo, actor, orderID)
		if err != nil {
			return err
		}
		if order.Status == step.to {
			out = order
			return nil
		}
		if order.Status != step.from {
			return stateConflict(order.Status, step.to)
		}

		now := s.now()
		updates := map[string]any{"status": step.to, "updated_at": now}
		if step.apply != nil {
			if err := step.apply(ctx, tx, order, now, updates); err != nil {
				return err
			}
		}
		ok, err := repo.Transition(ctx, order.ID, step.from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return stateConflict(order.Status, step.to)
		}

		if out, err = s.reload(ctx, repo, order.ID); err != nil {
			return err
		}
		return s.announce(ctx, tx, actor, out, step.event, fmt.Sprintf(step.message, out.OrderNumber))
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(out)
	return &dto, nil
}

// Cancel is allowed from pending, paid and approved. Stock comes back once and
// wallet-paid orders are refunded in full.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.owned(ctx, repo, actor, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanBeCancelled() {
			return stateConflict(order.Status, enums.OrderStatusCancelled)
		}

		now := s.now()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		}
		refund := order.PaymentMethod == enums.PaymentMethodWallet && order.PaymentStatus == enums.PaymentStatusPaid
		if refund {
			updates["payment_status"] = enums.PaymentStatusRefunded
		}
		ok, err := repo.Transition(ctx, order.ID, order.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return stateConflict(order.Status, enums.OrderStatusCancelled)
		}

		if err := s.restoreStock(ctx, tx, repo, order); err != nil {
			return err
		}
		if refund {
			if _, err := s.wallet.Credit(ctx, tx, order.CustomerID, order.Total, refundReference(order)); err != nil {
				return err
			}
		}

		if out, err = s.reload(ctx, repo, order.ID); err != nil {
			return err
		}
		return s.announce(ctx, tx, actor, out, enums.EventOrderCancelled, fmt.Sprintf("Order #%d was cancelled", out.OrderNumber))
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, actor.UserID.String()), orderID.String())
		s.logg.Info(logCtx, "order cancelled")
	}
	dto := NewOrderDTO(out)
	return &dto, nil
}

func (s *service) restoreStock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	first, err := repo.MarkStockRestored(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark stock restored")
	}
	if !first {
		return nil
	}
	for _, item := range order.Items {
		if err := s.stock.IncrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *service) Receipt(ctx context.Context, actor Actor, orderID uuid.UUID) (*ReceiptDTO, error) {
	if _, err := s.owned(ctx, s.repo, actor, orderID); err != nil {
		return nil, err
	}
	receipt, err := s.repo.FindReceipt(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not issued yet")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}
	dto, err := newReceiptDTO(receipt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode receipt")
	}
	return dto, nil
}

func (s *service) VendorCounts(ctx context.Context, vendorID uuid.UUID) (map[enums.OrderStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending, enums.OrderStatusPaid, enums.OrderStatusApproved,
		enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

func (s *service) issueReceipt(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	lines := make([]models.ReceiptLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, models.ReceiptLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			LineTotal:   item.LineTotal(),
		})
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode receipt lines")
	}
	receipt := &models.Receipt{
		OrderID:       order.ID,
		ReceiptNumber: s.ids.ReceiptNumber(order.OrderNumber),
		Total:         order.Total,
		Lines:         datatypes.JSON(raw),
		IssuedAt:      now,
	}
	if err := s.repo.WithTx(tx).CreateReceipt(ctx, receipt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create receipt")
	}
	return nil
}

// announce notifies the other party and queues the domain event.
func (s *service) announce(ctx context.Context, tx *gorm.DB, actor Actor, order *models.Order, event enums.OutboxEventType, message string) error {
	recipient, url := actor.counterpart(order)
	if err := s.notifier.Notify(ctx, tx, recipient, message, url); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
		Data:          EventData(order),
		OccurredAt:    s.now(),
	})
}

// EventData is the payload shared by every order.* event.
func EventData(order *models.Order) outbox.OrderEvent {
	return outbox.OrderEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		VendorID:      order.VendorID,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
		Discount:      order.Discount,
	}
}

// owned loads the order and hides it from anyone who is not a party to it.
func (s *service) owned(ctx context.Context, repo Repository, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.owns(order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) reload(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

func stateConflict(current, target enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s; cannot move to %s", current, target)).
		WithDetails(map[string]any{"status": current, "requested": target})
}

func refundReference(order *models.Order) string {
	return fmt.Sprintf("refund:%d", order.OrderNumber)
}
