package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/internal/notifications"
	"github.com/sokohub/sokohub-backend/internal/wallet"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/db/dbtest"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/ids"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	client   *db.Client
	conn     *gorm.DB
	svc      Service
	wallet   wallet.Service
	repo     Repository
	ids      *ids.Generator
	customer *models.User
	vendor   *models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	conn := client.DB()
	events := outbox.NewService(outbox.NewRepository(conn), nil)

	walletSvc, err := wallet.NewService(wallet.ServiceParams{
		Repo:     wallet.NewRepository(conn),
		TxRunner: client,
		Outbox:   events,
	})
	require.NoError(t, err)
	notifier, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)
	gen, err := ids.NewGenerator(config.IDsConfig{SnowflakeNode: 1})
	require.NoError(t, err)

	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		TxRunner: client,
		Outbox:   events,
		Notifier: notifier,
		Wallet:   walletSvc,
		IDs:      gen,
	})
	require.NoError(t, err)

	customer := &models.User{Username: "amani", Email: "amani@soko.test", PasswordHash: "x", Role: enums.UserRoleCustomer}
	vendor := &models.User{Username: "mama-mboga", Email: "mboga@soko.test", PasswordHash: "x", Role: enums.UserRoleVendor}
	require.NoError(t, conn.Create(customer).Error)
	require.NoError(t, conn.Create(vendor).Error)

	return fixture{client: client, conn: conn, svc: svc, wallet: walletSvc, repo: repo, ids: gen, customer: customer, vendor: vendor}
}

func (f fixture) product(t *testing.T, stock int) *models.Product {
	t.Helper()
	p := &models.Product{VendorID: f.vendor.ID, Name: "Sukuma wiki", Price: dec("10.00"), Stock: stock, Status: enums.ProductStatusActive}
	if stock == 0 {
		p.Status = enums.ProductStatusOutOfStock
	}
	require.NoError(t, f.conn.Create(p).Error)
	return p
}

// order stores an order as checkout would have left it.
func (f fixture) order(t *testing.T, product *models.Product, qty int, method enums.PaymentMethod) *models.Order {
	t.Helper()
	total := product.Price.Mul(decimal.NewFromInt(int64(qty)))
	order := &models.Order{
		OrderNumber:     f.ids.OrderNumber(),
		CustomerID:      f.customer.ID,
		VendorID:        f.vendor.ID,
		Subtotal:        total,
		Discount:        decimal.Zero,
		Total:           total,
		Status:          enums.OrderStatusPending,
		DeliveryAddress: "Moi Avenue 12, Nairobi",
		Phone:           "+254700000000",
		PaymentMethod:   method,
		PaymentStatus:   enums.PaymentStatusPending,
		Items: []models.OrderItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    qty,
			Price:       product.Price,
		}},
	}
	if method == enums.PaymentMethodWallet {
		txID := f.ids.TransactionID()
		order.Status = enums.OrderStatusPaid
		order.PaymentStatus = enums.PaymentStatusPaid
		order.TransactionID = &txID
	}
	require.NoError(t, f.repo.Create(context.Background(), order))
	return order
}

func (f fixture) stock(t *testing.T, productID uuid.UUID) (int, enums.ProductStatus) {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", productID).Error)
	return p.Stock, p.Status
}

func (f fixture) customerActor() Actor { return Actor{UserID: f.customer.ID, Role: enums.UserRoleCustomer} }
func (f fixture) vendorActor() Actor   { return Actor{UserID: f.vendor.ID, Role: enums.UserRoleVendor} }

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestPayThenApproveIssuesReceiptOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, f.product(t, 5), 2, enums.PaymentMethodExternal)

	paid, err := f.svc.Pay(ctx, f.customer.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
	require.NotNil(t, paid.TransactionID)
	require.True(t, ids.IsTransactionID(*paid.TransactionID))

	_, err = f.svc.Receipt(ctx, f.customerActor(), order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	approved, err := f.svc.Approve(ctx, f.vendor.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	again, err := f.svc.Approve(ctx, f.vendor.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusApproved, again.Status)

	var receipts int64
	require.NoError(t, f.conn.Model(&models.Receipt{}).Where("order_id = ?", order.ID).Count(&receipts).Error)
	require.EqualValues(t, 1, receipts)

	receipt, err := f.svc.Receipt(ctx, f.customerActor(), order.ID)
	require.NoError(t, err)
	require.Equal(t, f.ids.ReceiptNumber(order.OrderNumber), receipt.ReceiptNumber)
	require.True(t, receipt.Total.Equal(dec("20")))
	require.Len(t, receipt.Lines, 1)
	require.Equal(t, 2, receipt.Lines[0].Quantity)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Order("created_at ASC").Find(&events).Error)
	types := map[enums.OutboxEventType]bool{}
	for _, e := range events {
		types[e.EventType] = true
	}
	require.True(t, types[enums.EventOrderPaid])
	require.True(t, types[enums.EventOrderApproved])
}

func TestForeignActorsSeeNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, f.product(t, 5), 1, enums.PaymentMethodExternal)

	_, err := f.svc.Pay(ctx, uuid.New(), order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.Get(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleVendor}, order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	// A customer cannot act through the vendor-only transitions.
	_, err = f.svc.Approve(ctx, f.customer.ID, order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestTransitionsFollowTheStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, f.product(t, 5), 1, enums.PaymentMethodExternal)

	_, err := f.svc.Approve(ctx, f.vendor.ID, order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = f.svc.Ship(ctx, f.vendor.ID, order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.Pay(ctx, f.customer.ID, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.vendor.ID, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Deliver(ctx, f.vendor.ID, order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	shipped, err := f.svc.Ship(ctx, f.vendor.ID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)

	_, err = f.svc.Cancel(ctx, f.customerActor(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	delivered, err := f.svc.Deliver(ctx, f.vendor.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, delivered.Status)

	_, err = f.svc.Pay(ctx, f.customer.ID, order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelWalletOrderRefundsAndRestoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallet.Request(ctx, f.customer.ID)
	require.NoError(t, err)
	_, err = f.wallet.Pay(ctx, f.customer.ID)
	require.NoError(t, err)
	_, err = f.wallet.TopUp(ctx, f.customer.ID, dec("5.00"))
	require.NoError(t, err)

	product := f.product(t, 0)
	order := f.order(t, product, 3, enums.PaymentMethodWallet)
	_, err = f.svc.Approve(ctx, f.vendor.ID, order.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.vendorActor(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, enums.PaymentStatusRefunded, cancelled.PaymentStatus)
	require.NotNil(t, cancelled.CancelledAt)

	card, err := f.wallet.Get(ctx, f.customer.ID)
	require.NoError(t, err)
	require.True(t, card.Balance.Equal(dec("35.00")), "balance %s", card.Balance)

	stock, status := f.stock(t, product.ID)
	require.Equal(t, 3, stock)
	require.Equal(t, enums.ProductStatusActive, status)

	_, err = f.svc.Cancel(ctx, f.customerActor(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	stock, _ = f.stock(t, product.ID)
	require.Equal(t, 3, stock)
	card, err = f.wallet.Get(ctx, f.customer.ID)
	require.NoError(t, err)
	require.True(t, card.Balance.Equal(dec("35.00")))

	var notes []models.Notification
	require.NoError(t, f.conn.Where("user_id = ?", f.customer.ID).Find(&notes).Error)
	require.NotEmpty(t, notes)
}

func TestCancelExternalPendingOrderSkipsRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, 4)
	order := f.order(t, product, 2, enums.PaymentMethodExternal)

	cancelled, err := f.svc.Cancel(ctx, f.customerActor(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, cancelled.PaymentStatus)

	stock, _ := f.stock(t, product.ID)
	require.Equal(t, 6, stock)

	var vendorNotes int64
	require.NoError(t, f.conn.Model(&models.Notification{}).Where("user_id = ?", f.vendor.ID).Count(&vendorNotes).Error)
	require.EqualValues(t, 1, vendorNotes)
}

func TestListingsAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, 50)
	for i := 0; i < 3; i++ {
		f.order(t, product, 1, enums.PaymentMethodExternal)
	}
	paid := f.order(t, product, 1, enums.PaymentMethodExternal)
	_, err := f.svc.Pay(ctx, f.customer.ID, paid.ID)
	require.NoError(t, err)

	all, err := f.svc.ListForCustomer(ctx, f.customer.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, all.Orders, 4)

	status := enums.OrderStatusPending
	pending, err := f.svc.ListForVendor(ctx, f.vendor.ID, ListParams{Status: &status, Limit: 2})
	require.NoError(t, err)
	require.Len(t, pending.Orders, 2)
	require.NotEmpty(t, pending.NextCursor)

	rest, err := f.svc.ListForVendor(ctx, f.vendor.ID, ListParams{Status: &status, Limit: 2, Cursor: pending.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)

	none, err := f.svc.ListForCustomer(ctx, f.vendor.ID, ListParams{})
	require.NoError(t, err)
	require.Empty(t, none.Orders)

	counts, err := f.svc.VendorCounts(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, counts[enums.OrderStatusPending])
	require.EqualValues(t, 1, counts[enums.OrderStatusPaid])
	require.EqualValues(t, 0, counts[enums.OrderStatusCancelled])
}
