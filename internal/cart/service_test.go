package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/internal/products"
	"github.com/sokohub/sokohub-backend/pkg/db/dbtest"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

type fixture struct {
	conn     *gorm.DB
	svc      Service
	customer *models.User
	vendor   *models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.New(t)
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn))
	require.NoError(t, err)

	customer := &models.User{Username: "wanjiru", Email: "wanjiru@soko.test", PasswordHash: "x", Role: enums.UserRoleCustomer}
	vendor := &models.User{Username: "duka", Email: "duka@soko.test", PasswordHash: "x", Role: enums.UserRoleVendor}
	require.NoError(t, conn.Create(customer).Error)
	require.NoError(t, conn.Create(vendor).Error)
	return fixture{conn: conn, svc: svc, customer: customer, vendor: vendor}
}

func (f fixture) product(t *testing.T, name, price string, stock int, status enums.ProductStatus) *models.Product {
	t.Helper()
	p := &models.Product{
		VendorID: f.vendor.ID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Status:   status,
	}
	require.NoError(t, f.conn.Create(p).Error)
	return p
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreate(ctx, f.customer.ID)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreate(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := f.svc.GetOrCreate(ctx, f.customer.ID)
			errs[i] = err
			if cart != nil {
				ids[i] = cart.ID
			}
		}(i)
	}
	wg.Wait()
	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
}

func TestAddItemIncrementsUpToStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kettle := f.product(t, "Kettle", "12.50", 2, enums.ProductStatusActive)

	view, err := f.svc.AddItem(ctx, f.customer.ID, kettle.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, 1, view.Items[0].Quantity)

	view, err = f.svc.AddItem(ctx, f.customer.ID, kettle.ID)
	require.NoError(t, err)
	require.Equal(t, 2, view.Items[0].Quantity)
	require.True(t, view.Total.Equal(decimal.RequireFromString("25")), "total %s", view.Total)
	require.Equal(t, "duka", view.Items[0].VendorUsername)

	_, err = f.svc.AddItem(ctx, f.customer.ID, kettle.ID)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
}

func TestAddItemRejectsUnavailableProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soldOut := f.product(t, "Mug", "3.00", 0, enums.ProductStatusOutOfStock)
	hidden := f.product(t, "Rug", "30.00", 4, enums.ProductStatusInactive)

	_, err := f.svc.AddItem(ctx, f.customer.ID, soldOut.ID)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	_, err = f.svc.AddItem(ctx, f.customer.ID, hidden.ID)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	_, err = f.svc.AddItem(ctx, f.customer.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kettle := f.product(t, "Kettle", "10.00", 5, enums.ProductStatusActive)

	view, err := f.svc.AddItem(ctx, f.customer.ID, kettle.ID)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	view, err = f.svc.UpdateItem(ctx, f.customer.ID, itemID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, view.ItemCount)
	require.True(t, view.Total.Equal(decimal.NewFromInt(40)))

	_, err = f.svc.UpdateItem(ctx, f.customer.ID, itemID, 6)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	_, err = f.svc.UpdateItem(ctx, f.customer.ID, itemID, -1)
	requireCode(t, err, pkgerrors.CodeValidation)

	view, err = f.svc.UpdateItem(ctx, f.customer.ID, itemID, 0)
	require.NoError(t, err)
	require.Empty(t, view.Items)
}

func TestRemoveItemOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kettle := f.product(t, "Kettle", "10.00", 5, enums.ProductStatusActive)

	view, err := f.svc.AddItem(ctx, f.customer.ID, kettle.ID)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	stranger := &models.User{Username: "stranger", Email: "s@soko.test", PasswordHash: "x", Role: enums.UserRoleCustomer}
	require.NoError(t, f.conn.Create(stranger).Error)

	_, err = f.svc.RemoveItem(ctx, stranger.ID, itemID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.UpdateItem(ctx, stranger.ID, itemID, 1)
	requireCode(t, err, pkgerrors.CodeNotFound)

	view, err = f.svc.RemoveItem(ctx, f.customer.ID, itemID)
	require.NoError(t, err)
	require.Empty(t, view.Items)
}

func TestClearInsideTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", "1.00", 3, enums.ProductStatusActive)
	b := f.product(t, "B", "2.00", 3, enums.ProductStatusActive)
	_, err := f.svc.AddItem(ctx, f.customer.ID, a.ID)
	require.NoError(t, err)
	view, err := f.svc.AddItem(ctx, f.customer.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		return f.svc.Clear(ctx, tx, view.ID)
	}))

	view, err = f.svc.View(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.True(t, view.Total.IsZero())
}
