package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutScenario(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Tee")
	variant := newVariant(t, db, product.ID, "Black", "M", "10.00", 5)

	order, err := CreateCart(ctx, db, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCart, order.Status)
	assert.Nil(t, order.PaidAt)

	item, err := AddItem(ctx, db, AddItemRequest{
		OrderID:   order.ID,
		UserID:    buyer.ID,
		ProductID: product.ID,
		VariantID: &variant.ID,
		Quantity:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "10", item.UnitPrice.String())

	detail, err := GetOrderDetail(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "20.00", detail.Total.StringFixed(2))

	after, err := GetVariant(ctx, db, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.Stock, "adding to a cart must not touch stock")

	paid, err := Checkout(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	after, err = GetVariant(ctx, db, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Stock)

	_, err = Checkout(ctx, db, order.ID, buyer.ID)
	assert.ErrorIs(t, err, database.ErrOrderNotCart)
}

func TestPriceSnapshot(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Cap")
	variant := newVariant(t, db, product.ID, "Navy", "One", "12.00", 5)
	order := cartWith(t, db, buyer, variant, 1)

	price := variant.UnitPrice.Mul(variant.UnitPrice)
	_, err := UpdateVariantOptimistic(ctx, db, product.ID, variant.ID, VariantUpdate{UnitPrice: &price}, variant.Version)
	require.NoError(t, err)

	detail, err := GetOrderDetail(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.00", detail.Total.StringFixed(2))
}

func TestCheckoutInvalidatesStaleStockEdit(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Gloves")
	variant := newVariant(t, db, product.ID, "Black", "M", "15.00", 5)
	order := cartWith(t, db, buyer, variant, 3)

	_, err := Checkout(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)

	restock := 10
	_, err = UpdateVariantOptimistic(ctx, db, product.ID, variant.ID, VariantUpdate{Stock: &restock}, variant.Version)
	assert.ErrorIs(t, err, database.ErrOptimisticLockFailed)

	current, err := GetVariant(ctx, db, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Stock)
	assert.Equal(t, variant.Version+1, current.Version)

	updated, err := UpdateVariantOptimistic(ctx, db, product.ID, variant.ID, VariantUpdate{Stock: &restock}, current.Version)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Stock)
}

func TestAddItemPreconditions(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	stranger := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Belt")
	variant := newVariant(t, db, product.ID, "Brown", "90", "30.00", 2)
	otherProduct := newProduct(t, db, seller.ID, "Wallet")
	otherVariant := newVariant(t, db, otherProduct.ID, "Brown", "One", "40.00", 2)
	inactive := newProduct(t, db, seller.ID, "Retired")
	inactiveVariant := newVariant(t, db, inactive.ID, "Black", "One", "1.00", 2)
	require.NoError(t, SetProductActive(ctx, db, inactive.ID, false))

	order, err := CreateCart(ctx, db, buyer.ID)
	require.NoError(t, err)

	base := AddItemRequest{OrderID: order.ID, UserID: buyer.ID, ProductID: product.ID, VariantID: &variant.ID, Quantity: 1}
	missing := uuid.New()

	tests := []struct {
		name    string
		mutate  func(r *AddItemRequest)
		wantErr error
		kind    database.ErrorKind
	}{
		{name: "zero quantity", mutate: func(r *AddItemRequest) { r.Quantity = 0 }, kind: database.KindValidation},
		{name: "not owner", mutate: func(r *AddItemRequest) { r.UserID = stranger.ID }, wantErr: database.ErrOrderNotFound},
		{name: "unknown product", mutate: func(r *AddItemRequest) { r.ProductID = missing }, wantErr: database.ErrProductUnavailable},
		{name: "inactive product", mutate: func(r *AddItemRequest) {
			r.ProductID = inactive.ID
			r.VariantID = &inactiveVariant.ID
		}, wantErr: database.ErrProductUnavailable},
		{name: "variant required", mutate: func(r *AddItemRequest) { r.VariantID = nil }, wantErr: database.ErrVariantRequired},
		{name: "variant of another product", mutate: func(r *AddItemRequest) { r.VariantID = &otherVariant.ID }, wantErr: database.ErrVariantNotFound},
		{name: "more than in stock", mutate: func(r *AddItemRequest) { r.Quantity = 3 }, wantErr: database.ErrNotEnoughStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)

			_, err := AddItem(ctx, db, req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.Equal(t, tt.kind, database.KindOf(err))
			}
		})
	}

	detail, err := GetOrderDetail(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Items)
	assert.Equal(t, "0.00", detail.Total.StringFixed(2))
}

func TestCheckoutEmptyCart(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	buyer := newUser(t, db, models.RoleCustomer)
	order, err := CreateCart(ctx, db, buyer.ID)
	require.NoError(t, err)

	_, err = Checkout(ctx, db, order.ID, buyer.ID)
	assert.ErrorIs(t, err, database.ErrCartEmpty)

	other := newUser(t, db, models.RoleCustomer)
	_, err = Checkout(ctx, db, order.ID, other.ID)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Set")
	plenty := newVariant(t, db, product.ID, "Red", "S", "5.00", 100)
	scarce := newVariant(t, db, product.ID, "Blue", "S", "5.00", 4)

	order := cartWith(t, db, buyer, plenty, 10)
	for i := 0; i < 2; i++ {
		_, err := AddItem(ctx, db, AddItemRequest{
			OrderID:   order.ID,
			UserID:    buyer.ID,
			ProductID: product.ID,
			VariantID: &scarce.ID,
			Quantity:  3,
		})
		require.NoError(t, err)
	}

	_, err := Checkout(ctx, db, order.ID, buyer.ID)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)

	for _, v := range []*models.ProductVariation{plenty, scarce} {
		after, err := GetVariant(ctx, db, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.Stock, after.Stock, "stock of %s changed", v.Colour)
	}

	detail, err := GetOrderDetail(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCart, detail.Order.Status)
	assert.Nil(t, detail.Order.PaidAt)
}

func TestCheckoutRejectsDeactivatedVariant(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Lamp")
	variant := newVariant(t, db, product.ID, "Brass", "One", "70.00", 3)
	order := cartWith(t, db, buyer, variant, 1)

	require.NoError(t, SetProductActive(ctx, db, product.ID, false))

	_, err := Checkout(ctx, db, order.ID, buyer.ID)
	assert.ErrorIs(t, err, database.ErrVariantUnavailable)
}

func TestConcurrentCheckouts(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	product := newProduct(t, db, seller.ID, "Limited")
	variant := newVariant(t, db, product.ID, "Gold", "One", "99.00", 5)

	var orders []*models.Order
	var buyers []*models.User
	for i := 0; i < 2; i++ {
		buyer := newUser(t, db, models.RoleCustomer)
		buyers = append(buyers, buyer)
		orders = append(orders, cartWith(t, db, buyer, variant, 3))
	}

	var wg sync.WaitGroup
	results := make(chan error, len(orders))

	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Checkout(ctx, db, orders[i].ID, buyers[i].ID)
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	insufficientStockCount := 0
	for err := range results {
		switch err {
		case nil:
			successCount++
		case database.ErrInsufficientStock:
			insufficientStockCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successCount)
	assert.Equal(t, 1, insufficientStockCount)

	after, err := GetVariant(ctx, db, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)
}

func TestOrderStatusFlow(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Book")
	variant := newVariant(t, db, product.ID, "Paper", "A5", "14.00", 10)
	order := cartWith(t, db, buyer, variant, 1)

	_, err := UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusShipped)
	assert.ErrorIs(t, err, database.ErrNotShippable)
	_, err = UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, database.ErrNotDeliverable)
	_, err = UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusPaid)
	assert.ErrorIs(t, err, database.ErrInvalidStatus)
	_, err = UpdateOrderStatus(ctx, db, uuid.New(), models.OrderStatusShipped)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)

	detail, err := GetOrderDetail(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCart, detail.Order.Status)

	_, err = Checkout(ctx, db, order.ID, buyer.ID)
	require.NoError(t, err)

	_, err = UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, database.ErrNotDeliverable)

	shipped, err := UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)
	assert.Nil(t, shipped.DeliveredAt)

	_, err = UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusShipped)
	assert.ErrorIs(t, err, database.ErrNotShippable)

	delivered, err := UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.PaidAt)
	assert.NotNil(t, delivered.ShippedAt)
	assert.NotNil(t, delivered.DeliveredAt)
	assert.Nil(t, delivered.CancelledAt)
}

func TestRemoveItem(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Pen")
	variant := newVariant(t, db, product.ID, "Blue", "Fine", "2.50", 50)

	paid := cartWith(t, db, buyer, variant, 1)
	paidDetail, err := GetOrderDetail(ctx, db, paid.ID, buyer.ID)
	require.NoError(t, err)
	_, err = Checkout(ctx, db, paid.ID, buyer.ID)
	require.NoError(t, err)

	err = RemoveItem(ctx, db, paid.ID, buyer.ID, paidDetail.Items[0].ID)
	assert.ErrorIs(t, err, database.ErrOrderNotEditable)

	cart := cartWith(t, db, buyer, variant, 2)
	detail, err := GetOrderDetail(ctx, db, cart.ID, buyer.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)

	err = RemoveItem(ctx, db, cart.ID, buyer.ID, paidDetail.Items[0].ID)
	assert.ErrorIs(t, err, database.ErrItemNotFound)

	require.NoError(t, RemoveItem(ctx, db, cart.ID, buyer.ID, detail.Items[0].ID))

	detail, err = GetOrderDetail(ctx, db, cart.ID, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Items)
}

func TestListUserOrders(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	buyer := newUser(t, db, models.RoleCustomer)
	other := newUser(t, db, models.RoleCustomer)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		order, err := CreateCart(ctx, db, buyer.ID)
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}
	_, err := CreateCart(ctx, db, other.ID)
	require.NoError(t, err)

	orders, err := ListUserOrders(ctx, db, buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for i := 1; i < len(orders); i++ {
		assert.False(t, orders[i].CreatedAt.After(orders[i-1].CreatedAt))
	}
	for _, o := range orders {
		assert.Contains(t, ids, o.ID)
	}
}

func TestListOrdersByStatusCursor(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	seller := newUser(t, db, models.RoleSeller)
	buyer := newUser(t, db, models.RoleCustomer)
	product := newProduct(t, db, seller.ID, "Sticker")
	variant := newVariant(t, db, product.ID, "Holo", "S", "1.00", 100)

	for i := 0; i < 15; i++ {
		order := cartWith(t, db, buyer, variant, 1)
		if _, err := Checkout(ctx, db, order.ID, buyer.ID); err != nil {
			t.Fatalf("Checkout order %d: %v", i, err)
		}
	}
	cartWith(t, db, buyer, variant, 1)

	page1, err := ListOrdersByStatusCursor(ctx, db, models.OrderStatusPaid, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	page2, err := ListOrdersByStatusCursor(ctx, db, models.OrderStatusPaid, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}

	seen := make(map[uuid.UUID]bool)
	for _, page := range []*CursorPage{page1, page2} {
		for _, o := range page.Items.([]models.Order) {
			assert.Equal(t, models.OrderStatusPaid, o.Status)
			assert.False(t, seen[o.ID])
			seen[o.ID] = true
		}
	}
	assert.Len(t, seen, 15)

	_, err = ListOrdersByStatusCursor(ctx, db, models.OrderStatusPaid, "%%%", 10)
	assert.Equal(t, database.KindValidation, database.KindOf(err))
}
