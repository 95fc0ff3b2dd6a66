package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

func newUser(t *testing.T, db *sql.DB, role models.Role) *models.User {
	t.Helper()
	ctx := context.Background()

	email := fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8])
	user, err := CreateUser(ctx, db, email, "not-a-real-hash", nil)
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	if role != models.DefaultRole {
		user, err = SetUserRole(ctx, db, user.ID, role)
		if err != nil {
			t.Fatalf("Set role: %v", err)
		}
	}
	return user
}

func newVariant(t *testing.T, db *sql.DB, productID uuid.UUID, colour, size, price string, stock int) *models.ProductVariation {
	t.Helper()

	variant, err := CreateVariant(context.Background(), db, productID, VariantInput{
		Colour:    colour,
		Size:      size,
		UnitPrice: decimal.RequireFromString(price),
		Stock:     stock,
	})
	if err != nil {
		t.Fatalf("Create variant: %v", err)
	}
	return variant
}

func newProduct(t *testing.T, db *sql.DB, sellerID uuid.UUID, name string) *models.Product {
	t.Helper()

	product, err := CreateProduct(context.Background(), db, sellerID, name, nil)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return product
}

// cartWith creates a cart for buyer holding qty of variant.
func cartWith(t *testing.T, db *sql.DB, buyer *models.User, variant *models.ProductVariation, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()

	order, err := CreateCart(ctx, db, buyer.ID)
	if err != nil {
		t.Fatalf("Create cart: %v", err)
	}
	_, err = AddItem(ctx, db, AddItemRequest{
		OrderID:   order.ID,
		UserID:    buyer.ID,
		ProductID: variant.ProductID,
		VariantID: &variant.ID,
		Quantity:  qty,
	})
	if err != nil {
		t.Fatalf("Add item: %v", err)
	}
	return order
}
