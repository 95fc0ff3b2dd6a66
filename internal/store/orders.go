package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const (
	orderColumns = `o.id, o.user_id, o.status, o.created_at, o.updated_at, o.paid_at, o.shipped_at, o.delivered_at, o.cancelled_at`
	itemColumns  = `i.id, i.order_id, i.product_id, i.variant_id, i.quantity, i.unit_price, i.created_at`
)

var statusTimestampColumn = map[models.OrderStatus]string{
	models.OrderStatusPaid:      "paid_at",
	models.OrderStatusShipped:   "shipped_at",
	models.OrderStatusDelivered: "delivered_at",
}

type AddItemRequest struct {
	OrderID   uuid.UUID
	UserID    uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.PaidAt,
		&order.ShippedAt,
		&order.DeliveredAt,
		&order.CancelledAt,
	)
	return order, err
}

func scanItem(row rowScanner) (*models.OrderItem, error) {
	item := &models.OrderItem{}
	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.VariantID,
		&item.Quantity,
		&item.UnitPrice,
		&item.CreatedAt,
	)
	return item, err
}

// CreateCart opens a new cart for userID. Every call creates a new order.
func CreateCart(ctx context.Context, db *sql.DB, userID uuid.UUID) (*models.Order, error) {
	query := `
		INSERT INTO orders AS o (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + orderColumns

	order, err := scanOrder(db.QueryRowContext(ctx, query, uuid.New(), userID, models.OrderStatusCart))
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return order, nil
}

// getOrder loads an order. A non-nil userID restricts the lookup to that
// buyer's orders; lock takes a row lock for the rest of the transaction.
func getOrder(ctx context.Context, q querier, id uuid.UUID, userID *uuid.UUID, lock bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	args := []interface{}{id}
	if userID != nil {
		query += ` AND o.user_id = $2`
		args = append(args, *userID)
	}
	if lock {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

func listItems(ctx context.Context, q querier, orderID uuid.UUID) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM order_items i WHERE i.order_id = $1 ORDER BY i.created_at, i.id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// AddItem appends a line to a cart, snapshotting the variant's current
// price. The stock check here is advisory: nothing is reserved until
// checkout.
func AddItem(ctx context.Context, db *sql.DB, req AddItemRequest) (*models.OrderItem, error) {
	if req.Quantity < 1 {
		return nil, database.Validation("quantity must be at least 1")
	}

	var item *models.OrderItem
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := getOrder(ctx, tx, req.OrderID, &req.UserID, true)
		if err != nil {
			return err
		}
		if !order.Status.Editable() {
			return database.ErrOrderNotEditable
		}

		var productActive bool
		err = tx.QueryRowContext(ctx,
			`SELECT is_active FROM products WHERE id = $1 AND deleted_at IS NULL`,
			req.ProductID).Scan(&productActive)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("get product: %w", err)
		}
		if err == sql.ErrNoRows || !productActive {
			return database.ErrProductUnavailable
		}

		if req.VariantID == nil {
			return database.ErrVariantRequired
		}

		var variant models.ProductVariation
		err = tx.QueryRowContext(ctx,
			`SELECT unit_price, stock
			 FROM product_variations
			 WHERE id = $1 AND product_id = $2 AND is_active`,
			*req.VariantID, req.ProductID).Scan(&variant.UnitPrice, &variant.Stock)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrVariantNotFound
			}
			return fmt.Errorf("get variant: %w", err)
		}
		if variant.Stock < req.Quantity {
			return database.ErrNotEnoughStock
		}

		item, err = scanItem(tx.QueryRowContext(ctx,
			`INSERT INTO order_items AS i (id, order_id, product_id, variant_id, quantity, unit_price, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 RETURNING `+itemColumns,
			uuid.New(), order.ID, req.ProductID, req.VariantID, req.Quantity, variant.UnitPrice))
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

func RemoveItem(ctx context.Context, db *sql.DB, orderID, userID, itemID uuid.UUID) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := getOrder(ctx, tx, orderID, &userID, true)
		if err != nil {
			return err
		}
		if !order.Status.Editable() {
			return database.ErrOrderNotEditable
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM order_items WHERE id = $1 AND order_id = $2`,
			itemID, orderID)
		if err != nil {
			return fmt.Errorf("delete order item: %w", err)
		}
		return expectRow(result, database.ErrItemNotFound)
	})
}

func ListUserOrders(ctx context.Context, db *sql.DB, userID uuid.UUID) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 WHERE o.user_id = $1
		 ORDER BY o.created_at DESC, o.id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

func GetOrderDetail(ctx context.Context, db *sql.DB, orderID, userID uuid.UUID) (*models.OrderDetail, error) {
	order, err := getOrder(ctx, db, orderID, &userID, false)
	if err != nil {
		return nil, err
	}

	items, err := listItems(ctx, db, orderID)
	if err != nil {
		return nil, err
	}

	return &models.OrderDetail{
		Order: *order,
		Items: items,
		Total: models.OrderTotal(items),
	}, nil
}

type variantDemand struct {
	VariantID uuid.UUID
	Quantity  int
}

// aggregateDemand sums quantities per variant and orders them by id so
// concurrent checkouts lock rows in the same order.
func aggregateDemand(items []models.OrderItem) []variantDemand {
	byVariant := make(map[uuid.UUID]int)
	for _, item := range items {
		if item.VariantID == nil {
			continue
		}
		byVariant[*item.VariantID] += item.Quantity
	}

	demand := make([]variantDemand, 0, len(byVariant))
	for id, qty := range byVariant {
		demand = append(demand, variantDemand{VariantID: id, Quantity: qty})
	}
	sort.Slice(demand, func(i, j int) bool {
		return bytes.Compare(demand[i].VariantID[:], demand[j].VariantID[:]) < 0
	})
	return demand
}

// Checkout moves a cart to paid and takes its items out of stock. The
// order lock, every stock check and every decrement share one transaction,
// so either all variants are decremented or none are.
func Checkout(ctx context.Context, db *sql.DB, orderID, userID uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := getOrder(ctx, tx, orderID, &userID, true)
		if err != nil {
			return err
		}
		if current.Status != models.OrderStatusCart {
			return database.ErrOrderNotCart
		}

		items, err := listItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return database.ErrCartEmpty
		}

		for _, d := range aggregateDemand(items) {
			if _, err := ReserveVariantStock(ctx, tx, d.VariantID, d.Quantity); err != nil {
				return err
			}
			if err := DecrementVariantStock(ctx, tx, d.VariantID, d.Quantity); err != nil {
				return err
			}
		}

		order, err = advanceStatus(ctx, tx, orderID, models.OrderStatusCart, models.OrderStatusPaid)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateOrderStatus moves an order to shipped or delivered. Ownership is
// not checked; callers gate this on role.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID uuid.UUID, target models.OrderStatus) (*models.Order, error) {
	if !target.FulfilmentTarget() {
		return nil, database.ErrInvalidStatus
	}
	from, _ := target.Previous()

	var order *models.Order
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := getOrder(ctx, tx, orderID, nil, true)
		if err != nil {
			return err
		}
		if current.Status != from {
			if target == models.OrderStatusShipped {
				return database.ErrNotShippable
			}
			return database.ErrNotDeliverable
		}

		order, err = advanceStatus(ctx, tx, orderID, from, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// advanceStatus compare-and-sets the status and stamps the matching
// timestamp column.
func advanceStatus(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("advance order %s: illegal transition %s -> %s", orderID, from, to)
	}
	column := statusTimestampColumn[to]

	query := `
		UPDATE orders AS o
		SET status = $1, ` + column + ` = NOW(), updated_at = NOW()
		WHERE o.id = $2 AND o.status = $3
		RETURNING ` + orderColumns

	order, err := scanOrder(tx.QueryRowContext(ctx, query, to, orderID, from))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	return order, nil
}

// ListOrdersByStatusCursor pages through orders in a status, newest first.
func ListOrdersByStatusCursor(ctx context.Context, db *sql.DB, status models.OrderStatus, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, database.Validation("invalid cursor")
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.status = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, status, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
