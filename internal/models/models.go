package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Name           *string   `json:"name"`
	ProfilePicture *string   `json:"profile_picture"`
	Role           Role      `json:"role"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Product struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"user_id"`
	Name        string             `json:"name"`
	Description *string            `json:"description"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Variants    []ProductVariation `json:"variants"`
	MinPrice    *decimal.Decimal   `json:"min_price"`
	MaxPrice    *decimal.Decimal   `json:"max_price"`
	TotalStock  int                `json:"total_stock"`
}

// Summarize sets the derived price and stock fields from Variants.
func (p *Product) Summarize() {
	p.MinPrice, p.MaxPrice, p.TotalStock = nil, nil, 0
	if p.Variants == nil {
		p.Variants = []ProductVariation{}
	}
	for i := range p.Variants {
		v := p.Variants[i]
		if p.MinPrice == nil || v.UnitPrice.LessThan(*p.MinPrice) {
			price := v.UnitPrice
			p.MinPrice = &price
		}
		if p.MaxPrice == nil || v.UnitPrice.GreaterThan(*p.MaxPrice) {
			price := v.UnitPrice
			p.MaxPrice = &price
		}
		p.TotalStock += v.Stock
	}
}

type ProductVariation struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Colour    string          `json:"colour"`
	Size      string          `json:"size"`
	SKU       *string         `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"is_active"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Order struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	PaidAt      *time.Time  `json:"paid_at"`
	ShippedAt   *time.Time  `json:"shipped_at"`
	DeliveredAt *time.Time  `json:"delivered_at"`
	CancelledAt *time.Time  `json:"cancelled_at"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderDetail struct {
	Order Order           `json:"order"`
	Items []OrderItem     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// OrderTotal sums quantity * unit price over items, rounded to cents.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}
