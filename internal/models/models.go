package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64          `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Phone     sql.NullString `json:"phone,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Active        bool            `json:"active"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      sql.NullString  `json:"image_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Address struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Line1     string         `json:"line1"`
	Line2     sql.NullString `json:"line2,omitempty"`
	City      string         `json:"city"`
	State     sql.NullString `json:"state,omitempty"`
	Zip       sql.NullString `json:"zip,omitempty"`
	Country   string         `json:"country"`
	Phone     sql.NullString `json:"phone,omitempty"`
	IsDefault bool           `json:"is_default"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Items     []CartItem `json:"items"`
}

// CartItem carries the joined product row so order creation can validate
// availability and freeze snapshots without extra lookups.
type CartItem struct {
	ID                int64           `json:"id"`
	CartID            int64           `json:"cart_id"`
	ProductID         int64           `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price_snapshot"`
	CreatedAt         time.Time       `json:"created_at"`
	Product           *Product        `json:"product,omitempty"`
}

func (ci *CartItem) Subtotal() decimal.Decimal {
	return ci.UnitPriceSnapshot.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	GatewayOrderID  sql.NullString  `json:"gateway_order_id,omitempty"`
	PaymentID       sql.NullString  `json:"payment_id,omitempty"`
	PaidAt          sql.NullTime    `json:"paid_at,omitempty"`
	ShippingAddress sql.NullString  `json:"shipping_address,omitempty"`
	AddressID       sql.NullInt64   `json:"address_id,omitempty"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   sql.NullString  `json:"customer_phone,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem stores immutable snapshots of the product taken at order
// creation; later catalog edits never change a placed order.
type OrderItem struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	ProductID     sql.NullInt64   `json:"product_id,omitempty"`
	NameSnapshot  string          `json:"name_snapshot"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	ImageURL      sql.NullString  `json:"image_url,omitempty"`
	Quantity      int             `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Order status values. An order is created PENDING and moves to exactly one
// terminal state; terminal states are never mutated again.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)
