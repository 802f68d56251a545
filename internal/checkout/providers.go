package checkout

import (
	"context"
	"database/sql"

	"github.com/jaee/shop-backend/internal/models"
	"github.com/jaee/shop-backend/internal/payment"
	"github.com/jaee/shop-backend/internal/store"
)

// Gateway is the slice of the payment adapter the reconciliation engine
// consumes.
type Gateway interface {
	CreateGatewayOrder(ctx context.Context, req payment.GatewayOrderRequest) (string, error)
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	TestMode() bool
	KeyID() string
}

// CartProvider reads a user's cart for checkout and clears it after a
// confirmed payment.
type CartProvider interface {
	LoadCartWithItems(ctx context.Context, userID int64) (*models.Cart, error)
	ClearCart(ctx context.Context, userID int64) error
}

// AddressProvider resolves the shipping address frozen onto the order.
type AddressProvider interface {
	FindForUser(ctx context.Context, id, userID int64) (*models.Address, error)
	FindDefault(ctx context.Context, userID int64) (*models.Address, error)
}

type storeCartProvider struct{ db *sql.DB }

func NewStoreCartProvider(db *sql.DB) CartProvider { return &storeCartProvider{db: db} }

func (p *storeCartProvider) LoadCartWithItems(ctx context.Context, userID int64) (*models.Cart, error) {
	return store.GetCartWithItems(ctx, p.db, userID)
}

func (p *storeCartProvider) ClearCart(ctx context.Context, userID int64) error {
	return store.ClearCart(ctx, p.db, userID)
}

type storeAddressProvider struct{ db *sql.DB }

func NewStoreAddressProvider(db *sql.DB) AddressProvider { return &storeAddressProvider{db: db} }

func (p *storeAddressProvider) FindForUser(ctx context.Context, id, userID int64) (*models.Address, error) {
	return store.GetAddressForUser(ctx, p.db, id, userID)
}

func (p *storeAddressProvider) FindDefault(ctx context.Context, userID int64) (*models.Address, error) {
	return store.GetDefaultAddress(ctx, p.db, userID)
}
