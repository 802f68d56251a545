// Package checkout owns the checkout-to-payment reconciliation flow: pending
// order creation, direct payment verification and gateway webhooks. The two
// confirmation paths race freely; the conditional status transitions in the
// order store make the loser a no-op.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/metrics"
	"github.com/jaee/shop-backend/internal/models"
	"github.com/jaee/shop-backend/internal/payment"
	"github.com/jaee/shop-backend/internal/store"
)

const notifyTimeout = 5 * time.Second

var minorUnitsPerMajor = decimal.NewFromInt(100)

type Service struct {
	db        *sql.DB
	gateway   Gateway
	carts     CartProvider
	addresses AddressProvider
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Notifier matches notify.Notifier; declared here so the engine depends only
// on the operation it invokes.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

func NewService(db *sql.DB, gateway Gateway, carts CartProvider, addresses AddressProvider,
	notifier Notifier, m *metrics.Metrics, logger *zap.Logger,
) *Service {
	return &Service{
		db:        db,
		gateway:   gateway,
		carts:     carts,
		addresses: addresses,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
	}
}

type CheckoutResponse struct {
	GatewayOrderID  string  `json:"gateway_order_id"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	KeyID           string  `json:"key_id"`
	InternalOrderID int64   `json:"internal_order_id"`
	TestMode        bool    `json:"test_mode"`
	Prefill         Prefill `json:"prefill"`
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// CreateOrder snapshots the user's cart into a PENDING order and mints the
// gateway order the client pays against. The cart stays untouched; it is
// cleared only once payment is confirmed. A gateway failure here leaves the
// order PENDING and nothing decremented, safe to retry.
func (s *Service) CreateOrder(ctx context.Context, userID int64, addressID *int64) (*CheckoutResponse, error) {
	user, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.LoadCartWithItems(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrCartNotFound) {
			return nil, database.ErrCartEmpty
		}
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, database.ErrCartEmpty
	}

	for _, item := range cart.Items {
		if !item.Product.Active {
			return nil, fmt.Errorf("%w: %s", database.ErrProductInactive, item.Product.Name)
		}
		if item.Product.StockQuantity < item.Quantity {
			return nil, fmt.Errorf("%w: %s (available: %d)",
				database.ErrInsufficientStock, item.Product.Name, item.Product.StockQuantity)
		}
	}

	address, shippingAddress, err := s.resolveShippingAddress(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	var addressRef sql.NullInt64
	if address != nil {
		addressRef = sql.NullInt64{Int64: address.ID, Valid: true}
	}

	order, err := store.CreatePendingOrder(ctx, s.db, user, cart, addressRef, shippingAddress)
	if err != nil {
		return nil, err
	}

	amountMinor := order.TotalAmount.Mul(minorUnitsPerMajor).IntPart()

	gatewayOrderID, err := s.gateway.CreateGatewayOrder(ctx, payment.GatewayOrderRequest{
		AmountMinor: amountMinor,
		Currency:    order.Currency,
		Receipt:     fmt.Sprintf("order_%d", order.ID),
		Notes: map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"user_id":  strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		s.logger.Error("gateway order creation failed",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return nil, err
	}

	if err := store.SetGatewayOrderID(ctx, s.db, order.ID, gatewayOrderID); err != nil {
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	s.logger.Info("pending order created",
		zap.Int64("order_id", order.ID),
		zap.String("gateway_order_id", gatewayOrderID),
		zap.Int64("amount_minor", amountMinor),
		zap.String("currency", order.Currency),
		zap.Bool("test_mode", s.gateway.TestMode()))

	return &CheckoutResponse{
		GatewayOrderID:  gatewayOrderID,
		Amount:          amountMinor,
		Currency:        order.Currency,
		KeyID:           s.gateway.KeyID(),
		InternalOrderID: order.ID,
		TestMode:        s.gateway.TestMode(),
		Prefill: Prefill{
			Name:    user.Name,
			Email:   user.Email,
			Contact: user.Phone.String,
		},
	}, nil
}

func (s *Service) resolveShippingAddress(ctx context.Context, userID int64, addressID *int64) (*models.Address, string, error) {
	if addressID != nil {
		address, err := s.addresses.FindForUser(ctx, *addressID, userID)
		if err != nil {
			return nil, "", err
		}
		return address, formatAddress(address), nil
	}

	address, err := s.addresses.FindDefault(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrAddressNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return address, formatAddress(address), nil
}

type VerifyPaymentRequest struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type VerifyPaymentResult struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"order_id"`
	Message string `json:"message"`
}

// VerifyPayment is the direct confirmation path, called by the paying client
// after gateway checkout completes. It is idempotent: a repeated or racing
// confirmation observes the terminal state and reports already-processed.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	order, err := store.GetOrderByGatewayOrderID(ctx, s.db, req.GatewayOrderID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			s.metrics.Reconciliations.WithLabelValues(metrics.PathDirect, metrics.OutcomeNotFound).Inc()
		}
		return nil, err
	}

	if !s.gateway.TestMode() {
		if !s.gateway.VerifyPaymentSignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
			s.metrics.Reconciliations.WithLabelValues(metrics.PathDirect, metrics.OutcomeInvalidSignature).Inc()
			s.logger.Error("invalid payment signature",
				zap.String("gateway_order_id", req.GatewayOrderID),
				zap.Int64("order_id", order.ID))
			return nil, database.ErrInvalidSignature
		}
	}

	transitioned, err := s.applyPaid(ctx, order, req.PaymentID, metrics.PathDirect)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return &VerifyPaymentResult{Success: true, OrderID: order.ID, Message: "Order already processed"}, nil
	}

	return &VerifyPaymentResult{Success: true, OrderID: order.ID, Message: "Payment successful"}, nil
}

// HandleWebhook is the asynchronous confirmation path. Once the signature
// validates the call always succeeds from the gateway's point of view:
// unknown orders are logged and dropped (the gateway owns retries), and
// repeated events hit the no-op branch of the conditional transition.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		s.metrics.Reconciliations.WithLabelValues(metrics.PathWebhook, metrics.OutcomeInvalidSignature).Inc()
		s.logger.Error("invalid webhook signature")
		return database.ErrInvalidSignature
	}

	envelope, err := parseWebhook(body)
	if err != nil {
		s.logger.Error("malformed webhook payload", zap.Error(err))
		return err
	}

	s.metrics.WebhookEvents.WithLabelValues(envelope.Event).Inc()
	s.logger.Info("webhook received", zap.String("event", envelope.Event))

	switch envelope.Event {
	case EventPaymentCaptured:
		return s.handlePaymentCaptured(ctx, envelope.Payload.Payment.Entity)
	case EventPaymentFailed:
		return s.handlePaymentFailed(ctx, envelope.Payload.Payment.Entity)
	default:
		return nil
	}
}

func (s *Service) handlePaymentCaptured(ctx context.Context, entity paymentEntity) error {
	order, err := store.GetOrderByGatewayOrderID(ctx, s.db, entity.OrderID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			s.metrics.Reconciliations.WithLabelValues(metrics.PathWebhook, metrics.OutcomeNotFound).Inc()
			s.logger.Error("webhook for unknown gateway order",
				zap.String("gateway_order_id", entity.OrderID))
			return nil
		}
		return err
	}

	transitioned, err := s.applyPaid(ctx, order, entity.ID, metrics.PathWebhook)
	if err != nil {
		return err
	}
	if !transitioned {
		s.logger.Info("order already processed",
			zap.Int64("order_id", order.ID),
			zap.String("path", metrics.PathWebhook))
	}
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, entity paymentEntity) error {
	order, err := store.GetOrderByGatewayOrderID(ctx, s.db, entity.OrderID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			s.logger.Warn("payment failure for unknown gateway order",
				zap.String("gateway_order_id", entity.OrderID))
			return nil
		}
		return err
	}

	cancelled, err := store.MarkOrderCancelled(ctx, s.db, order.ID)
	if err != nil {
		return err
	}
	if cancelled {
		s.metrics.Reconciliations.WithLabelValues(metrics.PathWebhook, metrics.OutcomeCancelled).Inc()
		s.logger.Info("order cancelled after payment failure",
			zap.Int64("order_id", order.ID),
			zap.String("reason", entity.errorDescription()))
	}
	return nil
}

// applyPaid drives the single PENDING→PAID transition. Stock deduction
// commits atomically with the status change; cart clearing and the
// confirmation notification run after commit and never affect the committed
// payment state.
func (s *Service) applyPaid(ctx context.Context, order *models.Order, paymentID, path string) (bool, error) {
	result, err := store.MarkOrderPaid(ctx, s.db, order.ID, paymentID)
	if err != nil {
		s.metrics.Reconciliations.WithLabelValues(path, metrics.OutcomeError).Inc()
		return false, err
	}
	if !result.Transitioned {
		s.metrics.Reconciliations.WithLabelValues(path, metrics.OutcomeAlreadyProcessed).Inc()
		return false, nil
	}

	s.metrics.Reconciliations.WithLabelValues(path, metrics.OutcomePaid).Inc()
	for _, productID := range result.ClampedProductIDs {
		s.metrics.StockClamped.Inc()
		s.logger.Warn("stock clamped at zero during paid transition",
			zap.Int64("order_id", order.ID),
			zap.Int64("product_id", productID))
	}

	if err := s.carts.ClearCart(ctx, order.UserID); err != nil {
		s.logger.Error("cart clear failed after payment",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	paid := *order
	paid.Status = models.OrderStatusPaid
	paid.PaymentID = sql.NullString{String: paymentID, Valid: true}
	paid.PaidAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	s.notifyAsync(&paid)

	s.logger.Info("order paid",
		zap.Int64("order_id", order.ID),
		zap.String("payment_id", paymentID),
		zap.String("path", path))

	return true, nil
}

func (s *Service) notifyAsync(order *models.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.SendOrderConfirmation(ctx, order); err != nil {
			s.logger.Error("order confirmation notification failed",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}()
}

func formatAddress(a *models.Address) string {
	var b strings.Builder
	b.WriteString(a.Line1)
	if a.Line2.Valid && a.Line2.String != "" {
		b.WriteString(", ")
		b.WriteString(a.Line2.String)
	}
	b.WriteString("\n")
	b.WriteString(a.City)
	if a.State.Valid && a.State.String != "" {
		b.WriteString(", ")
		b.WriteString(a.State.String)
	}
	if a.Zip.Valid && a.Zip.String != "" {
		b.WriteString(" - ")
		b.WriteString(a.Zip.String)
	}
	b.WriteString("\n")
	b.WriteString(a.Country)
	if a.Phone.Valid && a.Phone.String != "" {
		b.WriteString("\nPhone: ")
		b.WriteString(a.Phone.String)
	}
	return b.String()
}
