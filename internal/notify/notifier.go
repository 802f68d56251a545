// Package notify defines the order-confirmation collaborator. Delivery is
// best-effort: reconciliation never rolls back or fails because an email
// could not be sent.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/models"
)

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// LogNotifier stands in for the external email service: it records the
// confirmation in the log. Real delivery lives behind the same interface.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	n.logger.Info("order confirmation",
		zap.Int64("order_id", order.ID),
		zap.String("email", order.CustomerEmail),
		zap.String("total", order.TotalAmount.String()),
		zap.String("currency", order.Currency))
	return nil
}
