package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/checkout"
	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/middleware"
)

const webhookSignatureHeader = "X-Webhook-Signature"

type CheckoutHandler struct {
	service *checkout.Service
	logger  *zap.Logger
}

func NewCheckoutHandler(service *checkout.Service, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, logger: logger}
}

type createOrderRequest struct {
	AddressID *int64 `json:"address_id"`
}

func (h *CheckoutHandler) CreateOrder(c *gin.Context) {
	userID := middleware.UserFromContext(c)

	// Body is optional; absent means "ship to the default address".
	var req createOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
			return
		}
	}

	resp, err := h.service.CreateOrder(c.Request.Context(), userID, req.AddressID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type verifyPaymentRequest struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	PaymentID      string `json:"payment_id" binding:"required"`
	Signature      string `json:"signature"`
}

func (h *CheckoutHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	result, err := h.service.VerifyPayment(c.Request.Context(), checkout.VerifyPaymentRequest{
		GatewayOrderID: req.GatewayOrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Webhook verifies the gateway signature over the raw body and acknowledges
// with 2xx once it validates, even when the event is a business no-op; the
// gateway stops retrying only on success responses.
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(webhookSignatureHeader))
	if err != nil {
		if errors.Is(err, database.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		h.logger.Error("webhook processing failed",
			zap.String("request_id", c.GetString(middleware.ContextRequestID)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *CheckoutHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrCartEmpty),
		errors.Is(err, database.ErrProductInactive),
		errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrCurrencyMismatch),
		errors.Is(err, database.ErrAddressNotFound),
		errors.Is(err, database.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("checkout request failed",
			zap.String("request_id", c.GetString(middleware.ContextRequestID)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
