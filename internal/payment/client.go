// Package payment is the adapter for the external payment gateway: it mints
// gateway orders and verifies the HMAC signatures on both confirmation paths.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/config"
)

var ErrGatewayUnavailable = errors.New("payment gateway request failed")

type Client struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a gateway client. Test mode is an explicit configuration
// choice; in live mode missing credentials are a hard error so a
// misconfigured deployment can never silently simulate payments.
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

func (c *Client) TestMode() bool { return c.cfg.TestMode }
func (c *Client) KeyID() string  { return c.cfg.KeyID }

type GatewayOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type gatewayOrderPayload struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type gatewayOrderResponse struct {
	ID string `json:"id"`
}

// CreateGatewayOrder mints an order at the gateway and returns its external
// id. Amount is in minor currency units. In test mode a deterministic-looking
// id is synthesized locally and no network call happens.
func (c *Client) CreateGatewayOrder(ctx context.Context, req GatewayOrderRequest) (string, error) {
	if c.cfg.TestMode {
		id := fmt.Sprintf("test_%s_%d", req.Receipt, time.Now().UnixNano())
		c.logger.Info("test mode: simulated gateway order",
			zap.String("gateway_order_id", id),
			zap.Int64("amount_minor", req.AmountMinor),
			zap.String("currency", req.Currency))
		return id, nil
	}

	body, err := json.Marshal(gatewayOrderPayload{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gateway order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("gateway order creation rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return "", fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed gatewayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("%w: response missing order id", ErrGatewayUnavailable)
	}

	return parsed.ID, nil
}
