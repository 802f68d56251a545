package integration

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/checkout"
	"github.com/jaee/shop-backend/internal/config"
	"github.com/jaee/shop-backend/internal/metrics"
	"github.com/jaee/shop-backend/internal/models"
	"github.com/jaee/shop-backend/internal/payment"
	"github.com/jaee/shop-backend/internal/store"
	"github.com/shopspring/decimal"
)

const (
	testKeySecret     = "merchant_secret"
	testWebhookSecret = "webhook_secret"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// recordingNotifier counts confirmation sends so tests can assert
// exactly-once delivery across racing confirmation paths.
type recordingNotifier struct {
	mu     sync.Mutex
	orders []int64
}

func (n *recordingNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.ID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

// waitForCount polls for asynchronous notifications. It waits out the full
// window when asserting that no extra notification arrives.
func (n *recordingNotifier) waitForCount(t *testing.T, want int, window time.Duration) {
	t.Helper()
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if n.count() > want {
			t.Fatalf("Expected at most %d notifications, got %d", want, n.count())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n.count() != want {
		t.Fatalf("Expected %d notifications, got %d", want, n.count())
	}
}

// newCheckoutService wires a service against the test database. testMode
// selects the simulated gateway; live mode uses the known test secrets so
// tests can mint real signatures.
func newCheckoutService(t *testing.T, db *sql.DB, testMode bool) (*checkout.Service, *recordingNotifier) {
	t.Helper()

	cfg := config.GatewayConfig{
		TestMode: testMode,
		Timeout:  2 * time.Second,
	}
	if !testMode {
		cfg.KeyID = "key_test"
		cfg.KeySecret = testKeySecret
		cfg.WebhookSecret = testWebhookSecret
		cfg.BaseURL = "https://gateway.invalid/v1"
	}

	gateway, err := payment.NewClient(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New gateway client: %v", err)
	}

	notifier := &recordingNotifier{}
	service := checkout.NewService(db, gateway,
		checkout.NewStoreCartProvider(db),
		checkout.NewStoreAddressProvider(db),
		notifier,
		metrics.New(prometheus.NewRegistry()),
		zap.NewNop())

	return service, notifier
}

func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func seedUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, email, "Test User", "+911234567890")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

func seedProduct(t *testing.T, db *sql.DB, sku string, price int64, stock int) *models.Product {
	t.Helper()
	product, err := store.CreateProduct(context.Background(), db, store.CreateProductRequest{
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    decimal.NewFromInt(price),
		Currency: "INR",
		Stock:    stock,
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", sku, err)
	}
	return product
}

func seedCartItem(t *testing.T, db *sql.DB, userID, productID int64, quantity int) {
	t.Helper()
	if err := store.AddCartItem(context.Background(), db, userID, productID, quantity); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}
}

func productStock(t *testing.T, db *sql.DB, productID int64) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), db, productID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	return product.StockQuantity
}

func orderByID(t *testing.T, db *sql.DB, orderID int64) *models.Order {
	t.Helper()
	order, err := store.GetOrder(context.Background(), db, orderID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	return order
}

func cartSize(t *testing.T, db *sql.DB, userID int64) int {
	t.Helper()
	cart, err := store.GetCartWithItems(context.Background(), db, userID)
	if err != nil {
		t.Fatalf("Get cart: %v", err)
	}
	return len(cart.Items)
}

func capturedWebhookBody(gatewayOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q}}}}`,
		paymentID, gatewayOrderID))
}

func failedWebhookBody(gatewayOrderID, reason string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_failed","order_id":%q,"error":{"description":%q}}}}}`,
		gatewayOrderID, reason))
}
