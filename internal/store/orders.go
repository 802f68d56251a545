package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/models"
)

const orderColumns = `id, user_id, status, total_amount, currency, gateway_order_id, payment_id, paid_at,
	shipping_address, address_id, customer_email, customer_phone, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.Currency,
		&order.GatewayOrderID,
		&order.PaymentID,
		&order.PaidAt,
		&order.ShippingAddress,
		&order.AddressID,
		&order.CustomerEmail,
		&order.CustomerPhone,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreatePendingOrder snapshots the cart into a PENDING order with its items
// in one transaction. Product rows are locked and re-validated so a stale
// cart read cannot create an order for inactive or out-of-stock products.
// Stock itself is not decremented here; that happens on the paid transition.
func CreatePendingOrder(ctx context.Context, db *sql.DB, user *models.User, cart *models.Cart, addressID sql.NullInt64, shippingAddress string) (*models.Order, error) {
	if len(cart.Items) == 0 {
		return nil, database.ErrCartEmpty
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		total := decimal.Zero
		currency := ""
		products := make(map[int64]*models.Product, len(cart.Items))

		for _, item := range cart.Items {
			product, err := ReserveStock(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if currency == "" {
				currency = product.Currency
			} else if product.Currency != currency {
				return database.ErrCurrencyMismatch
			}
			products[item.ProductID] = product
			total = total.Add(item.Subtotal())
		}

		var orderID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, status, total_amount, currency, shipping_address, address_id,
			                     customer_email, customer_phone, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NOW(), NOW())
			 RETURNING id`,
			user.ID, models.OrderStatusPending, total, currency, shippingAddress, addressID,
			user.Email, user.Phone).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range cart.Items {
			product := products[item.ProductID]
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, name_snapshot, price_snapshot, image_url, quantity, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
				orderID, item.ProductID, product.Name, item.UnitPriceSnapshot, product.ImageURL,
				item.Quantity, item.Subtotal())
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		created, err := scanOrder(tx.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
		if err != nil {
			return fmt.Errorf("fetch created order: %w", err)
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	items, err := getOrderItems(ctx, db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func getOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, name_snapshot, price_snapshot, image_url, quantity, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.NameSnapshot,
			&item.PriceSnapshot,
			&item.ImageURL,
			&item.Quantity,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	order.Items, err = getOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrderByGatewayOrderID is the reconciliation lookup: both the direct
// verification path and the webhook identify an order by the external
// gateway's order id.
func GetOrderByGatewayOrderID(ctx context.Context, db *sql.DB, gatewayOrderID string) (*models.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE gateway_order_id = $1`, gatewayOrderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by gateway order id: %w", err)
	}

	order.Items, err = getOrderItems(ctx, db, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func SetGatewayOrderID(ctx context.Context, db *sql.DB, orderID int64, gatewayOrderID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders SET gateway_order_id = $1, updated_at = NOW() WHERE id = $2`,
		gatewayOrderID, orderID)
	if err != nil {
		return fmt.Errorf("set gateway order id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

type PaidResult struct {
	// Transitioned is false when a concurrent or earlier confirmation already
	// moved the order out of PENDING; the caller treats that as
	// already-processed, not as an error.
	Transitioned      bool
	ClampedProductIDs []int64
}

// MarkOrderPaid performs the PENDING→PAID transition. The status guard in the
// UPDATE's WHERE clause is the whole concurrency story: of two racing
// confirmations only one sees a row affected, and only that one decrements
// stock. Stock deduction happens in the same transaction, so a crash between
// the two leaves nothing half-applied.
func MarkOrderPaid(ctx context.Context, db *sql.DB, orderID int64, paymentID string) (*PaidResult, error) {
	res := &PaidResult{}

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		res.Transitioned = false
		res.ClampedProductIDs = nil

		result, err := tx.ExecContext(ctx,
			`UPDATE orders
			 SET status = $1, payment_id = $2, paid_at = NOW(), updated_at = NOW()
			 WHERE id = $3 AND status = $4`,
			models.OrderStatusPaid, paymentID, orderID, models.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil
		}
		res.Transitioned = true

		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, quantity FROM order_items WHERE order_id = $1 AND product_id IS NOT NULL ORDER BY id`,
			orderID)
		if err != nil {
			return fmt.Errorf("get order items for stock: %w", err)
		}

		type deduction struct {
			productID int64
			quantity  int
		}
		var deductions []deduction
		for rows.Next() {
			var d deduction
			if err := rows.Scan(&d.productID, &d.quantity); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item: %w", err)
			}
			deductions = append(deductions, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		for _, d := range deductions {
			clamped, err := DeductStockClamped(ctx, tx, d.productID, d.quantity)
			if err != nil {
				return err
			}
			if clamped {
				res.ClampedProductIDs = append(res.ClampedProductIDs, d.productID)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// MarkOrderCancelled performs the PENDING→CANCELLED transition with the same
// status guard. No stock is touched: nothing was decremented while PENDING.
func MarkOrderCancelled(ctx context.Context, db *sql.DB, orderID int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		models.OrderStatusCancelled, orderID, models.OrderStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark order cancelled: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
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
