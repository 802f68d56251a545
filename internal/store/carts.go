package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/models"
)

// GetCartWithItems loads the user's cart and its items with the referenced
// product joined in. Item order follows insertion order.
func GetCartWithItems(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`,
		userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.unit_price_snapshot, ci.created_at,
		       p.id, p.sku, p.name, p.description, p.price, p.currency, p.active, p.stock_quantity, p.image_url, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	rows, err := db.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		product := &models.Product{}
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPriceSnapshot,
			&item.CreatedAt,
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.Currency,
			&product.Active,
			&product.StockQuantity,
			&product.ImageURL,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Product = product
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// AddCartItem upserts a cart for the user and adds quantity of the product,
// freezing the current catalog price as the item's unit price snapshot.
func AddCartItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var cartID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO carts (user_id, created_at, updated_at)
			 VALUES ($1, NOW(), NOW())
			 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			 RETURNING id`,
			userID).Scan(&cartID)
		if err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}

		var price decimal.Decimal
		err = tx.QueryRowContext(ctx,
			`SELECT price FROM products WHERE id = $1`, productID).Scan(&price)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("get product price: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price_snapshot, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			cartID, productID, quantity, price)
		if err != nil {
			return fmt.Errorf("add cart item: %w", err)
		}

		return nil
	})
}

func ClearCart(ctx context.Context, db *sql.DB, userID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_items
		 WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`,
		userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
