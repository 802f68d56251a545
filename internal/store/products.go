package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/models"
)

const productColumns = `id, sku, name, description, price, currency, active, stock_quantity, image_url, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
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
		return nil, err
	}
	return product, nil
}

type CreateProductRequest struct {
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Stock       int
	ImageURL    string
}

func CreateProduct(ctx context.Context, db *sql.DB, req CreateProductRequest) (*models.Product, error) {
	query := `
		INSERT INTO products (sku, name, description, price, currency, active, stock_quantity, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, NULLIF($7, ''), NOW(), NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query,
		req.SKU, req.Name, req.Description, req.Price, req.Currency, req.Stock, req.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func SetProductActive(ctx context.Context, db *sql.DB, id int64, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, id)
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// ReserveStock locks the product row and checks availability. It is the
// pre-flight stock validation used while building a pending order; nothing is
// decremented here.
func ReserveStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	product, err := scanProduct(tx.QueryRowContext(ctx, query, productID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}

	if !product.Active {
		return nil, fmt.Errorf("%w: %s", database.ErrProductInactive, product.Name)
	}
	if product.StockQuantity < quantity {
		return nil, fmt.Errorf("%w: %s (available: %d)", database.ErrInsufficientStock, product.Name, product.StockQuantity)
	}

	return product, nil
}

// DeductStockClamped reduces stock by quantity, clamping at zero. The paid
// transition trusts the order-creation pre-flight check, so a gap between
// checkout and payment can ask for more stock than remains; the clamp keeps
// the non-negative invariant and the caller reports the oversell.
func DeductStockClamped(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (clamped bool, err error) {
	var stock int
	err = tx.QueryRowContext(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`,
		productID).Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, database.ErrProductNotFound
		}
		return false, fmt.Errorf("lock product stock: %w", err)
	}

	newStock := stock - quantity
	if newStock < 0 {
		newStock = 0
		clamped = true
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET stock_quantity = $1, updated_at = NOW() WHERE id = $2`,
		newStock, productID)
	if err != nil {
		return false, fmt.Errorf("deduct stock: %w", err)
	}

	return clamped, nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE active`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE active
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:    products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
