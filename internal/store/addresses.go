package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/models"
)

const addressColumns = `id, user_id, line1, line2, city, state, zip, country, phone, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (*models.Address, error) {
	address := &models.Address{}
	err := row.Scan(
		&address.ID,
		&address.UserID,
		&address.Line1,
		&address.Line2,
		&address.City,
		&address.State,
		&address.Zip,
		&address.Country,
		&address.Phone,
		&address.IsDefault,
		&address.CreatedAt,
		&address.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return address, nil
}

type CreateAddressRequest struct {
	UserID    int64
	Line1     string
	Line2     string
	City      string
	State     string
	Zip       string
	Country   string
	Phone     string
	IsDefault bool
}

func CreateAddress(ctx context.Context, db *sql.DB, req CreateAddressRequest) (*models.Address, error) {
	query := `
		INSERT INTO addresses (user_id, line1, line2, city, state, zip, country, phone, is_default, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), $9, NOW(), NOW())
		RETURNING ` + addressColumns

	address, err := scanAddress(db.QueryRowContext(ctx, query,
		req.UserID, req.Line1, req.Line2, req.City, req.State, req.Zip, req.Country, req.Phone, req.IsDefault))
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	return address, nil
}

// GetAddressForUser looks up an address by id scoped to its owner, so one
// user cannot ship against another user's address.
func GetAddressForUser(ctx context.Context, db *sql.DB, id, userID int64) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

	address, err := scanAddress(db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return address, nil
}

func GetDefaultAddress(ctx context.Context, db *sql.DB, userID int64) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 AND is_default ORDER BY id LIMIT 1`

	address, err := scanAddress(db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get default address: %w", err)
	}

	return address, nil
}
