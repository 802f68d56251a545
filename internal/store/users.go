package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/models"
)

func CreateUser(ctx context.Context, db *sql.DB, email, name, phone string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name, phone, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW(), NOW())
		RETURNING id, email, name, phone, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, email, name, phone).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, phone, created_at, updated_at
		FROM users
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
