package store

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"time"

	"github.com/jaee/shop-backend/internal/models"
)

// CursorPage is a keyset-paginated slice of the user's order history.
type CursorPage struct {
	Items      []models.Order `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// OffsetPage is a page of the product catalog.
type OffsetPage struct {
	Items    []models.Product `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// OrderCursor is the keyset position (created_at, id) serialized as opaque
// base64 JSON in API responses.
type OrderCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor parses a client-supplied cursor. The empty cursor means "start
// from the newest order".
func DecodeCursor(encoded string) (OrderCursor, error) {
	if encoded == "" {
		return OrderCursor{CreatedAt: time.Now(), ID: math.MaxInt64}, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return OrderCursor{}, err
	}

	var cursor OrderCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return OrderCursor{}, err
	}
	return cursor, nil
}
