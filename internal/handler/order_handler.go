package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/middleware"
	"github.com/jaee/shop-backend/internal/store"
)

type OrderHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderHandler(db *sql.DB, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{db: db, logger: logger}
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID := middleware.UserFromContext(c)

	cursor := c.Query("cursor")
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListOrdersCursor(c.Request.Context(), h.db, userID, cursor, limit)
	if err != nil {
		h.logger.Error("list orders failed", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID := middleware.UserFromContext(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := store.GetOrder(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		h.logger.Error("get order failed", zap.Int64("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Orders are visible to their owner only.
	if order.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}
