package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/store"
)

type ProductHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewProductHandler(db *sql.DB, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{db: db, logger: logger}
}

func (h *ProductHandler) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	result, err := store.ListProducts(c.Request.Context(), h.db, page, pageSize)
	if err != nil {
		h.logger.Error("list products failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := store.GetProduct(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.logger.Error("get product failed", zap.Int64("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, product)
}
