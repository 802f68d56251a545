package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jaee/shop-backend/internal/checkout"
	"github.com/jaee/shop-backend/internal/config"
	"github.com/jaee/shop-backend/internal/database"
	"github.com/jaee/shop-backend/internal/handler"
	"github.com/jaee/shop-backend/internal/metrics"
	"github.com/jaee/shop-backend/internal/middleware"
	"github.com/jaee/shop-backend/internal/notify"
	"github.com/jaee/shop-backend/internal/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	gateway, err := payment.NewClient(cfg.Gateway, logger)
	if err != nil {
		logger.Fatal("payment gateway client init failed", zap.Error(err))
	}
	if gateway.TestMode() {
		logger.Warn("payment gateway TEST MODE enabled - payments will be simulated")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	notifier := notify.NewLogNotifier(logger)

	checkoutService := checkout.NewService(db, gateway,
		checkout.NewStoreCartProvider(db),
		checkout.NewStoreAddressProvider(db),
		notifier, m, logger)

	checkoutHandler := handler.NewCheckoutHandler(checkoutService, logger)
	orderHandler := handler.NewOrderHandler(db, logger)
	productHandler := handler.NewProductHandler(db, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	api := router.Group("/api")
	{
		authed := api.Group("", middleware.UserID())
		authed.POST("/checkout/create-order", checkoutHandler.CreateOrder)
		authed.GET("/orders", orderHandler.ListOrders)
		authed.GET("/orders/:id", orderHandler.GetOrder)

		api.POST("/checkout/verify-payment", checkoutHandler.VerifyPayment)
		api.POST("/webhooks/payment", checkoutHandler.Webhook)
		api.GET("/products", productHandler.ListProducts)
		api.GET("/products/:id", productHandler.GetProduct)
	}

	router.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
