package main

import (
	"github.com/gin-gonic/gin"
	cartAPI "github.com/ridloal/storefront-checkout-service/internal/cart/api"
	cartRepository "github.com/ridloal/storefront-checkout-service/internal/cart/repository"
	cartService "github.com/ridloal/storefront-checkout-service/internal/cart/service"
	catalogRepository "github.com/ridloal/storefront-checkout-service/internal/catalog/repository"
	couponAPI "github.com/ridloal/storefront-checkout-service/internal/coupon/api"
	couponRepository "github.com/ridloal/storefront-checkout-service/internal/coupon/repository"
	couponService "github.com/ridloal/storefront-checkout-service/internal/coupon/service"
	orderAPI "github.com/ridloal/storefront-checkout-service/internal/order/api"
	orderRepository "github.com/ridloal/storefront-checkout-service/internal/order/repository"
	orderService "github.com/ridloal/storefront-checkout-service/internal/order/service"
	"github.com/ridloal/storefront-checkout-service/internal/platform/config"
	"github.com/ridloal/storefront-checkout-service/internal/platform/database"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
	"github.com/ridloal/storefront-checkout-service/internal/platform/middleware"
)

func main() {
	dbCfg := config.LoadStoreDBConfig()
	serverCfg := config.LoadServerConfig("8080")
	checkoutCfg := config.LoadCheckoutConfig()

	logger.Info("Starting Checkout Service...")

	db, err := database.Connect(dbCfg.DSN)
	if err != nil {
		logger.Error("Failed to connect to database for Checkout Service", err, nil)
		return
	}
	defer db.Close()

	// Repositories
	catalogRepo := catalogRepository.NewPostgresCatalogRepository(db)
	cartRepo := cartRepository.NewPostgresCartRepository(db)
	couponRepo := couponRepository.NewPostgresCouponRepository(db)
	orderRepo := orderRepository.NewPostgresOrderRepository(db)

	// Services
	coupons := couponService.NewCouponService(couponRepo)
	carts := cartService.NewCartService(cartRepo, catalogRepo)
	checkout := orderService.NewCheckoutService(orderRepo, cartRepo, catalogRepo, coupons, checkoutCfg.PendingOrderTimeout)

	// HTTP
	router := gin.Default()
	router.Use(middleware.RequestID())
	apiV1 := router.Group("/api/v1")
	cartAPI.NewCartHandler(carts).RegisterRoutes(apiV1)
	couponAPI.NewCouponHandler(coupons).RegisterRoutes(apiV1)
	orderAPI.NewOrderHandler(checkout).RegisterRoutes(apiV1)

	logger.Info("Checkout Service running on port " + serverCfg.Port)
	if errSrv := router.Run(serverCfg.Port); errSrv != nil {
		logger.Error("Failed to run Checkout Service server", errSrv, nil)
	}
}
