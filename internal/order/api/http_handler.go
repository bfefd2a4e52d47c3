package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	couponService "github.com/ridloal/storefront-checkout-service/internal/coupon/service"
	"github.com/ridloal/storefront-checkout-service/internal/delivery"
	"github.com/ridloal/storefront-checkout-service/internal/order/domain"
	"github.com/ridloal/storefront-checkout-service/internal/order/repository"
	"github.com/ridloal/storefront-checkout-service/internal/order/service"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

type OrderHandler struct {
	checkoutService service.CheckoutService
}

func NewOrderHandler(cs service.CheckoutService) *OrderHandler {
	return &OrderHandler{checkoutService: cs}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/checkout", h.PlaceOrder)
	router.POST("/checkout/draft", h.PreviewDraft)
	router.GET("/delivery/quote", h.DeliveryQuote)

	orderRoutes := router.Group("/orders")
	{
		orderRoutes.GET("", h.ListOrders)
		orderRoutes.GET("/:id", h.GetOrder)
		orderRoutes.PATCH("/:id/status", h.UpdateStatus)
	}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req domain.PlaceOrderRequest
	// UserID ideally comes from an auth middleware; accepted in the body here.
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	resp, err := h.checkoutService.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// PreviewDraft returns the computed totals without committing anything, for
// the order review page.
func (h *OrderHandler) PreviewDraft(c *gin.Context) {
	var req domain.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	draft, err := h.checkoutService.BuildDraft(c.Request.Context(), req)
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *OrderHandler) writeCheckoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrPriceChanged),
		errors.Is(err, service.ErrInventoryDecrementFailed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, couponService.ErrCouponNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, couponService.ErrCouponExpired),
		errors.Is(err, couponService.ErrCouponNotYetValid),
		errors.Is(err, couponService.ErrCouponUsageExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, couponService.ErrCouponBelowMinimum):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOrderPersistFailed),
		errors.Is(err, service.ErrItemPersistFailed):
		logger.Error("Checkout Hdl: persistence failure", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
	default:
		logger.Error("Checkout Hdl: unhandled service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
	}
}

func (h *OrderHandler) DeliveryQuote(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}
	orderTotal, err := strconv.ParseFloat(c.DefaultQuery("order_total", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_total must be a number"})
		return
	}
	weight, err := strconv.ParseFloat(c.DefaultQuery("weight_kg", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weight_kg must be a number"})
		return
	}

	c.JSON(http.StatusOK, delivery.CalculateCost(city, orderTotal, weight))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.checkoutService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		logger.Error("GetOrder Hdl: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	orders, err := h.checkoutService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		logger.Error("ListOrders Hdl: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown order status: " + string(req.Status)})
		return
	}

	order, err := h.checkoutService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, service.ErrInvalidStatusTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.Error("UpdateStatus Hdl: service error", err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		}
		return
	}
	c.JSON(http.StatusOK, order)
}
