package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ridloal/storefront-checkout-service/internal/coupon/service"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

type CouponHandler struct {
	couponService service.CouponService
}

func NewCouponHandler(cs service.CouponService) *CouponHandler {
	return &CouponHandler{couponService: cs}
}

func (h *CouponHandler) RegisterRoutes(router *gin.RouterGroup) {
	couponRoutes := router.Group("/coupons")
	{
		couponRoutes.POST("/validate", h.ValidateCoupon)
	}
}

type validateCouponRequest struct {
	Code       string  `json:"code" binding:"required"`
	OrderTotal float64 `json:"order_total" binding:"required,gt=0"`
}

// ValidateCoupon is the inline validation used by the cart page. It never
// consumes a usage slot; redemption happens inside checkout.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	validation, err := h.couponService.ValidateCode(c.Request.Context(), req.Code, req.OrderTotal, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrCouponExpired),
			errors.Is(err, service.ErrCouponNotYetValid),
			errors.Is(err, service.ErrCouponUsageExhausted):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrCouponBelowMinimum):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			logger.Error("ValidateCoupon Hdl: service error", err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate coupon"})
		}
		return
	}

	c.JSON(http.StatusOK, validation)
}
