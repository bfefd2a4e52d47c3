package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ridloal/storefront-checkout-service/internal/cart/service"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

type CartHandler struct {
	cartService service.CartService
}

func NewCartHandler(cs service.CartService) *CartHandler {
	return &CartHandler{cartService: cs}
}

func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup) {
	cartRoutes := router.Group("/cart")
	{
		cartRoutes.GET("", h.GetCart)
		cartRoutes.DELETE("", h.ClearCart)
		cartRoutes.POST("/items", h.AddItem)
		cartRoutes.PATCH("/items/:product_id", h.UpdateQuantity)
		cartRoutes.DELETE("/items/:product_id", h.RemoveItem)
	}
}

// userID comes from the query for now; in production it would be resolved by
// an auth middleware.
func userIDFrom(c *gin.Context) (string, bool) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return "", false
	}
	return userID, true
}

func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	summary, err := h.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		logger.Error("GetCart Hdl: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	summary, err := h.cartService.AddItem(c.Request.Context(), userID, req.ProductID)
	if err != nil {
		if errors.Is(err, service.ErrProductUnavailable) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error("AddItem Hdl: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item to cart"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	summary, err := h.cartService.UpdateQuantity(c.Request.Context(), userID, c.Param("product_id"), *req.Quantity)
	if err != nil {
		logger.Error("UpdateQuantity Hdl: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	summary, err := h.cartService.RemoveItem(c.Request.Context(), userID, c.Param("product_id"))
	if err != nil {
		logger.Error("RemoveItem Hdl: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}
	if err := h.cartService.ClearCart(c.Request.Context(), userID); err != nil {
		logger.Error("ClearCart Hdl: service error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}
