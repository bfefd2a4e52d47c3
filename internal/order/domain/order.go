package domain

import (
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusDispatched OrderStatus = "dispatched"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// statusTransitions drive the authorized status-update operation. Delivered
// and cancelled are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusDelivered},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"order_number"`
	UserID          string      `json:"user_id"`
	Status          OrderStatus `json:"status"`
	Subtotal        float64     `json:"subtotal"`
	DeliveryCost    float64     `json:"delivery_cost"`
	Discount        float64     `json:"discount"`
	Total           float64     `json:"total"`
	CustomerName    string      `json:"customer_name"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerPhone   string      `json:"customer_phone"`
	ShippingAddress string      `json:"shipping_address"`
	City            string      `json:"city"`
	AddressID       *string     `json:"address_id,omitempty"`
	Items           []OrderItem `json:"items,omitempty"` // populated on order detail reads
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is an immutable line snapshot. It is only ever deleted together
// with its parent order during a compensating rollback.
type OrderItem struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"-"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	LineTotal float64   `json:"line_total"`
	CreatedAt time.Time `json:"created_at"`
}

// DraftItem carries the authoritative per-line snapshot computed at checkout
// time, before anything is persisted.
type DraftItem struct {
	ProductID         string  `json:"product_id"`
	Name              string  `json:"name"`
	SKU               string  `json:"sku"`
	Quantity          int     `json:"quantity"`
	UnitPrice         float64 `json:"unit_price"`
	LineTotal         float64 `json:"line_total"`
	LowStockThreshold int     `json:"-"`
}

// OrderDraft is the computed, not-yet-persisted proposal for an order.
// Produced by draft assembly, consumed exactly once by the commit pipeline.
type OrderDraft struct {
	UserID          string      `json:"user_id"`
	Items           []DraftItem `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	DeliveryCost    float64     `json:"delivery_cost"`
	Discount        float64     `json:"discount"`
	Total           float64     `json:"total"`
	CouponID        string      `json:"coupon_id,omitempty"`
	CouponCode      string      `json:"coupon_code,omitempty"`
	CustomerName    string      `json:"customer_name"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerPhone   string      `json:"customer_phone"`
	ShippingAddress string      `json:"shipping_address"`
	City            string      `json:"city"`
	AddressID       *string     `json:"address_id,omitempty"`
}

type PlaceOrderRequest struct {
	UserID          string  `json:"user_id" binding:"required"` // from auth token ideally
	CustomerName    string  `json:"customer_name" binding:"required"`
	CustomerEmail   string  `json:"customer_email" binding:"required,email"`
	CustomerPhone   string  `json:"customer_phone" binding:"required"`
	ShippingAddress string  `json:"shipping_address" binding:"required"`
	City            string  `json:"city" binding:"required"`
	AddressID       *string `json:"address_id,omitempty"`
	CouponCode      string  `json:"coupon_code,omitempty"`
}

type PlaceOrderResponse struct {
	Order
}
