package domain

import (
	"time"
)

type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SKU             string    `json:"sku"`
	Price           float64   `json:"price"` // Float for simplicity; decimal would be better for money
	DiscountedPrice *float64  `json:"discounted_price,omitempty"`
	WeightKg        float64   `json:"weight_kg"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectivePrice is the price a shopper actually pays for one unit.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountedPrice != nil {
		return *p.DiscountedPrice
	}
	return p.Price
}

type Inventory struct {
	ProductID         string    `json:"product_id"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}
