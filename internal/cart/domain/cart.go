package domain

import (
	"time"
)

// CartItem is a single line in a shopper's cart. Price and name are
// snapshots taken when the item was added; the checkout pipeline re-fetches
// authoritative prices at commit time, so these are advisory only.
type CartItem struct {
	ProductID       string    `json:"product_id"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	DiscountedPrice *float64  `json:"discounted_price,omitempty"`
	Quantity        int       `json:"quantity"`
	MaxStock        int       `json:"max_stock"`
	WeightKg        float64   `json:"weight_kg"`
	AddedAt         time.Time `json:"added_at"`
}

// EffectivePrice uses the discounted price when present.
func (ci *CartItem) EffectivePrice() float64 {
	if ci.DiscountedPrice != nil {
		return *ci.DiscountedPrice
	}
	return ci.Price
}

// Cart is the session-scoped aggregate of a single shopper's selections.
// It is single-writer per session and needs no locking. Invariant: every
// retained line has quantity in [1, MaxStock]; a zero-quantity line never
// exists.
type Cart struct {
	UserID string
	items  map[string]*CartItem
	order  []string // insertion order of product IDs, for stable listings
}

func NewCart(userID string) *Cart {
	return &Cart{
		UserID: userID,
		items:  make(map[string]*CartItem),
	}
}

// NewCartFromItems rebuilds the aggregate from persisted lines.
func NewCartFromItems(userID string, items []CartItem) *Cart {
	c := NewCart(userID)
	for i := range items {
		it := items[i]
		if it.Quantity < 1 {
			continue
		}
		if it.MaxStock > 0 && it.Quantity > it.MaxStock {
			it.Quantity = it.MaxStock
		}
		c.items[it.ProductID] = &it
		c.order = append(c.order, it.ProductID)
	}
	return c
}

// AddItem inserts a new line with quantity 1, or bumps the existing line by
// one capped at MaxStock. Adding the same product twice never yields two
// lines.
func (c *Cart) AddItem(item CartItem) {
	if existing, ok := c.items[item.ProductID]; ok {
		if existing.Quantity < existing.MaxStock {
			existing.Quantity++
		}
		return
	}
	item.Quantity = 1
	if item.MaxStock > 0 && item.Quantity > item.MaxStock {
		item.Quantity = item.MaxStock
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	c.items[item.ProductID] = &item
	c.order = append(c.order, item.ProductID)
}

// RemoveItem deletes the line. Absent lines are not an error.
func (c *Cart) RemoveItem(productID string) {
	if _, ok := c.items[productID]; !ok {
		return
	}
	delete(c.items, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// UpdateQuantity sets the line quantity capped at MaxStock. A quantity of
// zero or less removes the line.
func (c *Cart) UpdateQuantity(productID string, qty int) {
	if qty <= 0 {
		c.RemoveItem(productID)
		return
	}
	item, ok := c.items[productID]
	if !ok {
		return
	}
	if item.MaxStock > 0 && qty > item.MaxStock {
		qty = item.MaxStock
	}
	item.Quantity = qty
}

func (c *Cart) Clear() {
	c.items = make(map[string]*CartItem)
	c.order = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Items returns the lines in insertion order.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, 0, len(c.items))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

func (c *Cart) Item(productID string) (CartItem, bool) {
	if it, ok := c.items[productID]; ok {
		return *it, true
	}
	return CartItem{}, false
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, it := range c.items {
		total += it.Quantity
	}
	return total
}

func (c *Cart) TotalPrice() float64 {
	total := 0.0
	for _, it := range c.items {
		total += it.EffectivePrice() * float64(it.Quantity)
	}
	return total
}

func (c *Cart) TotalWeight() float64 {
	total := 0.0
	for _, it := range c.items {
		total += it.WeightKg * float64(it.Quantity)
	}
	return total
}
