// Package delivery computes the delivery fee for an order. The calculation
// is a pure function of destination city, order subtotal and total weight so
// the storefront can show the same breakdown the checkout charges.
package delivery

import (
	"math"
	"strings"
)

const (
	// Orders at or above this subtotal ship free.
	FreeDeliveryThreshold = 50000.0
	// Weight above this allowance is surcharged per started kilogram.
	WeightAllowanceKg = 10.0
	PerKgRate         = 50.0
	// Base cost for cities not in the table.
	DefaultBaseCost = 350.0
)

// cityBaseCosts is keyed by lowercased city name.
var cityBaseCosts = map[string]float64{
	"karachi":    200,
	"lahore":     250,
	"islamabad":  250,
	"rawalpindi": 250,
	"faisalabad": 300,
	"multan":     300,
	"peshawar":   350,
	"quetta":     400,
}

// Quote is the fee breakdown, exposed for display and audit. It is derived,
// never persisted.
type Quote struct {
	BaseCost   float64 `json:"base_cost"`
	WeightCost float64 `json:"weight_cost"`
	Discount   float64 `json:"discount"`
	Total      float64 `json:"total"`
	IsFree     bool    `json:"is_free"`
}

// CalculateCost returns the delivery quote for an order. Orders meeting the
// free-delivery threshold cost nothing regardless of city or weight.
func CalculateCost(city string, orderTotal, totalWeightKg float64) Quote {
	if orderTotal >= FreeDeliveryThreshold {
		return Quote{IsFree: true}
	}

	baseCost, ok := cityBaseCosts[strings.ToLower(strings.TrimSpace(city))]
	if !ok {
		baseCost = DefaultBaseCost
	}

	weightCost := 0.0
	if totalWeightKg > WeightAllowanceKg {
		weightCost = math.Ceil(totalWeightKg-WeightAllowanceKg) * PerKgRate
	}

	return Quote{
		BaseCost:   baseCost,
		WeightCost: weightCost,
		Total:      baseCost + weightCost,
	}
}
