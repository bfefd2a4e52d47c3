package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	t.Run("Free delivery at exactly the threshold", func(t *testing.T) {
		quote := CalculateCost("Quetta", 50000, 25)
		assert.True(t, quote.IsFree)
		assert.Equal(t, 0.0, quote.Total)
		assert.Equal(t, 0.0, quote.BaseCost)
		assert.Equal(t, 0.0, quote.WeightCost)
	})

	t.Run("Free delivery above the threshold for any city", func(t *testing.T) {
		quote := CalculateCost("Nowhere", 120000, 3)
		assert.True(t, quote.IsFree)
		assert.Equal(t, 0.0, quote.Total)
	})

	t.Run("Known city under the weight allowance", func(t *testing.T) {
		quote := CalculateCost("Karachi", 1000, 5)
		assert.False(t, quote.IsFree)
		assert.Equal(t, 200.0, quote.BaseCost)
		assert.Equal(t, 0.0, quote.WeightCost)
		assert.Equal(t, 200.0, quote.Total)
	})

	t.Run("Weight surcharge per started kilogram", func(t *testing.T) {
		quote := CalculateCost("Karachi", 1000, 15)
		// ceil(15 - 10) * 50
		assert.Equal(t, 250.0, quote.WeightCost)
		assert.Equal(t, 450.0, quote.Total)
	})

	t.Run("Fractional excess weight rounds up", func(t *testing.T) {
		quote := CalculateCost("Karachi", 1000, 10.2)
		assert.Equal(t, 50.0, quote.WeightCost)
		assert.Equal(t, 250.0, quote.Total)
	})

	t.Run("City lookup is case-insensitive", func(t *testing.T) {
		assert.Equal(t, CalculateCost("karachi", 1000, 0), CalculateCost("KARACHI", 1000, 0))
		assert.Equal(t, 200.0, CalculateCost("  Karachi ", 1000, 0).BaseCost)
	})

	t.Run("Unknown city falls back to the default base cost", func(t *testing.T) {
		quote := CalculateCost("Atlantis", 1000, 0)
		assert.Equal(t, DefaultBaseCost, quote.BaseCost)
		assert.Equal(t, DefaultBaseCost, quote.Total)
	})

	t.Run("Breakdown discount is always zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateCost("Karachi", 1000, 15).Discount)
	})
}
