package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyStockFlags_AllInStock(t *testing.T) {
	items := []CartItem{
		{ProductID: "p1", Quantity: 2, InventoryCount: 5},
		{ProductID: "p2", Quantity: 1, InventoryCount: 1},
	}

	hasOutOfStock := ApplyStockFlags(items)

	assert.False(t, hasOutOfStock)
	assert.False(t, items[0].IsOutOfStock)
	assert.False(t, items[1].IsOutOfStock)
}

func TestApplyStockFlags_QuantityExceedsStock(t *testing.T) {
	items := []CartItem{
		{ProductID: "p1", Quantity: 3, InventoryCount: 2},
		{ProductID: "p2", Quantity: 1, InventoryCount: 5},
	}

	hasOutOfStock := ApplyStockFlags(items)

	assert.True(t, hasOutOfStock)
	assert.True(t, items[0].IsOutOfStock)
	assert.False(t, items[1].IsOutOfStock)
}

func TestApplyStockFlags_ZeroInventory(t *testing.T) {
	items := []CartItem{
		{ProductID: "p1", Quantity: 1, InventoryCount: 0},
	}

	assert.True(t, ApplyStockFlags(items))
	assert.True(t, items[0].IsOutOfStock)
}

func TestApplyStockFlags_Empty(t *testing.T) {
	assert.False(t, ApplyStockFlags(nil))
}
