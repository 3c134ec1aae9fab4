package cart

import "github.com/shopspring/decimal"

// CartItem is a cart line joined with live product data. InventoryCount and
// IsOutOfStock reflect stock at read time; the cart itself is only a hint and
// is repriced server-side at order commit.
type CartItem struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	ImageURL       string          `json:"image_url"`
	Quantity       int             `json:"quantity"`
	Selected       bool            `json:"selected"`
	InventoryCount int             `json:"inventory_count"`
	IsOutOfStock   bool            `json:"is_out_of_stock"`
}

type CartResponse struct {
	Items              []CartItem `json:"items"`
	HasOutOfStockItems bool       `json:"has_out_of_stock_items"`
}

// ApplyStockFlags marks each item out of stock when its requested quantity
// exceeds the live inventory count, and reports whether any item is flagged.
func ApplyStockFlags(items []CartItem) bool {
	hasOutOfStock := false
	for i := range items {
		items[i].IsOutOfStock = items[i].Quantity > items[i].InventoryCount
		if items[i].IsOutOfStock {
			hasOutOfStock = true
		}
	}
	return hasOutOfStock
}
