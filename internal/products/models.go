package products

import (
	"time"

	"github.com/shopspring/decimal"
)

var decimalHundred = decimal.NewFromInt(100)

// Product represents a catalog row. Prices are decimals with two fractional
// digits; inventory_count is only ever mutated through the conditional
// decrement in the order store.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Price           decimal.Decimal `json:"price"`
	ImageURL        string          `json:"image_url"`
	InventoryCount  int             `json:"inventory_count"`
	DiscountPercent int             `json:"discount_percent"`
	IsOnSale        bool            `json:"is_on_sale"`
	SaleStartDate   *time.Time      `json:"sale_start_date,omitempty"`
	SaleEndDate     *time.Time      `json:"sale_end_date,omitempty"`
	StripePriceID   string          `json:"stripe_price_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewProduct is the payload accepted by the admin create endpoint.
type NewProduct struct {
	Name           string          `json:"name" validate:"required,min=3"`
	Description    string          `json:"description"`
	Category       string          `json:"category" validate:"required"`
	Price          decimal.Decimal `json:"price" validate:"required"`
	ImageURL       string          `json:"image_url"`
	InventoryCount int             `json:"inventory_count" validate:"min=0"`
}

// SaleWindow is the payload for the flash-sale admin endpoint.
type SaleWindow struct {
	IsOnSale        bool       `json:"is_on_sale"`
	DiscountPercent int        `json:"discount_percent" validate:"min=0,max=100"`
	SaleStartDate   *time.Time `json:"sale_start_date"`
	SaleEndDate     *time.Time `json:"sale_end_date"`
}

// Stock is the shape returned by the stock endpoint and consumed by the
// cart's inventory check.
type Stock struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	PriceID   string `json:"price_id"`
}

// EffectivePrice returns the price the customer pays at the given instant.
// The flash-sale discount applies only while the sale window is open; an
// open-ended bound is treated as unbounded on that side. The result is
// rounded to 2 decimals.
func (p Product) EffectivePrice(now time.Time) decimal.Decimal {
	if !p.IsOnSale || p.DiscountPercent <= 0 {
		return p.Price
	}
	if p.SaleStartDate != nil && now.Before(*p.SaleStartDate) {
		return p.Price
	}
	if p.SaleEndDate != nil && now.After(*p.SaleEndDate) {
		return p.Price
	}
	factor := decimal.NewFromInt(int64(100 - p.DiscountPercent)).Div(decimal.NewFromInt(100))
	return p.Price.Mul(factor).Round(2)
}
