package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Order is the persisted order header. Monetary fields are all 2-dp
// decimals and satisfy total = subtotal - discount_amount + tax_amount.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Status         string          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	CouponID       *string         `json:"coupon_id,omitempty"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	PaymentID      *string         `json:"payment_id,omitempty"`
	Shipping       ShippingAddress `json:"shipping"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// OrderItem snapshots a product line at order-creation time, so a later
// price or flash-sale change cannot reprice an existing order.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// ComputeTotals derives tax and grand total from the discounted subtotal.
// Tax applies after the discount, rounded to 2 decimals.
func ComputeTotals(subtotal, discount, taxPercent decimal.Decimal) (tax decimal.Decimal, total decimal.Decimal) {
	discounted := subtotal.Sub(discount)
	tax = discounted.Mul(taxPercent).Div(decimal.NewFromInt(100)).Round(2)
	total = discounted.Add(tax)
	return tax, total
}

// Subtotal sums unit_price * quantity over the given lines.
func Subtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}
