package coupons

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

type Coupon struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	ExpiryDate     time.Time       `json:"expiry_date"`
	UsageLimit     *int            `json:"usage_limit,omitempty"`
	UsageCount     int             `json:"usage_count"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewCoupon is the payload accepted by the admin create endpoint.
type NewCoupon struct {
	Code           string          `json:"code" validate:"required,min=3"`
	DiscountType   string          `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue  decimal.Decimal `json:"discount_value" validate:"required"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	ExpiryDate     time.Time       `json:"expiry_date" validate:"required"`
	UsageLimit     *int            `json:"usage_limit"`
	IsActive       bool            `json:"is_active"`
}

// ApplyResult is the success shape of coupon application.
type ApplyResult struct {
	DiscountedTotal decimal.Decimal `json:"discounted_total"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	CouponID        string          `json:"coupon_id"`
}

// ValidationError carries the user-facing reason a coupon was rejected.
// It is distinct from infrastructure errors so handlers can map it to 400
// instead of 500.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
