package coupons

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func activeCoupon() Coupon {
	return Coupon{
		ID:             "cpn-1",
		Code:           "SUMMER20",
		DiscountType:   DiscountTypePercentage,
		DiscountValue:  dec("20"),
		MinOrderAmount: decimal.Zero,
		ExpiryDate:     time.Now().UTC().Add(24 * time.Hour),
		IsActive:       true,
	}
}

func TestValidate_PercentageDiscount(t *testing.T) {
	cpn := activeCoupon()

	result, err := Validate(cpn, dec("100.00"), time.Now().UTC())

	require.NoError(t, err)
	assert.Equal(t, "20", result.DiscountAmount.String())
	assert.Equal(t, "80", result.DiscountedTotal.String())
	assert.Equal(t, "cpn-1", result.CouponID)
}

func TestValidate_PercentageRoundsToTwoDecimals(t *testing.T) {
	cpn := activeCoupon()
	cpn.DiscountValue = dec("15")

	// 15% of 33.33 is 4.9995, which rounds to 5.00.
	result, err := Validate(cpn, dec("33.33"), time.Now().UTC())

	require.NoError(t, err)
	assert.True(t, result.DiscountAmount.Equal(dec("5.00")), "got %s", result.DiscountAmount)
	assert.True(t, result.DiscountedTotal.Equal(dec("28.33")), "got %s", result.DiscountedTotal)
}

func TestValidate_FixedDiscountClampedToTotal(t *testing.T) {
	cpn := activeCoupon()
	cpn.Code = "FLAT10"
	cpn.DiscountType = DiscountTypeFixed
	cpn.DiscountValue = dec("10")

	// A 10-off coupon on a 5.00 order discounts 5.00, never below zero.
	result, err := Validate(cpn, dec("5.00"), time.Now().UTC())

	require.NoError(t, err)
	assert.True(t, result.DiscountAmount.Equal(dec("5.00")))
	assert.True(t, result.DiscountedTotal.IsZero())
}

func TestValidate_FixedDiscount(t *testing.T) {
	cpn := activeCoupon()
	cpn.DiscountType = DiscountTypeFixed
	cpn.DiscountValue = dec("10")

	result, err := Validate(cpn, dec("45.50"), time.Now().UTC())

	require.NoError(t, err)
	assert.True(t, result.DiscountAmount.Equal(dec("10")))
	assert.True(t, result.DiscountedTotal.Equal(dec("35.50")))
}

func TestValidate_InactiveCoupon(t *testing.T) {
	cpn := activeCoupon()
	cpn.IsActive = false

	_, err := Validate(cpn, dec("100.00"), time.Now().UTC())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "This coupon is no longer active", vErr.Message)
}

func TestValidate_ExpiredCoupon(t *testing.T) {
	cpn := activeCoupon()
	cpn.ExpiryDate = time.Now().UTC().Add(-time.Hour)

	_, err := Validate(cpn, dec("100.00"), time.Now().UTC())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "This coupon has expired", vErr.Message)
}

func TestValidate_UsageLimitReached(t *testing.T) {
	cpn := activeCoupon()
	limit := 5
	cpn.UsageLimit = &limit
	cpn.UsageCount = 5

	_, err := Validate(cpn, dec("100.00"), time.Now().UTC())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "This coupon has reached its usage limit", vErr.Message)
}

func TestValidate_UsageUnderLimit(t *testing.T) {
	cpn := activeCoupon()
	limit := 5
	cpn.UsageLimit = &limit
	cpn.UsageCount = 4

	_, err := Validate(cpn, dec("100.00"), time.Now().UTC())

	require.NoError(t, err)
}

func TestValidate_MinOrderAmountNotMet(t *testing.T) {
	cpn := activeCoupon()
	cpn.MinOrderAmount = dec("50.00")

	_, err := Validate(cpn, dec("49.99"), time.Now().UTC())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "at least 50.00")
}

func TestValidate_MinOrderAmountExactlyMet(t *testing.T) {
	cpn := activeCoupon()
	cpn.MinOrderAmount = dec("50.00")

	_, err := Validate(cpn, dec("50.00"), time.Now().UTC())

	require.NoError(t, err)
}

// The inactive gate fires before expiry: a coupon that is both disabled and
// expired reports inactive.
func TestValidate_GateOrder(t *testing.T) {
	cpn := activeCoupon()
	cpn.IsActive = false
	cpn.ExpiryDate = time.Now().UTC().Add(-time.Hour)

	_, err := Validate(cpn, dec("100.00"), time.Now().UTC())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "This coupon is no longer active", vErr.Message)
}

// An unknown discount type is an infrastructure error, not a user-facing
// rejection.
func TestValidate_UnknownDiscountType(t *testing.T) {
	cpn := activeCoupon()
	cpn.DiscountType = "bogus"

	_, err := Validate(cpn, dec("100.00"), time.Now().UTC())

	require.Error(t, err)
	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr))
}
