package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSubtotal(t *testing.T) {
	items := []OrderItem{
		{UnitPrice: dec("19.99"), Quantity: 2},
		{UnitPrice: dec("5.00"), Quantity: 1},
	}

	assert.True(t, Subtotal(items).Equal(dec("44.98")))
}

func TestSubtotal_Empty(t *testing.T) {
	assert.True(t, Subtotal(nil).IsZero())
}

func TestComputeTotals_TaxAfterDiscount(t *testing.T) {
	// 100 subtotal, 20 discount, 10% tax: tax is 10% of 80, not of 100.
	tax, total := ComputeTotals(dec("100.00"), dec("20.00"), dec("10"))

	assert.True(t, tax.Equal(dec("8.00")), "tax = %s", tax)
	assert.True(t, total.Equal(dec("88.00")), "total = %s", total)
}

func TestComputeTotals_NoDiscount(t *testing.T) {
	tax, total := ComputeTotals(dec("50.00"), decimal.Zero, dec("10"))

	assert.True(t, tax.Equal(dec("5.00")))
	assert.True(t, total.Equal(dec("55.00")))
}

func TestComputeTotals_RoundsTax(t *testing.T) {
	// 10% of 33.33 is 3.333, rounded to 3.33.
	tax, total := ComputeTotals(dec("33.33"), decimal.Zero, dec("10"))

	assert.True(t, tax.Equal(dec("3.33")), "tax = %s", tax)
	assert.True(t, total.Equal(dec("36.66")), "total = %s", total)
}

func TestComputeTotals_ZeroTax(t *testing.T) {
	tax, total := ComputeTotals(dec("100.00"), dec("100.00"), dec("10"))

	assert.True(t, tax.IsZero())
	assert.True(t, total.IsZero())
}

func TestComputeTotals_Invariant(t *testing.T) {
	subtotal, discount, taxPercent := dec("123.45"), dec("23.45"), dec("7.5")

	tax, total := ComputeTotals(subtotal, discount, taxPercent)

	// total = subtotal - discount + tax always holds.
	assert.True(t, total.Equal(subtotal.Sub(discount).Add(tax)))
}
