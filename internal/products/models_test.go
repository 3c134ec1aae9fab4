package products

import (
	"testing"
	"time"

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

func saleProduct() Product {
	return Product{
		ID:              "prod-1",
		Name:            "Widget",
		Price:           dec("100.00"),
		DiscountPercent: 25,
		IsOnSale:        true,
	}
}

func TestEffectivePrice_NotOnSale(t *testing.T) {
	p := saleProduct()
	p.IsOnSale = false

	assert.True(t, p.EffectivePrice(time.Now()).Equal(dec("100.00")))
}

func TestEffectivePrice_SaleNoWindow(t *testing.T) {
	p := saleProduct()

	// No bounds means the sale applies whenever the flag is on.
	assert.True(t, p.EffectivePrice(time.Now()).Equal(dec("75.00")))
}

func TestEffectivePrice_WithinWindow(t *testing.T) {
	p := saleProduct()
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	p.SaleStartDate = &start
	p.SaleEndDate = &end

	assert.True(t, p.EffectivePrice(time.Now()).Equal(dec("75.00")))
}

func TestEffectivePrice_BeforeWindow(t *testing.T) {
	p := saleProduct()
	start := time.Now().Add(time.Hour)
	p.SaleStartDate = &start

	assert.True(t, p.EffectivePrice(time.Now()).Equal(dec("100.00")))
}

func TestEffectivePrice_AfterWindow(t *testing.T) {
	p := saleProduct()
	end := time.Now().Add(-time.Hour)
	p.SaleEndDate = &end

	assert.True(t, p.EffectivePrice(time.Now()).Equal(dec("100.00")))
}

func TestEffectivePrice_ZeroDiscount(t *testing.T) {
	p := saleProduct()
	p.DiscountPercent = 0

	assert.True(t, p.EffectivePrice(time.Now()).Equal(dec("100.00")))
}

func TestEffectivePrice_RoundsToTwoDecimals(t *testing.T) {
	p := saleProduct()
	p.Price = dec("9.99")
	p.DiscountPercent = 33

	// 9.99 * 0.67 = 6.6933, rounded to 6.69.
	assert.True(t, p.EffectivePrice(time.Now()).Equal(dec("6.69")))
}
