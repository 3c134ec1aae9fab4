package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/coupon"

	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/coupons"
	"github.com/selva-b/e-com-sub000/internal/orders"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

var errStockChanged = errors.New("stock changed since cart was built")

type checkoutRequest struct {
	CouponCode string `json:"coupon_code"`
	AddressID  string `json:"address_id"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Checkout turns the selected cart lines into a pending order and opens a
// hosted payment session. Pricing, discount and tax are all computed here
// from authoritative rows; nothing monetary is taken from the client.
// Inventory is decremented later, at payment capture, not here.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var request checkoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	shipping, err := h.resolveShipping(c, userId, request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Fetch the cart with a fresh batched inventory check.
	cartResponse, err := h.cConf.GetActiveCartItems(c.Request.Context(), userId)
	if err != nil {
		slog.Error("failed to fetch cart items", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart items"})
		return
	}

	type line struct {
		productID string
		quantity  int
	}
	var selected []line
	for _, item := range cartResponse.Items {
		if !item.Selected {
			continue
		}
		if item.IsOutOfStock {
			slog.Error("out of stock item at checkout", slog.String(logkey.TraceID, traceId), slog.String(logkey.ProductID, item.ProductID))
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%s is out of stock", item.Name)})
			return
		}
		selected = append(selected, line{productID: item.ProductID, quantity: item.Quantity})
	}
	if len(selected) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No items selected for checkout"})
		return
	}

	requested := make(map[string]int, len(selected))
	for _, l := range selected {
		requested[l.productID] = l.quantity
	}
	orderItems, err := h.priceOrderLines(c, requested)
	if err != nil {
		if errors.Is(err, errStockChanged) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Stock changed, please review your cart"})
			return
		}
		slog.Error("failed to price order lines", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare order"})
		return
	}

	order, err := h.buildOrder(c, userId, orderItems, request.CouponCode, shipping)
	if err != nil {
		h.respondPricingError(c, traceId, err)
		return
	}

	if err := h.o.CreateOrder(c.Request.Context(), order, orderItems); err != nil {
		slog.Error("error creating order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	// Stripe configuration
	sKey := os.Getenv("STRIPE_TEST_KEY")
	if sKey == "" {
		slog.Error("Stripe secret key not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Stripe secret key not found"})
		return
	}
	stripe.Key = sKey

	// The session must capture exactly order.Total: product lines plus a tax
	// line, minus a one-off Stripe coupon mirroring the applied discount.
	lineItems := checkoutLineItems(orderItems, order.TaxAmount)
	discounts, err := checkoutDiscounts(order)
	if err != nil {
		slog.Error("error creating Stripe discount", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Stripe checkout session"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		SubmitType:               stripe.String("pay"),
		Currency:                 stripe.String(string(stripe.CurrencyUSD)),
		BillingAddressCollection: stripe.String("auto"),
		LineItems:                lineItems,
		Discounts:                discounts,
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:               stripe.String(os.Getenv("CHECKOUT_SUCCESS_URL")),
		CancelURL:                stripe.String(os.Getenv("CHECKOUT_CANCEL_URL")),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id": order.ID,
				"user_id":  userId,
			},
		},
	}
	sessionStripe, err := session.New(params)
	if err != nil {
		slog.Error("error creating Stripe checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Stripe checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checkout_session_url": sessionStripe.URL,
		"order_id":             order.ID,
		"total":                order.Total,
	})
}

// cents converts a monetary amount to the smallest currency unit. Prices
// are stored with two decimal places, so the conversion is exact.
func cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}

// checkoutLineItems maps the order lines to session line items with inline
// price data, which carries the effective (flash-sale) price a pre-created
// Stripe price id would not reflect. The stored tax amount is appended as
// its own line, so line sum minus the discount equals the order total.
func checkoutLineItems(items []orders.OrderItem, taxAmount decimal.Decimal) []*stripe.CheckoutSessionLineItemParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items)+1)
	for _, item := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(cents(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.ProductName),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	if taxAmount.IsPositive() {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(cents(taxAmount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Tax"),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}
	return lineItems
}

// checkoutDiscounts mirrors the order's coupon discount as a one-off Stripe
// coupon so the captured amount matches the stored total. No discount means
// no Discounts parameter at all.
func checkoutDiscounts(order orders.Order) ([]*stripe.CheckoutSessionDiscountParams, error) {
	if !order.DiscountAmount.IsPositive() {
		return nil, nil
	}
	name := "Discount"
	if order.CouponCode != nil {
		name = *order.CouponCode
	}
	cpn, err := coupon.New(&stripe.CouponParams{
		AmountOff: stripe.Int64(cents(order.DiscountAmount)),
		Currency:  stripe.String(string(stripe.CurrencyUSD)),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
		Name:      stripe.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe coupon: %w", err)
	}
	return []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(cpn.ID)}}, nil
}

// priceOrderLines revalidates stock and snapshots effective prices for the
// requested product quantities, in one batched product read.
func (h *Handler) priceOrderLines(c *gin.Context, requested map[string]int) ([]orders.OrderItem, error) {
	ids := make([]string, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}

	productRows, err := h.p.GetProductsByIDs(c.Request.Context(), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	now := time.Now().UTC()
	items := make([]orders.OrderItem, 0, len(requested))
	for _, id := range ids {
		quantity := requested[id]
		product, ok := productRows[id]
		if !ok {
			return nil, fmt.Errorf("product %s does not exist", id)
		}
		if quantity > product.InventoryCount {
			return nil, fmt.Errorf("%w: %s", errStockChanged, product.Name)
		}
		items = append(items, orders.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.EffectivePrice(now),
			Quantity:    quantity,
		})
	}
	return items, nil
}

// buildOrder computes subtotal, optional coupon discount, tax and total,
// and assembles the pending order header.
func (h *Handler) buildOrder(c *gin.Context, userId string, items []orders.OrderItem, couponCode string, shipping orders.ShippingAddress) (orders.Order, error) {
	subtotal := orders.Subtotal(items)

	discount := decimal.Zero
	var couponID, appliedCode *string
	if couponCode != "" {
		result, err := h.cpn.Apply(c.Request.Context(), subtotal, couponCode)
		if err != nil {
			return orders.Order{}, err
		}
		discount = result.DiscountAmount
		couponID = &result.CouponID
		code := couponCode
		appliedCode = &code
	}

	taxPercent := h.o.GetTaxPercent(c.Request.Context())
	tax, total := orders.ComputeTotals(subtotal, discount, taxPercent)

	return orders.Order{
		ID:             uuid.NewString(),
		UserID:         userId,
		Status:         orders.StatusPending,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		Total:          total,
		CouponID:       couponID,
		CouponCode:     appliedCode,
		Shipping:       shipping,
	}, nil
}

// resolveShipping picks a saved address by id or accepts inline fields.
func (h *Handler) resolveShipping(c *gin.Context, userId string, request checkoutRequest) (orders.ShippingAddress, error) {
	if request.AddressID != "" {
		saved, err := h.addr.GetByID(c.Request.Context(), userId, request.AddressID)
		if err != nil {
			return orders.ShippingAddress{}, errors.New("shipping address not found")
		}
		return orders.ShippingAddress{
			Address:    saved.Address,
			City:       saved.City,
			State:      saved.State,
			PostalCode: saved.PostalCode,
			Country:    saved.Country,
		}, nil
	}
	if request.Address == "" || request.City == "" || request.Country == "" {
		return orders.ShippingAddress{}, errors.New("shipping address is required")
	}
	return orders.ShippingAddress{
		Address:    request.Address,
		City:       request.City,
		State:      request.State,
		PostalCode: request.PostalCode,
		Country:    request.Country,
	}, nil
}

func (h *Handler) respondPricingError(c *gin.Context, traceId string, err error) {
	var vErr *coupons.ValidationError
	switch {
	case errors.Is(err, coupons.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon code"})
	case errors.As(err, &vErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
	default:
		slog.Error("error building order", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare order"})
	}
}
