package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/orders"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

type createOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	CouponCode string `json:"coupon_code"`
	PaymentID  string `json:"payment_id"`
	AddressID  string `json:"address_id"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// CreateOrder places an order directly from a product list, bypassing the
// cart. The client only names products and quantities; prices, discount and
// tax are recomputed here, so a tampered request body cannot change what is
// charged. When a payment id is supplied the order is committed immediately.
func (h *Handler) CreateOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var request createOrderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(request.Items) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Order must have at least one item"})
		return
	}

	requested := make(map[string]int, len(request.Items))
	for _, item := range request.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Each item needs a product_id and a positive quantity"})
			return
		}
		requested[item.ProductID] += item.Quantity
	}

	shipping, err := h.resolveShipping(c, userId, checkoutRequest{
		AddressID:  request.AddressID,
		Address:    request.Address,
		City:       request.City,
		State:      request.State,
		PostalCode: request.PostalCode,
		Country:    request.Country,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderItems, err := h.priceOrderLines(c, requested)
	if err != nil {
		if errors.Is(err, errStockChanged) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Insufficient stock for one or more items"})
			return
		}
		slog.Error("failed to price order lines", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
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

	// A pre-captured payment commits the order right away: inventory
	// decrement, coupon redemption and the paid event all happen here.
	if request.PaymentID != "" {
		paidOrder, err := h.o.MarkPaid(c.Request.Context(), order.ID, request.PaymentID)
		if err != nil {
			if errors.Is(err, orders.ErrInsufficientStock) {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Insufficient stock, order failed", "order_id": order.ID})
				return
			}
			slog.Error("error marking order paid", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, order.ID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to process payment"})
			return
		}
		h.publishOrderPaid(c, traceId, paidOrder, orderItems)
		c.JSON(http.StatusOK, gin.H{"message": "Order placed successfully", "order": paidOrder, "items": orderItems})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order created", "order": order, "items": orderItems})
}

func (h *Handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	limitInt, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limitInt <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}
	offsetInt, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offsetInt < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
		return
	}

	list, err := h.o.ListOrdersByUser(c.Request.Context(), userId, limitInt, offsetInt)
	if err != nil {
		slog.Error("error listing orders", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, userId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	orderID := c.Param("id")

	order, items, err := h.o.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("error fetching order", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	// Admins may view any order; customers only their own.
	if order.UserID != claims.Subject && !claims.HasRole(auth.RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}
