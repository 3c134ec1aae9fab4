package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/selva-b/e-com-sub000/internal/orders"
	"github.com/selva-b/e-com-sub000/internal/stores/kafka"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

// Webhook receives payment gateway callbacks. A payment_intent.succeeded
// event commits the order (status flip, inventory decrement, coupon
// redemption, all in one transaction) and then publishes the order-paid
// event for the notification dispatcher.
//
// The gateway retries on non-2xx, so terminal outcomes (already processed,
// insufficient stock) return 200 to stop the retry loop.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	const maxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("error reading webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read request body"})
		return
	}

	endpointSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event
	if endpointSecret != "" {
		event, err = webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), endpointSecret)
		if err != nil {
			slog.Error("webhook signature verification failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
			return
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		slog.Error("error parsing webhook JSON", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to parse webhook body"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			slog.Error("error parsing payment intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to parse payment intent"})
			return
		}

		orderID := paymentIntent.Metadata["order_id"]
		if orderID == "" {
			slog.Error("payment intent missing order_id metadata", slog.String(logkey.TraceID, traceId))
			c.JSON(http.StatusOK, gin.H{"message": "No order to process"})
			return
		}

		order, err := h.o.MarkPaid(c.Request.Context(), orderID, paymentIntent.ID)
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrAlreadyProcessed):
				// Replayed delivery; the first one already committed.
				slog.Info("webhook replay ignored", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, orderID))
				c.JSON(http.StatusOK, gin.H{"message": "Order already processed"})
			case errors.Is(err, orders.ErrInsufficientStock):
				slog.Error("order failed at payment capture", slog.String(logkey.TraceID, traceId),
					slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
				c.JSON(http.StatusOK, gin.H{"message": "Order failed: insufficient stock"})
			case errors.Is(err, orders.ErrNotFound):
				slog.Error("webhook for unknown order", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, orderID))
				c.JSON(http.StatusOK, gin.H{"message": "Unknown order"})
			default:
				slog.Error("error marking order paid", slog.String(logkey.TraceID, traceId),
					slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to process payment"})
			}
			return
		}

		_, items, err := h.o.GetOrderByID(c.Request.Context(), orderID)
		if err != nil {
			slog.Error("error loading order items for event", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
			items = nil
		}
		h.publishOrderPaid(c, traceId, order, items)

		// The purchased lines leave the cart once payment lands.
		if err := h.cConf.MarkCheckedOut(c.Request.Context(), order.UserID); err != nil {
			slog.Error("error marking cart checked out", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.UserID, order.UserID), slog.String(logkey.ERROR, err.Error()))
		}
		h.invalidateCartCache(c, order.UserID, traceId)

		c.JSON(http.StatusOK, gin.H{"message": "Payment processed", "order_id": orderID})

	default:
		slog.Info("unhandled webhook event type", slog.String(logkey.TraceID, traceId), slog.String("Type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
	}
}

// publishOrderPaid emits the order-paid event after the payment transaction
// has committed. A produce failure is logged, never surfaced: notification
// delivery must not fail a captured payment.
func (h *Handler) publishOrderPaid(c *gin.Context, traceId string, order orders.Order, items []orders.OrderItem) {
	if h.k == nil {
		return
	}

	event := kafka.OrderPaidEvent{
		OrderId:   order.ID,
		UserId:    order.UserID,
		Total:     order.Total.StringFixed(2),
		CreatedAt: time.Now().UTC(),
	}
	for _, item := range items {
		event.Items = append(event.Items, kafka.OrderPaidItem{
			ProductId: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
		})
	}

	value, err := json.Marshal(event)
	if err != nil {
		slog.Error("error marshaling order-paid event", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, order.ID), slog.String(logkey.ERROR, err.Error()))
		return
	}
	if err := h.k.ProduceMessage(kafka.TopicOrderPaid, []byte(order.UserID), value); err != nil {
		slog.Error("error producing order-paid event", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, order.ID), slog.String(logkey.ERROR, err.Error()))
		return
	}
	slog.Info("order-paid event produced", slog.String(logkey.TraceID, traceId), slog.String(logkey.OrderID, order.ID))
}
