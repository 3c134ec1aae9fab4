package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/selva-b/e-com-sub000/internal/stores/kafka"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

// HandleOrderPaid consumes an order-paid event and dispatches the order
// confirmation. Delivery off the Kafka topic is at-least-once; a replay
// produces a duplicate inbox row at worst, never a duplicate order effect.
func (d *Dispatcher) HandleOrderPaid(ctx context.Context, _ []byte, value []byte) error {
	var event kafka.OrderPaidEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order paid event: %w", err)
	}

	n := Notification{
		UserID: event.UserId,
		Title:  "Order Confirmed",
		Body:   fmt.Sprintf("Your order %s totalling %s is confirmed and being processed.", event.OrderId, event.Total),
		Type:   TypeOrderUpdate,
		Data: map[string]string{
			"order_id": event.OrderId,
			"total":    event.Total,
		},
		Email: true,
		Push:  true,
	}

	if _, err := d.Dispatch(ctx, n); err != nil {
		return fmt.Errorf("failed to dispatch order confirmation: %w", err)
	}
	slog.Info("order confirmation dispatched",
		slog.String(logkey.OrderID, event.OrderId), slog.String(logkey.UserID, event.UserId))
	return nil
}
