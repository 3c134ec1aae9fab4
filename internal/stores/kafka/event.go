package kafka

import "time"

const (
	TopicOrderPaid = `order-service.order-paid`
	ConsumerGroup  = `notification-dispatcher`
)

// OrderPaidEvent is produced after an order transaction commits. The
// notification dispatcher consumes it off the critical path, so a slow or
// failing fan-out can never block payment capture.
type OrderPaidEvent struct {
	OrderId   string          `json:"order_id"`
	UserId    string          `json:"user_id"`
	Total     string          `json:"total"` // decimal string, e.g. "80.00"
	Items     []OrderPaidItem `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderPaidItem struct {
	ProductId string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}
