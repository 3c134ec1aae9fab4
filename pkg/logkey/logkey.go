package logkey

// Shared slog attribute keys so log lines stay greppable across handlers.
const (
	TraceID   = "TRACE ID"
	ERROR     = "ERROR"
	UserID    = "UserID"
	ProductID = "ProductID"
	OrderID   = "OrderID"
	CouponID  = "CouponID"
)
