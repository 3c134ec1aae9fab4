package ctxmanage

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIDKey is the gin context key under which the logger middleware stores
// the per-request trace id.
const TraceIDKey = "trace_id"

// GetTraceIdOfRequest returns the trace id set by the logger middleware.
// If the middleware did not run (direct handler tests, webhook calls routed
// outside the group) a fresh id is generated so log lines are never blank.
func GetTraceIdOfRequest(c *gin.Context) string {
	traceId, ok := c.Get(TraceIDKey)
	if !ok {
		return uuid.NewString()
	}
	id, ok := traceId.(string)
	if !ok || id == "" {
		return uuid.NewString()
	}
	return id
}
