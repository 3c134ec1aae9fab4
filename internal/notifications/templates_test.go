package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Order {{order_id}} totals {{total}}", map[string]string{
		"order_id": "ord-1",
		"total":    "88.00",
	})

	assert.Equal(t, "Order ord-1 totals 88.00", out)
}

func TestRenderTemplate_UnmatchedPlaceholderLeftIntact(t *testing.T) {
	out := RenderTemplate("Hello {{name}}, order {{order_id}}", map[string]string{
		"order_id": "ord-1",
	})

	assert.Equal(t, "Hello {{name}}, order ord-1", out)
}

func TestRenderTemplate_NoPlaceholders(t *testing.T) {
	assert.Equal(t, "plain text", RenderTemplate("plain text", map[string]string{"x": "y"}))
}

func TestRenderTemplate_RepeatedPlaceholder(t *testing.T) {
	out := RenderTemplate("{{v}} and {{v}}", map[string]string{"v": "twice"})

	assert.Equal(t, "twice and twice", out)
}
