package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/cart"
	"github.com/selva-b/e-com-sub000/internal/products"
)

func cartTestContext(t *testing.T, userID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	claims := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
	c.Request = req.WithContext(context.WithValue(req.Context(), auth.ClaimsKey, claims))
	return c, w
}

// A cache hit must not serve inventory counts from up to a TTL ago as live
// stock: the handler re-reads the product rows and recomputes the flags.
func TestGetActiveCartItems_CacheHitRefreshesStockFlags(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := cart.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	cachedResponse := &cart.CartResponse{
		Items: []cart.CartItem{{
			ProductID:      "prod-1",
			Name:           "Widget",
			Price:          dec("10.00"),
			Quantity:       1,
			Selected:       true,
			InventoryCount: 5,
			IsOutOfStock:   false,
		}},
	}
	require.NoError(t, cache.Set(context.Background(), "user-1", cachedResponse))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	productConf, err := products.NewConf(db)
	require.NoError(t, err)

	// The product sold out after the cache entry was written.
	now := time.Now()
	mock.ExpectQuery("FROM products WHERE id IN").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "category", "price", "image_url", "inventory_count",
			"discount_percent", "is_on_sale", "sale_start_date", "sale_end_date", "stripe_price_id",
			"created_at", "updated_at",
		}).AddRow("prod-1", "Widget", "", "toys", "10.00", "", 0, 0, false, nil, nil, "", now, now))

	h := &Handler{p: productConf, cache: cache}

	c, w := cartTestContext(t, "user-1")
	h.GetActiveCartItems(c)

	require.Equal(t, http.StatusOK, w.Code)
	var response cart.CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Items, 1)
	assert.True(t, response.Items[0].IsOutOfStock)
	assert.True(t, response.HasOutOfStockItems)
	assert.Equal(t, 0, response.Items[0].InventoryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// When the refresh read fails the cached flags are served as-is instead of
// failing the request.
func TestGetActiveCartItems_CacheHitSurvivesRefreshFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := cart.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	cachedResponse := &cart.CartResponse{
		Items: []cart.CartItem{{ProductID: "prod-1", Name: "Widget", Quantity: 1, InventoryCount: 5}},
	}
	require.NoError(t, cache.Set(context.Background(), "user-1", cachedResponse))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	productConf, err := products.NewConf(db)
	require.NoError(t, err)
	mock.ExpectQuery("FROM products WHERE id IN").
		WillReturnError(assert.AnError)

	h := &Handler{p: productConf, cache: cache}

	c, w := cartTestContext(t, "user-1")
	h.GetActiveCartItems(c)

	require.Equal(t, http.StatusOK, w.Code)
	var response cart.CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Items, 1)
	assert.False(t, response.Items[0].IsOutOfStock)
	assert.Equal(t, 5, response.Items[0].InventoryCount)
}
