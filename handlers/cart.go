package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/cart"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

func (h *Handler) AddToCart(c *gin.Context) {
	// Get the traceId for logging
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var request struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if request.ProductID == "" || request.Quantity <= 0 {
		slog.Error("invalid product ID or quantity", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Product ID and quantity must be valid"})
		return
	}

	// The stock gate runs inside the store's transaction against the live
	// products row.
	err := h.cConf.AddToCartDB(c.Request.Context(), userId, request.ProductID, request.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrInsufficientStock) {
			slog.Error("insufficient stock", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.ProductID, request.ProductID), slog.Int("Requested", request.Quantity))
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Insufficient stock available"})
			return
		}
		slog.Error("error adding product to cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String(logkey.ProductID, request.ProductID), slog.Int("Quantity", request.Quantity))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to add product to cart"})
		return
	}

	h.invalidateCartCache(c, userId, traceId)

	slog.Info("product added to cart", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.ProductID, request.ProductID), slog.Int("Quantity", request.Quantity), slog.String(logkey.UserID, userId))
	c.JSON(http.StatusOK, gin.H{"message": "Product added to cart successfully"})
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var request struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.ProductID == "" || request.Quantity < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	err := h.cConf.UpdateQuantity(c.Request.Context(), userId, request.ProductID, request.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrNoActiveCart) || errors.Is(err, cart.ErrItemNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Item not found in cart"})
			return
		}
		slog.Error("error updating cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to update cart item"})
		return
	}

	h.invalidateCartCache(c, userId, traceId)
	c.JSON(http.StatusOK, gin.H{"message": "Cart item updated"})
}

// SelectCartItem includes or excludes a cart line from checkout.
func (h *Handler) SelectCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	var request struct {
		ProductID string `json:"product_id"`
		Selected  *bool  `json:"selected"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.ProductID == "" || request.Selected == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	err := h.cConf.SetSelected(c.Request.Context(), userId, request.ProductID, *request.Selected)
	if err != nil {
		if errors.Is(err, cart.ErrNoActiveCart) || errors.Is(err, cart.ErrItemNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Item not found in cart"})
			return
		}
		slog.Error("error selecting cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to update cart item"})
		return
	}

	h.invalidateCartCache(c, userId, traceId)
	c.JSON(http.StatusOK, gin.H{"message": "Cart item updated"})
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject
	productID := c.Param("productID")

	err := h.cConf.RemoveItem(c.Request.Context(), userId, productID)
	if err != nil {
		if errors.Is(err, cart.ErrNoActiveCart) || errors.Is(err, cart.ErrItemNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Item not found in cart"})
			return
		}
		slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove cart item"})
		return
	}

	h.invalidateCartCache(c, userId, traceId)
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

// GetActiveCartItems returns the cart with live out-of-stock flags. The
// cache serves repeat reads; any cart mutation invalidates it.
func (h *Handler) GetActiveCartItems(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	if h.cache != nil {
		cached, err := h.cache.Get(c.Request.Context(), userId)
		if err == nil {
			// Cached lines may carry counts from up to a TTL ago; re-run the
			// batched inventory check so the flags reflect live stock.
			h.refreshStockFlags(c, traceId, cached)
			c.JSON(http.StatusOK, cached)
			return
		}
		if !errors.Is(err, cart.ErrCacheMiss) {
			slog.Error("cart cache read failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
	}

	cartResponse, err := h.cConf.GetActiveCartItems(c.Request.Context(), userId)
	if err != nil {
		slog.Error("error fetching active cart items", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()), slog.String(logkey.UserID, userId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch cart items"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), userId, cartResponse); err != nil {
			slog.Error("cart cache write failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
	}

	c.JSON(http.StatusOK, cartResponse)
}

// refreshStockFlags overwrites cached inventory counts with a fresh batched
// product read and recomputes the out-of-stock flags. A failed read leaves
// the cached flags in place rather than failing the request.
func (h *Handler) refreshStockFlags(c *gin.Context, traceId string, response *cart.CartResponse) {
	if len(response.Items) == 0 {
		return
	}
	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		ids = append(ids, item.ProductID)
	}

	productRows, err := h.p.GetProductsByIDs(c.Request.Context(), ids)
	if err != nil {
		slog.Error("stock refresh on cached cart failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		return
	}

	for i := range response.Items {
		if product, ok := productRows[response.Items[i].ProductID]; ok {
			response.Items[i].InventoryCount = product.InventoryCount
		}
	}
	response.HasOutOfStockItems = cart.ApplyStockFlags(response.Items)
}

func (h *Handler) invalidateCartCache(c *gin.Context, userId string, traceId string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(c.Request.Context(), userId); err != nil {
		slog.Error("cart cache invalidation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}
}
