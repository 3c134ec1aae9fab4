package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/selva-b/e-com-sub000/internal/coupons"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

// ApplyCoupon validates a code against an order total and returns the
// computed discount. All the math happens server-side; the client never
// supplies a discount amount.
func (h *Handler) ApplyCoupon(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var request struct {
		OrderTotal decimal.Decimal `json:"order_total"`
		Code       string          `json:"code"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if request.Code == "" || !request.OrderTotal.IsPositive() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Code and a positive order total are required"})
		return
	}

	result, err := h.cpn.Apply(c.Request.Context(), request.OrderTotal, request.Code)
	if err != nil {
		var vErr *coupons.ValidationError
		switch {
		case errors.Is(err, coupons.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Invalid coupon code"})
		case errors.As(err, &vErr):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
		default:
			slog.Error("error applying coupon", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply coupon"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"discounted_total": result.DiscountedTotal,
		"discount_amount":  result.DiscountAmount,
		"coupon_id":        result.CouponID,
	})
}

func (h *Handler) CreateCoupon(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var newCoupon coupons.NewCoupon
	if err := c.ShouldBindJSON(&newCoupon); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	validate := validator.New()
	if err := validate.Struct(newCoupon); err != nil {
		var validationErrors []string
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, fieldErr := range vErrs {
				validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", fieldErr.Field(), fieldErr.Tag()))
			}
		} else {
			validationErrors = append(validationErrors, "Validation failed")
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validationErrors})
		return
	}

	if !newCoupon.DiscountValue.IsPositive() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Discount value must be positive"})
		return
	}
	if newCoupon.DiscountType == coupons.DiscountTypePercentage && newCoupon.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Percentage discount cannot exceed 100"})
		return
	}

	created, err := h.cpn.InsertCoupon(c.Request.Context(), newCoupon)
	if err != nil {
		slog.Error("error creating coupon", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Coupon creation failed"})
		return
	}

	c.JSON(http.StatusOK, created)
}

func (h *Handler) UpdateCoupon(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	couponID := c.Param("id")

	var payload coupons.NewCoupon
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	updated, err := h.cpn.UpdateCoupon(c.Request.Context(), couponID, payload)
	if err != nil {
		if errors.Is(err, coupons.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		slog.Error("error updating coupon", slog.String(logkey.TraceID, traceId), slog.String(logkey.CouponID, couponID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Coupon update failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon updated successfully", "coupon": updated})
}

func (h *Handler) DeleteCoupon(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	couponID := c.Param("id")

	if err := h.cpn.DeleteCoupon(c.Request.Context(), couponID); err != nil {
		if errors.Is(err, coupons.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		slog.Error("error deleting coupon", slog.String(logkey.TraceID, traceId), slog.String(logkey.CouponID, couponID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Coupon deletion failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon successfully deleted"})
}

func (h *Handler) ListCoupons(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

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

	list, err := h.cpn.ListCoupons(c.Request.Context(), limitInt, offsetInt)
	if err != nil {
		slog.Error("error listing coupons", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list coupons"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coupons": list})
}
