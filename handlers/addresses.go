package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/selva-b/e-com-sub000/internal/addresses"
	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

func (h *Handler) CreateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var payload addresses.NewAddress
	if err := c.ShouldBindJSON(&payload); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	validate := validator.New()
	if err := validate.Struct(payload); err != nil {
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

	created, err := h.addr.Insert(c.Request.Context(), claims.Subject, payload)
	if err != nil {
		slog.Error("error creating address", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create address"})
		return
	}

	c.JSON(http.StatusOK, created)
}

func (h *Handler) UpdateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	addressID := c.Param("id")

	var payload addresses.NewAddress
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	updated, err := h.addr.Update(c.Request.Context(), claims.Subject, addressID, payload)
	if err != nil {
		if errors.Is(err, addresses.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		slog.Error("error updating address", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update address"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address updated", "address": updated})
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	addressID := c.Param("id")

	if err := h.addr.Delete(c.Request.Context(), claims.Subject, addressID); err != nil {
		if errors.Is(err, addresses.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		slog.Error("error deleting address", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete address"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}

func (h *Handler) ListAddresses(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	list, err := h.addr.List(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error listing addresses", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list addresses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": list})
}
