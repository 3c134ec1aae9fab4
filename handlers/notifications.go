package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/notifications"
	"github.com/selva-b/e-com-sub000/pkg/ctxmanage"
	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

func (h *Handler) ListNotifications(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

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

	list, err := h.n.ListInbox(c.Request.Context(), userId, limitInt, offsetInt)
	if err != nil {
		slog.Error("error listing notifications", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, userId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userId := claims.Subject

	notificationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	// MarkRead scopes the update to the caller, so a user cannot mark
	// someone else's notification.
	if err := h.n.MarkRead(c.Request.Context(), userId, notificationID); err != nil {
		slog.Error("error marking notification read", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, userId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *Handler) GetPreferences(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	prefs, err := h.n.GetPreferences(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error fetching preferences", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch preferences"})
		return
	}

	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var prefs notifications.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	prefs.UserID = claims.Subject

	if err := h.n.UpsertPreferences(c.Request.Context(), prefs); err != nil {
		slog.Error("error updating preferences", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Preferences updated"})
}

func (h *Handler) RegisterToken(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var request struct {
		Token      string `json:"token"`
		DeviceInfo string `json:"device_info"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.Token == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	if err := h.n.RegisterToken(c.Request.Context(), claims.Subject, request.Token, request.DeviceInfo); err != nil {
		slog.Error("error registering device token", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to register token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token registered"})
}

func (h *Handler) RemoveToken(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var request struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.Token == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	if err := h.n.RemoveToken(c.Request.Context(), claims.Subject, request.Token); err != nil {
		slog.Error("error removing device token", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token removed"})
}

// TestPush lets an admin verify the push pipeline end to end. The target
// user, title and body come from query parameters; the target defaults to
// the caller. Returns the multicast summary.
func (h *Handler) TestPush(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	targetUser := c.Query("user_id")
	if targetUser == "" {
		targetUser = claims.Subject
	}

	result, err := h.d.Dispatch(c.Request.Context(), notifications.Notification{
		UserID: targetUser,
		Title:  c.DefaultQuery("title", "Test Notification"),
		Body:   c.DefaultQuery("body", "Push pipeline check"),
		Type:   notifications.TypeOrderUpdate,
		Push:   true,
	})
	if err != nil {
		slog.Error("error dispatching test push", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, targetUser), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch test push"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Test push dispatched",
		"success_count": result.Push.SuccessCount,
		"failure_count": result.Push.FailureCount,
	})
}
