package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selva-b/e-com-sub000/internal/auth"
	"github.com/selva-b/e-com-sub000/internal/notifications"
)

type stubNotificationStore struct {
	inserted []notifications.Notification
}

func (s *stubNotificationStore) InsertInbox(_ context.Context, n notifications.Notification) (int64, error) {
	s.inserted = append(s.inserted, n)
	return int64(len(s.inserted)), nil
}

func (s *stubNotificationStore) GetPreferences(_ context.Context, userID string) (notifications.Preferences, error) {
	return notifications.Preferences{
		UserID:       userID,
		OrderUpdates: true,
		Promotions:   true,
		PushEnabled:  true,
		EmailEnabled: true,
	}, nil
}

func (s *stubNotificationStore) GetTokens(_ context.Context, _ string) ([]string, error) {
	return []string{"device-token-1"}, nil
}

func (s *stubNotificationStore) LogOutcome(_ context.Context, _, _, _, _ string) error {
	return nil
}

func (s *stubNotificationStore) GetEmailTemplate(_ context.Context, _ string) (notifications.EmailTemplate, error) {
	return notifications.EmailTemplate{}, notifications.ErrTemplateNotFound
}

type stubPushSender struct {
	result notifications.PushResult
}

func (s stubPushSender) Send(_ context.Context, _ []string, _, _ string, _ map[string]string) (notifications.PushResult, error) {
	return s.result, nil
}

type stubEmailSender struct{}

func (stubEmailSender) Send(_ context.Context, _, _, _ string) error {
	return nil
}

func testPushContext(t *testing.T, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin-1"},
		Roles:            []string{auth.RoleAdmin},
	}
	c.Request = req.WithContext(context.WithValue(req.Context(), auth.ClaimsKey, claims))
	return c, w
}

func TestTestPush_TargetsRequestedUser(t *testing.T) {
	store := &stubNotificationStore{}
	h := &Handler{d: notifications.NewDispatcher(store,
		stubPushSender{result: notifications.PushResult{SuccessCount: 1}}, stubEmailSender{})}

	c, w := testPushContext(t, "/notifications/test-push?user_id=user-9&title=Hello&body=World")
	h.TestPush(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "user-9", store.inserted[0].UserID)
	assert.Equal(t, "Hello", store.inserted[0].Title)
	assert.Equal(t, "World", store.inserted[0].Body)
	assert.Contains(t, w.Body.String(), `"success_count":1`)
}

func TestTestPush_DefaultsToCaller(t *testing.T) {
	store := &stubNotificationStore{}
	h := &Handler{d: notifications.NewDispatcher(store,
		stubPushSender{result: notifications.PushResult{SuccessCount: 1}}, stubEmailSender{})}

	c, w := testPushContext(t, "/notifications/test-push")
	h.TestPush(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "admin-1", store.inserted[0].UserID)
	assert.Equal(t, "Test Notification", store.inserted[0].Title)
}
