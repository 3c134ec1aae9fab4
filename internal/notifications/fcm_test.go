package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFCMClient_Send(t *testing.T) {
	var received fcmRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(fcmResponse{Success: 2, Failure: 1})
	}))
	defer server.Close()

	client := NewFCMClientWithEndpoint("test-key", server.URL)
	result, err := client.Send(context.Background(), []string{"tok-1", "tok-2", "tok-3"},
		"Title", "Body", map[string]string{"order_id": "ord-1"})

	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, []string{"tok-1", "tok-2", "tok-3"}, received.RegistrationIDs)
	assert.Equal(t, "Title", received.Notification.Title)
	assert.Equal(t, "ord-1", received.Data["order_id"])
}

func TestFCMClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewFCMClientWithEndpoint("test-key", server.URL)
	_, err := client.Send(context.Background(), []string{"tok-1"}, "t", "b", nil)

	assert.Error(t, err)
}

func TestFCMClient_NoServerKey(t *testing.T) {
	client := NewFCMClient("")

	_, err := client.Send(context.Background(), []string{"tok-1"}, "t", "b", nil)

	assert.Error(t, err)
}

func TestFCMClient_NoTokensIsNoOp(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewFCMClientWithEndpoint("test-key", server.URL)
	result, err := client.Send(context.Background(), nil, "t", "b", nil)

	require.NoError(t, err)
	assert.Zero(t, result.SuccessCount)
	assert.False(t, called)
}
