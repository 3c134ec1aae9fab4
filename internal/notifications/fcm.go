package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultFCMEndpoint = "https://fcm.googleapis.com/fcm/send"

// PushSender multicasts a notification to a set of device tokens.
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error)
}

// FCMClient talks to the Firebase Cloud Messaging HTTP endpoint. The
// endpoint is overridable for tests.
type FCMClient struct {
	serverKey string
	endpoint  string
	client    *http.Client
}

func NewFCMClient(serverKey string) *FCMClient {
	return &FCMClient{
		serverKey: serverKey,
		endpoint:  defaultFCMEndpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewFCMClientWithEndpoint is used by tests to point at a local server.
func NewFCMClientWithEndpoint(serverKey string, endpoint string) *FCMClient {
	c := NewFCMClient(serverKey)
	c.endpoint = endpoint
	return c
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

func (f *FCMClient) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error) {
	if f.serverKey == "" {
		return PushResult{}, fmt.Errorf("fcm server key not configured")
	}
	if len(tokens) == 0 {
		return PushResult{}, nil
	}

	payload, err := json.Marshal(fcmRequest{
		RegistrationIDs: tokens,
		Notification:    fcmNotification{Title: title, Body: body},
		Data:            data,
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to marshal fcm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to build fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+f.serverKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return PushResult{}, fmt.Errorf("fcm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PushResult{}, fmt.Errorf("fcm returned status %d", resp.StatusCode)
	}

	var fcmResp fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fcmResp); err != nil {
		return PushResult{}, fmt.Errorf("failed to decode fcm response: %w", err)
	}
	return PushResult{SuccessCount: fcmResp.Success, FailureCount: fcmResp.Failure}, nil
}
