package notifications

import "time"

const (
	ChannelPush  = "push"
	ChannelEmail = "email"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	TypeOrderUpdate = "order_update"
	TypePromotion   = "promotion"
)

// Notification is a dispatch request. Email and Push toggle the outbound
// channels; the inbox row is written regardless.
type Notification struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Type   string            `json:"type"`
	Data   map[string]string `json:"data,omitempty"`
	Email  bool              `json:"email"`
	Push   bool              `json:"push"`
}

// InboxEntry is a row in the user's notification inbox.
type InboxEntry struct {
	ID        int64             `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}

// Preferences controls which channels a user receives. A missing row means
// everything enabled with no email address on file.
type Preferences struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	OrderUpdates bool      `json:"order_updates"`
	Promotions   bool      `json:"promotions"`
	PushEnabled  bool      `json:"push_enabled"`
	EmailEnabled bool      `json:"email_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func defaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:       userID,
		OrderUpdates: true,
		Promotions:   true,
		PushEnabled:  true,
		EmailEnabled: true,
	}
}

type EmailTemplate struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PushResult summarizes a multicast send.
type PushResult struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
}

// DispatchResult reports what each channel did. Channel failures are
// recorded here and in notification_logs, never returned as errors.
type DispatchResult struct {
	InboxID int64      `json:"inbox_id"`
	Push    PushResult `json:"push"`
	PushRan bool       `json:"push_ran"`
	EmailOK bool       `json:"email_ok"`
}
