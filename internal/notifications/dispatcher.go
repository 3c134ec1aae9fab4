package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/selva-b/e-com-sub000/pkg/logkey"
)

// Store is the persistence surface the dispatcher needs. *Conf implements
// it; tests substitute a mock.
type Store interface {
	InsertInbox(ctx context.Context, n Notification) (int64, error)
	GetPreferences(ctx context.Context, userID string) (Preferences, error)
	GetTokens(ctx context.Context, userID string) ([]string, error)
	LogOutcome(ctx context.Context, userID string, channel string, status string, detail string) error
	GetEmailTemplate(ctx context.Context, name string) (EmailTemplate, error)
}

// Dispatcher fans a notification out to push and email. Channel failures
// are isolated: they are retried a bounded number of times, logged to
// notification_logs, and never propagated to the caller. The only error
// Dispatch returns is a failure to write the inbox row itself.
type Dispatcher struct {
	store Store
	push  PushSender
	email EmailSender
}

func NewDispatcher(store Store, push PushSender, email EmailSender) *Dispatcher {
	return &Dispatcher{store: store, push: push, email: email}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (DispatchResult, error) {
	var result DispatchResult

	// The inbox row is the floor: even with no tokens, no template and no
	// address the user still sees the notification in-app.
	inboxID, err := d.store.InsertInbox(ctx, n)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("failed to store notification: %w", err)
	}
	result.InboxID = inboxID

	prefs, err := d.store.GetPreferences(ctx, n.UserID)
	if err != nil {
		// Treat an unreadable preferences row like defaults rather than
		// dropping the fan-out.
		slog.Error("failed to load notification preferences",
			slog.String(logkey.UserID, n.UserID), slog.String(logkey.ERROR, err.Error()))
		prefs = defaultPreferences(n.UserID)
	}

	if !typeAllowed(n.Type, prefs) {
		d.logOutcome(ctx, n.UserID, ChannelPush, StatusSkipped, "disabled by preferences")
		d.logOutcome(ctx, n.UserID, ChannelEmail, StatusSkipped, "disabled by preferences")
		return result, nil
	}

	if n.Push {
		result.Push, result.PushRan = d.sendPush(ctx, n, prefs)
	}
	if n.Email {
		result.EmailOK = d.sendEmail(ctx, n, prefs)
	}
	return result, nil
}

func typeAllowed(notificationType string, prefs Preferences) bool {
	switch notificationType {
	case TypeOrderUpdate:
		return prefs.OrderUpdates
	case TypePromotion:
		return prefs.Promotions
	default:
		return true
	}
}

func (d *Dispatcher) sendPush(ctx context.Context, n Notification, prefs Preferences) (PushResult, bool) {
	if !prefs.PushEnabled {
		d.logOutcome(ctx, n.UserID, ChannelPush, StatusSkipped, "push disabled by preferences")
		return PushResult{}, false
	}

	tokens, err := d.store.GetTokens(ctx, n.UserID)
	if err != nil {
		d.logOutcome(ctx, n.UserID, ChannelPush, StatusFailed, err.Error())
		return PushResult{}, false
	}
	if len(tokens) == 0 {
		d.logOutcome(ctx, n.UserID, ChannelPush, StatusSkipped, "no device tokens")
		return PushResult{}, false
	}

	var pushResult PushResult
	backoff := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var sendErr error
		pushResult, sendErr = d.push.Send(ctx, tokens, n.Title, n.Body, n.Data)
		if sendErr != nil {
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		slog.Error("push send failed", slog.String(logkey.UserID, n.UserID), slog.String(logkey.ERROR, err.Error()))
		d.logOutcome(ctx, n.UserID, ChannelPush, StatusFailed, err.Error())
		return PushResult{}, false
	}

	d.logOutcome(ctx, n.UserID, ChannelPush, StatusSent,
		fmt.Sprintf("delivered to %d/%d devices", pushResult.SuccessCount, len(tokens)))
	return pushResult, true
}

func (d *Dispatcher) sendEmail(ctx context.Context, n Notification, prefs Preferences) bool {
	if !prefs.EmailEnabled {
		d.logOutcome(ctx, n.UserID, ChannelEmail, StatusSkipped, "email disabled by preferences")
		return false
	}
	if prefs.Email == "" {
		d.logOutcome(ctx, n.UserID, ChannelEmail, StatusSkipped, "no email address on file")
		return false
	}

	tmpl, err := d.store.GetEmailTemplate(ctx, n.Type)
	if err != nil {
		// No template for this notification type degrades to inbox-only.
		d.logOutcome(ctx, n.UserID, ChannelEmail, StatusSkipped, "no template for type "+n.Type)
		return false
	}

	vars := map[string]string{"title": n.Title, "body": n.Body}
	for key, value := range n.Data {
		vars[key] = value
	}
	subject := RenderTemplate(tmpl.Subject, vars)
	body := RenderTemplate(tmpl.Body, vars)

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if sendErr := d.email.Send(ctx, prefs.Email, subject, body); sendErr != nil {
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		slog.Error("email send failed", slog.String(logkey.UserID, n.UserID), slog.String(logkey.ERROR, err.Error()))
		d.logOutcome(ctx, n.UserID, ChannelEmail, StatusFailed, err.Error())
		return false
	}

	d.logOutcome(ctx, n.UserID, ChannelEmail, StatusSent, "delivered to "+prefs.Email)
	return true
}

func (d *Dispatcher) logOutcome(ctx context.Context, userID, channel, status, detail string) {
	if err := d.store.LogOutcome(ctx, userID, channel, status, detail); err != nil {
		slog.Error("failed to log notification outcome",
			slog.String(logkey.UserID, userID), slog.String(logkey.ERROR, err.Error()))
	}
}
