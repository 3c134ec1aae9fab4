package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrTemplateNotFound = errors.New("email template not found")
)

// Conf is the Postgres store behind the dispatcher: inbox, preferences,
// device tokens, delivery logs and email templates.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (Conf, error) {
	if db == nil {
		return Conf{}, fmt.Errorf("db is nil")
	}
	return Conf{db: db}, nil
}

func (c *Conf) InsertInbox(ctx context.Context, n Notification) (int64, error) {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal notification data: %w", err)
	}

	var id int64
	err = c.db.QueryRowContext(ctx, `
		INSERT INTO user_notifications (user_id, title, body, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, n.UserID, n.Title, n.Body, n.Type, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert inbox notification: %w", err)
	}
	return id, nil
}

func (c *Conf) ListInbox(ctx context.Context, userID string, limit, offset int) ([]InboxEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, title, body, type, data, read, created_at
		FROM user_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []InboxEntry
	for rows.Next() {
		var entry InboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Title, &entry.Body,
			&entry.Type, &payload, &entry.Read, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
			}
		}
		list = append(list, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return list, nil
}

func (c *Conf) MarkRead(ctx context.Context, userID string, notificationID int64) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE user_notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return errors.New("notification not found")
	}
	return nil
}

// GetPreferences returns the user's stored preferences, or defaults when no
// row exists.
func (c *Conf) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	var p Preferences
	err := c.db.QueryRowContext(ctx, `
		SELECT user_id, email, order_updates, promotions, push_enabled, email_enabled, updated_at
		FROM notification_preferences WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Email, &p.OrderUpdates, &p.Promotions,
		&p.PushEnabled, &p.EmailEnabled, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultPreferences(userID), nil
		}
		return Preferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	return p, nil
}

func (c *Conf) UpsertPreferences(ctx context.Context, p Preferences) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, email, order_updates, promotions, push_enabled, email_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			order_updates = EXCLUDED.order_updates,
			promotions = EXCLUDED.promotions,
			push_enabled = EXCLUDED.push_enabled,
			email_enabled = EXCLUDED.email_enabled,
			updated_at = NOW()
	`, p.UserID, p.Email, p.OrderUpdates, p.Promotions, p.PushEnabled, p.EmailEnabled)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

func (c *Conf) GetTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT token FROM firebase_tokens WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query firebase tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan firebase token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating firebase tokens: %w", err)
	}
	return tokens, nil
}

func (c *Conf) RegisterToken(ctx context.Context, userID string, token string, deviceInfo string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO firebase_tokens (user_id, token, device_info, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, device_info = EXCLUDED.device_info
	`, userID, token, deviceInfo)
	if err != nil {
		return fmt.Errorf("failed to register firebase token: %w", err)
	}
	return nil
}

func (c *Conf) RemoveToken(ctx context.Context, userID string, token string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM firebase_tokens WHERE user_id = $1 AND token = $2
	`, userID, token)
	if err != nil {
		return fmt.Errorf("failed to remove firebase token: %w", err)
	}
	return nil
}

// LogOutcome records one channel attempt. Dispatch never fails because of a
// logging error; callers log and move on.
func (c *Conf) LogOutcome(ctx context.Context, userID string, channel string, status string, detail string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO notification_logs (user_id, channel, status, detail, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, userID, channel, status, detail)
	if err != nil {
		return fmt.Errorf("failed to insert notification log: %w", err)
	}
	return nil
}

func (c *Conf) GetEmailTemplate(ctx context.Context, name string) (EmailTemplate, error) {
	var t EmailTemplate
	err := c.db.QueryRowContext(ctx, `
		SELECT name, subject, body FROM email_templates WHERE name = $1
	`, name).Scan(&t.Name, &t.Subject, &t.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailTemplate{}, ErrTemplateNotFound
		}
		return EmailTemplate{}, fmt.Errorf("failed to query email template: %w", err)
	}
	return t, nil
}
