// Package wishlist stores the products a user has saved for later.
package wishlist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Entry struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	IsOnSale  bool            `json:"is_on_sale"`
	AddedAt   time.Time       `json:"added_at"`
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (Conf, error) {
	if db == nil {
		return Conf{}, fmt.Errorf("db is nil")
	}
	return Conf{db: db}, nil
}

// Add is idempotent: re-adding an existing entry is a no-op.
func (c *Conf) Add(ctx context.Context, userID string, productID string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO wishlist (user_id, product_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, product_id) DO NOTHING
	`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return nil
}

func (c *Conf) Remove(ctx context.Context, userID string, productID string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return nil
}

func (c *Conf) List(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT w.product_id, p.name, p.price, p.image_url, p.is_on_sale, w.created_at
		FROM wishlist w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer rows.Close()

	var list []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ProductID, &e.Name, &e.Price, &e.ImageURL, &e.IsOnSale, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist: %w", err)
	}
	return list, nil
}
