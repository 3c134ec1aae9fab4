// Package addresses manages a user's saved shipping addresses. At most one
// address per user is the default; setting a new default clears the old one
// inside the same transaction.
package addresses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("address not found")

type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewAddress is the create/update payload.
type NewAddress struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	IsDefault  bool   `json:"is_default"`
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

const addressColumns = `id, user_id, address, city, state, postal_code, country, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Address, &a.City, &a.State,
		&a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (c *Conf) Insert(ctx context.Context, userID string, na NewAddress) (Address, error) {
	var created Address
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if na.IsDefault {
			if err := clearDefault(ctx, tx, userID); err != nil {
				return err
			}
		}
		query := `
			INSERT INTO user_addresses (id, user_id, address, city, state, postal_code, country, is_default, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			RETURNING ` + addressColumns
		var err error
		created, err = scanAddress(tx.QueryRowContext(ctx, query, uuid.NewString(), userID,
			na.Address, na.City, na.State, na.PostalCode, na.Country, na.IsDefault))
		if err != nil {
			return fmt.Errorf("failed to insert address: %w", err)
		}
		return nil
	})
	if err != nil {
		return Address{}, err
	}
	return created, nil
}

func (c *Conf) Update(ctx context.Context, userID string, addressID string, na NewAddress) (Address, error) {
	var updated Address
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if na.IsDefault {
			if err := clearDefault(ctx, tx, userID); err != nil {
				return err
			}
		}
		query := `
			UPDATE user_addresses
			SET address = $1, city = $2, state = $3, postal_code = $4, country = $5, is_default = $6, updated_at = NOW()
			WHERE id = $7 AND user_id = $8
			RETURNING ` + addressColumns
		var err error
		updated, err = scanAddress(tx.QueryRowContext(ctx, query, na.Address, na.City, na.State,
			na.PostalCode, na.Country, na.IsDefault, addressID, userID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to update address: %w", err)
		}
		return nil
	})
	if err != nil {
		return Address{}, err
	}
	return updated, nil
}

func (c *Conf) Delete(ctx context.Context, userID string, addressID string) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM user_addresses WHERE id = $1 AND user_id = $2
	`, addressID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Conf) GetByID(ctx context.Context, userID string, addressID string) (Address, error) {
	query := `SELECT ` + addressColumns + ` FROM user_addresses WHERE id = $1 AND user_id = $2`
	a, err := scanAddress(c.db.QueryRowContext(ctx, query, addressID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Address{}, ErrNotFound
		}
		return Address{}, fmt.Errorf("failed to query address: %w", err)
	}
	return a, nil
}

func (c *Conf) List(ctx context.Context, userID string) ([]Address, error) {
	query := `SELECT ` + addressColumns + ` FROM user_addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var list []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}
	return list, nil
}

func clearDefault(ctx context.Context, tx *sql.Tx, userID string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_addresses SET is_default = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_default
	`, userID); err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	return nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
