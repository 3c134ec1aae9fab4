package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/selva-b/e-com-sub000/internal/coupons"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrAlreadyProcessed = errors.New("order already processed")
	// ErrInsufficientStock means a line's conditional inventory decrement
	// matched zero rows: someone else bought the last units between checkout
	// and payment capture. The whole payment commit rolls back.
	ErrInsufficientStock = errors.New("insufficient stock at payment capture")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// CreateOrder inserts the order header and its line items in one
// transaction. Orders start out pending; inventory is untouched until
// MarkPaid.
func (c *Conf) CreateOrder(ctx context.Context, order Order, items []OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("order must have at least one item")
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		queryOrder := `
			INSERT INTO orders (id, user_id, status, subtotal, discount_amount, tax_amount, total,
				coupon_id, coupon_code, payment_id,
				shipping_address, shipping_city, shipping_state, shipping_postal_code, shipping_country,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		`
		_, err := tx.ExecContext(ctx, queryOrder, order.ID, order.UserID, StatusPending,
			order.Subtotal, order.DiscountAmount, order.TaxAmount, order.Total,
			order.CouponID, order.CouponCode, order.PaymentID,
			order.Shipping.Address, order.Shipping.City, order.Shipping.State,
			order.Shipping.PostalCode, order.Shipping.Country)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryItem := `
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`
		for _, item := range items {
			if _, err := tx.ExecContext(ctx, queryItem, order.ID, item.ProductID,
				item.ProductName, item.UnitPrice, item.Quantity); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
}

// MarkPaid commits a successful payment callback in a single transaction:
//
//  1. flip the order pending -> paid with a conditional update, so a
//     retried webhook is a no-op instead of a duplicate commit;
//  2. decrement inventory per line with
//     UPDATE ... SET inventory_count = inventory_count - qty
//     WHERE id = ... AND inventory_count >= qty
//     and check rows-affected — zero rows aborts the whole transaction,
//     which is what prevents overselling under concurrent checkouts;
//  3. redeem the coupon (conditional usage_count increment) when one is
//     attached.
//
// On insufficient stock the transaction rolls back and the order is flipped
// to failed so the callback is not retried forever.
func (c *Conf) MarkPaid(ctx context.Context, orderID string, paymentID string) (Order, error) {
	var order Order
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		queryFlip := `
			UPDATE orders
			SET status = 'paid', payment_id = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'pending'
			RETURNING ` + orderColumns
		var err error
		order, err = scanOrder(tx.QueryRowContext(ctx, queryFlip, orderID, paymentID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Either the order does not exist or it already left pending.
				var status string
				err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				if err != nil {
					return fmt.Errorf("failed to query order status: %w", err)
				}
				return fmt.Errorf("%w: status is %s", ErrAlreadyProcessed, status)
			}
			return fmt.Errorf("failed to mark order paid: %w", err)
		}

		items, err := itemsForOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		queryDecrement := `
			UPDATE products
			SET inventory_count = inventory_count - $2, updated_at = NOW()
			WHERE id = $1 AND inventory_count >= $2
		`
		for _, item := range items {
			result, err := tx.ExecContext(ctx, queryDecrement, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("failed to decrement inventory for %s: %w", item.ProductID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("%w: product %s, quantity %d", ErrInsufficientStock, item.ProductID, item.Quantity)
			}
		}

		if order.CouponID != nil {
			if err := coupons.RedeemTx(ctx, tx, *order.CouponID); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, coupons.ErrUsageExceeded) {
			// Best effort: record the failure so the gateway stops retrying.
			if _, ferr := c.db.ExecContext(ctx, `
				UPDATE orders SET status = 'failed', updated_at = NOW()
				WHERE id = $1 AND status = 'pending'
			`, orderID); ferr != nil {
				return Order{}, fmt.Errorf("%w (and failed to mark order failed: %v)", err, ferr)
			}
		}
		return Order{}, err
	}
	return order, nil
}

// UpdateStatus performs a plain status transition (e.g. pending -> canceled).
func (c *Conf) UpdateStatus(ctx context.Context, orderID string, status string) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
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

const orderColumns = `id, user_id, status, subtotal, discount_amount, tax_amount, total,
		coupon_id, coupon_code, payment_id,
		shipping_address, shipping_city, shipping_state, shipping_postal_code, shipping_country,
		created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	var couponID, couponCode, paymentID sql.NullString
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Subtotal, &o.DiscountAmount,
		&o.TaxAmount, &o.Total, &couponID, &couponCode, &paymentID,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.State,
		&o.Shipping.PostalCode, &o.Shipping.Country, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if couponID.Valid {
		o.CouponID = &couponID.String
	}
	if couponCode.Valid {
		o.CouponCode = &couponCode.String
	}
	if paymentID.Valid {
		o.PaymentID = &paymentID.String
	}
	return o, nil
}

func (c *Conf) GetOrderByID(ctx context.Context, orderID string) (Order, []OrderItem, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(c.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := c.itemsForOrder(ctx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

func (c *Conf) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := c.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var list []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return list, nil
}

func (c *Conf) itemsForOrder(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func itemsForOrderTx(ctx context.Context, tx *sql.Tx, orderID string) ([]OrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]OrderItem, error) {
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

// GetTaxPercent reads the configured tax rate from settings; missing or
// malformed rows fall back to 10.
func (c *Conf) GetTaxPercent(ctx context.Context) decimal.Decimal {
	fallback := decimal.NewFromInt(10)
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'tax_percent'`).Scan(&value)
	if err != nil {
		return fallback
	}
	pct, err := decimal.NewFromString(value)
	if err != nil || pct.IsNegative() {
		return fallback
	}
	return pct
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
