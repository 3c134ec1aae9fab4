package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNoActiveCart      = errors.New("no active cart found for user")
	ErrItemNotFound      = errors.New("item not found in cart")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (Conf, error) {
	if db == nil {
		return Conf{}, fmt.Errorf("db is nil")
	}
	return Conf{db: db}, nil
}

// AddToCartDB adds a product to the user's active cart, creating the cart if
// none exists. The stock gate runs against the live products row inside the
// same transaction, so a concurrent add cannot push the line past available
// stock at write time.
func (c *Conf) AddToCartDB(ctx context.Context, userID string, productID string, quantity int) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartForUpdate(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		// Live stock for the product, locked for the duration of the tx.
		var stock int
		err = tx.QueryRowContext(ctx, `SELECT inventory_count FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("product %s does not exist", productID)
			}
			return fmt.Errorf("failed to query product stock: %w", err)
		}

		// Check if the product already exists in the cart
		var cartItemID int
		var existingQuantity int
		queryCartItem := `
			SELECT id, quantity
			FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
		`
		err = tx.QueryRowContext(ctx, queryCartItem, cartID, productID).Scan(&cartItemID, &existingQuantity)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if quantity > stock {
					return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, quantity, stock)
				}
				queryAddCartItem := `
					INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
					VALUES ($1, $2, $3, NOW(), NOW())
				`
				if _, err = tx.ExecContext(ctx, queryAddCartItem, cartID, productID, quantity); err != nil {
					return fmt.Errorf("failed to add product to cart: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to query cart items: %w", err)
		}

		newQuantity := existingQuantity + quantity
		if newQuantity > stock {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, newQuantity, stock)
		}
		queryUpdateCartItem := `
			UPDATE cart_items
			SET quantity = $1, updated_at = NOW()
			WHERE id = $2
		`
		if _, err = tx.ExecContext(ctx, queryUpdateCartItem, newQuantity, cartItemID); err != nil {
			return fmt.Errorf("failed to update cart item quantity: %w", err)
		}
		return nil
	})
}

// UpdateQuantity sets the quantity of an existing cart line.
func (c *Conf) UpdateQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	if quantity <= 0 {
		return c.RemoveItem(ctx, userID, productID)
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartForUpdate(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE cart_items SET quantity = $1, updated_at = NOW()
			WHERE cart_id = $2 AND product_id = $3
		`, quantity, cartID, productID)
		if err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

// SetSelected marks a cart line as included in (or excluded from) checkout.
func (c *Conf) SetSelected(ctx context.Context, userID string, productID string, selected bool) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartForUpdate(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE cart_items SET selected = $1, updated_at = NOW()
			WHERE cart_id = $2 AND product_id = $3
		`, selected, cartID, productID)
		if err != nil {
			return fmt.Errorf("failed to update cart item selection: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

func (c *Conf) RemoveItem(ctx context.Context, userID string, productID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		cartID, err := activeCartForUpdate(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2
		`, cartID, productID)
		if err != nil {
			return fmt.Errorf("failed to remove cart item: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

// GetActiveCartItems returns the cart lines joined with live product data,
// with out-of-stock flags already applied. This is the batched inventory
// check of the checkout flow: one read covers every product in the cart.
func (c *Conf) GetActiveCartItems(ctx context.Context, userID string) (*CartResponse, error) {
	query := `
		SELECT ci.product_id, p.name, p.price, p.image_url, ci.quantity, ci.selected, p.inventory_count
		FROM cart c
		JOIN cart_items ci ON ci.cart_id = c.id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1 AND c.status = 'active'
		ORDER BY ci.created_at
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var item CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.ImageURL,
			&item.Quantity, &item.Selected, &item.InventoryCount); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	hasOutOfStock := ApplyStockFlags(items)
	return &CartResponse{Items: items, HasOutOfStockItems: hasOutOfStock}, nil
}

// MarkCheckedOut flips the user's active cart to checked_out once the order
// has been paid. A fresh cart is created lazily on the next add.
func (c *Conf) MarkCheckedOut(ctx context.Context, userID string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE cart SET status = 'checked_out', updated_at = NOW()
		WHERE user_id = $1 AND status = 'active'
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark cart checked out: %w", err)
	}
	return nil
}

// activeCartForUpdate locks and returns the user's active cart id. When
// createIfMissing is set a new cart row is inserted instead of failing.
func activeCartForUpdate(ctx context.Context, tx *sql.Tx, userID string, createIfMissing bool) (int, error) {
	var cartID int
	queryActiveCart := `
		SELECT id
		FROM cart
		WHERE user_id = $1 AND status = 'active'
		FOR UPDATE
	`
	err := tx.QueryRowContext(ctx, queryActiveCart, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if !createIfMissing {
				return 0, ErrNoActiveCart
			}
			queryCreateCart := `
				INSERT INTO cart (user_id, status, created_at, updated_at)
				VALUES ($1, 'active', NOW(), NOW())
				RETURNING id
			`
			if err = tx.QueryRowContext(ctx, queryCreateCart, userID).Scan(&cartID); err != nil {
				return 0, fmt.Errorf("failed to create new cart: %w", err)
			}
			return cartID, nil
		}
		return 0, fmt.Errorf("failed to query active cart: %w", err)
	}
	return cartID, nil
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
