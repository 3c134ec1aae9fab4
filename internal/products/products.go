package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/price"
	stripeproduct "github.com/stripe/stripe-go/v81/product"
)

var ErrNotFound = errors.New("product not found")

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (Conf, error) {
	if db == nil {
		return Conf{}, fmt.Errorf("db is nil")
	}
	return Conf{db: db}, nil
}

const productColumns = `id, name, description, category, price, image_url, inventory_count,
		discount_percent, is_on_sale, sale_start_date, sale_end_date, stripe_price_id, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	var saleStart, saleEnd sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.ImageURL,
		&p.InventoryCount, &p.DiscountPercent, &p.IsOnSale, &saleStart, &saleEnd,
		&p.StripePriceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if saleStart.Valid {
		p.SaleStartDate = &saleStart.Time
	}
	if saleEnd.Valid {
		p.SaleEndDate = &saleEnd.Time
	}
	return p, nil
}

func (c *Conf) InsertProduct(ctx context.Context, np NewProduct) (Product, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO products (id, name, description, category, price, image_url, inventory_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + productColumns
	row := c.db.QueryRowContext(ctx, query, id, np.Name, np.Description, np.Category,
		np.Price, np.ImageURL, np.InventoryCount)

	p, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

func (c *Conf) GetProductByID(ctx context.Context, productID string) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(c.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

// GetProductsByIDs issues one batched read for all the given ids. Missing
// ids are simply absent from the result map; callers decide whether that is
// an error.
func (c *Conf) GetProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	result := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	// Build the placeholder list for the IN clause.
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return result, nil
}

func (c *Conf) UpdateProductInDB(ctx context.Context, productID string, p Product) (Product, error) {
	query := `
		UPDATE products
		SET name = $1, description = $2, category = $3, price = $4, image_url = $5,
		    inventory_count = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING ` + productColumns
	updated, err := scanProduct(c.db.QueryRowContext(ctx, query, p.Name, p.Description,
		p.Category, p.Price, p.ImageURL, p.InventoryCount, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	return updated, nil
}

// SetSaleWindow updates only the flash-sale columns.
func (c *Conf) SetSaleWindow(ctx context.Context, productID string, w SaleWindow) (Product, error) {
	query := `
		UPDATE products
		SET is_on_sale = $1, discount_percent = $2, sale_start_date = $3, sale_end_date = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + productColumns
	updated, err := scanProduct(c.db.QueryRowContext(ctx, query, w.IsOnSale, w.DiscountPercent,
		w.SaleStartDate, w.SaleEndDate, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to update sale window: %w", err)
	}
	return updated, nil
}

func (c *Conf) DeleteProductFromDB(ctx context.Context, productID string) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
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

// ListProducts supports name/category filtering with limit/offset paging.
// Sort column and order are whitelisted to avoid SQL injection through the
// query string.
func (c *Conf) ListProducts(ctx context.Context, nameFilter, categoryFilter, sort, order string, limit, offset int) ([]Product, error) {
	sortColumns := map[string]bool{"name": true, "price": true, "created_at": true}
	if !sortColumns[sort] {
		sort = "name"
	}
	if order != "desc" {
		order = "asc"
	}

	query := `SELECT ` + productColumns + ` FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
		ORDER BY ` + sort + ` ` + order + `
		LIMIT $3 OFFSET $4`

	rows, err := c.db.QueryContext(ctx, query, nameFilter, categoryFilter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return list, nil
}

func (c *Conf) GetStock(ctx context.Context, productID string) (Stock, error) {
	var s Stock
	query := `SELECT id, inventory_count, stripe_price_id FROM products WHERE id = $1`
	err := c.db.QueryRowContext(ctx, query, productID).Scan(&s.ProductID, &s.Stock, &s.PriceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Stock{}, ErrNotFound
		}
		return Stock{}, fmt.Errorf("failed to query stock: %w", err)
	}
	return s, nil
}

// CreateProductPriceStripe mirrors the catalog row into Stripe so checkout
// sessions can reference a price id. Runs in a background goroutine from the
// create handler; failure leaves stripe_price_id empty and checkout falls
// back to inline price data.
func (c *Conf) CreateProductPriceStripe(p Product) error {
	sKey := os.Getenv("STRIPE_TEST_KEY")
	if sKey == "" {
		return fmt.Errorf("stripe secret key not found")
	}
	stripe.Key = sKey

	prod, err := stripeproduct.New(&stripe.ProductParams{
		ID:   stripe.String(p.ID),
		Name: stripe.String(p.Name),
	})
	if err != nil {
		return fmt.Errorf("failed to create stripe product: %w", err)
	}

	// Stripe wants the unit amount in the smallest currency unit.
	unitAmount := p.Price.Mul(decimalHundred).IntPart()
	pr, err := price.New(&stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		UnitAmount: stripe.Int64(unitAmount),
	})
	if err != nil {
		return fmt.Errorf("failed to create stripe price: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = c.db.ExecContext(ctx, `UPDATE products SET stripe_price_id = $1, updated_at = NOW() WHERE id = $2`, pr.ID, p.ID)
	if err != nil {
		return fmt.Errorf("failed to store stripe price id: %w", err)
	}
	return nil
}
