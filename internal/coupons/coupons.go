package coupons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("coupon not found")
	ErrUsageExceeded = errors.New("coupon usage limit reached")
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

// Validate runs the gate sequence against a loaded coupon and computes the
// discount. Each gate short-circuits with a user-facing message. The
// discount is clamped so it never exceeds the order total.
func Validate(cpn Coupon, orderTotal decimal.Decimal, now time.Time) (ApplyResult, error) {
	if !cpn.IsActive {
		return ApplyResult{}, &ValidationError{Message: "This coupon is no longer active"}
	}
	if now.After(cpn.ExpiryDate) {
		return ApplyResult{}, &ValidationError{Message: "This coupon has expired"}
	}
	if cpn.UsageLimit != nil && cpn.UsageCount >= *cpn.UsageLimit {
		return ApplyResult{}, &ValidationError{Message: "This coupon has reached its usage limit"}
	}
	if orderTotal.LessThan(cpn.MinOrderAmount) {
		return ApplyResult{}, &ValidationError{
			Message: fmt.Sprintf("Order total must be at least %s to use this coupon", cpn.MinOrderAmount.StringFixed(2)),
		}
	}

	var discount decimal.Decimal
	switch cpn.DiscountType {
	case DiscountTypePercentage:
		discount = orderTotal.Mul(cpn.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountTypeFixed:
		discount = cpn.DiscountValue
	default:
		return ApplyResult{}, fmt.Errorf("unknown discount type %q", cpn.DiscountType)
	}

	// The discount can never exceed the order total.
	if discount.GreaterThan(orderTotal) {
		discount = orderTotal
	}

	return ApplyResult{
		DiscountedTotal: orderTotal.Sub(discount),
		DiscountAmount:  discount,
		CouponID:        cpn.ID,
	}, nil
}

// Apply loads the coupon by code and validates it against the order total.
// Returns *ValidationError for user-facing rejections, ErrNotFound for an
// unknown code.
func (c *Conf) Apply(ctx context.Context, orderTotal decimal.Decimal, code string) (ApplyResult, error) {
	cpn, err := c.GetByCode(ctx, code)
	if err != nil {
		return ApplyResult{}, err
	}
	return Validate(cpn, orderTotal, time.Now().UTC())
}

// RedeemTx atomically increments usage_count inside the caller's order
// transaction. The conditional guard makes concurrent redemptions of the
// last slot race-safe: the loser gets zero rows and the order rolls back.
func RedeemTx(ctx context.Context, tx *sql.Tx, couponID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, couponID)
	if err != nil {
		return fmt.Errorf("failed to redeem coupon: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUsageExceeded
	}
	return nil
}

const couponColumns = `id, code, discount_type, discount_value, min_order_amount,
		expiry_date, usage_limit, usage_count, is_active, created_at, updated_at`

func scanCoupon(row interface{ Scan(...any) error }) (Coupon, error) {
	var cpn Coupon
	var usageLimit sql.NullInt64
	err := row.Scan(&cpn.ID, &cpn.Code, &cpn.DiscountType, &cpn.DiscountValue,
		&cpn.MinOrderAmount, &cpn.ExpiryDate, &usageLimit, &cpn.UsageCount,
		&cpn.IsActive, &cpn.CreatedAt, &cpn.UpdatedAt)
	if err != nil {
		return Coupon{}, err
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		cpn.UsageLimit = &limit
	}
	return cpn, nil
}

func (c *Conf) GetByCode(ctx context.Context, code string) (Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	cpn, err := scanCoupon(c.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("failed to query coupon: %w", err)
	}
	return cpn, nil
}

func (c *Conf) InsertCoupon(ctx context.Context, nc NewCoupon) (Coupon, error) {
	query := `
		INSERT INTO coupons (id, code, discount_type, discount_value, min_order_amount,
			expiry_date, usage_limit, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + couponColumns
	var usageLimit sql.NullInt64
	if nc.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: int64(*nc.UsageLimit), Valid: true}
	}
	cpn, err := scanCoupon(c.db.QueryRowContext(ctx, query, uuid.NewString(),
		strings.ToUpper(strings.TrimSpace(nc.Code)), nc.DiscountType, nc.DiscountValue,
		nc.MinOrderAmount, nc.ExpiryDate, usageLimit, nc.IsActive))
	if err != nil {
		return Coupon{}, fmt.Errorf("failed to insert coupon: %w", err)
	}
	return cpn, nil
}

func (c *Conf) UpdateCoupon(ctx context.Context, couponID string, nc NewCoupon) (Coupon, error) {
	query := `
		UPDATE coupons
		SET code = $1, discount_type = $2, discount_value = $3, min_order_amount = $4,
		    expiry_date = $5, usage_limit = $6, is_active = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING ` + couponColumns
	var usageLimit sql.NullInt64
	if nc.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: int64(*nc.UsageLimit), Valid: true}
	}
	cpn, err := scanCoupon(c.db.QueryRowContext(ctx, query,
		strings.ToUpper(strings.TrimSpace(nc.Code)), nc.DiscountType, nc.DiscountValue,
		nc.MinOrderAmount, nc.ExpiryDate, usageLimit, nc.IsActive, couponID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("failed to update coupon: %w", err)
	}
	return cpn, nil
}

func (c *Conf) DeleteCoupon(ctx context.Context, couponID string) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = $1`, couponID)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
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

func (c *Conf) ListCoupons(ctx context.Context, limit, offset int) ([]Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := c.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var list []Coupon
	for rows.Next() {
		cpn, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		list = append(list, cpn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}
	return list, nil
}
