package orders

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selva-b/e-com-sub000/internal/coupons"
)

var orderRowColumns = []string{
	"id", "user_id", "status", "subtotal", "discount_amount", "tax_amount", "total",
	"coupon_id", "coupon_code", "payment_id",
	"shipping_address", "shipping_city", "shipping_state", "shipping_postal_code", "shipping_country",
	"created_at", "updated_at",
}

func paidOrderRow(couponID any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderRowColumns).
		AddRow("ord-1", "user-1", "paid", "100.00", "20.00", "8.00", "88.00",
			couponID, nil, "pi_1",
			"1 Main St", "Springfield", "IL", "62704", "US", now, now)
}

func orderItemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "unit_price", "quantity"}).
		AddRow(int64(1), "ord-1", "prod-1", "Widget", "50.00", 2)
}

func newMockConf(t *testing.T) (*Conf, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conf, err := NewConf(db)
	require.NoError(t, err)
	return conf, mock
}

func TestMarkPaid_CommitsPaymentAndDecrementsInventory(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE orders").
		WithArgs("ord-1", "pi_1").
		WillReturnRows(paidOrderRow(nil))
	mock.ExpectQuery("SELECT id, order_id, product_id").
		WithArgs("ord-1").
		WillReturnRows(orderItemRows())
	mock.ExpectExec("UPDATE products").
		WithArgs("prod-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := conf.MarkPaid(context.Background(), "ord-1", "pi_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, order.Status)
	assert.Equal(t, "88.00", order.Total.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaid_RedeemsAttachedCoupon(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE orders").
		WithArgs("ord-1", "pi_1").
		WillReturnRows(paidOrderRow("cpn-1"))
	mock.ExpectQuery("SELECT id, order_id, product_id").
		WithArgs("ord-1").
		WillReturnRows(orderItemRows())
	mock.ExpectExec("UPDATE products").
		WithArgs("prod-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE coupons").
		WithArgs("cpn-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := conf.MarkPaid(context.Background(), "ord-1", "pi_1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The last units were sold between checkout and payment capture: the
// conditional decrement matches zero rows, the transaction rolls back, and
// the order is flipped to failed so the callback is not retried forever.
func TestMarkPaid_InsufficientStockRollsBackAndFailsOrder(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE orders").
		WithArgs("ord-1", "pi_1").
		WillReturnRows(paidOrderRow(nil))
	mock.ExpectQuery("SELECT id, order_id, product_id").
		WithArgs("ord-1").
		WillReturnRows(orderItemRows())
	mock.ExpectExec("UPDATE products").
		WithArgs("prod-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectExec("UPDATE orders SET status = 'failed'").
		WithArgs("ord-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := conf.MarkPaid(context.Background(), "ord-1", "pi_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A replayed callback finds the order already paid: the conditional flip
// matches nothing and MarkPaid reports the replay instead of decrementing
// inventory a second time.
func TestMarkPaid_ReplayedCallbackReturnsAlreadyProcessed(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE orders").
		WithArgs("ord-1", "pi_1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("paid"))
	mock.ExpectRollback()

	_, err := conf.MarkPaid(context.Background(), "ord-1", "pi_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaid_UnknownOrderReturnsNotFound(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE orders").
		WithArgs("ord-404", "pi_1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs("ord-404").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := conf.MarkPaid(context.Background(), "ord-404", "pi_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaid_CouponUsageExceededFailsOrder(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE orders").
		WithArgs("ord-1", "pi_1").
		WillReturnRows(paidOrderRow("cpn-1"))
	mock.ExpectQuery("SELECT id, order_id, product_id").
		WithArgs("ord-1").
		WillReturnRows(orderItemRows())
	mock.ExpectExec("UPDATE products").
		WithArgs("prod-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE coupons").
		WithArgs("cpn-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectExec("UPDATE orders SET status = 'failed'").
		WithArgs("ord-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := conf.MarkPaid(context.Background(), "ord-1", "pi_1")
	assert.ErrorIs(t, err, coupons.ErrUsageExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
