package order

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

var orderColumns = []string{
	"id", "user_id", "address_id", "address", "subtotal", "tax_amount", "amount", "currency",
	"payment_method", "status", "payment_reference", "payment_verified_at", "created_at", "updated_at",
}

var lineColumns = []string{"order_id", "product_id", "name", "unit_price", "quantity", "subtotal"}

func newMockRepo(t *testing.T) (Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgres(mock, nil), mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:            "5f1c3a5e-0000-4000-8000-000000000001",
		BuyerID:       "buyer-1",
		AddressID:     "addr-1",
		Address:       domain.Address{ID: "addr-1", FullName: "Sita Sharma", City: "Kathmandu"},
		Subtotal:      1000,
		TaxAmount:     20,
		Amount:        1020,
		Currency:      "npr",
		PaymentMethod: domain.PaymentEsewa,
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Lines: []domain.PricedLine{
			{ProductID: "P1", Name: "Headphones", UnitPrice: 500, Quantity: 2, Subtotal: 1000},
		},
	}
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.BuyerID, o.AddressID, pgxmock.AnyArg(), o.Subtotal, o.TaxAmount, o.Amount, o.Currency,
			"ESEWA", "Pending", o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_lines").
		WithArgs(o.ID, 1, "P1", "Headphones", int64(500), 2, int64(1000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateLineFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_lines").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order line 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := sampleOrder()
	verifiedAt := o.CreatedAt.Add(time.Minute)
	ref := "REF-1"

	mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1::uuid`).
		WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(orderColumns).AddRow(
			o.ID, o.BuyerID, o.AddressID, []byte(`{"id":"addr-1","fullName":"Sita Sharma","city":"Kathmandu"}`),
			o.Subtotal, o.TaxAmount, o.Amount, o.Currency, "ESEWA", "Confirmed", &ref, &verifiedAt, o.CreatedAt, verifiedAt,
		))
	mock.ExpectQuery(`SELECT (.+) FROM order_lines WHERE order_id = ANY\(\$1::text\[\]::uuid\[\]\)`).
		WithArgs([]string{o.ID}).
		WillReturnRows(pgxmock.NewRows(lineColumns).AddRow(o.ID, "P1", "Headphones", int64(500), 2, int64(1000)))

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.Equal(t, domain.PaymentEsewa, got.PaymentMethod)
	assert.Equal(t, "REF-1", got.PaymentReference)
	assert.Equal(t, "Kathmandu", got.Address.City)
	assert.Equal(t, o.Lines, got.Lines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	missing := "5f1c3a5e-0000-4000-8000-0000000000ff"
	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(missing).
		WillReturnRows(pgxmock.NewRows(orderColumns))

	_, err := repo.GetByID(context.Background(), missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Not a uuid: no row can match, so the database is not asked.
	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListByBuyerAttachesLines(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE user_id = \\$1").
		WithArgs("buyer-1").
		WillReturnRows(pgxmock.NewRows(orderColumns).
			AddRow("o2", "buyer-1", "", []byte(`{}`), int64(300), int64(6), int64(306), "npr", "COD", "Placed", nil, nil, now, now).
			AddRow("o1", "buyer-1", "", []byte(`{}`), int64(100), int64(2), int64(102), "npr", "STRIPE", "Pending", nil, nil, now, now))
	mock.ExpectQuery("SELECT (.+) FROM order_lines").
		WithArgs([]string{"o2", "o1"}).
		WillReturnRows(pgxmock.NewRows(lineColumns).
			AddRow("o1", "P9", "Cable", int64(100), 1, int64(100)).
			AddRow("o2", "P2", "Mouse", int64(150), 2, int64(300)))

	got, err := repo.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o2", got[0].ID)
	assert.Equal(t, domain.OrderStatusPlaced, got[0].Status)
	require.Len(t, got[0].Lines, 1)
	assert.Equal(t, "Mouse", got[0].Lines[0].Name)
	assert.Equal(t, "Cable", got[1].Lines[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListAllEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM orders ORDER BY created_at DESC").
		WillReturnRows(pgxmock.NewRows(orderColumns))

	got, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ConfirmPaymentIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Now().UTC()
	id := sampleOrder().ID

	mock.ExpectExec(`UPDATE orders (.+) WHERE id = \$1::uuid AND status = 'Pending'`).
		WithArgs(id, "REF-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE orders").
		WithArgs(id, "REF-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := repo.ConfirmPayment(context.Background(), id, "REF-1", at)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.ConfirmPayment(context.Background(), id, "REF-1", at)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.ConfirmPayment(context.Background(), "o1", "REF-1", at)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
