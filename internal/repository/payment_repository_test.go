package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryNextReceiptSequence(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("INSERT INTO receipt_sequences").
		WithArgs("20260831").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))

	seq, err := repo.NextReceiptSequence(context.Background(), "20260831")
	require.NoError(t, err)
	assert.Equal(t, 7, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryPost(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM fee_line_items WHERE id = ANY\\(\\$1\\) FOR UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payment_allocations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE fee_line_items SET due_amount = \\$2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paidAt := time.Now()
	payment := &models.Payment{
		StudentID:     "student-1",
		ReceiptNumber: "RCP-20260831-0007",
		Mode:          models.PaymentModeUPI,
		TotalAmount:   10000,
		Status:        models.PaymentStatusCompleted,
		CollectedBy:   "user-1",
		ProcessedAt:   paidAt,
		Allocations: []models.PaymentAllocation{
			{FeeLineItemID: "line-1", Amount: 10000},
		},
	}
	updates := []FeeLineUpdate{
		{ID: "line-1", DueAmount: 0, Status: models.FeeStatusPaid, PaidAt: &paidAt},
	}
	err := repo.Post(context.Background(), payment, updates)
	require.NoError(t, err)
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, payment.ID, payment.Allocations[0].PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryPostRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM fee_line_items WHERE id = ANY\\(\\$1\\) FOR UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	payment := &models.Payment{StudentID: "student-1", ReceiptNumber: "RCP-20260831-0008", Status: models.PaymentStatusCompleted}
	err := repo.Post(context.Background(), payment, []FeeLineUpdate{{ID: "line-1"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindByIdempotencyKey(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	key := "req-abc"
	rows := sqlmock.NewRows([]string{"id", "student_id", "student_name", "receipt_number", "mode", "discount_amount", "discount_reason", "total_amount", "status", "idempotency_key", "collected_by", "processed_at", "created_at"}).
		AddRow("pay-1", "student-1", "Student", "RCP-20260831-0001", models.PaymentModeCash, 0.0, "", 5000.0, models.PaymentStatusCompleted, &key, "user-1", time.Now(), time.Now())
	mock.ExpectQuery("FROM payments p JOIN students s ON s.id = p.student_id WHERE p.idempotency_key = \\$1").
		WithArgs(key).
		WillReturnRows(rows)
	mock.ExpectQuery("FROM payment_allocations pa").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "fee_line_item_id", "fee_type_name", "amount"}).
			AddRow("alloc-1", "pay-1", "line-1", "Tuition Fee", 5000.0))

	payment, err := repo.FindByIdempotencyKey(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "RCP-20260831-0001", payment.ReceiptNumber)
	require.Len(t, payment.Allocations, 1)
	assert.Equal(t, "Tuition Fee", payment.Allocations[0].FeeTypeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
