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

func newFeeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func feeLineRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "fee_group_id", "fee_type_id", "fee_type_name", "installment_name", "amount", "late_fee", "due_amount", "due_date", "status", "paid_at", "created_at", "updated_at"})
}

func TestFeeRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	rows := feeLineRows().
		AddRow("line-1", "student-1", "group-1", "type-1", "Tuition Fee", "Term 1", 10000.0, 0.0, 10000.0, time.Now(), models.FeeStatusPending, nil, time.Now(), time.Now())
	mock.ExpectQuery("FROM fee_line_items f JOIN fee_types ft ON ft.id = f.fee_type_id\\s+WHERE f.student_id = \\$1").
		WithArgs("student-1").
		WillReturnRows(rows)

	items, err := repo.ListByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tuition Fee", items[0].FeeTypeName)
	assert.Equal(t, 10000.0, items[0].DueAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryGetByIDsEmpty(t *testing.T) {
	db, _, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	items, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestFeeRepositoryCreateBatch(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fee_line_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	items := []models.FeeLineItem{{
		StudentID:       "student-1",
		FeeGroupID:      "group-1",
		FeeTypeID:       "type-1",
		InstallmentName: "Term 1",
		Amount:          10000,
		DueAmount:       10000,
		DueDate:         time.Now(),
		Status:          models.FeeStatusPending,
	}}
	err := repo.CreateBatch(context.Background(), items)
	require.NoError(t, err)
	assert.NotEmpty(t, items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryUpdateAssessment(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectExec("UPDATE fee_line_items SET late_fee = \\$2, due_amount = \\$3").
		WithArgs("line-1", 200.0, 10200.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAssessment(context.Background(), "line-1", 200, 10200)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
