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

func newDiscountMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func discountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "category", "discount_type", "value", "applicable_classes", "applicable_fee_types", "valid_from", "valid_until", "max_usage", "usage_count", "auto_apply", "stackable", "priority", "conditions", "active", "created_at", "updated_at"})
}

func TestDiscountRepositoryListCandidates(t *testing.T) {
	db, mock, cleanup := newDiscountMock(t)
	defer cleanup()
	repo := NewDiscountRepository(db)

	rows := discountRows().
		AddRow("disc-1", "Sibling Discount", "family", models.DiscountPercentage, 10.0, []byte("{}"), []byte("{}"), time.Now(), nil, nil, 0, true, false, 1, []byte(`[{"field":"sibling","value":"true"}]`), true, time.Now(), time.Now()).
		AddRow("disc-2", "Early Bird", "seasonal", models.DiscountFixed, 500.0, []byte("{class-1}"), []byte("{}"), time.Now(), nil, nil, 0, true, true, 2, []byte(`[]`), true, time.Now(), time.Now())
	mock.ExpectQuery("FROM discounts\\s+WHERE active = TRUE AND \\(cardinality\\(applicable_classes\\) = 0 OR \\$1 = ANY\\(applicable_classes\\)\\) AND auto_apply = TRUE").
		WithArgs("class-1").
		WillReturnRows(rows)

	discounts, err := repo.ListCandidates(context.Background(), "class-1", true)
	require.NoError(t, err)
	require.Len(t, discounts, 2)
	assert.Equal(t, "Sibling Discount", discounts[0].Name)
	require.Len(t, discounts[0].Conditions, 1)
	assert.Equal(t, "sibling", discounts[0].Conditions[0].Field)
	assert.Equal(t, models.DiscountFixed, discounts[1].DiscountType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscountRepositoryIncrementUsage(t *testing.T) {
	db, mock, cleanup := newDiscountMock(t)
	defer cleanup()
	repo := NewDiscountRepository(db)

	mock.ExpectExec("UPDATE discounts SET usage_count = usage_count \\+ 1").
		WithArgs("disc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementUsage(context.Background(), "disc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscountRepositoryUpdateNotFound(t *testing.T) {
	db, mock, cleanup := newDiscountMock(t)
	defer cleanup()
	repo := NewDiscountRepository(db)

	mock.ExpectExec("UPDATE discounts SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Discount{ID: "missing"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
