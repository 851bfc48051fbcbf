package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

func TestAssessLateFeeFixed(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	a, err := AssessLateFee(5000, dueDate, models.FeeStatusPending, LateFeePolicy{Applicable: true, Type: models.LateFeeFixed, Amount: 100}, now)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.LateFee)
	assert.Equal(t, 5100.0, a.DueAmount)
	assert.True(t, a.IsOverdue)
	assert.False(t, a.IsDueToday)
}

func TestAssessLateFeePercentage(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := dueDate.AddDate(0, 0, 10)

	a, err := AssessLateFee(4000, dueDate, models.FeeStatusPending, LateFeePolicy{Applicable: true, Type: models.LateFeePercentage, Amount: 2.5}, now)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.LateFee)
	assert.Equal(t, 4100.0, a.DueAmount)
}

func TestAssessLateFeeDaily(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		now     time.Time
		lateFee float64
	}{
		{"before due date", dueDate.AddDate(0, 0, -3), 0},
		{"on due date", dueDate, 0},
		{"hours overdue", dueDate.Add(6 * time.Hour), 0},
		{"one day overdue", dueDate.AddDate(0, 0, 1), 10},
		{"ten days overdue", dueDate.AddDate(0, 0, 10), 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := AssessLateFee(2000, dueDate, models.FeeStatusPending, LateFeePolicy{Applicable: true, Type: models.LateFeeDaily, Amount: 10}, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.lateFee, a.LateFee)
			assert.Equal(t, Round(2000+tc.lateFee), a.DueAmount)
		})
	}
}

func TestAssessLateFeeDailyMonotonic(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Applicable: true, Type: models.LateFeeDaily, Amount: 25}
	prev := 0.0
	for days := 1; days <= 60; days++ {
		a, err := AssessLateFee(1000, dueDate, models.FeeStatusPending, policy, dueDate.AddDate(0, 0, days))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.LateFee, prev)
		prev = a.LateFee
	}
}

func TestAssessLateFeeNotApplicable(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := dueDate.AddDate(0, 1, 0)

	a, err := AssessLateFee(5000, dueDate, models.FeeStatusPending, LateFeePolicy{Applicable: false, Type: models.LateFeeFixed, Amount: 100}, now)
	require.NoError(t, err)
	assert.Zero(t, a.LateFee)
	assert.Equal(t, 5000.0, a.DueAmount)
	assert.True(t, a.IsOverdue)
}

func TestAssessLateFeePaidItemNeverAccrues(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := dueDate.AddDate(0, 2, 0)

	a, err := AssessLateFee(5000, dueDate, models.FeeStatusPaid, LateFeePolicy{Applicable: true, Type: models.LateFeeDaily, Amount: 50}, now)
	require.NoError(t, err)
	assert.Zero(t, a.LateFee)
	assert.Equal(t, 5000.0, a.DueAmount)
	assert.False(t, a.IsOverdue)
}

func TestAssessLateFeeDueToday(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	a, err := AssessLateFee(1500, dueDate, models.FeeStatusPending, LateFeePolicy{}, dueDate.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.True(t, a.IsDueToday)
	assert.False(t, a.IsOverdue)

	a, err = AssessLateFee(1500, dueDate, models.FeeStatusPending, LateFeePolicy{}, dueDate.Add(30*time.Hour))
	require.NoError(t, err)
	assert.False(t, a.IsDueToday)
	assert.True(t, a.IsOverdue)
}

func TestAssessLateFeeRejectsNegativeInputs(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := dueDate.AddDate(0, 0, 1)

	_, err := AssessLateFee(-1, dueDate, models.FeeStatusPending, LateFeePolicy{}, now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidFeeDefinition))

	_, err = AssessLateFee(100, dueDate, models.FeeStatusPending, LateFeePolicy{Applicable: true, Type: models.LateFeeFixed, Amount: -5}, now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidFeeDefinition))
}

func TestAssessLateFeeRoundsToMinorUnits(t *testing.T) {
	dueDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	now := dueDate.AddDate(0, 0, 5)

	a, err := AssessLateFee(999.99, dueDate, models.FeeStatusPending, LateFeePolicy{Applicable: true, Type: models.LateFeePercentage, Amount: 3.333}, now)
	require.NoError(t, err)
	assert.Equal(t, 33.33, a.LateFee)
	assert.Equal(t, Round(a.Amount+a.LateFee), a.DueAmount)
}
