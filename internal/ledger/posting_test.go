package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

func TestValidatePaymentFullCover(t *testing.T) {
	net, err := ValidatePayment([]PaymentLine{{FeeLineItemID: "f1", DueAmount: 2050, Apply: 2050}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2050.0, net)
}

func TestValidatePaymentRejectsOverpayment(t *testing.T) {
	_, err := ValidatePayment([]PaymentLine{{FeeLineItemID: "f1", DueAmount: 2050, Apply: 2500}}, 0)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrOverpaymentRejected))
}

func TestValidatePaymentRejectsExcessDiscount(t *testing.T) {
	_, err := ValidatePayment([]PaymentLine{{FeeLineItemID: "f1", DueAmount: 2000, Apply: 1000}}, 1500)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidNetAmount))
}

func TestValidatePaymentDiscountedNet(t *testing.T) {
	lines := []PaymentLine{
		{FeeLineItemID: "f1", DueAmount: 2000, Apply: 2000},
		{FeeLineItemID: "f2", DueAmount: 1500, Apply: 750.50},
	}
	net, err := ValidatePayment(lines, 250.50)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, net)
}

func TestValidatePaymentRejectsNegativeInputs(t *testing.T) {
	_, err := ValidatePayment([]PaymentLine{{FeeLineItemID: "f1", DueAmount: 100, Apply: -1}}, 0)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = ValidatePayment([]PaymentLine{{FeeLineItemID: "f1", DueAmount: 100, Apply: 50}}, -10)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = ValidatePayment(nil, 0)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, models.FeeStatusPaid, NextStatus(2050, 2050))
	assert.Equal(t, models.FeeStatusPartiallyPaid, NextStatus(2050, 1000))
	assert.Equal(t, models.FeeStatusPending, NextStatus(2050, 0))
}

func TestRemainingDueConservation(t *testing.T) {
	cases := []struct{ due, applied float64 }{
		{2050, 2050},
		{2050, 1000},
		{999.99, 333.33},
		{100, 0.01},
	}
	for _, tc := range cases {
		remaining := RemainingDue(tc.due, tc.applied)
		assert.GreaterOrEqual(t, remaining, 0.0)
		assert.Equal(t, Round(tc.due-tc.applied), remaining)
	}
}
