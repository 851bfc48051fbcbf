package ledger

import (
	"fmt"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

// PaymentLine pairs a line item's current due amount with the amount the
// operator wants to apply against it.
type PaymentLine struct {
	FeeLineItemID string
	DueAmount     float64
	Apply         float64
}

// ValidatePayment checks a proposed payment against the current line
// state and returns the net collectable amount. Zero-apply lines are
// tolerated here; the poster excludes them before persisting.
func ValidatePayment(lines []PaymentLine, discountAmount float64) (float64, error) {
	if len(lines) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "payment must reference at least one line item")
	}
	if discountAmount < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "discount amount must not be negative")
	}

	var gross float64
	for _, line := range lines {
		if line.Apply < 0 {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("negative amount for line item %s", line.FeeLineItemID))
		}
		if Round(line.Apply) > Round(line.DueAmount) {
			return 0, appErrors.Clone(appErrors.ErrOverpaymentRejected,
				fmt.Sprintf("amount %.2f exceeds due %.2f on line item %s", line.Apply, line.DueAmount, line.FeeLineItemID))
		}
		gross += line.Apply
	}
	gross = Round(gross)

	if Round(discountAmount) > gross {
		return 0, appErrors.Clone(appErrors.ErrInvalidNetAmount,
			fmt.Sprintf("discount %.2f exceeds collected amount %.2f", discountAmount, gross))
	}

	net := Round(gross - discountAmount)
	if net < 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidNetAmount, "net amount must not be negative")
	}
	return net, nil
}

// NextStatus derives the post-payment status of a line item.
func NextStatus(due, applied float64) models.FeeStatus {
	switch {
	case Round(applied) >= Round(due):
		return models.FeeStatusPaid
	case applied > 0:
		return models.FeeStatusPartiallyPaid
	default:
		return models.FeeStatusPending
	}
}

// RemainingDue returns the due amount left on a line item after a
// partial payment, floored at zero.
func RemainingDue(due, applied float64) float64 {
	remaining := Round(due - applied)
	if remaining < 0 {
		return 0
	}
	return remaining
}
