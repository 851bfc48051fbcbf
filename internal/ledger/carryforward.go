package ledger

import (
	"fmt"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

// CarryForwardNet is the netted position of a carry-forward record.
type CarryForwardNet struct {
	OriginalTotal float64
	TotalAdjusted float64
	FinalPayable  float64
}

// NetCarryForward nets prior-year items against adjustments. The
// adjusted total may never exceed the original total; the final payable
// is floored at zero.
func NetCarryForward(items []models.CarryForwardItem, adjustments []models.CarryForwardAdjustment) (CarryForwardNet, error) {
	var original float64
	for _, item := range items {
		if item.Amount < 0 {
			return CarryForwardNet{}, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, fmt.Sprintf("negative carry-forward item amount %.2f", item.Amount))
		}
		original += item.Amount
	}
	var adjusted float64
	for _, adj := range adjustments {
		if adj.Amount < 0 {
			return CarryForwardNet{}, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, fmt.Sprintf("negative adjustment amount %.2f", adj.Amount))
		}
		adjusted += adj.Amount
	}

	original = Round(original)
	adjusted = Round(adjusted)
	if adjusted > original {
		return CarryForwardNet{}, appErrors.Clone(appErrors.ErrAdjustmentExceedsBalance,
			fmt.Sprintf("adjustments %.2f exceed original total %.2f", adjusted, original))
	}

	final := Round(original - adjusted)
	if final < 0 {
		final = 0
	}
	return CarryForwardNet{OriginalTotal: original, TotalAdjusted: adjusted, FinalPayable: final}, nil
}

// ValidateAdjustment checks that a proposed adjustment fits in the
// remaining balance of the record.
func ValidateAdjustment(items []models.CarryForwardItem, prior []models.CarryForwardAdjustment, amount float64) error {
	if amount <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "adjustment amount must be positive")
	}
	net, err := NetCarryForward(items, prior)
	if err != nil {
		return err
	}
	if Round(amount) > net.FinalPayable {
		return appErrors.Clone(appErrors.ErrAdjustmentExceedsBalance,
			fmt.Sprintf("adjustment %.2f exceeds remaining balance %.2f", amount, net.FinalPayable))
	}
	return nil
}

// CanTransition reports whether a carry-forward status transition is
// allowed. Processed and cancelled are terminal.
func CanTransition(from, to models.CarryForwardStatus) bool {
	switch to {
	case models.CarryForwardAdjusted:
		return from == models.CarryForwardPending || from == models.CarryForwardAdjusted
	case models.CarryForwardProcessed:
		return from == models.CarryForwardPending || from == models.CarryForwardAdjusted
	case models.CarryForwardCancelled:
		return from == models.CarryForwardPending
	default:
		return false
	}
}

// BulkDiscountAmount computes the uniform percentage discount applied to
// one record during bulk processing, bounded by the remaining balance
// after prior per-student adjustments.
func BulkDiscountAmount(items []models.CarryForwardItem, prior []models.CarryForwardAdjustment, percentage float64) (float64, error) {
	if percentage < 0 || percentage > 100 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("bulk discount percentage %.2f out of range", percentage))
	}
	net, err := NetCarryForward(items, prior)
	if err != nil {
		return 0, err
	}
	amount := Round(net.OriginalTotal * percentage / 100)
	if amount > net.FinalPayable {
		amount = net.FinalPayable
	}
	return amount, nil
}
