package ledger

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

// LateFeePolicy is the owning fee group's late-fee configuration.
type LateFeePolicy struct {
	Applicable bool
	Type       models.LateFeeType
	Amount     float64
}

// Assessment is the derived payable position of one line item.
type Assessment struct {
	Amount     float64
	LateFee    float64
	DueAmount  float64
	IsOverdue  bool
	IsDueToday bool
}

// AssessLateFee computes the due amount for a line item from its base
// amount, due date and the group's late-fee policy. Fully paid items
// never re-accrue: the stored amounts are returned untouched.
func AssessLateFee(amount float64, dueDate time.Time, status models.FeeStatus, policy LateFeePolicy, now time.Time) (Assessment, error) {
	if amount < 0 {
		return Assessment{}, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, fmt.Sprintf("negative amount %.2f", amount))
	}
	if policy.Amount < 0 {
		return Assessment{}, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, fmt.Sprintf("negative late fee amount %.2f", policy.Amount))
	}

	a := Assessment{
		Amount:     Round(amount),
		IsOverdue:  now.After(dueDate) && status != models.FeeStatusPaid,
		IsDueToday: absDuration(now.Sub(dueDate)) < 24*time.Hour,
	}

	if status == models.FeeStatusPaid {
		a.DueAmount = a.Amount
		return a, nil
	}

	if policy.Applicable && now.After(dueDate) {
		switch policy.Type {
		case models.LateFeeFixed:
			a.LateFee = policy.Amount
		case models.LateFeePercentage:
			a.LateFee = amount * policy.Amount / 100
		case models.LateFeeDaily:
			days := int(now.Sub(dueDate).Hours() / 24)
			if days < 0 {
				days = 0
			}
			a.LateFee = policy.Amount * float64(days)
		default:
			return Assessment{}, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, fmt.Sprintf("unknown late fee type %q", policy.Type))
		}
	}

	a.LateFee = Round(a.LateFee)
	a.DueAmount = Round(a.Amount + a.LateFee)
	return a, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
