package ledger

import (
	"sort"
	"time"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// StudentProfile carries the eligibility inputs of the student whose
// line item is being discounted.
type StudentProfile struct {
	ClassID    string
	Attributes map[string]string
}

// AppliedDiscount records one discount application for the audit trail.
type AppliedDiscount struct {
	DiscountID   string
	DiscountName string
	Amount       float64
}

// DiscountOutcome is the result of resolving a discount set against a
// base amount. Final is never negative.
type DiscountOutcome struct {
	Base    float64
	Final   float64
	Applied []AppliedDiscount
}

// TotalApplied sums the applied discount amounts.
func (o DiscountOutcome) TotalApplied() float64 {
	var total float64
	for _, a := range o.Applied {
		total += a.Amount
	}
	return Round(total)
}

// Eligible reports whether a discount may apply to the given student and
// fee type at the given time. Empty class/fee-type lists mean "all";
// absent ValidUntil or MaxUsage means unbounded.
func Eligible(d models.Discount, profile StudentProfile, feeTypeID string, now time.Time) bool {
	if !d.Active {
		return false
	}
	if len(d.ApplicableClasses) > 0 && !containsString(d.ApplicableClasses, profile.ClassID) {
		return false
	}
	if len(d.ApplicableFeeTypes) > 0 && !containsString(d.ApplicableFeeTypes, feeTypeID) {
		return false
	}
	if now.Before(d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	if d.MaxUsage != nil && d.UsageCount >= *d.MaxUsage {
		return false
	}
	for _, cond := range d.Conditions {
		if profile.Attributes[cond.Field] != cond.Value {
			return false
		}
	}
	return true
}

// ResolveDiscounts applies the eligible subset of candidates to the base
// amount. Eligible discounts are ordered by priority ascending (lower
// number wins), ties broken by id; application stops after the first
// non-stackable discount. Ineligible candidates are skipped silently.
func ResolveDiscounts(base float64, candidates []models.Discount, profile StudentProfile, feeTypeID string, now time.Time) DiscountOutcome {
	outcome := DiscountOutcome{Base: Round(base), Final: Round(base)}
	if base <= 0 {
		return outcome
	}

	eligible := make([]models.Discount, 0, len(candidates))
	for _, d := range candidates {
		if Eligible(d, profile, feeTypeID, now) {
			eligible = append(eligible, d)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority < eligible[j].Priority
		}
		return eligible[i].ID < eligible[j].ID
	})

	remaining := outcome.Final
	for _, d := range eligible {
		if remaining <= 0 {
			break
		}
		var amount float64
		switch d.DiscountType {
		case models.DiscountPercentage:
			amount = remaining * d.Value / 100
		case models.DiscountFixed:
			amount = d.Value
			if amount > remaining {
				amount = remaining
			}
		default:
			continue
		}
		amount = Round(amount)
		if amount <= 0 {
			continue
		}
		remaining = Round(remaining - amount)
		outcome.Applied = append(outcome.Applied, AppliedDiscount{DiscountID: d.ID, DiscountName: d.Name, Amount: amount})
		if !d.Stackable {
			break
		}
	}

	if remaining < 0 {
		remaining = 0
	}
	outcome.Final = remaining
	return outcome
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
