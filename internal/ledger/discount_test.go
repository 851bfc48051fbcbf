package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

var discountNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func activeDiscount(id string, dt models.DiscountType, value float64, priority int, stackable bool) models.Discount {
	return models.Discount{
		ID:           id,
		Name:         "Discount " + id,
		DiscountType: dt,
		Value:        value,
		Priority:     priority,
		Stackable:    stackable,
		ValidFrom:    discountNow.AddDate(-1, 0, 0),
		Active:       true,
	}
}

func TestResolveDiscountsNonStackableBlocksFurther(t *testing.T) {
	a := activeDiscount("a", models.DiscountPercentage, 10, 1, false)
	b := activeDiscount("b", models.DiscountFixed, 500, 2, true)

	out := ResolveDiscounts(10000, []models.Discount{b, a}, StudentProfile{ClassID: "c1"}, "ft1", discountNow)
	require.Len(t, out.Applied, 1)
	assert.Equal(t, "a", out.Applied[0].DiscountID)
	assert.Equal(t, 1000.0, out.Applied[0].Amount)
	assert.Equal(t, 9000.0, out.Final)
}

func TestResolveDiscountsStackableChain(t *testing.T) {
	a := activeDiscount("a", models.DiscountPercentage, 10, 1, true)
	b := activeDiscount("b", models.DiscountFixed, 500, 2, true)
	c := activeDiscount("c", models.DiscountPercentage, 5, 3, false)
	d := activeDiscount("d", models.DiscountFixed, 100, 4, true)

	out := ResolveDiscounts(10000, []models.Discount{d, c, b, a}, StudentProfile{ClassID: "c1"}, "ft1", discountNow)
	// a: 1000 off 10000, b: 500 off 9000, c: 425 off 8500 then stops.
	require.Len(t, out.Applied, 3)
	assert.Equal(t, []string{"a", "b", "c"}, appliedIDs(out))
	assert.Equal(t, 425.0, out.Applied[2].Amount)
	assert.Equal(t, 8075.0, out.Final)
	assert.Equal(t, 1925.0, out.TotalApplied())
}

func TestResolveDiscountsPriorityTieBrokenByID(t *testing.T) {
	a := activeDiscount("z-late", models.DiscountFixed, 200, 1, false)
	b := activeDiscount("a-first", models.DiscountFixed, 300, 1, false)

	out := ResolveDiscounts(1000, []models.Discount{a, b}, StudentProfile{}, "ft1", discountNow)
	require.Len(t, out.Applied, 1)
	assert.Equal(t, "a-first", out.Applied[0].DiscountID)
	assert.Equal(t, 700.0, out.Final)
}

func TestResolveDiscountsFixedNeverGoesNegative(t *testing.T) {
	a := activeDiscount("a", models.DiscountFixed, 5000, 1, true)
	b := activeDiscount("b", models.DiscountFixed, 5000, 2, true)

	out := ResolveDiscounts(3000, []models.Discount{a, b}, StudentProfile{}, "ft1", discountNow)
	require.Len(t, out.Applied, 1)
	assert.Equal(t, 3000.0, out.Applied[0].Amount)
	assert.Zero(t, out.Final)
}

func TestResolveDiscountsNoEligibleIsIdentity(t *testing.T) {
	expired := activeDiscount("a", models.DiscountPercentage, 50, 1, true)
	until := discountNow.AddDate(0, -1, 0)
	expired.ValidUntil = &until

	out := ResolveDiscounts(2500, []models.Discount{expired}, StudentProfile{}, "ft1", discountNow)
	assert.Empty(t, out.Applied)
	assert.Equal(t, 2500.0, out.Final)
}

func TestResolveDiscountsDeterministic(t *testing.T) {
	a := activeDiscount("a", models.DiscountPercentage, 7.5, 1, true)
	b := activeDiscount("b", models.DiscountFixed, 120, 2, true)
	profile := StudentProfile{ClassID: "c1"}

	first := ResolveDiscounts(4321.99, []models.Discount{a, b}, profile, "ft1", discountNow)
	second := ResolveDiscounts(4321.99, []models.Discount{a, b}, profile, "ft1", discountNow)
	assert.Equal(t, first, second)
}

func TestEligible(t *testing.T) {
	maxUsage := 2
	until := discountNow.AddDate(0, 1, 0)
	base := models.Discount{
		ID:                 "d1",
		DiscountType:       models.DiscountPercentage,
		Value:              10,
		ApplicableClasses:  []string{"c1", "c2"},
		ApplicableFeeTypes: []string{"ft1"},
		ValidFrom:          discountNow.AddDate(0, -1, 0),
		ValidUntil:         &until,
		MaxUsage:           &maxUsage,
		UsageCount:         1,
		Conditions:         models.DiscountConditions{{Field: "category", Value: "staff_ward"}},
		Active:             true,
	}
	profile := StudentProfile{ClassID: "c1", Attributes: map[string]string{"category": "staff_ward"}}

	assert.True(t, Eligible(base, profile, "ft1", discountNow))

	wrongClass := profile
	wrongClass.ClassID = "c9"
	assert.False(t, Eligible(base, wrongClass, "ft1", discountNow))

	assert.False(t, Eligible(base, profile, "ft9", discountNow))

	exhausted := base
	exhausted.UsageCount = 2
	assert.False(t, Eligible(exhausted, profile, "ft1", discountNow))

	unbounded := base
	unbounded.ValidUntil = nil
	unbounded.MaxUsage = nil
	unbounded.UsageCount = 99
	assert.True(t, Eligible(unbounded, profile, "ft1", discountNow.AddDate(5, 0, 0)))

	unmet := profile
	unmet.Attributes = map[string]string{"category": "general"}
	assert.False(t, Eligible(base, unmet, "ft1", discountNow))

	inactive := base
	inactive.Active = false
	assert.False(t, Eligible(inactive, profile, "ft1", discountNow))
}

func appliedIDs(out DiscountOutcome) []string {
	ids := make([]string, len(out.Applied))
	for i, a := range out.Applied {
		ids[i] = a.DiscountID
	}
	return ids
}
