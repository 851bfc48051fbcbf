package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DiscountType determines how a discount reduces the payable amount.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DiscountCondition gates eligibility on a student attribute, e.g.
// {Field: "category", Value: "staff_ward"}.
type DiscountCondition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// DiscountConditions is stored as a JSONB column.
type DiscountConditions []DiscountCondition

// Value implements driver.Valuer.
func (c DiscountConditions) Value() (driver.Value, error) {
	if len(c) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *DiscountConditions) Scan(src interface{}) error {
	if src == nil {
		*c = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported conditions column type %T", src)
	}
	return json.Unmarshal(raw, c)
}

// Discount is a concession rule reducing a student's payable amount.
// Empty class or fee-type lists mean the rule applies to all; a nil
// ValidUntil or MaxUsage means unbounded.
type Discount struct {
	ID                 string             `db:"id" json:"id"`
	Name               string             `db:"name" json:"name"`
	Category           string             `db:"category" json:"category"`
	DiscountType       DiscountType       `db:"discount_type" json:"discount_type"`
	Value              float64            `db:"value" json:"value"`
	ApplicableClasses  pq.StringArray     `db:"applicable_classes" json:"applicable_classes"`
	ApplicableFeeTypes pq.StringArray     `db:"applicable_fee_types" json:"applicable_fee_types"`
	ValidFrom          time.Time          `db:"valid_from" json:"valid_from"`
	ValidUntil         *time.Time         `db:"valid_until" json:"valid_until,omitempty"`
	MaxUsage           *int               `db:"max_usage" json:"max_usage,omitempty"`
	UsageCount         int                `db:"usage_count" json:"usage_count"`
	AutoApply          bool               `db:"auto_apply" json:"auto_apply"`
	Stackable          bool               `db:"stackable" json:"stackable"`
	Priority           int                `db:"priority" json:"priority"`
	Conditions         DiscountConditions `db:"conditions" json:"conditions,omitempty"`
	Active             bool               `db:"active" json:"active"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// DiscountFilter captures listing criteria for discounts.
type DiscountFilter struct {
	ClassID   string
	FeeTypeID string
	AutoApply *bool
	Active    *bool
	Search    string
	Page      int
	PageSize  int
}
