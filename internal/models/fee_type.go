package models

import "time"

// FeeCategory groups fee types for reporting.
type FeeCategory string

const (
	FeeCategoryTuition     FeeCategory = "TUITION"
	FeeCategoryTransport   FeeCategory = "TRANSPORT"
	FeeCategoryLibrary     FeeCategory = "LIBRARY"
	FeeCategoryLaboratory  FeeCategory = "LABORATORY"
	FeeCategorySports      FeeCategory = "SPORTS"
	FeeCategoryExamination FeeCategory = "EXAMINATION"
	FeeCategoryOther       FeeCategory = "OTHER"
)

// FeeType defines a kind of charge. Admin-authored reference data.
type FeeType struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	Category      FeeCategory `db:"category" json:"category"`
	DefaultAmount float64     `db:"default_amount" json:"default_amount"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// FeeTypeFilter captures listing criteria for fee types.
type FeeTypeFilter struct {
	Category *FeeCategory
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
