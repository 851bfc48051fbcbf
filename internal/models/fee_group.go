package models

import (
	"time"

	"github.com/lib/pq"
)

// InstallmentType determines how many due dates a fee group carries.
type InstallmentType string

const (
	InstallmentSingle  InstallmentType = "single"
	InstallmentTwo     InstallmentType = "two"
	InstallmentThree   InstallmentType = "three"
	InstallmentMonthly InstallmentType = "monthly"
)

// Cardinality returns the number of due dates the installment type requires.
// Monthly groups carry a single rolling anchor date.
func (t InstallmentType) Cardinality() int {
	switch t {
	case InstallmentTwo:
		return 2
	case InstallmentThree:
		return 3
	default:
		return 1
	}
}

// LateFeeType determines how late fees accrue on overdue line items.
type LateFeeType string

const (
	LateFeeFixed      LateFeeType = "fixed"
	LateFeePercentage LateFeeType = "percentage"
	LateFeeDaily      LateFeeType = "daily"
)

// FeeGroupItem binds a fee type to a group with an overriding amount.
type FeeGroupItem struct {
	ID          string  `db:"id" json:"id"`
	FeeGroupID  string  `db:"fee_group_id" json:"fee_group_id"`
	FeeTypeID   string  `db:"fee_type_id" json:"fee_type_id"`
	FeeTypeName string  `db:"fee_type_name" json:"fee_type_name"`
	Amount      float64 `db:"amount" json:"amount"`
}

// FeeGroup bundles fee types under a shared due-date and late-fee policy
// for an academic year and a set of classes.
type FeeGroup struct {
	ID                string          `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	AcademicYear      string          `db:"academic_year" json:"academic_year"`
	ApplicableClasses pq.StringArray  `db:"applicable_classes" json:"applicable_classes"`
	InstallmentType   InstallmentType `db:"installment_type" json:"installment_type"`
	DueDate1          *time.Time      `db:"due_date_1" json:"due_date_1,omitempty"`
	DueDate2          *time.Time      `db:"due_date_2" json:"due_date_2,omitempty"`
	DueDate3          *time.Time      `db:"due_date_3" json:"due_date_3,omitempty"`
	LateFeeApplicable bool            `db:"late_fee_applicable" json:"late_fee_applicable"`
	LateFeeType       LateFeeType     `db:"late_fee_type" json:"late_fee_type"`
	LateFeeAmount     float64         `db:"late_fee_amount" json:"late_fee_amount"`
	ConcessionIDs     pq.StringArray  `db:"concession_ids" json:"concession_ids"`
	Items             []FeeGroupItem  `db:"-" json:"items"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// DueDates returns the populated due dates in installment order.
func (g FeeGroup) DueDates() []time.Time {
	dates := make([]time.Time, 0, 3)
	for _, d := range []*time.Time{g.DueDate1, g.DueDate2, g.DueDate3} {
		if d != nil {
			dates = append(dates, *d)
		}
	}
	return dates
}

// AppliesToClass reports whether the group covers the given class.
// An empty class list means the group applies to all classes.
func (g FeeGroup) AppliesToClass(classID string) bool {
	if len(g.ApplicableClasses) == 0 {
		return true
	}
	for _, c := range g.ApplicableClasses {
		if c == classID {
			return true
		}
	}
	return false
}

// FeeGroupFilter captures listing criteria for fee groups.
type FeeGroupFilter struct {
	AcademicYear string
	ClassID      string
	Search       string
	Page         int
	PageSize     int
}
