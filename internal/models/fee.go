package models

import "time"

// FeeStatus tracks the payment state of a line item.
type FeeStatus string

const (
	FeeStatusPending       FeeStatus = "pending"
	FeeStatusPaid          FeeStatus = "paid"
	FeeStatusPartiallyPaid FeeStatus = "partially_paid"
)

// FeeLineItem is one payable obligation for one student: a fee type plus
// installment instance. DueAmount always equals Amount + LateFee rounded
// to two decimals.
type FeeLineItem struct {
	ID              string     `db:"id" json:"id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	FeeGroupID      string     `db:"fee_group_id" json:"fee_group_id"`
	FeeTypeID       string     `db:"fee_type_id" json:"fee_type_id"`
	FeeTypeName     string     `db:"fee_type_name" json:"fee_type_name"`
	InstallmentName string     `db:"installment_name" json:"installment_name"`
	Amount          float64    `db:"amount" json:"amount"`
	LateFee         float64    `db:"late_fee" json:"late_fee"`
	DueAmount       float64    `db:"due_amount" json:"due_amount"`
	DueDate         time.Time  `db:"due_date" json:"due_date"`
	IsOverdue       bool       `db:"-" json:"is_overdue"`
	IsDueToday      bool       `db:"-" json:"is_due_today"`
	Status          FeeStatus  `db:"status" json:"status"`
	PaidAt          *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeLineItemFilter captures listing criteria for line items.
type FeeLineItemFilter struct {
	StudentID   string
	FeeGroupID  string
	Status      *FeeStatus
	OverdueOnly bool
	Page        int
	PageSize    int
}

// AppliedDiscountInfo records one discount application for receipts.
type AppliedDiscountInfo struct {
	DiscountID   string  `json:"discount_id"`
	DiscountName string  `json:"discount_name"`
	Amount       float64 `json:"amount"`
}

// StudentDues aggregates a student's payable position at a point in time.
type StudentDues struct {
	StudentID        string                `json:"student_id"`
	StudentName      string                `json:"student_name"`
	ClassID          string                `json:"class_id"`
	AcademicYear     string                `json:"academic_year"`
	AsOf             time.Time             `json:"as_of"`
	Items            []FeeLineItem         `json:"items"`
	AppliedDiscounts []AppliedDiscountInfo `json:"applied_discounts,omitempty"`
	CarryForwardDue  float64               `json:"carry_forward_due"`
	TotalAmount      float64               `json:"total_amount"`
	TotalLateFee     float64               `json:"total_late_fee"`
	TotalDiscount    float64               `json:"total_discount"`
	TotalDue         float64               `json:"total_due"`
}
