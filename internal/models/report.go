package models

import "time"

// CollectionReportFilter scopes a fee collection report.
type CollectionReportFilter struct {
	ClassID   string
	FeeTypeID string
	Mode      *PaymentMode
	From      *time.Time
	To        *time.Time
}

// CollectionReportRow is one aggregated line of a collection report.
// Monetary fields are pre-rounded to two decimals.
type CollectionReportRow struct {
	Date          string  `db:"date" json:"date"`
	ClassID       string  `db:"class_id" json:"class_id"`
	ClassName     string  `db:"class_name" json:"class_name"`
	FeeTypeName   string  `db:"fee_type_name" json:"fee_type_name"`
	PaymentCount  int     `db:"payment_count" json:"payment_count"`
	GrossAmount   float64 `db:"gross_amount" json:"gross_amount"`
	DiscountTotal float64 `db:"discount_total" json:"discount_total"`
	NetCollected  float64 `db:"net_collected" json:"net_collected"`
}

// CollectionReport aggregates collection rows with grand totals.
type CollectionReport struct {
	Filter        CollectionReportFilter `json:"-"`
	Rows          []CollectionReportRow  `json:"rows"`
	PaymentCount  int                    `json:"payment_count"`
	GrossAmount   float64                `json:"gross_amount"`
	DiscountTotal float64                `json:"discount_total"`
	NetCollected  float64                `json:"net_collected"`
	GeneratedAt   time.Time              `json:"generated_at"`
}

// OutstandingReportRow summarises dues still payable per student.
type OutstandingReportRow struct {
	StudentID       string  `db:"student_id" json:"student_id"`
	StudentName     string  `db:"student_name" json:"student_name"`
	ClassName       string  `db:"class_name" json:"class_name"`
	PendingItems    int     `db:"pending_items" json:"pending_items"`
	OutstandingDue  float64 `db:"outstanding_due" json:"outstanding_due"`
	CarryForwardDue float64 `db:"carry_forward_due" json:"carry_forward_due"`
}
