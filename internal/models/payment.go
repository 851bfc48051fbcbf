package models

import "time"

// PaymentMode enumerates accepted tender types at the collection desk.
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "cash"
	PaymentModeCard         PaymentMode = "card"
	PaymentModeUPI          PaymentMode = "upi"
	PaymentModeCheque       PaymentMode = "cheque"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
)

// PaymentStatus tracks the posting state of a payment.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentAllocation records how much of a payment covered one line item.
type PaymentAllocation struct {
	ID            string  `db:"id" json:"id"`
	PaymentID     string  `db:"payment_id" json:"payment_id"`
	FeeLineItemID string  `db:"fee_line_item_id" json:"fee_line_item_id"`
	FeeTypeName   string  `db:"fee_type_name" json:"fee_type_name"`
	Amount        float64 `db:"amount" json:"amount"`
}

// Payment is an immutable receipt of a completed collection. Corrections
// happen via new adjustment records, never by mutating a posted payment.
type Payment struct {
	ID             string              `db:"id" json:"id"`
	StudentID      string              `db:"student_id" json:"student_id"`
	StudentName    string              `db:"student_name" json:"student_name"`
	ReceiptNumber  string              `db:"receipt_number" json:"receipt_number"`
	Mode           PaymentMode         `db:"mode" json:"mode"`
	DiscountAmount float64             `db:"discount_amount" json:"discount_amount"`
	DiscountReason string              `db:"discount_reason" json:"discount_reason,omitempty"`
	TotalAmount    float64             `db:"total_amount" json:"total_amount"`
	Status         PaymentStatus       `db:"status" json:"status"`
	IdempotencyKey *string             `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CollectedBy    string              `db:"collected_by" json:"collected_by"`
	ProcessedAt    time.Time           `db:"processed_at" json:"processed_at"`
	Allocations    []PaymentAllocation `db:"-" json:"allocations"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
}

// PaymentFilter captures listing criteria for payments.
type PaymentFilter struct {
	StudentID string
	Mode      *PaymentMode
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
