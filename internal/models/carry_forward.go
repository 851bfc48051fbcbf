package models

import "time"

// CarryForwardStatus tracks the lifecycle of a carried-over balance.
// Processed and cancelled records are terminal.
type CarryForwardStatus string

const (
	CarryForwardPending   CarryForwardStatus = "pending"
	CarryForwardAdjusted  CarryForwardStatus = "adjusted"
	CarryForwardProcessed CarryForwardStatus = "processed"
	CarryForwardCancelled CarryForwardStatus = "cancelled"
)

// AdjustmentType classifies administrative reductions of a carried balance.
type AdjustmentType string

const (
	AdjustmentWaiver      AdjustmentType = "waiver"
	AdjustmentDiscount    AdjustmentType = "discount"
	AdjustmentScholarship AdjustmentType = "scholarship"
	AdjustmentCorrection  AdjustmentType = "correction"
	AdjustmentOther       AdjustmentType = "other"
)

// ProcessType determines how a bulk carry-forward run settles balances.
type ProcessType string

const (
	ProcessCarryForward  ProcessType = "carry_forward"
	ProcessWriteOff      ProcessType = "write_off"
	ProcessConvertToDues ProcessType = "convert_to_dues"
)

// CarryForwardItem is one unpaid prior-year obligation rolled forward.
type CarryForwardItem struct {
	ID          string    `db:"id" json:"id"`
	RecordID    string    `db:"record_id" json:"record_id"`
	FeeTypeID   string    `db:"fee_type_id" json:"fee_type_id"`
	FeeTypeName string    `db:"fee_type_name" json:"fee_type_name"`
	Amount      float64   `db:"amount" json:"amount"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
}

// CarryForwardAdjustment is an administrative reduction applied to a record.
type CarryForwardAdjustment struct {
	ID         string         `db:"id" json:"id"`
	RecordID   string         `db:"record_id" json:"record_id"`
	Type       AdjustmentType `db:"type" json:"type"`
	Amount     float64        `db:"amount" json:"amount"`
	Reason     string         `db:"reason" json:"reason"`
	AdjustedBy string         `db:"adjusted_by" json:"adjusted_by"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// CarryForwardRecord nets a student's prior-year unpaid items against
// administrative adjustments. AdjustedAmount never exceeds the item total.
type CarryForwardRecord struct {
	ID                   string                   `db:"id" json:"id"`
	StudentID            string                   `db:"student_id" json:"student_id"`
	StudentName          string                   `db:"student_name" json:"student_name"`
	PreviousAcademicYear string                   `db:"previous_academic_year" json:"previous_academic_year"`
	CurrentAcademicYear  string                   `db:"current_academic_year" json:"current_academic_year"`
	AdjustedAmount       float64                  `db:"adjusted_amount" json:"adjusted_amount"`
	Status               CarryForwardStatus       `db:"status" json:"status"`
	ProcessType          *ProcessType             `db:"process_type" json:"process_type,omitempty"`
	ProcessedAt          *time.Time               `db:"processed_at" json:"processed_at,omitempty"`
	Items                []CarryForwardItem       `db:"-" json:"items"`
	Adjustments          []CarryForwardAdjustment `db:"-" json:"adjustments,omitempty"`
	CreatedAt            time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time                `db:"updated_at" json:"updated_at"`
}

// CarryForwardFilter captures listing criteria for carry-forward records.
type CarryForwardFilter struct {
	StudentID           string
	CurrentAcademicYear string
	Status              *CarryForwardStatus
	Page                int
	PageSize            int
}
