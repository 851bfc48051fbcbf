package models

import "time"

// MessageChannel identifies the delivery channel of a template.
type MessageChannel string

const (
	ChannelEmail MessageChannel = "email"
	ChannelSMS   MessageChannel = "sms"
)

// MessageTemplate is an admin-authored reminder template. Bodies may use
// {{student_name}}, {{guardian_name}}, {{fee_type}}, {{amount_due}},
// {{due_date}} and {{receipt_number}} placeholders.
type MessageTemplate struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Channel   MessageChannel `db:"channel" json:"channel"`
	Subject   string         `db:"subject" json:"subject"`
	Body      string         `db:"body" json:"body"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ReminderStatus tracks dispatch state of a rendered reminder.
type ReminderStatus string

const (
	ReminderQueued ReminderStatus = "queued"
	ReminderSent   ReminderStatus = "sent"
	ReminderFailed ReminderStatus = "failed"
)

// ReminderLog records one rendered fee reminder handed to the gateway.
type ReminderLog struct {
	ID            string         `db:"id" json:"id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	TemplateID    string         `db:"template_id" json:"template_id"`
	Channel       MessageChannel `db:"channel" json:"channel"`
	Recipient     string         `db:"recipient" json:"recipient"`
	Subject       string         `db:"subject" json:"subject"`
	Body          string         `db:"body" json:"body"`
	AmountDue     float64        `db:"amount_due" json:"amount_due"`
	Status        ReminderStatus `db:"status" json:"status"`
	FailureReason *string        `db:"failure_reason" json:"failure_reason,omitempty"`
	SentAt        *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// ReminderLogFilter captures listing criteria for reminder logs.
type ReminderLogFilter struct {
	StudentID string
	Status    *ReminderStatus
	Page      int
	PageSize  int
}
