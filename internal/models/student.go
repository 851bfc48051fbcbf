package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StudentAttributes holds discount-condition inputs (category, sibling
// flags and the like) as a JSONB column.
type StudentAttributes map[string]string

// Value implements driver.Valuer.
func (a StudentAttributes) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *StudentAttributes) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported attributes column type %T", src)
	}
	return json.Unmarshal(raw, a)
}

// Student represents an enrolled student with enough enrollment context
// to derive fee obligations.
type Student struct {
	ID            string            `db:"id" json:"id"`
	AdmissionNo   string            `db:"admission_no" json:"admission_no"`
	FullName      string            `db:"full_name" json:"full_name"`
	ClassID       string            `db:"class_id" json:"class_id"`
	ClassName     string            `db:"class_name" json:"class_name"`
	AcademicYear  string            `db:"academic_year" json:"academic_year"`
	GuardianName  string            `db:"guardian_name" json:"guardian_name"`
	GuardianEmail string            `db:"guardian_email" json:"guardian_email"`
	GuardianPhone string            `db:"guardian_phone" json:"guardian_phone"`
	Attributes    StudentAttributes `db:"attributes" json:"attributes,omitempty"`
	Active        bool              `db:"active" json:"active"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures listing criteria for students.
type StudentFilter struct {
	ClassID      string
	AcademicYear string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
}
