package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// FeeRepository handles student fee line item persistence.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository creates the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

const feeLineColumns = `f.id, f.student_id, f.fee_group_id, f.fee_type_id, ft.name AS fee_type_name, f.installment_name,
        f.amount, f.late_fee, f.due_amount, f.due_date, f.status, f.paid_at, f.created_at, f.updated_at`

// ListByStudent returns all line items owned by a student.
func (r *FeeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.FeeLineItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_line_items f JOIN fee_types ft ON ft.id = f.fee_type_id
        WHERE f.student_id = $1 ORDER BY f.due_date ASC, ft.name ASC`, feeLineColumns)
	var items []models.FeeLineItem
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list fee line items: %w", err)
	}
	return items, nil
}

// GetByIDs returns the line items with the given ids.
func (r *FeeRepository) GetByIDs(ctx context.Context, ids []string) ([]models.FeeLineItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM fee_line_items f JOIN fee_types ft ON ft.id = f.fee_type_id
        WHERE f.id = ANY($1) ORDER BY f.due_date ASC`, feeLineColumns)
	var items []models.FeeLineItem
	if err := r.db.SelectContext(ctx, &items, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("get fee line items: %w", err)
	}
	return items, nil
}

// ListOverdue returns pending or partially paid items past their due date.
func (r *FeeRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]models.FeeLineItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_line_items f JOIN fee_types ft ON ft.id = f.fee_type_id
        WHERE f.status <> $1 AND f.due_date < $2 ORDER BY f.student_id, f.due_date ASC`, feeLineColumns)
	var items []models.FeeLineItem
	if err := r.db.SelectContext(ctx, &items, query, models.FeeStatusPaid, asOf); err != nil {
		return nil, fmt.Errorf("list overdue line items: %w", err)
	}
	return items, nil
}

// CreateBatch inserts derived line items for a student in one transaction.
// Existing items for the same student/group/installment are left alone.
func (r *FeeRepository) CreateBatch(ctx context.Context, items []models.FeeLineItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		items[i].CreatedAt = now
		items[i].UpdatedAt = now
		const query = `INSERT INTO fee_line_items (id, student_id, fee_group_id, fee_type_id, installment_name, amount, late_fee, due_amount, due_date, status, created_at, updated_at)
            VALUES (:id, :student_id, :fee_group_id, :fee_type_id, :installment_name, :amount, :late_fee, :due_amount, :due_date, :status, :created_at, :updated_at)
            ON CONFLICT (student_id, fee_group_id, fee_type_id, installment_name) DO NOTHING`
		if _, err := tx.NamedExecContext(ctx, query, items[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert fee line item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fee line items: %w", err)
	}
	return nil
}

// UpdateAssessment persists a recomputed late fee and due amount.
func (r *FeeRepository) UpdateAssessment(ctx context.Context, id string, lateFee, dueAmount float64) error {
	const query = `UPDATE fee_line_items SET late_fee = $2, due_amount = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lateFee, dueAmount, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fee assessment: %w", err)
	}
	return nil
}
