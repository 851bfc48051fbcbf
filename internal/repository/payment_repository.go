package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// FeeLineUpdate carries the post-payment state of one line item.
type FeeLineUpdate struct {
	ID        string
	DueAmount float64
	Status    models.FeeStatus
	PaidAt    *time.Time
}

// PaymentRepository persists immutable payment receipts and applies the
// matching line-item updates atomically.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// NextReceiptSequence returns the next per-day receipt counter.
func (r *PaymentRepository) NextReceiptSequence(ctx context.Context, day string) (int, error) {
	var seq int
	const query = `INSERT INTO receipt_sequences (day, seq) VALUES ($1, 1)
        ON CONFLICT (day) DO UPDATE SET seq = receipt_sequences.seq + 1
        RETURNING seq`
	if err := r.db.GetContext(ctx, &seq, query, day); err != nil {
		return 0, fmt.Errorf("next receipt sequence: %w", err)
	}
	return seq, nil
}

// Post writes the payment, its allocations and the line-item updates in
// a single transaction. The affected rows are locked to guard against a
// concurrent poster updating the same line items.
func (r *PaymentRepository) Post(ctx context.Context, payment *models.Payment, updates []FeeLineUpdate) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
	}
	if len(ids) > 0 {
		if _, err := tx.ExecContext(ctx, "SELECT id FROM fee_line_items WHERE id = ANY($1) FOR UPDATE", pq.StringArray(ids)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("lock fee line items: %w", err)
		}
	}

	const paymentQuery = `INSERT INTO payments (id, student_id, receipt_number, mode, discount_amount, discount_reason, total_amount, status, idempotency_key, collected_by, processed_at, created_at)
        VALUES (:id, :student_id, :receipt_number, :mode, :discount_amount, :discount_reason, :total_amount, :status, :idempotency_key, :collected_by, :processed_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, paymentQuery, payment); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert payment: %w", err)
	}

	for i := range payment.Allocations {
		alloc := &payment.Allocations[i]
		if alloc.ID == "" {
			alloc.ID = uuid.NewString()
		}
		alloc.PaymentID = payment.ID
		const allocQuery = `INSERT INTO payment_allocations (id, payment_id, fee_line_item_id, amount)
            VALUES (:id, :payment_id, :fee_line_item_id, :amount)`
		if _, err := tx.NamedExecContext(ctx, allocQuery, alloc); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert payment allocation: %w", err)
		}
	}

	for _, u := range updates {
		const lineQuery = `UPDATE fee_line_items SET due_amount = $2, status = $3, paid_at = $4, updated_at = $5 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, lineQuery, u.ID, u.DueAmount, u.Status, u.PaidAt, time.Now().UTC()); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update fee line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

const paymentColumns = `p.id, p.student_id, s.full_name AS student_name, p.receipt_number, p.mode, p.discount_amount,
        p.discount_reason, p.total_amount, p.status, p.idempotency_key, p.collected_by, p.processed_at, p.created_at`

// List returns payments matching the filter with a total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base := "FROM payments p JOIN students s ON s.id = p.student_id WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND p.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Mode != nil {
		base += fmt.Sprintf(" AND p.mode = $%d", len(args)+1)
		args = append(args, *filter.Mode)
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND p.processed_at >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND p.processed_at < $%d", len(args)+1)
		args = append(args, *filter.To)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY p.processed_at DESC LIMIT %d OFFSET %d", paymentColumns, base, size, (page-1)*size)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	if err := r.attachAllocations(ctx, payments); err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// FindByID returns a payment with allocations.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	query := fmt.Sprintf("SELECT %s FROM payments p JOIN students s ON s.id = p.student_id WHERE p.id = $1", paymentColumns)
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	payments := []models.Payment{payment}
	if err := r.attachAllocations(ctx, payments); err != nil {
		return nil, err
	}
	return &payments[0], nil
}

// FindByIdempotencyKey returns the payment posted with the given key.
func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	var payment models.Payment
	query := fmt.Sprintf("SELECT %s FROM payments p JOIN students s ON s.id = p.student_id WHERE p.idempotency_key = $1", paymentColumns)
	err := r.db.GetContext(ctx, &payment, query, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by idempotency key: %w", err)
	}
	payments := []models.Payment{payment}
	if err := r.attachAllocations(ctx, payments); err != nil {
		return nil, err
	}
	return &payments[0], nil
}

// CollectionRows aggregates posted payments for the collection report.
func (r *PaymentRepository) CollectionRows(ctx context.Context, filter models.CollectionReportFilter) ([]models.CollectionReportRow, error) {
	base := `FROM payments p
        JOIN students s ON s.id = p.student_id
        JOIN payment_allocations pa ON pa.payment_id = p.id
        JOIN fee_line_items f ON f.id = pa.fee_line_item_id
        JOIN fee_types ft ON ft.id = f.fee_type_id
        WHERE p.status = 'completed'`
	var args []interface{}
	if filter.ClassID != "" {
		base += fmt.Sprintf(" AND s.class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.FeeTypeID != "" {
		base += fmt.Sprintf(" AND f.fee_type_id = $%d", len(args)+1)
		args = append(args, filter.FeeTypeID)
	}
	if filter.Mode != nil {
		base += fmt.Sprintf(" AND p.mode = $%d", len(args)+1)
		args = append(args, *filter.Mode)
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND p.processed_at >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND p.processed_at < $%d", len(args)+1)
		args = append(args, *filter.To)
	}

	query := `SELECT to_char(p.processed_at, 'YYYY-MM-DD') AS date, s.class_id, s.class_name, ft.name AS fee_type_name,
            COUNT(DISTINCT p.id) AS payment_count,
            ROUND(SUM(pa.amount)::numeric, 2) AS gross_amount,
            ROUND(SUM(p.discount_amount * pa.amount / NULLIF(p.total_amount + p.discount_amount, 0))::numeric, 2) AS discount_total,
            ROUND(SUM(pa.amount - p.discount_amount * pa.amount / NULLIF(p.total_amount + p.discount_amount, 0))::numeric, 2) AS net_collected
        ` + base + `
        GROUP BY 1, 2, 3, 4 ORDER BY 1 DESC, 3, 4`
	var rows []models.CollectionReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("collection report rows: %w", err)
	}
	return rows, nil
}

// OutstandingRows summarises open dues per student.
func (r *PaymentRepository) OutstandingRows(ctx context.Context, classID string) ([]models.OutstandingReportRow, error) {
	query := `SELECT s.id AS student_id, s.full_name AS student_name, s.class_name,
            COUNT(f.id) AS pending_items,
            ROUND(COALESCE(SUM(f.due_amount), 0)::numeric, 2) AS outstanding_due,
            ROUND(COALESCE((SELECT SUM(GREATEST(it.total - cf.adjusted_amount, 0))
                FROM carry_forward_records cf
                JOIN LATERAL (SELECT COALESCE(SUM(i.amount), 0) AS total
                    FROM carry_forward_items i WHERE i.record_id = cf.id) it ON TRUE
                WHERE cf.student_id = s.id AND cf.status IN ('pending', 'adjusted')), 0)::numeric, 2) AS carry_forward_due
        FROM students s
        LEFT JOIN fee_line_items f ON f.student_id = s.id AND f.status <> 'paid'
        WHERE s.active = TRUE`
	var args []interface{}
	if classID != "" {
		query += " AND s.class_id = $1"
		args = append(args, classID)
	}
	query += " GROUP BY s.id, s.full_name, s.class_name HAVING COUNT(f.id) > 0 ORDER BY outstanding_due DESC"
	var rows []models.OutstandingReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("outstanding report rows: %w", err)
	}
	return rows, nil
}

func (r *PaymentRepository) attachAllocations(ctx context.Context, payments []models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	ids := make([]string, len(payments))
	for i, p := range payments {
		ids[i] = p.ID
	}
	const query = `SELECT pa.id, pa.payment_id, pa.fee_line_item_id, ft.name AS fee_type_name, pa.amount
        FROM payment_allocations pa
        JOIN fee_line_items f ON f.id = pa.fee_line_item_id
        JOIN fee_types ft ON ft.id = f.fee_type_id
        WHERE pa.payment_id = ANY($1)`
	var allocations []models.PaymentAllocation
	if err := r.db.SelectContext(ctx, &allocations, query, pq.StringArray(ids)); err != nil {
		return fmt.Errorf("load payment allocations: %w", err)
	}
	byPayment := make(map[string][]models.PaymentAllocation)
	for _, alloc := range allocations {
		byPayment[alloc.PaymentID] = append(byPayment[alloc.PaymentID], alloc)
	}
	for i := range payments {
		payments[i].Allocations = byPayment[payments[i].ID]
	}
	return nil
}
