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

// CarryForwardRepository persists prior-year balance records, their
// items and adjustment history.
type CarryForwardRepository struct {
	db *sqlx.DB
}

// NewCarryForwardRepository creates the repository.
func NewCarryForwardRepository(db *sqlx.DB) *CarryForwardRepository {
	return &CarryForwardRepository{db: db}
}

const carryForwardColumns = `cf.id, cf.student_id, s.full_name AS student_name, cf.previous_academic_year, cf.current_academic_year,
        cf.adjusted_amount, cf.status, cf.process_type, cf.processed_at, cf.created_at, cf.updated_at`

// List returns carry-forward records matching the filter.
func (r *CarryForwardRepository) List(ctx context.Context, filter models.CarryForwardFilter) ([]models.CarryForwardRecord, int, error) {
	base := "FROM carry_forward_records cf JOIN students s ON s.id = cf.student_id WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND cf.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.CurrentAcademicYear != "" {
		base += fmt.Sprintf(" AND cf.current_academic_year = $%d", len(args)+1)
		args = append(args, filter.CurrentAcademicYear)
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND cf.status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY cf.created_at DESC LIMIT %d OFFSET %d", carryForwardColumns, base, size, (page-1)*size)
	var records []models.CarryForwardRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list carry-forward records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count carry-forward records: %w", err)
	}

	if err := r.attachDetails(ctx, records); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FindByID returns a record with items and adjustments attached.
func (r *CarryForwardRepository) FindByID(ctx context.Context, id string) (*models.CarryForwardRecord, error) {
	var record models.CarryForwardRecord
	query := fmt.Sprintf("SELECT %s FROM carry_forward_records cf JOIN students s ON s.id = cf.student_id WHERE cf.id = $1", carryForwardColumns)
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	records := []models.CarryForwardRecord{record}
	if err := r.attachDetails(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// FindByStudentYear returns the record carried into the given year.
func (r *CarryForwardRepository) FindByStudentYear(ctx context.Context, studentID, currentYear string) (*models.CarryForwardRecord, error) {
	var record models.CarryForwardRecord
	query := fmt.Sprintf(`SELECT %s FROM carry_forward_records cf JOIN students s ON s.id = cf.student_id
        WHERE cf.student_id = $1 AND cf.current_academic_year = $2`, carryForwardColumns)
	if err := r.db.GetContext(ctx, &record, query, studentID, currentYear); err != nil {
		return nil, err
	}
	records := []models.CarryForwardRecord{record}
	if err := r.attachDetails(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// Create inserts a record and its items in one transaction.
func (r *CarryForwardRepository) Create(ctx context.Context, record *models.CarryForwardRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = models.CarryForwardPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO carry_forward_records (id, student_id, previous_academic_year, current_academic_year, adjusted_amount, status, created_at, updated_at)
        VALUES (:id, :student_id, :previous_academic_year, :current_academic_year, :adjusted_amount, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create carry-forward record: %w", err)
	}
	for i := range record.Items {
		item := &record.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.RecordID = record.ID
		const itemQuery = `INSERT INTO carry_forward_items (id, record_id, fee_type_id, amount, due_date)
            VALUES (:id, :record_id, :fee_type_id, :amount, :due_date)`
		if _, err := tx.NamedExecContext(ctx, itemQuery, item); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert carry-forward item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit carry-forward record: %w", err)
	}
	return nil
}

// AddAdjustment records an adjustment and moves the record to adjusted
// in one transaction. The caller validates the amount beforehand.
func (r *CarryForwardRepository) AddAdjustment(ctx context.Context, adj *models.CarryForwardAdjustment, newAdjustedTotal float64) error {
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	adj.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO carry_forward_adjustments (id, record_id, type, amount, reason, adjusted_by, created_at)
        VALUES (:id, :record_id, :type, :amount, :reason, :adjusted_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, adj); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert carry-forward adjustment: %w", err)
	}
	const update = `UPDATE carry_forward_records SET adjusted_amount = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, adj.RecordID, newAdjustedTotal, models.CarryForwardAdjusted, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update carry-forward record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit carry-forward adjustment: %w", err)
	}
	return nil
}

// UpdateStatus moves a record to a new status; processed records also get
// a process type and timestamp.
func (r *CarryForwardRepository) UpdateStatus(ctx context.Context, id string, status models.CarryForwardStatus, processType *models.ProcessType, processedAt *time.Time) error {
	const query = `UPDATE carry_forward_records SET status = $2, process_type = $3, processed_at = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, processType, processedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update carry-forward status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("carry-forward record %s not found", id)
	}
	return nil
}

func (r *CarryForwardRepository) attachDetails(ctx context.Context, records []models.CarryForwardRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	const itemQuery = `SELECT i.id, i.record_id, i.fee_type_id, ft.name AS fee_type_name, i.amount, i.due_date
        FROM carry_forward_items i JOIN fee_types ft ON ft.id = i.fee_type_id
        WHERE i.record_id = ANY($1) ORDER BY i.due_date ASC`
	var items []models.CarryForwardItem
	if err := r.db.SelectContext(ctx, &items, itemQuery, pq.StringArray(ids)); err != nil {
		return fmt.Errorf("load carry-forward items: %w", err)
	}

	const adjQuery = `SELECT id, record_id, type, amount, reason, adjusted_by, created_at
        FROM carry_forward_adjustments WHERE record_id = ANY($1) ORDER BY created_at ASC`
	var adjustments []models.CarryForwardAdjustment
	if err := r.db.SelectContext(ctx, &adjustments, adjQuery, pq.StringArray(ids)); err != nil {
		return fmt.Errorf("load carry-forward adjustments: %w", err)
	}

	itemsByRecord := make(map[string][]models.CarryForwardItem)
	for _, item := range items {
		itemsByRecord[item.RecordID] = append(itemsByRecord[item.RecordID], item)
	}
	adjByRecord := make(map[string][]models.CarryForwardAdjustment)
	for _, adj := range adjustments {
		adjByRecord[adj.RecordID] = append(adjByRecord[adj.RecordID], adj)
	}
	for i := range records {
		records[i].Items = itemsByRecord[records[i].ID]
		records[i].Adjustments = adjByRecord[records[i].ID]
	}
	return nil
}
