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

// FeeGroupRepository handles fee group persistence including fee type items.
type FeeGroupRepository struct {
	db *sqlx.DB
}

// NewFeeGroupRepository creates the repository.
func NewFeeGroupRepository(db *sqlx.DB) *FeeGroupRepository {
	return &FeeGroupRepository{db: db}
}

const feeGroupColumns = `id, name, academic_year, applicable_classes, installment_type, due_date_1, due_date_2, due_date_3,
        late_fee_applicable, late_fee_type, late_fee_amount, concession_ids, created_at, updated_at`

// List returns fee groups matching the filter with their items attached.
func (r *FeeGroupRepository) List(ctx context.Context, filter models.FeeGroupFilter) ([]models.FeeGroup, int, error) {
	base := "FROM fee_groups WHERE 1=1"
	var args []interface{}
	if filter.AcademicYear != "" {
		base += fmt.Sprintf(" AND academic_year = $%d", len(args)+1)
		args = append(args, filter.AcademicYear)
	}
	if filter.ClassID != "" {
		base += fmt.Sprintf(" AND (cardinality(applicable_classes) = 0 OR $%d = ANY(applicable_classes))", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", feeGroupColumns, base, size, (page-1)*size)
	var groups []models.FeeGroup
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee groups: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee groups: %w", err)
	}

	if err := r.attachItems(ctx, groups); err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// ListForClass returns the fee groups applicable to a class in a year.
func (r *FeeGroupRepository) ListForClass(ctx context.Context, classID, academicYear string) ([]models.FeeGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_groups
        WHERE academic_year = $1 AND (cardinality(applicable_classes) = 0 OR $2 = ANY(applicable_classes))
        ORDER BY name ASC`, feeGroupColumns)
	var groups []models.FeeGroup
	if err := r.db.SelectContext(ctx, &groups, query, academicYear, classID); err != nil {
		return nil, fmt.Errorf("list fee groups for class: %w", err)
	}
	if err := r.attachItems(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// FindByID returns a fee group with items.
func (r *FeeGroupRepository) FindByID(ctx context.Context, id string) (*models.FeeGroup, error) {
	var group models.FeeGroup
	query := fmt.Sprintf("SELECT %s FROM fee_groups WHERE id = $1", feeGroupColumns)
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	groups := []models.FeeGroup{group}
	if err := r.attachItems(ctx, groups); err != nil {
		return nil, err
	}
	return &groups[0], nil
}

// Create inserts a fee group and its items in one transaction.
func (r *FeeGroupRepository) Create(ctx context.Context, group *models.FeeGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO fee_groups (id, name, academic_year, applicable_classes, installment_type, due_date_1, due_date_2, due_date_3,
            late_fee_applicable, late_fee_type, late_fee_amount, concession_ids, created_at, updated_at)
        VALUES (:id, :name, :academic_year, :applicable_classes, :installment_type, :due_date_1, :due_date_2, :due_date_3,
            :late_fee_applicable, :late_fee_type, :late_fee_amount, :concession_ids, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, group); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create fee group: %w", err)
	}
	if err := r.insertItems(ctx, tx, group); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fee group: %w", err)
	}
	return nil
}

// Update replaces a fee group and its items in one transaction.
func (r *FeeGroupRepository) Update(ctx context.Context, group *models.FeeGroup) error {
	group.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `UPDATE fee_groups SET name = :name, academic_year = :academic_year, applicable_classes = :applicable_classes,
            installment_type = :installment_type, due_date_1 = :due_date_1, due_date_2 = :due_date_2, due_date_3 = :due_date_3,
            late_fee_applicable = :late_fee_applicable, late_fee_type = :late_fee_type, late_fee_amount = :late_fee_amount,
            concession_ids = :concession_ids, updated_at = :updated_at
        WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, group)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update fee group: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("fee group %s not found", group.ID)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM fee_group_items WHERE fee_group_id = $1", group.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear fee group items: %w", err)
	}
	if err := r.insertItems(ctx, tx, group); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fee group update: %w", err)
	}
	return nil
}

// Delete removes a fee group and its items.
func (r *FeeGroupRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM fee_groups WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete fee group: %w", err)
	}
	return nil
}

func (r *FeeGroupRepository) insertItems(ctx context.Context, tx *sqlx.Tx, group *models.FeeGroup) error {
	for i := range group.Items {
		item := &group.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.FeeGroupID = group.ID
		const query = `INSERT INTO fee_group_items (id, fee_group_id, fee_type_id, amount)
            VALUES (:id, :fee_group_id, :fee_type_id, :amount)`
		if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
			return fmt.Errorf("insert fee group item: %w", err)
		}
	}
	return nil
}

func (r *FeeGroupRepository) attachItems(ctx context.Context, groups []models.FeeGroup) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	const query = `SELECT i.id, i.fee_group_id, i.fee_type_id, ft.name AS fee_type_name, i.amount
        FROM fee_group_items i JOIN fee_types ft ON ft.id = i.fee_type_id
        WHERE i.fee_group_id = ANY($1) ORDER BY ft.name ASC`
	var items []models.FeeGroupItem
	if err := r.db.SelectContext(ctx, &items, query, pq.StringArray(ids)); err != nil {
		return fmt.Errorf("load fee group items: %w", err)
	}
	byGroup := make(map[string][]models.FeeGroupItem, len(groups))
	for _, item := range items {
		byGroup[item.FeeGroupID] = append(byGroup[item.FeeGroupID], item)
	}
	for i := range groups {
		groups[i].Items = byGroup[groups[i].ID]
	}
	return nil
}
