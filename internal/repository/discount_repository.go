package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// DiscountRepository handles discount/concession persistence.
type DiscountRepository struct {
	db *sqlx.DB
}

// NewDiscountRepository creates the repository.
func NewDiscountRepository(db *sqlx.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

const discountColumns = `id, name, category, discount_type, value, applicable_classes, applicable_fee_types,
        valid_from, valid_until, max_usage, usage_count, auto_apply, stackable, priority, conditions, active, created_at, updated_at`

// List returns discounts matching the filter with a total count.
func (r *DiscountRepository) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error) {
	base := "FROM discounts WHERE 1=1"
	var args []interface{}
	if filter.ClassID != "" {
		base += fmt.Sprintf(" AND (cardinality(applicable_classes) = 0 OR $%d = ANY(applicable_classes))", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.FeeTypeID != "" {
		base += fmt.Sprintf(" AND (cardinality(applicable_fee_types) = 0 OR $%d = ANY(applicable_fee_types))", len(args)+1)
		args = append(args, filter.FeeTypeID)
	}
	if filter.AutoApply != nil {
		base += fmt.Sprintf(" AND auto_apply = $%d", len(args)+1)
		args = append(args, *filter.AutoApply)
	}
	if filter.Active != nil {
		base += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY priority ASC, id ASC LIMIT %d OFFSET %d", discountColumns, base, size, (page-1)*size)
	var discounts []models.Discount
	if err := r.db.SelectContext(ctx, &discounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count discounts: %w", err)
	}
	return discounts, total, nil
}

// ListCandidates returns active discounts that could apply to a class.
// Final eligibility (validity window, usage, conditions) is resolved by
// the ledger with an explicit clock.
func (r *DiscountRepository) ListCandidates(ctx context.Context, classID string, autoApplyOnly bool) ([]models.Discount, error) {
	query := fmt.Sprintf(`SELECT %s FROM discounts
        WHERE active = TRUE AND (cardinality(applicable_classes) = 0 OR $1 = ANY(applicable_classes))`, discountColumns)
	args := []interface{}{classID}
	if autoApplyOnly {
		query += " AND auto_apply = TRUE"
	}
	query += " ORDER BY priority ASC, id ASC"
	var discounts []models.Discount
	if err := r.db.SelectContext(ctx, &discounts, query, args...); err != nil {
		return nil, fmt.Errorf("list candidate discounts: %w", err)
	}
	return discounts, nil
}

// FindByID returns a discount by id.
func (r *DiscountRepository) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	var d models.Discount
	query := fmt.Sprintf("SELECT %s FROM discounts WHERE id = $1", discountColumns)
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a discount.
func (r *DiscountRepository) Create(ctx context.Context, d *models.Discount) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	const query = `INSERT INTO discounts (id, name, category, discount_type, value, applicable_classes, applicable_fee_types,
            valid_from, valid_until, max_usage, usage_count, auto_apply, stackable, priority, conditions, active, created_at, updated_at)
        VALUES (:id, :name, :category, :discount_type, :value, :applicable_classes, :applicable_fee_types,
            :valid_from, :valid_until, :max_usage, :usage_count, :auto_apply, :stackable, :priority, :conditions, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("create discount: %w", err)
	}
	return nil
}

// Update persists changes to a discount.
func (r *DiscountRepository) Update(ctx context.Context, d *models.Discount) error {
	d.UpdatedAt = time.Now().UTC()
	const query = `UPDATE discounts SET name = :name, category = :category, discount_type = :discount_type, value = :value,
            applicable_classes = :applicable_classes, applicable_fee_types = :applicable_fee_types,
            valid_from = :valid_from, valid_until = :valid_until, max_usage = :max_usage,
            auto_apply = :auto_apply, stackable = :stackable, priority = :priority, conditions = :conditions,
            active = :active, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("update discount: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("discount %s not found", d.ID)
	}
	return nil
}

// IncrementUsage bumps the usage counter after an applied discount.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, id string) error {
	const query = `UPDATE discounts SET usage_count = usage_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment discount usage: %w", err)
	}
	return nil
}

// Delete removes a discount.
func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM discounts WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete discount: %w", err)
	}
	return nil
}
