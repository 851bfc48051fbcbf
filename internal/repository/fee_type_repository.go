package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// FeeTypeRepository handles fee type reference data persistence.
type FeeTypeRepository struct {
	db *sqlx.DB
}

// NewFeeTypeRepository creates a new fee type repository.
func NewFeeTypeRepository(db *sqlx.DB) *FeeTypeRepository {
	return &FeeTypeRepository{db: db}
}

// List returns fee types matching the filter with a total count.
func (r *FeeTypeRepository) List(ctx context.Context, filter models.FeeTypeFilter) ([]models.FeeType, int, error) {
	base := "FROM fee_types WHERE 1=1"
	var args []interface{}
	if filter.Category != nil {
		base += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, *filter.Category)
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

	query := fmt.Sprintf("SELECT id, name, category, default_amount, active, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d", base, size, (page-1)*size)
	var types []models.FeeType
	if err := r.db.SelectContext(ctx, &types, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee types: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee types: %w", err)
	}
	return types, total, nil
}

// FindByID returns a fee type by id.
func (r *FeeTypeRepository) FindByID(ctx context.Context, id string) (*models.FeeType, error) {
	var ft models.FeeType
	const query = `SELECT id, name, category, default_amount, active, created_at, updated_at FROM fee_types WHERE id = $1`
	if err := r.db.GetContext(ctx, &ft, query, id); err != nil {
		return nil, err
	}
	return &ft, nil
}

// Create inserts a fee type.
func (r *FeeTypeRepository) Create(ctx context.Context, ft *models.FeeType) error {
	if ft.ID == "" {
		ft.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ft.CreatedAt = now
	ft.UpdatedAt = now
	const query = `INSERT INTO fee_types (id, name, category, default_amount, active, created_at, updated_at)
        VALUES (:id, :name, :category, :default_amount, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ft); err != nil {
		return fmt.Errorf("create fee type: %w", err)
	}
	return nil
}

// Update persists changes to a fee type.
func (r *FeeTypeRepository) Update(ctx context.Context, ft *models.FeeType) error {
	ft.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fee_types SET name = :name, category = :category, default_amount = :default_amount, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, ft)
	if err != nil {
		return fmt.Errorf("update fee type: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("fee type %s not found", ft.ID)
	}
	return nil
}

// Delete removes a fee type.
func (r *FeeTypeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM fee_types WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete fee type: %w", err)
	}
	return nil
}
