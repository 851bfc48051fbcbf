package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/ledger"
	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type discountRepository interface {
	List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error)
	ListCandidates(ctx context.Context, classID string, autoApplyOnly bool) ([]models.Discount, error)
	FindByID(ctx context.Context, id string) (*models.Discount, error)
	Create(ctx context.Context, d *models.Discount) error
	Update(ctx context.Context, d *models.Discount) error
	Delete(ctx context.Context, id string) error
}

// DiscountRequest describes discount create/update payloads.
type DiscountRequest struct {
	Name               string                    `json:"name" validate:"required,min=2,max=100"`
	Category           string                    `json:"category" validate:"required"`
	DiscountType       models.DiscountType       `json:"discount_type" validate:"required,oneof=percentage fixed"`
	Value              float64                   `json:"value" validate:"gt=0"`
	ApplicableClasses  []string                  `json:"applicable_classes"`
	ApplicableFeeTypes []string                  `json:"applicable_fee_types"`
	ValidFrom          time.Time                 `json:"valid_from" validate:"required"`
	ValidUntil         *time.Time                `json:"valid_until"`
	MaxUsage           *int                      `json:"max_usage" validate:"omitempty,gt=0"`
	AutoApply          bool                      `json:"auto_apply"`
	Stackable          bool                      `json:"stackable"`
	Priority           int                       `json:"priority" validate:"gte=0"`
	Conditions         models.DiscountConditions `json:"conditions"`
	Active             *bool                     `json:"active"`
}

// DiscountPreviewRequest asks what a discount set would do to an amount.
type DiscountPreviewRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	FeeTypeID string  `json:"fee_type_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

// DiscountPreview is the dry-run outcome of discount resolution.
type DiscountPreview struct {
	BaseAmount  float64                      `json:"base_amount"`
	FinalAmount float64                      `json:"final_amount"`
	Applied     []models.AppliedDiscountInfo `json:"applied"`
}

// DiscountService manages discounts and previews their resolution.
type DiscountService struct {
	repo      discountRepository
	students  duesStudentReader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDiscountService constructs DiscountService.
func NewDiscountService(repo discountRepository, students duesStudentReader, validate *validator.Validate, logger *zap.Logger) *DiscountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{
		repo:      repo,
		students:  students,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns discounts with pagination metadata.
func (s *DiscountService) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, *models.Pagination, error) {
	discounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discounts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return discounts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a discount by id.
func (s *DiscountService) Get(ctx context.Context, id string) (*models.Discount, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discount not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
	}
	return d, nil
}

// Create registers a new discount.
func (s *DiscountService) Create(ctx context.Context, req DiscountRequest) (*models.Discount, error) {
	d, err := s.buildDiscount(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discount")
	}
	s.logger.Info("discount created", zap.String("discount_id", d.ID), zap.String("name", d.Name))
	return d, nil
}

// Update modifies an existing discount. The usage counter is preserved.
func (s *DiscountService) Update(ctx context.Context, id string, req DiscountRequest) (*models.Discount, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.buildDiscount(req)
	if err != nil {
		return nil, err
	}
	d.ID = id
	d.UsageCount = existing.UsageCount
	d.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discount")
	}
	return d, nil
}

// Delete removes a discount.
func (s *DiscountService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete discount")
	}
	s.logger.Info("discount deleted", zap.String("discount_id", id))
	return nil
}

// Preview resolves the active discount set against an amount without
// writing anything.
func (s *DiscountService) Preview(ctx context.Context, req DiscountPreviewRequest) (*DiscountPreview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	candidates, err := s.repo.ListCandidates(ctx, student.ClassID, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discounts")
	}

	profile := ledger.StudentProfile{ClassID: student.ClassID, Attributes: student.Attributes}
	outcome := ledger.ResolveDiscounts(req.Amount, candidates, profile, req.FeeTypeID, s.now())

	preview := &DiscountPreview{BaseAmount: outcome.Base, FinalAmount: outcome.Final}
	for _, applied := range outcome.Applied {
		preview.Applied = append(preview.Applied, models.AppliedDiscountInfo{
			DiscountID:   applied.DiscountID,
			DiscountName: applied.DiscountName,
			Amount:       applied.Amount,
		})
	}
	return preview, nil
}

func (s *DiscountService) buildDiscount(req DiscountRequest) (*models.Discount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	if req.DiscountType == models.DiscountPercentage && req.Value > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage discount cannot exceed 100")
	}
	if req.ValidUntil != nil && !req.ValidUntil.After(req.ValidFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "valid_until must be after valid_from")
	}
	d := &models.Discount{
		Name:               req.Name,
		Category:           req.Category,
		DiscountType:       req.DiscountType,
		Value:              req.Value,
		ApplicableClasses:  req.ApplicableClasses,
		ApplicableFeeTypes: req.ApplicableFeeTypes,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		MaxUsage:           req.MaxUsage,
		AutoApply:          req.AutoApply,
		Stackable:          req.Stackable,
		Priority:           req.Priority,
		Conditions:         req.Conditions,
		Active:             true,
	}
	if req.Active != nil {
		d.Active = *req.Active
	}
	return d, nil
}
