package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type feeTypeRepository interface {
	List(ctx context.Context, filter models.FeeTypeFilter) ([]models.FeeType, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeType, error)
	Create(ctx context.Context, ft *models.FeeType) error
	Update(ctx context.Context, ft *models.FeeType) error
	Delete(ctx context.Context, id string) error
}

// FeeTypeRequest describes fee type create/update payloads.
type FeeTypeRequest struct {
	Name          string             `json:"name" validate:"required,min=2,max=100"`
	Category      models.FeeCategory `json:"category" validate:"required,oneof=TUITION TRANSPORT LIBRARY LABORATORY SPORTS EXAMINATION OTHER"`
	DefaultAmount float64            `json:"default_amount" validate:"gte=0"`
	Active        *bool              `json:"active"`
}

// FeeTypeService manages the fee type catalogue.
type FeeTypeService struct {
	repo      feeTypeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeTypeService constructs FeeTypeService.
func NewFeeTypeService(repo feeTypeRepository, validate *validator.Validate, logger *zap.Logger) *FeeTypeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeTypeService{repo: repo, validator: validate, logger: logger}
}

// List returns fee types with pagination metadata.
func (s *FeeTypeService) List(ctx context.Context, filter models.FeeTypeFilter) ([]models.FeeType, *models.Pagination, error) {
	feeTypes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee types")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return feeTypes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a fee type by id.
func (s *FeeTypeService) Get(ctx context.Context, id string) (*models.FeeType, error) {
	ft, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee type")
	}
	return ft, nil
}

// Create registers a new fee type.
func (s *FeeTypeService) Create(ctx context.Context, req FeeTypeRequest) (*models.FeeType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee type payload")
	}
	ft := &models.FeeType{
		Name:          req.Name,
		Category:      req.Category,
		DefaultAmount: req.DefaultAmount,
		Active:        true,
	}
	if req.Active != nil {
		ft.Active = *req.Active
	}
	if err := s.repo.Create(ctx, ft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee type")
	}
	s.logger.Info("fee type created", zap.String("fee_type_id", ft.ID), zap.String("name", ft.Name))
	return ft, nil
}

// Update modifies an existing fee type.
func (s *FeeTypeService) Update(ctx context.Context, id string, req FeeTypeRequest) (*models.FeeType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee type payload")
	}
	ft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ft.Name = req.Name
	ft.Category = req.Category
	ft.DefaultAmount = req.DefaultAmount
	if req.Active != nil {
		ft.Active = *req.Active
	}
	if err := s.repo.Update(ctx, ft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee type")
	}
	return ft, nil
}

// Delete removes a fee type from the catalogue.
func (s *FeeTypeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fee type")
	}
	s.logger.Info("fee type deleted", zap.String("fee_type_id", id))
	return nil
}
