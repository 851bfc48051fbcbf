package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type feeGroupRepository interface {
	List(ctx context.Context, filter models.FeeGroupFilter) ([]models.FeeGroup, int, error)
	ListForClass(ctx context.Context, classID, academicYear string) ([]models.FeeGroup, error)
	FindByID(ctx context.Context, id string) (*models.FeeGroup, error)
	Create(ctx context.Context, group *models.FeeGroup) error
	Update(ctx context.Context, group *models.FeeGroup) error
	Delete(ctx context.Context, id string) error
}

// FeeGroupItemRequest binds one fee type into a group.
type FeeGroupItemRequest struct {
	FeeTypeID string  `json:"fee_type_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"gte=0"`
}

// FeeGroupRequest describes fee group create/update payloads.
type FeeGroupRequest struct {
	Name              string                 `json:"name" validate:"required,min=2,max=100"`
	AcademicYear      string                 `json:"academic_year" validate:"required"`
	ApplicableClasses []string               `json:"applicable_classes"`
	InstallmentType   models.InstallmentType `json:"installment_type" validate:"required,oneof=single two three monthly"`
	DueDate1          *time.Time             `json:"due_date_1"`
	DueDate2          *time.Time             `json:"due_date_2"`
	DueDate3          *time.Time             `json:"due_date_3"`
	LateFeeApplicable bool                   `json:"late_fee_applicable"`
	LateFeeType       models.LateFeeType     `json:"late_fee_type" validate:"omitempty,oneof=fixed percentage daily"`
	LateFeeAmount     float64                `json:"late_fee_amount" validate:"gte=0"`
	ConcessionIDs     []string               `json:"concession_ids"`
	Items             []FeeGroupItemRequest  `json:"items" validate:"required,min=1,dive"`
}

// FeeGroupService manages fee group definitions.
type FeeGroupService struct {
	repo      feeGroupRepository
	feeTypes  feeTypeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeGroupService constructs FeeGroupService.
func NewFeeGroupService(repo feeGroupRepository, feeTypes feeTypeRepository, validate *validator.Validate, logger *zap.Logger) *FeeGroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeGroupService{repo: repo, feeTypes: feeTypes, validator: validate, logger: logger}
}

// List returns fee groups with pagination metadata.
func (s *FeeGroupService) List(ctx context.Context, filter models.FeeGroupFilter) ([]models.FeeGroup, *models.Pagination, error) {
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee groups")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return groups, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a fee group by id.
func (s *FeeGroupService) Get(ctx context.Context, id string) (*models.FeeGroup, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee group")
	}
	return group, nil
}

// Create registers a new fee group after validating its due-date shape.
func (s *FeeGroupService) Create(ctx context.Context, req FeeGroupRequest) (*models.FeeGroup, error) {
	group, err := s.buildGroup(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee group")
	}
	s.logger.Info("fee group created",
		zap.String("fee_group_id", group.ID),
		zap.String("academic_year", group.AcademicYear),
		zap.Int("items", len(group.Items)))
	return s.Get(ctx, group.ID)
}

// Update modifies an existing fee group.
func (s *FeeGroupService) Update(ctx context.Context, id string, req FeeGroupRequest) (*models.FeeGroup, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	group, err := s.buildGroup(ctx, req)
	if err != nil {
		return nil, err
	}
	group.ID = id
	if err := s.repo.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee group")
	}
	return s.Get(ctx, id)
}

// Delete removes a fee group and its items.
func (s *FeeGroupService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fee group")
	}
	s.logger.Info("fee group deleted", zap.String("fee_group_id", id))
	return nil
}

func (s *FeeGroupService) buildGroup(ctx context.Context, req FeeGroupRequest) (*models.FeeGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee group payload")
	}

	dates := make([]*time.Time, 0, 3)
	for _, d := range []*time.Time{req.DueDate1, req.DueDate2, req.DueDate3} {
		if d != nil {
			dates = append(dates, d)
		}
	}
	if want := req.InstallmentType.Cardinality(); len(dates) != want {
		return nil, appErrors.Clone(appErrors.ErrInvalidFeeDefinition,
			fmt.Sprintf("installment type %s requires %d due dates, got %d", req.InstallmentType, want, len(dates)))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(*dates[i-1]) {
			return nil, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, "due dates must be strictly increasing")
		}
	}
	if req.LateFeeApplicable {
		if req.LateFeeType == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, "late fee type is required when late fees apply")
		}
		if req.LateFeeAmount < 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidFeeDefinition, "late fee amount cannot be negative")
		}
	}

	group := &models.FeeGroup{
		Name:              req.Name,
		AcademicYear:      req.AcademicYear,
		ApplicableClasses: req.ApplicableClasses,
		InstallmentType:   req.InstallmentType,
		DueDate1:          req.DueDate1,
		DueDate2:          req.DueDate2,
		DueDate3:          req.DueDate3,
		LateFeeApplicable: req.LateFeeApplicable,
		LateFeeType:       req.LateFeeType,
		LateFeeAmount:     req.LateFeeAmount,
		ConcessionIDs:     req.ConcessionIDs,
	}
	for _, item := range req.Items {
		ft, err := s.feeTypes.FindByID(ctx, item.FeeTypeID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("fee type %s not found", item.FeeTypeID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee type")
		}
		amount := item.Amount
		if amount == 0 {
			amount = ft.DefaultAmount
		}
		group.Items = append(group.Items, models.FeeGroupItem{
			FeeTypeID:   ft.ID,
			FeeTypeName: ft.Name,
			Amount:      amount,
		})
	}
	return group, nil
}
