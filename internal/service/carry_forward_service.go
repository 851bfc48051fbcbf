package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/ledger"
	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type carryForwardRepository interface {
	List(ctx context.Context, filter models.CarryForwardFilter) ([]models.CarryForwardRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.CarryForwardRecord, error)
	FindByStudentYear(ctx context.Context, studentID, currentYear string) (*models.CarryForwardRecord, error)
	Create(ctx context.Context, record *models.CarryForwardRecord) error
	AddAdjustment(ctx context.Context, adj *models.CarryForwardAdjustment, newAdjustedTotal float64) error
	UpdateStatus(ctx context.Context, id string, status models.CarryForwardStatus, processType *models.ProcessType, processedAt *time.Time) error
}

type feeLineCreator interface {
	CreateBatch(ctx context.Context, items []models.FeeLineItem) error
}

// CarryForwardItemRequest describes one rolled-over obligation.
type CarryForwardItemRequest struct {
	FeeTypeID string    `json:"fee_type_id" validate:"required"`
	Amount    float64   `json:"amount" validate:"gt=0"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

// CarryForwardCreateRequest registers a student's prior-year balance.
type CarryForwardCreateRequest struct {
	StudentID            string                    `json:"student_id" validate:"required"`
	PreviousAcademicYear string                    `json:"previous_academic_year" validate:"required"`
	CurrentAcademicYear  string                    `json:"current_academic_year" validate:"required"`
	Items                []CarryForwardItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CarryForwardAdjustRequest reduces a carried balance administratively.
type CarryForwardAdjustRequest struct {
	Type   models.AdjustmentType `json:"type" validate:"required,oneof=waiver discount scholarship correction other"`
	Amount float64               `json:"amount" validate:"gt=0"`
	Reason string                `json:"reason" validate:"required,min=3"`
}

// CarryForwardProcessRequest settles one record.
type CarryForwardProcessRequest struct {
	ProcessType models.ProcessType `json:"process_type" validate:"required,oneof=carry_forward write_off convert_to_dues"`
	DueDate     *time.Time         `json:"due_date"`
}

// BulkProcessRequest settles a batch of records, optionally applying a
// percentage discount to each remaining balance first.
type BulkProcessRequest struct {
	RecordIDs          []string           `json:"record_ids" validate:"required,min=1"`
	ProcessType        models.ProcessType `json:"process_type" validate:"required,oneof=carry_forward write_off convert_to_dues"`
	DiscountPercentage float64            `json:"discount_percentage" validate:"gte=0,lte=100"`
	Reason             string             `json:"reason"`
}

// BulkProcessFailure reports one record that could not be settled.
type BulkProcessFailure struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// BulkProcessResult summarises a bulk run.
type BulkProcessResult struct {
	Processed int                  `json:"processed"`
	Failures  []BulkProcessFailure `json:"failures,omitempty"`
}

// CarryForwardService manages carried-over balances across academic
// years. Mutations lock per student so concurrent adjustments and
// payments interleave safely.
type CarryForwardService struct {
	repo      carryForwardRepository
	fees      feeLineCreator
	students  duesStudentReader
	locks     *KeyedMutex
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCarryForwardService constructs CarryForwardService.
func NewCarryForwardService(repo carryForwardRepository, fees feeLineCreator, students duesStudentReader, locks *KeyedMutex, validate *validator.Validate, logger *zap.Logger) *CarryForwardService {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CarryForwardService{
		repo:      repo,
		fees:      fees,
		students:  students,
		locks:     locks,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns carry-forward records with pagination metadata.
func (s *CarryForwardService) List(ctx context.Context, filter models.CarryForwardFilter) ([]models.CarryForwardRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list carry forwards")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a carry-forward record with items and adjustments.
func (s *CarryForwardService) Get(ctx context.Context, id string) (*models.CarryForwardRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "carry forward record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load carry forward record")
	}
	return record, nil
}

// Create registers a prior-year balance for a student. One open record
// per student per target year.
func (s *CarryForwardService) Create(ctx context.Context, req CarryForwardCreateRequest) (*models.CarryForwardRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid carry forward payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	existing, err := s.repo.FindByStudentYear(ctx, req.StudentID, req.CurrentAcademicYear)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing record")
	}
	if existing != nil && existing.Status != models.CarryForwardCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "carry forward record already exists for this year")
	}

	record := &models.CarryForwardRecord{
		StudentID:            student.ID,
		StudentName:          student.FullName,
		PreviousAcademicYear: req.PreviousAcademicYear,
		CurrentAcademicYear:  req.CurrentAcademicYear,
		Status:               models.CarryForwardPending,
	}
	for _, item := range req.Items {
		record.Items = append(record.Items, models.CarryForwardItem{
			FeeTypeID: item.FeeTypeID,
			Amount:    ledger.Round(item.Amount),
			DueDate:   item.DueDate,
		})
	}
	if _, err := ledger.NetCarryForward(record.Items, nil); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create carry forward record")
	}
	s.logger.Info("carry forward created",
		zap.String("record_id", record.ID),
		zap.String("student_id", record.StudentID),
		zap.String("year", record.CurrentAcademicYear))
	return s.Get(ctx, record.ID)
}

// Adjust applies an administrative reduction to an open record.
func (s *CarryForwardService) Adjust(ctx context.Context, id, adjustedBy string, req CarryForwardAdjustRequest) (*models.CarryForwardRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adjustment payload")
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(record.StudentID)
	defer unlock()

	record, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ledger.CanTransition(record.Status, models.CarryForwardAdjusted) {
		return nil, appErrors.Clone(appErrors.ErrCarryForwardNotAdjustable,
			fmt.Sprintf("record is %s", record.Status))
	}
	if err := ledger.ValidateAdjustment(record.Items, record.Adjustments, req.Amount); err != nil {
		return nil, err
	}

	adj := &models.CarryForwardAdjustment{
		RecordID:   record.ID,
		Type:       req.Type,
		Amount:     ledger.Round(req.Amount),
		Reason:     req.Reason,
		AdjustedBy: adjustedBy,
	}
	newTotal := ledger.Round(record.AdjustedAmount + adj.Amount)
	if err := s.repo.AddAdjustment(ctx, adj, newTotal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record adjustment")
	}
	s.logger.Info("carry forward adjusted",
		zap.String("record_id", record.ID),
		zap.String("type", string(req.Type)),
		zap.Float64("amount", adj.Amount))
	return s.Get(ctx, id)
}

// Process settles one record. Converting to dues creates a current-year
// line item for the remaining balance; carrying forward rolls it into a
// fresh record for the next year.
func (s *CarryForwardService) Process(ctx context.Context, id string, req CarryForwardProcessRequest) (*models.CarryForwardRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid process payload")
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(record.StudentID)
	defer unlock()

	record, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.processLocked(ctx, record, req.ProcessType, req.DueDate); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Cancel voids a pending record.
func (s *CarryForwardService) Cancel(ctx context.Context, id string) (*models.CarryForwardRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(record.StudentID)
	defer unlock()

	record, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ledger.CanTransition(record.Status, models.CarryForwardCancelled) {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("cannot cancel a %s record", record.Status))
	}
	if err := s.repo.UpdateStatus(ctx, id, models.CarryForwardCancelled, nil, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel record")
	}
	return s.Get(ctx, id)
}

// BulkProcess settles a batch of records. Failures do not abort the run.
func (s *CarryForwardService) BulkProcess(ctx context.Context, req BulkProcessRequest, processedBy string) (*BulkProcessResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk process payload")
	}
	result := &BulkProcessResult{}
	for _, id := range req.RecordIDs {
		if err := s.bulkProcessOne(ctx, id, req, processedBy); err != nil {
			result.Failures = append(result.Failures, BulkProcessFailure{RecordID: id, Reason: err.Error()})
			continue
		}
		result.Processed++
	}
	s.logger.Info("bulk carry forward processed",
		zap.Int("processed", result.Processed),
		zap.Int("failed", len(result.Failures)),
		zap.String("process_type", string(req.ProcessType)))
	return result, nil
}

func (s *CarryForwardService) bulkProcessOne(ctx context.Context, id string, req BulkProcessRequest, processedBy string) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(record.StudentID)
	defer unlock()

	record, err = s.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.DiscountPercentage > 0 {
		amount, err := ledger.BulkDiscountAmount(record.Items, record.Adjustments, req.DiscountPercentage)
		if err != nil {
			return err
		}
		if amount > 0 {
			reason := req.Reason
			if reason == "" {
				reason = fmt.Sprintf("bulk settlement discount %.0f%%", req.DiscountPercentage)
			}
			adj := &models.CarryForwardAdjustment{
				RecordID:   record.ID,
				Type:       models.AdjustmentDiscount,
				Amount:     amount,
				Reason:     reason,
				AdjustedBy: processedBy,
			}
			if err := s.repo.AddAdjustment(ctx, adj, ledger.Round(record.AdjustedAmount+amount)); err != nil {
				return err
			}
			record, err = s.Get(ctx, id)
			if err != nil {
				return err
			}
		}
	}
	return s.processLocked(ctx, record, req.ProcessType, nil)
}

func (s *CarryForwardService) processLocked(ctx context.Context, record *models.CarryForwardRecord, processType models.ProcessType, dueDate *time.Time) error {
	if !ledger.CanTransition(record.Status, models.CarryForwardProcessed) {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("cannot process a %s record", record.Status))
	}
	net, err := ledger.NetCarryForward(record.Items, record.Adjustments)
	if err != nil {
		return err
	}

	now := s.now()
	switch processType {
	case models.ProcessConvertToDues:
		if net.FinalPayable > 0 {
			due := now.AddDate(0, 1, 0)
			if dueDate != nil {
				due = *dueDate
			}
			line := models.FeeLineItem{
				StudentID:       record.StudentID,
				FeeGroupID:      record.ID,
				FeeTypeID:       record.Items[0].FeeTypeID,
				InstallmentName: fmt.Sprintf("Carry Forward %s", record.PreviousAcademicYear),
				Amount:          net.FinalPayable,
				DueAmount:       net.FinalPayable,
				DueDate:         due,
				Status:          models.FeeStatusPending,
			}
			if err := s.fees.CreateBatch(ctx, []models.FeeLineItem{line}); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to convert balance to dues")
			}
		}
	case models.ProcessCarryForward:
		if net.FinalPayable > 0 {
			next := &models.CarryForwardRecord{
				StudentID:            record.StudentID,
				StudentName:          record.StudentName,
				PreviousAcademicYear: record.CurrentAcademicYear,
				CurrentAcademicYear:  nextAcademicYear(record.CurrentAcademicYear),
				Status:               models.CarryForwardPending,
				Items: []models.CarryForwardItem{{
					FeeTypeID: record.Items[0].FeeTypeID,
					Amount:    net.FinalPayable,
					DueDate:   now.AddDate(0, 1, 0),
				}},
			}
			if err := s.repo.Create(ctx, next); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to roll balance forward")
			}
		}
	case models.ProcessWriteOff:
		// balance is forgiven, nothing to create
	}

	pt := processType
	if err := s.repo.UpdateStatus(ctx, record.ID, models.CarryForwardProcessed, &pt, &now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark record processed")
	}
	return nil
}

// nextAcademicYear advances a "YYYY-YY" label by one year. Unrecognised
// labels are returned unchanged.
func nextAcademicYear(year string) string {
	var start, end int
	if _, err := fmt.Sscanf(year, "%d-%d", &start, &end); err != nil {
		return year
	}
	return fmt.Sprintf("%d-%02d", start+1, (end+1)%100)
}
