package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByAdmissionNo(ctx context.Context, admissionNo string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	AdmissionNo   string                   `json:"admission_no" validate:"required"`
	FullName      string                   `json:"full_name" validate:"required"`
	ClassID       string                   `json:"class_id" validate:"required"`
	ClassName     string                   `json:"class_name" validate:"required"`
	AcademicYear  string                   `json:"academic_year" validate:"required"`
	GuardianName  string                   `json:"guardian_name" validate:"required"`
	GuardianEmail string                   `json:"guardian_email" validate:"omitempty,email"`
	GuardianPhone string                   `json:"guardian_phone"`
	Attributes    models.StudentAttributes `json:"attributes"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	AdmissionNo   string                   `json:"admission_no" validate:"required"`
	FullName      string                   `json:"full_name" validate:"required"`
	ClassID       string                   `json:"class_id" validate:"required"`
	ClassName     string                   `json:"class_name" validate:"required"`
	AcademicYear  string                   `json:"academic_year" validate:"required"`
	GuardianName  string                   `json:"guardian_name" validate:"required"`
	GuardianEmail string                   `json:"guardian_email" validate:"omitempty,email"`
	GuardianPhone string                   `json:"guardian_phone"`
	Attributes    models.StudentAttributes `json:"attributes"`
	Active        bool                     `json:"active"`
}

// StudentService handles student roster use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a single student record.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByAdmissionNo(ctx, req.AdmissionNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate admission number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
	}
	student := &models.Student{
		AdmissionNo:   req.AdmissionNo,
		FullName:      req.FullName,
		ClassID:       req.ClassID,
		ClassName:     req.ClassName,
		AcademicYear:  req.AcademicYear,
		GuardianName:  req.GuardianName,
		GuardianEmail: req.GuardianEmail,
		GuardianPhone: req.GuardianPhone,
		Attributes:    req.Attributes,
		Active:        true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByAdmissionNo(ctx, req.AdmissionNo, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate admission number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
	}
	existing.AdmissionNo = req.AdmissionNo
	existing.FullName = req.FullName
	existing.ClassID = req.ClassID
	existing.ClassName = req.ClassName
	existing.AcademicYear = req.AcademicYear
	existing.GuardianName = req.GuardianName
	existing.GuardianEmail = req.GuardianEmail
	existing.GuardianPhone = req.GuardianPhone
	existing.Attributes = req.Attributes
	existing.Active = req.Active
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return existing, nil
}

// Deactivate marks a student inactive, keeping ledger history intact.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}
