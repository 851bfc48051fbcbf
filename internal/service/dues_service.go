package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/ledger"
	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type duesStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type duesGroupLister interface {
	ListForClass(ctx context.Context, classID, academicYear string) ([]models.FeeGroup, error)
}

type feeLineRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.FeeLineItem, error)
	CreateBatch(ctx context.Context, items []models.FeeLineItem) error
	UpdateAssessment(ctx context.Context, id string, lateFee, dueAmount float64) error
}

type discountCandidateLister interface {
	ListCandidates(ctx context.Context, classID string, autoApplyOnly bool) ([]models.Discount, error)
}

type carryForwardReader interface {
	FindByStudentYear(ctx context.Context, studentID, currentYear string) (*models.CarryForwardRecord, error)
}

// DuesService computes a student's payable position: derived line items,
// late fee assessment, auto-applied discounts and carry-forward balance.
type DuesService struct {
	students     duesStudentReader
	groups       duesGroupLister
	fees         feeLineRepository
	discounts    discountCandidateLister
	carryForward carryForwardReader
	logger       *zap.Logger
	now          func() time.Time
}

// NewDuesService constructs DuesService.
func NewDuesService(students duesStudentReader, groups duesGroupLister, fees feeLineRepository, discounts discountCandidateLister, carryForward carryForwardReader, logger *zap.Logger) *DuesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuesService{
		students:     students,
		groups:       groups,
		fees:         fees,
		discounts:    discounts,
		carryForward: carryForward,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GetStudentDues returns the student's current dues snapshot. Line items
// missing for the student's fee groups are derived on first read.
func (s *DuesService) GetStudentDues(ctx context.Context, studentID string) (*models.StudentDues, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	groups, err := s.groups.ListForClass(ctx, student.ClassID, student.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee groups")
	}

	items, err := s.fees.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee line items")
	}

	missing := deriveLineItems(student, groups, items)
	if len(missing) > 0 {
		if err := s.fees.CreateBatch(ctx, missing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive fee line items")
		}
		items, err = s.fees.ListByStudent(ctx, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload fee line items")
		}
	}

	now := s.now()
	policies := lateFeePolicies(groups)
	for i := range items {
		item := &items[i]
		policy, ok := policies[item.FeeGroupID]
		if !ok {
			policy = ledger.LateFeePolicy{}
		}
		assessment, err := ledger.AssessLateFee(item.Amount, item.DueDate, item.Status, policy, now)
		if err != nil {
			return nil, err
		}
		item.IsOverdue = assessment.IsOverdue
		item.IsDueToday = assessment.IsDueToday
		if item.Status == models.FeeStatusPending && (assessment.LateFee != item.LateFee || assessment.DueAmount != item.DueAmount) {
			if err := s.fees.UpdateAssessment(ctx, item.ID, assessment.LateFee, assessment.DueAmount); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist late fee assessment")
			}
			item.LateFee = assessment.LateFee
			item.DueAmount = assessment.DueAmount
		}
	}

	candidates, err := s.discounts.ListCandidates(ctx, student.ClassID, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discounts")
	}
	profile := ledger.StudentProfile{ClassID: student.ClassID, Attributes: student.Attributes}

	dues := &models.StudentDues{
		StudentID:    student.ID,
		StudentName:  student.FullName,
		ClassID:      student.ClassID,
		AcademicYear: student.AcademicYear,
		AsOf:         now,
		Items:        items,
	}
	for _, item := range items {
		if item.Status == models.FeeStatusPaid {
			continue
		}
		dues.TotalAmount = ledger.Round(dues.TotalAmount + item.Amount)
		dues.TotalLateFee = ledger.Round(dues.TotalLateFee + item.LateFee)
		outcome := ledger.ResolveDiscounts(item.DueAmount, candidates, profile, item.FeeTypeID, now)
		for _, applied := range outcome.Applied {
			dues.AppliedDiscounts = append(dues.AppliedDiscounts, models.AppliedDiscountInfo{
				DiscountID:   applied.DiscountID,
				DiscountName: applied.DiscountName,
				Amount:       applied.Amount,
			})
		}
		dues.TotalDiscount = ledger.Round(dues.TotalDiscount + outcome.TotalApplied())
		dues.TotalDue = ledger.Round(dues.TotalDue + outcome.Final)
	}

	record, err := s.carryForward.FindByStudentYear(ctx, studentID, student.AcademicYear)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load carry forward balance")
	}
	if record != nil && (record.Status == models.CarryForwardPending || record.Status == models.CarryForwardAdjusted) {
		net, err := ledger.NetCarryForward(record.Items, record.Adjustments)
		if err != nil {
			return nil, err
		}
		dues.CarryForwardDue = net.FinalPayable
		dues.TotalDue = ledger.Round(dues.TotalDue + net.FinalPayable)
	}
	return dues, nil
}

// deriveLineItems expands fee groups into line items the student does not
// have yet. One item per group item per due date.
func deriveLineItems(student *models.Student, groups []models.FeeGroup, existing []models.FeeLineItem) []models.FeeLineItem {
	have := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		have[item.FeeGroupID+"|"+item.FeeTypeID+"|"+item.InstallmentName] = struct{}{}
	}

	var derived []models.FeeLineItem
	for _, group := range groups {
		dates := group.DueDates()
		for idx, due := range dates {
			name := installmentName(group.InstallmentType, idx, len(dates), due)
			for _, gi := range group.Items {
				key := group.ID + "|" + gi.FeeTypeID + "|" + name
				if _, ok := have[key]; ok {
					continue
				}
				amount := ledger.Round(gi.Amount / float64(len(dates)))
				derived = append(derived, models.FeeLineItem{
					StudentID:       student.ID,
					FeeGroupID:      group.ID,
					FeeTypeID:       gi.FeeTypeID,
					InstallmentName: name,
					Amount:          amount,
					DueAmount:       amount,
					DueDate:         due,
					Status:          models.FeeStatusPending,
				})
			}
		}
	}
	return derived
}

func installmentName(t models.InstallmentType, idx, total int, due time.Time) string {
	if t == models.InstallmentMonthly {
		return due.Format("January 2006")
	}
	if total <= 1 {
		return "Full Payment"
	}
	return fmt.Sprintf("Installment %d", idx+1)
}

func lateFeePolicies(groups []models.FeeGroup) map[string]ledger.LateFeePolicy {
	policies := make(map[string]ledger.LateFeePolicy, len(groups))
	for _, g := range groups {
		policies[g.ID] = ledger.LateFeePolicy{
			Applicable: g.LateFeeApplicable,
			Type:       g.LateFeeType,
			Amount:     g.LateFeeAmount,
		}
	}
	return policies
}
