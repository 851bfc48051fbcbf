package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

type duesFixture struct {
	students     *mockDuesStudents
	groups       *mockDuesGroups
	fees         *mockFeeLineRepo
	discounts    *mockDiscountCandidates
	carryForward *mockCarryForwardReader
}

type mockDuesStudents struct {
	student *models.Student
}

func (m *mockDuesStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.student == nil || m.student.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *m.student
	return &cp, nil
}

type mockDuesGroups struct {
	groups []models.FeeGroup
}

func (m *mockDuesGroups) ListForClass(ctx context.Context, classID, academicYear string) ([]models.FeeGroup, error) {
	return m.groups, nil
}

type mockFeeLineRepo struct {
	items       []models.FeeLineItem
	assessments map[string][2]float64
}

func (m *mockFeeLineRepo) ListByStudent(ctx context.Context, studentID string) ([]models.FeeLineItem, error) {
	out := make([]models.FeeLineItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *mockFeeLineRepo) CreateBatch(ctx context.Context, items []models.FeeLineItem) error {
	for i := range items {
		items[i].ID = fmt.Sprintf("line-%d", len(m.items)+i+1)
	}
	m.items = append(m.items, items...)
	return nil
}

func (m *mockFeeLineRepo) UpdateAssessment(ctx context.Context, id string, lateFee, dueAmount float64) error {
	if m.assessments == nil {
		m.assessments = make(map[string][2]float64)
	}
	m.assessments[id] = [2]float64{lateFee, dueAmount}
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].LateFee = lateFee
			m.items[i].DueAmount = dueAmount
		}
	}
	return nil
}

type mockDiscountCandidates struct {
	discounts []models.Discount
}

func (m *mockDiscountCandidates) ListCandidates(ctx context.Context, classID string, autoApplyOnly bool) ([]models.Discount, error) {
	return m.discounts, nil
}

type mockCarryForwardReader struct {
	record *models.CarryForwardRecord
}

func (m *mockCarryForwardReader) FindByStudentYear(ctx context.Context, studentID, year string) (*models.CarryForwardRecord, error) {
	if m.record == nil {
		return nil, sql.ErrNoRows
	}
	return m.record, nil
}

func newDuesFixture() *duesFixture {
	return &duesFixture{
		students: &mockDuesStudents{student: &models.Student{
			ID:           "student-1",
			FullName:     "Asha Verma",
			ClassID:      "class-5a",
			AcademicYear: "2025-26",
		}},
		groups:       &mockDuesGroups{},
		fees:         &mockFeeLineRepo{},
		discounts:    &mockDiscountCandidates{},
		carryForward: &mockCarryForwardReader{},
	}
}

func (f *duesFixture) service() *DuesService {
	return NewDuesService(f.students, f.groups, f.fees, f.discounts, f.carryForward, nil)
}

func TestDuesServiceDerivesLineItems(t *testing.T) {
	f := newDuesFixture()
	due1 := time.Now().Add(30 * 24 * time.Hour)
	due2 := due1.Add(90 * 24 * time.Hour)
	f.groups.groups = []models.FeeGroup{{
		ID:              "group-1",
		InstallmentType: models.InstallmentTwo,
		DueDate1:        &due1,
		DueDate2:        &due2,
		Items: []models.FeeGroupItem{
			{FeeTypeID: "tuition", Amount: 10000},
			{FeeTypeID: "transport", Amount: 3000},
		},
	}}

	dues, err := f.service().GetStudentDues(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, dues.Items, 4)
	assert.Equal(t, 13000.0, dues.TotalAmount)
	assert.Equal(t, 13000.0, dues.TotalDue)

	names := map[string]bool{}
	for _, item := range dues.Items {
		names[item.InstallmentName] = true
		assert.Equal(t, models.FeeStatusPending, item.Status)
	}
	assert.True(t, names["Installment 1"])
	assert.True(t, names["Installment 2"])
}

func TestDuesServiceDerivationIsIdempotent(t *testing.T) {
	f := newDuesFixture()
	due := time.Now().Add(30 * 24 * time.Hour)
	f.groups.groups = []models.FeeGroup{{
		ID:              "group-1",
		InstallmentType: models.InstallmentSingle,
		DueDate1:        &due,
		Items:           []models.FeeGroupItem{{FeeTypeID: "tuition", Amount: 5000}},
	}}

	svc := f.service()
	first, err := svc.GetStudentDues(context.Background(), "student-1")
	require.NoError(t, err)
	second, err := svc.GetStudentDues(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Len(t, first.Items, 1)
	assert.Len(t, second.Items, 1)
	assert.Equal(t, "Full Payment", second.Items[0].InstallmentName)
}

func TestDuesServiceAssessesLateFee(t *testing.T) {
	f := newDuesFixture()
	overdue := time.Now().Add(-10 * 24 * time.Hour)
	f.groups.groups = []models.FeeGroup{{
		ID:                "group-1",
		InstallmentType:   models.InstallmentSingle,
		DueDate1:          &overdue,
		LateFeeApplicable: true,
		LateFeeType:       models.LateFeeDaily,
		LateFeeAmount:     10,
		Items:             []models.FeeGroupItem{{FeeTypeID: "tuition", Amount: 1000}},
	}}

	dues, err := f.service().GetStudentDues(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, dues.Items, 1)
	item := dues.Items[0]
	assert.True(t, item.IsOverdue)
	assert.Equal(t, 100.0, item.LateFee)
	assert.Equal(t, 1100.0, item.DueAmount)
	assert.Equal(t, 100.0, dues.TotalLateFee)
	assert.Equal(t, 1100.0, dues.TotalDue)
	assert.Contains(t, f.fees.assessments, item.ID)
}

func TestDuesServiceAppliesAutoDiscounts(t *testing.T) {
	f := newDuesFixture()
	due := time.Now().Add(30 * 24 * time.Hour)
	f.groups.groups = []models.FeeGroup{{
		ID:              "group-1",
		InstallmentType: models.InstallmentSingle,
		DueDate1:        &due,
		Items:           []models.FeeGroupItem{{FeeTypeID: "tuition", Amount: 1000}},
	}}
	f.discounts.discounts = []models.Discount{{
		ID:           "disc-1",
		Name:         "Sibling",
		DiscountType: models.DiscountPercentage,
		Value:        10,
		Priority:     1,
		Active:       true,
		AutoApply:    true,
		ValidFrom:    time.Now().Add(-24 * time.Hour),
	}}

	dues, err := f.service().GetStudentDues(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, dues.TotalDiscount)
	assert.Equal(t, 900.0, dues.TotalDue)
	require.Len(t, dues.AppliedDiscounts, 1)
	assert.Equal(t, "disc-1", dues.AppliedDiscounts[0].DiscountID)
}

func TestDuesServiceIncludesCarryForward(t *testing.T) {
	f := newDuesFixture()
	f.carryForward.record = &models.CarryForwardRecord{
		ID:        "cf-1",
		StudentID: "student-1",
		Status:    models.CarryForwardPending,
		Items: []models.CarryForwardItem{
			{FeeTypeID: "tuition", Amount: 1500},
		},
	}

	dues, err := f.service().GetStudentDues(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, dues.CarryForwardDue)
	assert.Equal(t, 1500.0, dues.TotalDue)
}

func TestDuesServiceStudentNotFound(t *testing.T) {
	f := newDuesFixture()
	_, err := f.service().GetStudentDues(context.Background(), "missing")
	require.Error(t, err)
}

func TestDuesServicePaidItemsExcludedFromTotals(t *testing.T) {
	f := newDuesFixture()
	paidAt := time.Now()
	f.fees.items = []models.FeeLineItem{
		{ID: "line-1", StudentID: "student-1", FeeGroupID: "group-x", FeeTypeID: "tuition", InstallmentName: "Full Payment", Amount: 1000, DueAmount: 1000, Status: models.FeeStatusPaid, PaidAt: &paidAt, DueDate: time.Now().Add(-time.Hour)},
		{ID: "line-2", StudentID: "student-1", FeeGroupID: "group-x", FeeTypeID: "transport", InstallmentName: "Full Payment", Amount: 500, DueAmount: 500, Status: models.FeeStatusPending, DueDate: time.Now().Add(time.Hour)},
	}

	dues, err := f.service().GetStudentDues(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, dues.TotalAmount)
	assert.Equal(t, 500.0, dues.TotalDue)
}
