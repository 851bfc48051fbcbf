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
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type mockCarryForwardRepo struct {
	records map[string]*models.CarryForwardRecord
	created []*models.CarryForwardRecord
}

func newMockCarryForwardRepo() *mockCarryForwardRepo {
	return &mockCarryForwardRepo{records: map[string]*models.CarryForwardRecord{}}
}

func (m *mockCarryForwardRepo) List(ctx context.Context, filter models.CarryForwardFilter) ([]models.CarryForwardRecord, int, error) {
	out := make([]models.CarryForwardRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockCarryForwardRepo) FindByID(ctx context.Context, id string) (*models.CarryForwardRecord, error) {
	if r, ok := m.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCarryForwardRepo) FindByStudentYear(ctx context.Context, studentID, year string) (*models.CarryForwardRecord, error) {
	for _, r := range m.records {
		if r.StudentID == studentID && r.CurrentAcademicYear == year {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCarryForwardRepo) Create(ctx context.Context, record *models.CarryForwardRecord) error {
	record.ID = fmt.Sprintf("cf-%d", len(m.records)+1)
	cp := *record
	m.records[record.ID] = &cp
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockCarryForwardRepo) AddAdjustment(ctx context.Context, adj *models.CarryForwardAdjustment, newAdjustedTotal float64) error {
	record, ok := m.records[adj.RecordID]
	if !ok {
		return sql.ErrNoRows
	}
	adj.ID = fmt.Sprintf("adj-%d", len(record.Adjustments)+1)
	record.Adjustments = append(record.Adjustments, *adj)
	record.AdjustedAmount = newAdjustedTotal
	record.Status = models.CarryForwardAdjusted
	return nil
}

func (m *mockCarryForwardRepo) UpdateStatus(ctx context.Context, id string, status models.CarryForwardStatus, processType *models.ProcessType, processedAt *time.Time) error {
	record, ok := m.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	record.Status = status
	record.ProcessType = processType
	record.ProcessedAt = processedAt
	return nil
}

type mockFeeLineCreator struct {
	created []models.FeeLineItem
}

func (m *mockFeeLineCreator) CreateBatch(ctx context.Context, items []models.FeeLineItem) error {
	m.created = append(m.created, items...)
	return nil
}

func carryForwardFixture() (*mockCarryForwardRepo, *mockFeeLineCreator, *CarryForwardService) {
	repo := newMockCarryForwardRepo()
	fees := &mockFeeLineCreator{}
	students := &mockDuesStudents{student: &models.Student{
		ID:           "student-1",
		FullName:     "Asha Verma",
		ClassID:      "class-5a",
		AcademicYear: "2025-26",
	}}
	svc := NewCarryForwardService(repo, fees, students, nil, nil, nil)
	return repo, fees, svc
}

func seedRecord(repo *mockCarryForwardRepo, amount float64) *models.CarryForwardRecord {
	record := &models.CarryForwardRecord{
		ID:                   "cf-seed",
		StudentID:            "student-1",
		StudentName:          "Asha Verma",
		PreviousAcademicYear: "2024-25",
		CurrentAcademicYear:  "2025-26",
		Status:               models.CarryForwardPending,
		Items: []models.CarryForwardItem{
			{ID: "cfi-1", RecordID: "cf-seed", FeeTypeID: "tuition", Amount: amount, DueDate: time.Now()},
		},
	}
	repo.records[record.ID] = record
	return record
}

func TestCarryForwardServiceCreate(t *testing.T) {
	repo, _, svc := carryForwardFixture()

	record, err := svc.Create(context.Background(), CarryForwardCreateRequest{
		StudentID:            "student-1",
		PreviousAcademicYear: "2024-25",
		CurrentAcademicYear:  "2025-26",
		Items: []CarryForwardItemRequest{
			{FeeTypeID: "tuition", Amount: 2000, DueDate: time.Now()},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CarryForwardPending, record.Status)
	assert.Len(t, repo.created, 1)
}

func TestCarryForwardServiceCreateRejectsDuplicate(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	_, err := svc.Create(context.Background(), CarryForwardCreateRequest{
		StudentID:            "student-1",
		PreviousAcademicYear: "2024-25",
		CurrentAcademicYear:  "2025-26",
		Items:                []CarryForwardItemRequest{{FeeTypeID: "tuition", Amount: 100, DueDate: time.Now()}},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCarryForwardServiceAdjust(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	record, err := svc.Adjust(context.Background(), "cf-seed", "admin-1", CarryForwardAdjustRequest{
		Type:   models.AdjustmentWaiver,
		Amount: 400,
		Reason: "hardship waiver",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CarryForwardAdjusted, record.Status)
	assert.Equal(t, 400.0, record.AdjustedAmount)
	require.Len(t, record.Adjustments, 1)
	assert.Equal(t, "admin-1", record.Adjustments[0].AdjustedBy)
}

func TestCarryForwardServiceAdjustExceedsBalance(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	_, err := svc.Adjust(context.Background(), "cf-seed", "admin-1", CarryForwardAdjustRequest{
		Type:   models.AdjustmentWaiver,
		Amount: 1200,
		Reason: "too much",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrAdjustmentExceedsBalance.Code, appErr.Code)
}

func TestCarryForwardServiceAdjustProcessedRecord(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	record := seedRecord(repo, 1000)
	record.Status = models.CarryForwardProcessed

	_, err := svc.Adjust(context.Background(), "cf-seed", "admin-1", CarryForwardAdjustRequest{
		Type:   models.AdjustmentWaiver,
		Amount: 100,
		Reason: "late waiver",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrCarryForwardNotAdjustable.Code, appErr.Code)
}

func TestCarryForwardServiceProcessConvertToDues(t *testing.T) {
	repo, fees, svc := carryForwardFixture()
	record := seedRecord(repo, 1000)
	record.Adjustments = []models.CarryForwardAdjustment{
		{ID: "adj-1", RecordID: "cf-seed", Type: models.AdjustmentWaiver, Amount: 300},
	}
	record.AdjustedAmount = 300
	record.Status = models.CarryForwardAdjusted

	processed, err := svc.Process(context.Background(), "cf-seed", CarryForwardProcessRequest{
		ProcessType: models.ProcessConvertToDues,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CarryForwardProcessed, processed.Status)
	require.NotNil(t, processed.ProcessType)
	assert.Equal(t, models.ProcessConvertToDues, *processed.ProcessType)

	require.Len(t, fees.created, 1)
	line := fees.created[0]
	assert.Equal(t, "student-1", line.StudentID)
	assert.Equal(t, 700.0, line.Amount)
	assert.Equal(t, "Carry Forward 2024-25", line.InstallmentName)
	assert.Equal(t, models.FeeStatusPending, line.Status)
}

func TestCarryForwardServiceProcessWriteOff(t *testing.T) {
	repo, fees, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	processed, err := svc.Process(context.Background(), "cf-seed", CarryForwardProcessRequest{
		ProcessType: models.ProcessWriteOff,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CarryForwardProcessed, processed.Status)
	assert.Empty(t, fees.created)
	assert.Empty(t, repo.created)
}

func TestCarryForwardServiceProcessRollsForward(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	_, err := svc.Process(context.Background(), "cf-seed", CarryForwardProcessRequest{
		ProcessType: models.ProcessCarryForward,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	next := repo.created[0]
	assert.Equal(t, "2025-26", next.PreviousAcademicYear)
	assert.Equal(t, "2026-27", next.CurrentAcademicYear)
	require.Len(t, next.Items, 1)
	assert.Equal(t, 1000.0, next.Items[0].Amount)
}

func TestCarryForwardServiceProcessTwiceFails(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	_, err := svc.Process(context.Background(), "cf-seed", CarryForwardProcessRequest{ProcessType: models.ProcessWriteOff})
	require.NoError(t, err)
	_, err = svc.Process(context.Background(), "cf-seed", CarryForwardProcessRequest{ProcessType: models.ProcessWriteOff})
	require.Error(t, err)
}

func TestCarryForwardServiceCancel(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	record, err := svc.Cancel(context.Background(), "cf-seed")
	require.NoError(t, err)
	assert.Equal(t, models.CarryForwardCancelled, record.Status)
}

func TestCarryForwardServiceBulkProcessCollectsFailures(t *testing.T) {
	repo, _, svc := carryForwardFixture()
	seedRecord(repo, 1000)
	processed := &models.CarryForwardRecord{
		ID:                  "cf-done",
		StudentID:           "student-2",
		CurrentAcademicYear: "2025-26",
		Status:              models.CarryForwardProcessed,
		Items:               []models.CarryForwardItem{{FeeTypeID: "tuition", Amount: 500}},
	}
	repo.records[processed.ID] = processed

	result, err := svc.BulkProcess(context.Background(), BulkProcessRequest{
		RecordIDs:   []string{"cf-seed", "cf-done", "cf-missing"},
		ProcessType: models.ProcessWriteOff,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Failures, 2)
}

func TestCarryForwardServiceBulkProcessAppliesDiscount(t *testing.T) {
	repo, fees, svc := carryForwardFixture()
	seedRecord(repo, 1000)

	result, err := svc.BulkProcess(context.Background(), BulkProcessRequest{
		RecordIDs:          []string{"cf-seed"},
		ProcessType:        models.ProcessConvertToDues,
		DiscountPercentage: 25,
		Reason:             "settlement drive",
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	record := repo.records["cf-seed"]
	require.Len(t, record.Adjustments, 1)
	assert.Equal(t, models.AdjustmentDiscount, record.Adjustments[0].Type)
	assert.Equal(t, 250.0, record.Adjustments[0].Amount)

	require.Len(t, fees.created, 1)
	assert.Equal(t, 750.0, fees.created[0].Amount)
}

func TestNextAcademicYear(t *testing.T) {
	assert.Equal(t, "2026-27", nextAcademicYear("2025-26"))
	assert.Equal(t, "2030-31", nextAcademicYear("2029-30"))
	assert.Equal(t, "2000-01", nextAcademicYear("1999-00"))
	assert.Equal(t, "weird", nextAcademicYear("weird"))
}
