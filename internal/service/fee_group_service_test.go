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

type mockFeeGroupRepo struct {
	groups map[string]*models.FeeGroup
}

func newMockFeeGroupRepo() *mockFeeGroupRepo {
	return &mockFeeGroupRepo{groups: map[string]*models.FeeGroup{}}
}

func (m *mockFeeGroupRepo) List(ctx context.Context, filter models.FeeGroupFilter) ([]models.FeeGroup, int, error) {
	out := make([]models.FeeGroup, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, *g)
	}
	return out, len(out), nil
}

func (m *mockFeeGroupRepo) ListForClass(ctx context.Context, classID, academicYear string) ([]models.FeeGroup, error) {
	return nil, nil
}

func (m *mockFeeGroupRepo) FindByID(ctx context.Context, id string) (*models.FeeGroup, error) {
	if g, ok := m.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeGroupRepo) Create(ctx context.Context, group *models.FeeGroup) error {
	group.ID = fmt.Sprintf("group-%d", len(m.groups)+1)
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *mockFeeGroupRepo) Update(ctx context.Context, group *models.FeeGroup) error {
	if _, ok := m.groups[group.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *mockFeeGroupRepo) Delete(ctx context.Context, id string) error {
	delete(m.groups, id)
	return nil
}

type mockFeeTypeRepo struct {
	types map[string]*models.FeeType
}

func (m *mockFeeTypeRepo) List(ctx context.Context, filter models.FeeTypeFilter) ([]models.FeeType, int, error) {
	out := make([]models.FeeType, 0, len(m.types))
	for _, ft := range m.types {
		out = append(out, *ft)
	}
	return out, len(out), nil
}

func (m *mockFeeTypeRepo) FindByID(ctx context.Context, id string) (*models.FeeType, error) {
	if ft, ok := m.types[id]; ok {
		cp := *ft
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeTypeRepo) Create(ctx context.Context, ft *models.FeeType) error {
	if m.types == nil {
		m.types = map[string]*models.FeeType{}
	}
	ft.ID = fmt.Sprintf("ft-%d", len(m.types)+1)
	cp := *ft
	m.types[ft.ID] = &cp
	return nil
}

func (m *mockFeeTypeRepo) Update(ctx context.Context, ft *models.FeeType) error {
	cp := *ft
	m.types[ft.ID] = &cp
	return nil
}

func (m *mockFeeTypeRepo) Delete(ctx context.Context, id string) error {
	delete(m.types, id)
	return nil
}

func feeGroupFixture() (*mockFeeGroupRepo, *FeeGroupService) {
	repo := newMockFeeGroupRepo()
	feeTypes := &mockFeeTypeRepo{types: map[string]*models.FeeType{
		"tuition":   {ID: "tuition", Name: "Tuition", DefaultAmount: 10000},
		"transport": {ID: "transport", Name: "Transport", DefaultAmount: 3000},
	}}
	return repo, NewFeeGroupService(repo, feeTypes, nil, nil)
}

func TestFeeGroupServiceCreateSingle(t *testing.T) {
	_, svc := feeGroupFixture()
	due := time.Now().AddDate(0, 1, 0)

	group, err := svc.Create(context.Background(), FeeGroupRequest{
		Name:            "Annual Fees",
		AcademicYear:    "2025-26",
		InstallmentType: models.InstallmentSingle,
		DueDate1:        &due,
		Items:           []FeeGroupItemRequest{{FeeTypeID: "tuition", Amount: 12000}},
	})
	require.NoError(t, err)
	require.Len(t, group.Items, 1)
	assert.Equal(t, 12000.0, group.Items[0].Amount)
	assert.Equal(t, "Tuition", group.Items[0].FeeTypeName)
}

func TestFeeGroupServiceItemAmountDefaultsFromFeeType(t *testing.T) {
	_, svc := feeGroupFixture()
	due := time.Now().AddDate(0, 1, 0)

	group, err := svc.Create(context.Background(), FeeGroupRequest{
		Name:            "Transport Plan",
		AcademicYear:    "2025-26",
		InstallmentType: models.InstallmentSingle,
		DueDate1:        &due,
		Items:           []FeeGroupItemRequest{{FeeTypeID: "transport"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3000.0, group.Items[0].Amount)
}

func TestFeeGroupServiceCardinalityMismatch(t *testing.T) {
	_, svc := feeGroupFixture()
	due := time.Now().AddDate(0, 1, 0)

	_, err := svc.Create(context.Background(), FeeGroupRequest{
		Name:            "Three Part",
		AcademicYear:    "2025-26",
		InstallmentType: models.InstallmentThree,
		DueDate1:        &due,
		Items:           []FeeGroupItemRequest{{FeeTypeID: "tuition"}},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInvalidFeeDefinition.Code, appErr.Code)
}

func TestFeeGroupServiceDatesMustIncrease(t *testing.T) {
	_, svc := feeGroupFixture()
	due1 := time.Now().AddDate(0, 2, 0)
	due2 := time.Now().AddDate(0, 1, 0)

	_, err := svc.Create(context.Background(), FeeGroupRequest{
		Name:            "Two Part",
		AcademicYear:    "2025-26",
		InstallmentType: models.InstallmentTwo,
		DueDate1:        &due1,
		DueDate2:        &due2,
		Items:           []FeeGroupItemRequest{{FeeTypeID: "tuition"}},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInvalidFeeDefinition.Code, appErr.Code)
}

func TestFeeGroupServiceLateFeeTypeRequired(t *testing.T) {
	_, svc := feeGroupFixture()
	due := time.Now().AddDate(0, 1, 0)

	_, err := svc.Create(context.Background(), FeeGroupRequest{
		Name:              "With Late Fee",
		AcademicYear:      "2025-26",
		InstallmentType:   models.InstallmentSingle,
		DueDate1:          &due,
		LateFeeApplicable: true,
		Items:             []FeeGroupItemRequest{{FeeTypeID: "tuition"}},
	})
	require.Error(t, err)
}

func TestFeeGroupServiceUnknownFeeType(t *testing.T) {
	_, svc := feeGroupFixture()
	due := time.Now().AddDate(0, 1, 0)

	_, err := svc.Create(context.Background(), FeeGroupRequest{
		Name:            "Mystery",
		AcademicYear:    "2025-26",
		InstallmentType: models.InstallmentSingle,
		DueDate1:        &due,
		Items:           []FeeGroupItemRequest{{FeeTypeID: "unknown"}},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestFeeGroupServiceUpdate(t *testing.T) {
	repo, svc := feeGroupFixture()
	due := time.Now().AddDate(0, 1, 0)
	created, err := svc.Create(context.Background(), FeeGroupRequest{
		Name:            "Annual Fees",
		AcademicYear:    "2025-26",
		InstallmentType: models.InstallmentSingle,
		DueDate1:        &due,
		Items:           []FeeGroupItemRequest{{FeeTypeID: "tuition"}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, FeeGroupRequest{
		Name:            "Annual Fees Revised",
		AcademicYear:    "2025-26",
		InstallmentType: models.InstallmentSingle,
		DueDate1:        &due,
		Items:           []FeeGroupItemRequest{{FeeTypeID: "tuition"}, {FeeTypeID: "transport"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Annual Fees Revised", updated.Name)
	assert.Len(t, updated.Items, 2)
	assert.Len(t, repo.groups, 1)
}
