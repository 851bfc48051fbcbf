package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type mockStudentRepo struct {
	items          map[string]*models.Student
	admissionIndex map[string]string
	listResult     []models.Student
	listTotal      int
	deactivated    []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.items[id]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByAdmissionNo(ctx context.Context, admissionNo, excludeID string) (bool, error) {
	if owner, ok := m.admissionIndex[admissionNo]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "generated-id"
	if m.items == nil {
		m.items = make(map[string]*models.Student)
	}
	cp := *student
	m.items[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	cp := *student
	m.items[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{admissionIndex: map[string]string{}}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		AdmissionNo:  "ADM-1001",
		FullName:     "Asha Verma",
		ClassID:      "class-5a",
		ClassName:    "Grade 5-A",
		AcademicYear: "2025-26",
		GuardianName: "Ravi Verma",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated-id", student.ID)
	assert.True(t, student.Active)
}

func TestStudentServiceCreateDuplicateAdmissionNo(t *testing.T) {
	repo := &mockStudentRepo{admissionIndex: map[string]string{"ADM-1001": "other"}}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		AdmissionNo:  "ADM-1001",
		FullName:     "Asha Verma",
		ClassID:      "class-5a",
		ClassName:    "Grade 5-A",
		AcademicYear: "2025-26",
		GuardianName: "Ravi Verma",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)
	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "No Admission"})
	require.Error(t, err)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &mockStudentRepo{
		items: map[string]*models.Student{
			"id1": {ID: "id1", AdmissionNo: "ADM-1", FullName: "Old Name", ClassID: "class-5a", Active: true},
		},
		admissionIndex: map[string]string{"ADM-1": "id1"},
	}
	svc := NewStudentService(repo, nil, nil)

	updated, err := svc.Update(context.Background(), "id1", UpdateStudentRequest{
		AdmissionNo:  "ADM-2",
		FullName:     "New Name",
		ClassID:      "class-6a",
		ClassName:    "Grade 6-A",
		AcademicYear: "2026-27",
		GuardianName: "Guardian",
		Active:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ADM-2", updated.AdmissionNo)
	assert.Equal(t, "class-6a", updated.ClassID)
}

func TestStudentServiceUpdateNotFound(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{items: map[string]*models.Student{}}, nil, nil)
	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{
		AdmissionNo:  "ADM-9",
		FullName:     "X",
		ClassID:      "c",
		ClassName:    "C",
		AcademicYear: "2025-26",
		GuardianName: "G",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &mockStudentRepo{items: map[string]*models.Student{"id1": {ID: "id1", Active: true}}}
	svc := NewStudentService(repo, nil, nil)
	require.NoError(t, svc.Deactivate(context.Background(), "id1"))
	assert.Equal(t, []string{"id1"}, repo.deactivated)
}

func TestStudentServiceListPagination(t *testing.T) {
	repo := &mockStudentRepo{listResult: []models.Student{{ID: "a"}, {ID: "b"}}, listTotal: 42}
	svc := NewStudentService(repo, nil, nil)
	students, pagination, err := svc.List(context.Background(), models.StudentFilter{Page: 0, PageSize: 0})
	require.NoError(t, err)
	assert.Len(t, students, 2)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 42, pagination.TotalCount)
}
