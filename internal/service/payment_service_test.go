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
	"github.com/noah-isme/sma-fees-api/internal/repository"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

type mockPaymentRepo struct {
	seq         int
	posted      []*models.Payment
	postUpdates [][]repository.FeeLineUpdate
	postErr     error
	postDelay   time.Duration
	byKey       map[string]*models.Payment
	byID        map[string]*models.Payment
}

func (m *mockPaymentRepo) NextReceiptSequence(ctx context.Context, day string) (int, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockPaymentRepo) Post(ctx context.Context, payment *models.Payment, updates []repository.FeeLineUpdate) error {
	if m.postDelay > 0 {
		select {
		case <-time.After(m.postDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.postErr != nil {
		return m.postErr
	}
	payment.ID = fmt.Sprintf("pay-%d", len(m.posted)+1)
	m.posted = append(m.posted, payment)
	m.postUpdates = append(m.postUpdates, updates)
	return nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	return nil, 0, nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	if p, ok := m.byKey[key]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type mockFeeLineReader struct {
	items map[string]models.FeeLineItem
}

func (m *mockFeeLineReader) GetByIDs(ctx context.Context, ids []string) ([]models.FeeLineItem, error) {
	out := make([]models.FeeLineItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func newPaymentFixture() (*mockPaymentRepo, *mockFeeLineReader) {
	repo := &mockPaymentRepo{byKey: map[string]*models.Payment{}, byID: map[string]*models.Payment{}}
	fees := &mockFeeLineReader{items: map[string]models.FeeLineItem{
		"line-1": {ID: "line-1", StudentID: "student-1", DueAmount: 1000, Status: models.FeeStatusPending},
		"line-2": {ID: "line-2", StudentID: "student-1", DueAmount: 500, Status: models.FeeStatusPartiallyPaid},
		"line-3": {ID: "line-3", StudentID: "student-2", DueAmount: 700, Status: models.FeeStatusPending},
		"line-4": {ID: "line-4", StudentID: "student-1", DueAmount: 0, Status: models.FeeStatusPaid},
	}}
	return repo, fees
}

func TestPaymentServicePostFullAndPartial(t *testing.T) {
	repo, fees := newPaymentFixture()
	svc := NewPaymentService(repo, fees, nil, nil, "RCP", 0, nil, nil)

	payment, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID: "student-1",
		Mode:      models.PaymentModeCash,
		Allocations: []PaymentAllocationRequest{
			{FeeLineItemID: "line-1", Amount: 1000},
			{FeeLineItemID: "line-2", Amount: 200},
		},
	}, "cashier-1")
	require.NoError(t, err)
	assert.Equal(t, 1200.0, payment.TotalAmount)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "cashier-1", payment.CollectedBy)

	require.Len(t, repo.postUpdates, 1)
	updates := repo.postUpdates[0]
	require.Len(t, updates, 2)
	assert.Equal(t, models.FeeStatusPaid, updates[0].Status)
	assert.NotNil(t, updates[0].PaidAt)
	assert.Equal(t, 0.0, updates[0].DueAmount)
	assert.Equal(t, models.FeeStatusPartiallyPaid, updates[1].Status)
	assert.Nil(t, updates[1].PaidAt)
	assert.Equal(t, 300.0, updates[1].DueAmount)
}

func TestPaymentServiceReceiptNumberFormat(t *testing.T) {
	repo, fees := newPaymentFixture()
	svc := NewPaymentService(repo, fees, nil, nil, "RCP", 0, nil, nil)

	payment, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID:   "student-1",
		Mode:        models.PaymentModeUPI,
		Allocations: []PaymentAllocationRequest{{FeeLineItemID: "line-1", Amount: 100}},
	}, "cashier-1")
	require.NoError(t, err)
	expected := fmt.Sprintf("RCP-%s-0001", time.Now().UTC().Format("20060102"))
	assert.Equal(t, expected, payment.ReceiptNumber)
}

func TestPaymentServiceOverpaymentRejected(t *testing.T) {
	repo, fees := newPaymentFixture()
	svc := NewPaymentService(repo, fees, nil, nil, "", 0, nil, nil)

	_, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID:   "student-1",
		Mode:        models.PaymentModeCash,
		Allocations: []PaymentAllocationRequest{{FeeLineItemID: "line-1", Amount: 1500}},
	}, "cashier-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrOverpaymentRejected.Code, appErr.Code)
	assert.Empty(t, repo.posted)
}

func TestPaymentServiceRejectsPaidLine(t *testing.T) {
	repo, fees := newPaymentFixture()
	svc := NewPaymentService(repo, fees, nil, nil, "", 0, nil, nil)

	_, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID:   "student-1",
		Mode:        models.PaymentModeCash,
		Allocations: []PaymentAllocationRequest{{FeeLineItemID: "line-4", Amount: 10}},
	}, "cashier-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrOverpaymentRejected.Code, appErr.Code)
}

func TestPaymentServiceRejectsForeignLine(t *testing.T) {
	repo, fees := newPaymentFixture()
	svc := NewPaymentService(repo, fees, nil, nil, "", 0, nil, nil)

	_, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID:   "student-1",
		Mode:        models.PaymentModeCash,
		Allocations: []PaymentAllocationRequest{{FeeLineItemID: "line-3", Amount: 100}},
	}, "cashier-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPaymentServiceDuplicateLineRejected(t *testing.T) {
	repo, fees := newPaymentFixture()
	svc := NewPaymentService(repo, fees, nil, nil, "", 0, nil, nil)

	_, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID: "student-1",
		Mode:      models.PaymentModeCash,
		Allocations: []PaymentAllocationRequest{
			{FeeLineItemID: "line-1", Amount: 100},
			{FeeLineItemID: "line-1", Amount: 100},
		},
	}, "cashier-1")
	require.Error(t, err)
}

func TestPaymentServiceIdempotencyReturnsExisting(t *testing.T) {
	repo, fees := newPaymentFixture()
	existing := &models.Payment{ID: "pay-existing", ReceiptNumber: "RCP-20260101-0001"}
	repo.byKey["key-1"] = existing
	svc := NewPaymentService(repo, fees, nil, nil, "", 0, nil, nil)

	key := "key-1"
	payment, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID:      "student-1",
		Mode:           models.PaymentModeCash,
		Allocations:    []PaymentAllocationRequest{{FeeLineItemID: "line-1", Amount: 100}},
		IdempotencyKey: &key,
	}, "cashier-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-existing", payment.ID)
	assert.Empty(t, repo.posted)
}

func TestPaymentServicePostTimeout(t *testing.T) {
	repo, fees := newPaymentFixture()
	repo.postDelay = 100 * time.Millisecond
	svc := NewPaymentService(repo, fees, nil, nil, "", 10*time.Millisecond, nil, nil)

	_, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID:   "student-1",
		Mode:        models.PaymentModeCash,
		Allocations: []PaymentAllocationRequest{{FeeLineItemID: "line-1", Amount: 100}},
	}, "cashier-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrTimeout.Code, appErr.Code)
}

func TestPaymentServiceZeroAmountRejected(t *testing.T) {
	repo, fees := newPaymentFixture()
	svc := NewPaymentService(repo, fees, nil, nil, "", 0, nil, nil)

	_, err := svc.Post(context.Background(), PostPaymentRequest{
		StudentID:   "student-1",
		Mode:        models.PaymentModeCash,
		Allocations: []PaymentAllocationRequest{{FeeLineItemID: "line-1", Amount: 0}},
	}, "cashier-1")
	require.Error(t, err)
}

func TestPaymentServiceReceiptRendersPDF(t *testing.T) {
	repo, fees := newPaymentFixture()
	repo.byID["pay-1"] = &models.Payment{
		ID:            "pay-1",
		StudentID:     "student-1",
		StudentName:   "Asha Verma",
		ReceiptNumber: "RCP-20260101-0001",
		Mode:          models.PaymentModeCash,
		TotalAmount:   1200,
		CollectedBy:   "cashier-1",
		ProcessedAt:   time.Now(),
		Allocations: []models.PaymentAllocation{
			{FeeLineItemID: "line-1", FeeTypeName: "Tuition", Amount: 1000},
			{FeeLineItemID: "line-2", FeeTypeName: "Transport", Amount: 200},
		},
	}
	svc := NewPaymentService(repo, fees, nil, nil, "", 0, nil, nil)

	pdf, filename, err := svc.Receipt(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "RCP-20260101-0001.pdf", filename)
	assert.True(t, len(pdf) > 0)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
