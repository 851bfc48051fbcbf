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
	"github.com/noah-isme/sma-fees-api/internal/repository"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/export"
)

type paymentRepository interface {
	NextReceiptSequence(ctx context.Context, day string) (int, error)
	Post(ctx context.Context, payment *models.Payment, updates []repository.FeeLineUpdate) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error)
}

type feeLineReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.FeeLineItem, error)
}

// PaymentAllocationRequest applies part of a payment to one line item.
type PaymentAllocationRequest struct {
	FeeLineItemID string  `json:"fee_line_item_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"gte=0"`
}

// PostPaymentRequest describes a collection-desk payment.
type PostPaymentRequest struct {
	StudentID      string                     `json:"student_id" validate:"required"`
	Mode           models.PaymentMode         `json:"mode" validate:"required,oneof=cash card upi cheque bank_transfer"`
	Allocations    []PaymentAllocationRequest `json:"allocations" validate:"required,min=1,dive"`
	DiscountAmount float64                    `json:"discount_amount" validate:"gte=0"`
	DiscountReason string                     `json:"discount_reason"`
	IdempotencyKey *string                    `json:"idempotency_key"`
}

// PaymentService posts payments against student dues. Posting locks per
// student and runs under a deadline so a stuck transaction surfaces as a
// timeout instead of blocking the desk.
type PaymentService struct {
	repo          paymentRepository
	fees          feeLineReader
	receipts      *export.ReceiptRenderer
	locks         *KeyedMutex
	receiptPrefix string
	deadline      time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, fees feeLineReader, receipts *export.ReceiptRenderer, locks *KeyedMutex, receiptPrefix string, deadline time.Duration, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if receipts == nil {
		receipts = export.NewReceiptRenderer("INR")
	}
	if locks == nil {
		locks = NewKeyedMutex()
	}
	if receiptPrefix == "" {
		receiptPrefix = "RCP"
	}
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		repo:          repo,
		fees:          fees,
		receipts:      receipts,
		locks:         locks,
		receiptPrefix: receiptPrefix,
		deadline:      deadline,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Post validates and persists a payment, returning the stored receipt.
// When an idempotency key is supplied and a payment already carries it,
// that payment is returned instead of posting a duplicate.
func (s *PaymentService) Post(ctx context.Context, req PostPaymentRequest, collectedBy string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, *req.IdempotencyKey)
		if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check idempotency key")
		}
		if existing != nil {
			return existing, nil
		}
	}

	unlock := s.locks.Lock(req.StudentID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	ids := make([]string, 0, len(req.Allocations))
	requested := make(map[string]float64, len(req.Allocations))
	for _, alloc := range req.Allocations {
		if _, dup := requested[alloc.FeeLineItemID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("line item %s referenced twice", alloc.FeeLineItemID))
		}
		requested[alloc.FeeLineItemID] = alloc.Amount
		ids = append(ids, alloc.FeeLineItemID)
	}

	items, err := s.fees.GetByIDs(ctx, ids)
	if err != nil {
		return nil, s.wrapPostError(ctx, err, "failed to load fee line items")
	}
	if len(items) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more fee line items not found")
	}

	lines := make([]ledger.PaymentLine, 0, len(items))
	for _, item := range items {
		if item.StudentID != req.StudentID {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("line item %s does not belong to student %s", item.ID, req.StudentID))
		}
		if item.Status == models.FeeStatusPaid {
			return nil, appErrors.Clone(appErrors.ErrOverpaymentRejected,
				fmt.Sprintf("line item %s is already paid", item.ID))
		}
		lines = append(lines, ledger.PaymentLine{
			FeeLineItemID: item.ID,
			DueAmount:     item.DueAmount,
			Apply:         requested[item.ID],
		})
	}

	net, err := ledger.ValidatePayment(lines, req.DiscountAmount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updates := make([]repository.FeeLineUpdate, 0, len(lines))
	allocations := make([]models.PaymentAllocation, 0, len(lines))
	for _, line := range lines {
		if line.Apply == 0 {
			continue
		}
		status := ledger.NextStatus(line.DueAmount, line.Apply)
		update := repository.FeeLineUpdate{
			ID:        line.FeeLineItemID,
			DueAmount: ledger.RemainingDue(line.DueAmount, line.Apply),
			Status:    status,
		}
		if status == models.FeeStatusPaid {
			paidAt := now
			update.PaidAt = &paidAt
		}
		updates = append(updates, update)
		allocations = append(allocations, models.PaymentAllocation{
			FeeLineItemID: line.FeeLineItemID,
			Amount:        ledger.Round(line.Apply),
		})
	}
	if len(allocations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment must apply a positive amount")
	}

	receiptNumber, err := s.nextReceiptNumber(ctx, now)
	if err != nil {
		return nil, s.wrapPostError(ctx, err, "failed to allocate receipt number")
	}

	payment := &models.Payment{
		StudentID:      req.StudentID,
		ReceiptNumber:  receiptNumber,
		Mode:           req.Mode,
		DiscountAmount: ledger.Round(req.DiscountAmount),
		DiscountReason: req.DiscountReason,
		TotalAmount:    net,
		Status:         models.PaymentStatusCompleted,
		IdempotencyKey: req.IdempotencyKey,
		CollectedBy:    collectedBy,
		ProcessedAt:    now,
		Allocations:    allocations,
	}
	if err := s.repo.Post(ctx, payment, updates); err != nil {
		return nil, s.wrapPostError(ctx, err, "failed to post payment")
	}

	s.logger.Info("payment posted",
		zap.String("payment_id", payment.ID),
		zap.String("receipt_number", payment.ReceiptNumber),
		zap.String("student_id", payment.StudentID),
		zap.Float64("amount", payment.TotalAmount),
		zap.String("mode", string(payment.Mode)))

	stored, err := s.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return payment, nil
	}
	return stored, nil
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Receipt renders the printable PDF receipt for a payment.
func (s *PaymentService) Receipt(ctx context.Context, id string) ([]byte, string, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data := export.ReceiptData{
		ReceiptNumber:  payment.ReceiptNumber,
		StudentName:    payment.StudentName,
		StudentID:      payment.StudentID,
		Mode:           string(payment.Mode),
		CollectedBy:    payment.CollectedBy,
		ProcessedAt:    payment.ProcessedAt,
		DiscountAmount: payment.DiscountAmount,
		TotalAmount:    payment.TotalAmount,
	}
	for _, alloc := range payment.Allocations {
		data.Lines = append(data.Lines, export.ReceiptLine{
			Description: alloc.FeeTypeName,
			Amount:      alloc.Amount,
		})
	}
	pdf, err := s.receipts.Render(data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return pdf, fmt.Sprintf("%s.pdf", payment.ReceiptNumber), nil
}

func (s *PaymentService) nextReceiptNumber(ctx context.Context, now time.Time) (string, error) {
	day := now.Format("20060102")
	seq, err := s.repo.NextReceiptSequence(ctx, day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", s.receiptPrefix, day, seq), nil
}

func (s *PaymentService) wrapPostError(ctx context.Context, err error, msg string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return appErrors.Clone(appErrors.ErrTimeout, "payment posting timed out")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
}
