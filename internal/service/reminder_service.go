package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/ledger"
	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/jobs"
)

type templateRepository interface {
	ListTemplates(ctx context.Context, activeOnly bool) ([]models.MessageTemplate, error)
	FindTemplate(ctx context.Context, id string) (*models.MessageTemplate, error)
	CreateTemplate(ctx context.Context, template *models.MessageTemplate) error
	UpdateTemplate(ctx context.Context, template *models.MessageTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	CreateLog(ctx context.Context, log *models.ReminderLog) error
	UpdateLogStatus(ctx context.Context, id string, status models.ReminderStatus, failureReason *string, sentAt *time.Time) error
	ListLogs(ctx context.Context, filter models.ReminderLogFilter) ([]models.ReminderLog, int, error)
}

type overdueLister interface {
	ListOverdue(ctx context.Context, asOf time.Time) ([]models.FeeLineItem, error)
}

// MessageGateway delivers a rendered reminder over one channel.
type MessageGateway interface {
	Send(ctx context.Context, channel models.MessageChannel, recipient, subject, body string) error
}

// LogGateway writes outbound messages to the log instead of a real
// provider. Swap in an SMTP or SMS gateway in production.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway constructs the logging gateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogGateway{logger: logger}
}

// Send logs the message and reports success.
func (g *LogGateway) Send(_ context.Context, channel models.MessageChannel, recipient, subject, _ string) error {
	g.logger.Info("reminder dispatched",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.String("subject", subject))
	return nil
}

// MessageTemplateRequest describes template create/update payloads.
type MessageTemplateRequest struct {
	Name    string                `json:"name" validate:"required,min=2,max=100"`
	Channel models.MessageChannel `json:"channel" validate:"required,oneof=email sms"`
	Subject string                `json:"subject" validate:"required_if=Channel email"`
	Body    string                `json:"body" validate:"required,min=5"`
	Active  *bool                 `json:"active"`
}

// DispatchRemindersRequest kicks off a reminder run for overdue dues.
type DispatchRemindersRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
}

// DispatchResult summarises a reminder run.
type DispatchResult struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

type reminderJob struct {
	LogID     string
	Channel   models.MessageChannel
	Recipient string
	Subject   string
	Body      string
}

// ReminderService renders fee reminders from templates and hands them to
// a background queue for delivery.
type ReminderService struct {
	templates templateRepository
	fees      overdueLister
	students  duesStudentReader
	gateway   MessageGateway
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReminderService constructs ReminderService and its dispatch queue.
func NewReminderService(templates templateRepository, fees overdueLister, students duesStudentReader, gateway MessageGateway, queueCfg jobs.QueueConfig, validate *validator.Validate, logger *zap.Logger) *ReminderService {
	if gateway == nil {
		gateway = NewLogGateway(logger)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReminderService{
		templates: templates,
		fees:      fees,
		students:  students,
		gateway:   gateway,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("reminders", s.handleJob, queueCfg)
	return s
}

// Start begins queue workers.
func (s *ReminderService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queue workers.
func (s *ReminderService) Stop() {
	s.queue.Stop()
}

// ListTemplates returns message templates.
func (s *ReminderService) ListTemplates(ctx context.Context, activeOnly bool) ([]models.MessageTemplate, error) {
	templates, err := s.templates.ListTemplates(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// GetTemplate returns a template by id.
func (s *ReminderService) GetTemplate(ctx context.Context, id string) (*models.MessageTemplate, error) {
	template, err := s.templates.FindTemplate(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return template, nil
}

// CreateTemplate registers a new message template.
func (s *ReminderService) CreateTemplate(ctx context.Context, req MessageTemplateRequest) (*models.MessageTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	template := &models.MessageTemplate{
		Name:    req.Name,
		Channel: req.Channel,
		Subject: req.Subject,
		Body:    req.Body,
		Active:  true,
	}
	if req.Active != nil {
		template.Active = *req.Active
	}
	if err := s.templates.CreateTemplate(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return template, nil
}

// UpdateTemplate modifies an existing template.
func (s *ReminderService) UpdateTemplate(ctx context.Context, id string, req MessageTemplateRequest) (*models.MessageTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	template, err := s.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	template.Name = req.Name
	template.Channel = req.Channel
	template.Subject = req.Subject
	template.Body = req.Body
	if req.Active != nil {
		template.Active = *req.Active
	}
	if err := s.templates.UpdateTemplate(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}
	return template, nil
}

// DeleteTemplate removes a template.
func (s *ReminderService) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.GetTemplate(ctx, id); err != nil {
		return err
	}
	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	return nil
}

// ListLogs returns reminder logs with pagination metadata.
func (s *ReminderService) ListLogs(ctx context.Context, filter models.ReminderLogFilter) ([]models.ReminderLog, *models.Pagination, error) {
	logs, total, err := s.templates.ListLogs(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reminder logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Dispatch renders one reminder per student with overdue dues and queues
// them for delivery. Students without a recipient for the template's
// channel are skipped.
func (s *ReminderService) Dispatch(ctx context.Context, req DispatchRemindersRequest) (*DispatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dispatch payload")
	}
	template, err := s.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !template.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "template is inactive")
	}

	now := s.now()
	overdue, err := s.fees.ListOverdue(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue items")
	}

	byStudent := make(map[string][]models.FeeLineItem)
	order := make([]string, 0)
	for _, item := range overdue {
		if _, seen := byStudent[item.StudentID]; !seen {
			order = append(order, item.StudentID)
		}
		byStudent[item.StudentID] = append(byStudent[item.StudentID], item)
	}

	result := &DispatchResult{}
	for _, studentID := range order {
		items := byStudent[studentID]
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			s.logger.Warn("skipping reminder, student lookup failed",
				zap.String("student_id", studentID), zap.Error(err))
			result.Skipped++
			continue
		}
		recipient := recipientFor(student, template.Channel)
		if recipient == "" {
			result.Skipped++
			continue
		}

		var totalDue float64
		for _, item := range items {
			totalDue = ledger.Round(totalDue + item.DueAmount)
		}
		first := items[0]
		vars := map[string]string{
			"student_name":  student.FullName,
			"guardian_name": student.GuardianName,
			"fee_type":      first.FeeTypeName,
			"amount_due":    fmt.Sprintf("%.2f", totalDue),
			"due_date":      first.DueDate.Format("02 Jan 2006"),
		}

		log := &models.ReminderLog{
			StudentID:  student.ID,
			TemplateID: template.ID,
			Channel:    template.Channel,
			Recipient:  recipient,
			Subject:    renderTemplate(template.Subject, vars),
			Body:       renderTemplate(template.Body, vars),
			AmountDue:  totalDue,
			Status:     models.ReminderQueued,
		}
		if err := s.templates.CreateLog(ctx, log); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reminder")
		}
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: "reminder",
			Payload: reminderJob{
				LogID:     log.ID,
				Channel:   log.Channel,
				Recipient: log.Recipient,
				Subject:   log.Subject,
				Body:      log.Body,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			reason := err.Error()
			_ = s.templates.UpdateLogStatus(ctx, log.ID, models.ReminderFailed, &reason, nil)
			result.Skipped++
			continue
		}
		result.Queued++
	}

	s.logger.Info("reminder run dispatched",
		zap.String("template_id", template.ID),
		zap.Int("queued", result.Queued),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *ReminderService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(reminderJob)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	if err := s.gateway.Send(ctx, payload.Channel, payload.Recipient, payload.Subject, payload.Body); err != nil {
		reason := err.Error()
		_ = s.templates.UpdateLogStatus(ctx, payload.LogID, models.ReminderFailed, &reason, nil)
		return err
	}
	sentAt := s.now()
	return s.templates.UpdateLogStatus(ctx, payload.LogID, models.ReminderSent, nil, &sentAt)
}

func recipientFor(student *models.Student, channel models.MessageChannel) string {
	switch channel {
	case models.ChannelEmail:
		return student.GuardianEmail
	case models.ChannelSMS:
		return student.GuardianPhone
	}
	return ""
}

// renderTemplate substitutes {{placeholder}} tokens. Unknown tokens are
// left in place so a bad template is visible in the log.
func renderTemplate(text string, vars map[string]string) string {
	for key, value := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}
