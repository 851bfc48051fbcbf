package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fees-api/internal/models"
)

// TemplateRepository persists message templates and reminder logs.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// ListTemplates returns templates, optionally only active ones.
func (r *TemplateRepository) ListTemplates(ctx context.Context, activeOnly bool) ([]models.MessageTemplate, error) {
	query := "SELECT id, name, channel, subject, body, active, created_at, updated_at FROM message_templates"
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY name"
	var templates []models.MessageTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list message templates: %w", err)
	}
	return templates, nil
}

// FindTemplate returns a template by ID.
func (r *TemplateRepository) FindTemplate(ctx context.Context, id string) (*models.MessageTemplate, error) {
	const query = "SELECT id, name, channel, subject, body, active, created_at, updated_at FROM message_templates WHERE id = $1"
	var template models.MessageTemplate
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// CreateTemplate inserts a new template.
func (r *TemplateRepository) CreateTemplate(ctx context.Context, template *models.MessageTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	const query = `INSERT INTO message_templates (id, name, channel, subject, body, active, created_at, updated_at)
        VALUES (:id, :name, :channel, :subject, :body, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("create message template: %w", err)
	}
	return nil
}

// UpdateTemplate modifies an existing template.
func (r *TemplateRepository) UpdateTemplate(ctx context.Context, template *models.MessageTemplate) error {
	template.UpdatedAt = time.Now().UTC()
	const query = `UPDATE message_templates SET name = :name, channel = :channel, subject = :subject, body = :body, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("update message template: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template.
func (r *TemplateRepository) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM message_templates WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete message template: %w", err)
	}
	return nil
}

// CreateLog records a rendered reminder before dispatch.
func (r *TemplateRepository) CreateLog(ctx context.Context, log *models.ReminderLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO reminder_logs (id, student_id, template_id, channel, recipient, subject, body, amount_due, status, failure_reason, sent_at, created_at)
        VALUES (:id, :student_id, :template_id, :channel, :recipient, :subject, :body, :amount_due, :status, :failure_reason, :sent_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create reminder log: %w", err)
	}
	return nil
}

// UpdateLogStatus moves a queued reminder to sent or failed.
func (r *TemplateRepository) UpdateLogStatus(ctx context.Context, id string, status models.ReminderStatus, failureReason *string, sentAt *time.Time) error {
	const query = `UPDATE reminder_logs SET status = $2, failure_reason = $3, sent_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, failureReason, sentAt); err != nil {
		return fmt.Errorf("update reminder log: %w", err)
	}
	return nil
}

// ListLogs returns reminder logs matching the filter.
func (r *TemplateRepository) ListLogs(ctx context.Context, filter models.ReminderLogFilter) ([]models.ReminderLog, int, error) {
	base := "FROM reminder_logs WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT id, student_id, template_id, channel, recipient, subject, body, amount_due, status, failure_reason, sent_at, created_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, size, (page-1)*size)
	var logs []models.ReminderLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reminder logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count reminder logs: %w", err)
	}
	return logs, total, nil
}
