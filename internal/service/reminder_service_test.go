package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fees-api/internal/models"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/jobs"
)

type mockTemplateRepo struct {
	mu        sync.Mutex
	templates map[string]*models.MessageTemplate
	logs      map[string]*models.ReminderLog
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{
		templates: map[string]*models.MessageTemplate{},
		logs:      map[string]*models.ReminderLog{},
	}
}

func (m *mockTemplateRepo) ListTemplates(ctx context.Context, activeOnly bool) ([]models.MessageTemplate, error) {
	out := make([]models.MessageTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		if activeOnly && !t.Active {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTemplateRepo) FindTemplate(ctx context.Context, id string) (*models.MessageTemplate, error) {
	if t, ok := m.templates[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTemplateRepo) CreateTemplate(ctx context.Context, template *models.MessageTemplate) error {
	template.ID = fmt.Sprintf("tpl-%d", len(m.templates)+1)
	cp := *template
	m.templates[template.ID] = &cp
	return nil
}

func (m *mockTemplateRepo) UpdateTemplate(ctx context.Context, template *models.MessageTemplate) error {
	cp := *template
	m.templates[template.ID] = &cp
	return nil
}

func (m *mockTemplateRepo) DeleteTemplate(ctx context.Context, id string) error {
	delete(m.templates, id)
	return nil
}

func (m *mockTemplateRepo) CreateLog(ctx context.Context, log *models.ReminderLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = fmt.Sprintf("log-%d", len(m.logs)+1)
	cp := *log
	m.logs[log.ID] = &cp
	return nil
}

func (m *mockTemplateRepo) UpdateLogStatus(ctx context.Context, id string, status models.ReminderStatus, failureReason *string, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[id]
	if !ok {
		return sql.ErrNoRows
	}
	log.Status = status
	log.FailureReason = failureReason
	log.SentAt = sentAt
	return nil
}

func (m *mockTemplateRepo) ListLogs(ctx context.Context, filter models.ReminderLogFilter) ([]models.ReminderLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ReminderLog, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *mockTemplateRepo) logByID(id string) *models.ReminderLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.logs[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

type mockOverdueLister struct {
	items []models.FeeLineItem
}

func (m *mockOverdueLister) ListOverdue(ctx context.Context, asOf time.Time) ([]models.FeeLineItem, error) {
	return m.items, nil
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (g *recordingGateway) Send(ctx context.Context, channel models.MessageChannel, recipient, subject, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, recipient)
	return nil
}

type multiStudentReader struct {
	students map[string]*models.Student
}

func (m *multiStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func reminderFixture(gateway MessageGateway) (*mockTemplateRepo, *mockOverdueLister, *ReminderService) {
	templates := newMockTemplateRepo()
	fees := &mockOverdueLister{}
	students := &multiStudentReader{students: map[string]*models.Student{
		"student-1": {
			ID: "student-1", FullName: "Asha Verma", GuardianName: "Ravi Verma",
			GuardianEmail: "ravi@example.com", GuardianPhone: "9000000001",
		},
		"student-2": {
			ID: "student-2", FullName: "Rahul Nair", GuardianName: "Meera Nair",
		},
	}}
	svc := NewReminderService(templates, fees, students, gateway, jobs.QueueConfig{Workers: 1, BufferSize: 8}, nil, nil)
	return templates, fees, svc
}

func seedTemplate(repo *mockTemplateRepo, channel models.MessageChannel, active bool) *models.MessageTemplate {
	tpl := &models.MessageTemplate{
		ID:      "tpl-seed",
		Name:    "Overdue Notice",
		Channel: channel,
		Subject: "Fees overdue for {{student_name}}",
		Body:    "Dear {{guardian_name}}, {{amount_due}} is due since {{due_date}}.",
		Active:  active,
	}
	repo.templates[tpl.ID] = tpl
	return tpl
}

func TestReminderServiceDispatchQueuesAndSends(t *testing.T) {
	gateway := &recordingGateway{}
	templates, fees, svc := reminderFixture(gateway)
	seedTemplate(templates, models.ChannelEmail, true)
	due := time.Now().Add(-72 * time.Hour)
	fees.items = []models.FeeLineItem{
		{ID: "line-1", StudentID: "student-1", FeeTypeName: "Tuition", DueAmount: 1000, DueDate: due},
		{ID: "line-2", StudentID: "student-1", FeeTypeName: "Transport", DueAmount: 500, DueDate: due},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	result, err := svc.Dispatch(ctx, DispatchRemindersRequest{TemplateID: "tpl-seed"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 0, result.Skipped)

	require.Eventually(t, func() bool {
		log := templates.logByID("log-1")
		return log != nil && log.Status == models.ReminderSent
	}, 2*time.Second, 10*time.Millisecond)

	log := templates.logByID("log-1")
	assert.Equal(t, "ravi@example.com", log.Recipient)
	assert.Equal(t, "Fees overdue for Asha Verma", log.Subject)
	assert.Contains(t, log.Body, "Dear Ravi Verma")
	assert.Contains(t, log.Body, "1500.00")
	assert.Equal(t, 1500.0, log.AmountDue)
	assert.NotNil(t, log.SentAt)
}

func TestReminderServiceDispatchSkipsMissingRecipient(t *testing.T) {
	gateway := &recordingGateway{}
	templates, fees, svc := reminderFixture(gateway)
	seedTemplate(templates, models.ChannelSMS, true)
	fees.items = []models.FeeLineItem{
		{ID: "line-1", StudentID: "student-2", FeeTypeName: "Tuition", DueAmount: 700, DueDate: time.Now().Add(-24 * time.Hour)},
	}

	result, err := svc.Dispatch(context.Background(), DispatchRemindersRequest{TemplateID: "tpl-seed"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Queued)
	assert.Equal(t, 1, result.Skipped)
}

func TestReminderServiceDispatchInactiveTemplate(t *testing.T) {
	templates, _, svc := reminderFixture(nil)
	seedTemplate(templates, models.ChannelEmail, false)

	_, err := svc.Dispatch(context.Background(), DispatchRemindersRequest{TemplateID: "tpl-seed"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestReminderServiceGatewayFailureMarksLog(t *testing.T) {
	gateway := &recordingGateway{err: errGatewayDown{}}
	templates, fees, svc := reminderFixture(gateway)
	seedTemplate(templates, models.ChannelEmail, true)
	fees.items = []models.FeeLineItem{
		{ID: "line-1", StudentID: "student-1", FeeTypeName: "Tuition", DueAmount: 1000, DueDate: time.Now().Add(-24 * time.Hour)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	_, err := svc.Dispatch(ctx, DispatchRemindersRequest{TemplateID: "tpl-seed"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		log := templates.logByID("log-1")
		return log != nil && log.Status == models.ReminderFailed
	}, 2*time.Second, 10*time.Millisecond)
	log := templates.logByID("log-1")
	require.NotNil(t, log.FailureReason)
}

type errGatewayDown struct{}

func (errGatewayDown) Error() string { return "gateway down" }


func TestReminderServiceCreateTemplateRequiresSubjectForEmail(t *testing.T) {
	_, _, svc := reminderFixture(nil)

	_, err := svc.CreateTemplate(context.Background(), MessageTemplateRequest{
		Name:    "Email No Subject",
		Channel: models.ChannelEmail,
		Body:    "hello {{student_name}}",
	})
	require.Error(t, err)

	tpl, err := svc.CreateTemplate(context.Background(), MessageTemplateRequest{
		Name:    "SMS",
		Channel: models.ChannelSMS,
		Body:    "hello {{student_name}}",
	})
	require.NoError(t, err)
	assert.True(t, tpl.Active)
}

func TestRenderTemplateLeavesUnknownTokens(t *testing.T) {
	out := renderTemplate("Hi {{guardian_name}}, ref {{unknown}}", map[string]string{"guardian_name": "Ravi"})
	assert.Equal(t, "Hi Ravi, ref {{unknown}}", out)
}
