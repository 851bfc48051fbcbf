package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/pkg/export"
	"github.com/noah-isme/sma-fees-api/pkg/storage"
)

type collectionReader interface {
	CollectionRows(ctx context.Context, filter models.CollectionReportFilter) ([]models.CollectionReportRow, error)
	OutstandingRows(ctx context.Context, classID string) ([]models.OutstandingReportRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds fee report datasets and persists rendered files.
type ExportService struct {
	payments collectionReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(payments collectionReader, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		payments: payments,
		storage:  storage,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.Params.ClassID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeCollection:
		return s.buildCollectionDataset(ctx, job.Params)
	case models.ReportTypeDailyCollection:
		return s.buildDailyDataset(ctx, job.Params)
	case models.ReportTypeOutstanding:
		return s.buildOutstandingDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildCollectionDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	rows, err := s.payments.CollectionRows(ctx, params.CollectionFilter())
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Class", "Fee Type", "Payments", "Gross", "Discount", "Net Collected"},
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":          row.Date,
			"Class":         row.ClassName,
			"Fee Type":      row.FeeTypeName,
			"Payments":      fmt.Sprintf("%d", row.PaymentCount),
			"Gross":         fmt.Sprintf("%.2f", row.GrossAmount),
			"Discount":      fmt.Sprintf("%.2f", row.DiscountTotal),
			"Net Collected": fmt.Sprintf("%.2f", row.NetCollected),
		})
	}
	return dataset, "Fee Collection Report", nil
}

// buildDailyDataset collapses collection rows to one row per day.
func (s *ExportService) buildDailyDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	rows, err := s.payments.CollectionRows(ctx, params.CollectionFilter())
	if err != nil {
		return export.Dataset{}, "", err
	}
	type dayTotal struct {
		payments int
		gross    float64
		discount float64
		net      float64
	}
	totals := make(map[string]*dayTotal)
	order := make([]string, 0)
	for _, row := range rows {
		t, ok := totals[row.Date]
		if !ok {
			t = &dayTotal{}
			totals[row.Date] = t
			order = append(order, row.Date)
		}
		t.payments += row.PaymentCount
		t.gross += row.GrossAmount
		t.discount += row.DiscountTotal
		t.net += row.NetCollected
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Payments", "Gross", "Discount", "Net Collected"},
	}
	for _, date := range order {
		t := totals[date]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":          date,
			"Payments":      fmt.Sprintf("%d", t.payments),
			"Gross":         fmt.Sprintf("%.2f", t.gross),
			"Discount":      fmt.Sprintf("%.2f", t.discount),
			"Net Collected": fmt.Sprintf("%.2f", t.net),
		})
	}
	return dataset, "Daily Collection Summary", nil
}

func (s *ExportService) buildOutstandingDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	rows, err := s.payments.OutstandingRows(ctx, params.ClassID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataset := export.Dataset{
		Headers: []string{"Student", "Class", "Pending Items", "Outstanding Due", "Carry Forward"},
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":         row.StudentName,
			"Class":           row.ClassName,
			"Pending Items":   fmt.Sprintf("%d", row.PendingItems),
			"Outstanding Due": fmt.Sprintf("%.2f", row.OutstandingDue),
			"Carry Forward":   fmt.Sprintf("%.2f", row.CarryForwardDue),
		})
	}
	return dataset, "Outstanding Dues Report", nil
}
