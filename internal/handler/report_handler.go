package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// ReportHandler exposes collection/outstanding reports and export jobs.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Collection godoc
// @Summary Fee collection report
// @Description Aggregated collections by date, class and fee type. Served from cache when fresh.
// @Tags Reports
// @Produce json
// @Param classId query string false "Filter by class"
// @Param feeTypeId query string false "Filter by fee type"
// @Param mode query string false "Filter by payment mode"
// @Param from query string false "Collected on or after (YYYY-MM-DD)"
// @Param to query string false "Collected before (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/collection [get]
func (h *ReportHandler) Collection(c *gin.Context) {
	filter := models.CollectionReportFilter{
		ClassID:   c.Query("classId"),
		FeeTypeID: c.Query("feeTypeId"),
		From:      queryDatePtr(c, "from"),
		To:        queryDatePtr(c, "to"),
	}
	if mode := c.Query("mode"); mode != "" {
		v := models.PaymentMode(mode)
		filter.Mode = &v
	}
	report, err := h.reports.Collection(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Outstanding godoc
// @Summary Outstanding dues report
// @Tags Reports
// @Produce json
// @Param classId query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Router /reports/outstanding [get]
func (h *ReportHandler) Outstanding(c *gin.Context) {
	rows, err := h.reports.Outstanding(c.Request.Context(), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// CreateJob godoc
// @Summary Queue a report export
// @Description Persists an export job and hands it to the background worker pool.
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.ReportRequest true "Report payload"
// @Success 202 {object} response.Envelope
// @Router /reports/jobs [post]
func (h *ReportHandler) CreateJob(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.reports.CreateJob(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// GetStatus godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/jobs/{id} [get]
func (h *ReportHandler) GetStatus(c *gin.Context) {
	status, err := h.reports.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished export
// @Description Streams the export file referenced by a signed, time-limited token.
// @Tags Reports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/export/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.reports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	contentType := "text/csv"
	if download.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, headers)
}
