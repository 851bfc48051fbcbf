package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// CarryForwardHandler exposes carry-forward balance management.
type CarryForwardHandler struct {
	records *service.CarryForwardService
}

// NewCarryForwardHandler constructs CarryForwardHandler.
func NewCarryForwardHandler(records *service.CarryForwardService) *CarryForwardHandler {
	return &CarryForwardHandler{records: records}
}

// List godoc
// @Summary List carry-forward records
// @Tags CarryForward
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param academicYear query string false "Filter by current academic year"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /carry-forwards [get]
func (h *CarryForwardHandler) List(c *gin.Context) {
	filter := models.CarryForwardFilter{
		StudentID:           c.Query("studentId"),
		CurrentAcademicYear: c.Query("academicYear"),
		Page:                queryInt(c, "page", 1),
		PageSize:            queryInt(c, "limit", 20),
	}
	if status := c.Query("status"); status != "" {
		v := models.CarryForwardStatus(status)
		filter.Status = &v
	}
	records, pagination, err := h.records.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get carry-forward record
// @Tags CarryForward
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /carry-forwards/{id} [get]
func (h *CarryForwardHandler) Get(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Create godoc
// @Summary Create carry-forward record
// @Tags CarryForward
// @Accept json
// @Produce json
// @Param payload body service.CarryForwardCreateRequest true "Carry-forward payload"
// @Success 201 {object} response.Envelope
// @Router /carry-forwards [post]
func (h *CarryForwardHandler) Create(c *gin.Context) {
	var req service.CarryForwardCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Adjust godoc
// @Summary Apply an adjustment
// @Description Reduces the carried balance with a waiver, discount, scholarship or correction.
// @Tags CarryForward
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.CarryForwardAdjustRequest true "Adjustment payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /carry-forwards/{id}/adjust [post]
func (h *CarryForwardHandler) Adjust(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CarryForwardAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Adjust(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Process godoc
// @Summary Process a record
// @Description Settles the record by carrying it into the next year, writing it off or converting it into current dues.
// @Tags CarryForward
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.CarryForwardProcessRequest true "Process payload"
// @Success 200 {object} response.Envelope
// @Router /carry-forwards/{id}/process [post]
func (h *CarryForwardHandler) Process(c *gin.Context) {
	var req service.CarryForwardProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Process(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Cancel godoc
// @Summary Cancel a record
// @Tags CarryForward
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /carry-forwards/{id}/cancel [post]
func (h *CarryForwardHandler) Cancel(c *gin.Context) {
	record, err := h.records.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkProcess godoc
// @Summary Bulk process records
// @Description Settles a batch of records, optionally applying a percentage discount first. Partial failures are reported per record.
// @Tags CarryForward
// @Accept json
// @Produce json
// @Param payload body service.BulkProcessRequest true "Bulk process payload"
// @Success 200 {object} response.Envelope
// @Router /carry-forwards/bulk-process [post]
func (h *CarryForwardHandler) BulkProcess(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.records.BulkProcess(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
