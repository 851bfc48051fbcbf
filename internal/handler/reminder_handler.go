package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// ReminderHandler exposes message templates and reminder dispatch.
type ReminderHandler struct {
	reminders *service.ReminderService
}

// NewReminderHandler constructs ReminderHandler.
func NewReminderHandler(reminders *service.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders}
}

// ListTemplates godoc
// @Summary List message templates
// @Tags Reminders
// @Produce json
// @Param active query bool false "Only active templates"
// @Success 200 {object} response.Envelope
// @Router /reminders/templates [get]
func (h *ReminderHandler) ListTemplates(c *gin.Context) {
	activeOnly := false
	if v := queryBoolPtr(c, "active"); v != nil {
		activeOnly = *v
	}
	templates, err := h.reminders.ListTemplates(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// GetTemplate godoc
// @Summary Get message template
// @Tags Reminders
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /reminders/templates/{id} [get]
func (h *ReminderHandler) GetTemplate(c *gin.Context) {
	template, err := h.reminders.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// CreateTemplate godoc
// @Summary Create message template
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body service.MessageTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /reminders/templates [post]
func (h *ReminderHandler) CreateTemplate(c *gin.Context) {
	var req service.MessageTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.reminders.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// UpdateTemplate godoc
// @Summary Update message template
// @Tags Reminders
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.MessageTemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /reminders/templates/{id} [put]
func (h *ReminderHandler) UpdateTemplate(c *gin.Context) {
	var req service.MessageTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	template, err := h.reminders.UpdateTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// DeleteTemplate godoc
// @Summary Delete message template
// @Tags Reminders
// @Produce json
// @Param id path string true "Template ID"
// @Success 204
// @Router /reminders/templates/{id} [delete]
func (h *ReminderHandler) DeleteTemplate(c *gin.Context) {
	if err := h.reminders.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Dispatch godoc
// @Summary Dispatch overdue reminders
// @Description Queues a reminder for every student with overdue dues using the given template. Students without a reachable address on the template's channel are skipped.
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body service.DispatchRemindersRequest true "Dispatch payload"
// @Success 202 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /reminders/dispatch [post]
func (h *ReminderHandler) Dispatch(c *gin.Context) {
	var req service.DispatchRemindersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.reminders.Dispatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// ListLogs godoc
// @Summary List reminder logs
// @Tags Reminders
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by delivery status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reminders/logs [get]
func (h *ReminderHandler) ListLogs(c *gin.Context) {
	filter := models.ReminderLogFilter{
		StudentID: c.Query("studentId"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 20),
	}
	if status := c.Query("status"); status != "" {
		v := models.ReminderStatus(status)
		filter.Status = &v
	}
	logs, pagination, err := h.reminders.ListLogs(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
