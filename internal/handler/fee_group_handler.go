package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// FeeGroupHandler exposes fee group definitions.
type FeeGroupHandler struct {
	groups *service.FeeGroupService
}

// NewFeeGroupHandler constructs FeeGroupHandler.
func NewFeeGroupHandler(groups *service.FeeGroupService) *FeeGroupHandler {
	return &FeeGroupHandler{groups: groups}
}

// List godoc
// @Summary List fee groups
// @Tags FeeGroups
// @Produce json
// @Param academicYear query string false "Filter by academic year"
// @Param classId query string false "Filter by applicable class"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fee-groups [get]
func (h *FeeGroupHandler) List(c *gin.Context) {
	filter := models.FeeGroupFilter{
		AcademicYear: c.Query("academicYear"),
		ClassID:      c.Query("classId"),
		Search:       c.Query("search"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "limit", 20),
	}
	groups, pagination, err := h.groups.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, pagination)
}

// Get godoc
// @Summary Get fee group
// @Tags FeeGroups
// @Produce json
// @Param id path string true "Fee group ID"
// @Success 200 {object} response.Envelope
// @Router /fee-groups/{id} [get]
func (h *FeeGroupHandler) Get(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Create godoc
// @Summary Create fee group
// @Tags FeeGroups
// @Accept json
// @Produce json
// @Param payload body service.FeeGroupRequest true "Fee group payload"
// @Success 201 {object} response.Envelope
// @Router /fee-groups [post]
func (h *FeeGroupHandler) Create(c *gin.Context) {
	var req service.FeeGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	group, err := h.groups.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update godoc
// @Summary Update fee group
// @Tags FeeGroups
// @Accept json
// @Produce json
// @Param id path string true "Fee group ID"
// @Param payload body service.FeeGroupRequest true "Fee group payload"
// @Success 200 {object} response.Envelope
// @Router /fee-groups/{id} [put]
func (h *FeeGroupHandler) Update(c *gin.Context) {
	var req service.FeeGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	group, err := h.groups.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Delete godoc
// @Summary Delete fee group
// @Tags FeeGroups
// @Produce json
// @Param id path string true "Fee group ID"
// @Success 204
// @Router /fee-groups/{id} [delete]
func (h *FeeGroupHandler) Delete(c *gin.Context) {
	if err := h.groups.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
