package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// FeeTypeHandler exposes the fee type catalogue.
type FeeTypeHandler struct {
	feeTypes *service.FeeTypeService
}

// NewFeeTypeHandler constructs FeeTypeHandler.
func NewFeeTypeHandler(feeTypes *service.FeeTypeService) *FeeTypeHandler {
	return &FeeTypeHandler{feeTypes: feeTypes}
}

// List godoc
// @Summary List fee types
// @Tags FeeTypes
// @Produce json
// @Param category query string false "Filter by category"
// @Param active query bool false "Filter by active state"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fee-types [get]
func (h *FeeTypeHandler) List(c *gin.Context) {
	var filter models.FeeTypeFilter
	if category := c.Query("category"); category != "" {
		v := models.FeeCategory(category)
		filter.Category = &v
	}
	filter.Active = queryBoolPtr(c, "active")
	filter.Search = c.Query("search")
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "limit", 20)

	types, pagination, err := h.feeTypes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, pagination)
}

// Get godoc
// @Summary Get fee type
// @Tags FeeTypes
// @Produce json
// @Param id path string true "Fee type ID"
// @Success 200 {object} response.Envelope
// @Router /fee-types/{id} [get]
func (h *FeeTypeHandler) Get(c *gin.Context) {
	feeType, err := h.feeTypes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feeType, nil)
}

// Create godoc
// @Summary Create fee type
// @Tags FeeTypes
// @Accept json
// @Produce json
// @Param payload body service.FeeTypeRequest true "Fee type payload"
// @Success 201 {object} response.Envelope
// @Router /fee-types [post]
func (h *FeeTypeHandler) Create(c *gin.Context) {
	var req service.FeeTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	feeType, err := h.feeTypes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feeType)
}

// Update godoc
// @Summary Update fee type
// @Tags FeeTypes
// @Accept json
// @Produce json
// @Param id path string true "Fee type ID"
// @Param payload body service.FeeTypeRequest true "Fee type payload"
// @Success 200 {object} response.Envelope
// @Router /fee-types/{id} [put]
func (h *FeeTypeHandler) Update(c *gin.Context) {
	var req service.FeeTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	feeType, err := h.feeTypes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feeType, nil)
}

// Delete godoc
// @Summary Deactivate fee type
// @Tags FeeTypes
// @Produce json
// @Param id path string true "Fee type ID"
// @Success 204
// @Router /fee-types/{id} [delete]
func (h *FeeTypeHandler) Delete(c *gin.Context) {
	if err := h.feeTypes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
