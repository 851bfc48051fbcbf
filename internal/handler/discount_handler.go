package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/service"
	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// DiscountHandler exposes discount management and preview.
type DiscountHandler struct {
	discounts *service.DiscountService
}

// NewDiscountHandler constructs DiscountHandler.
func NewDiscountHandler(discounts *service.DiscountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// List godoc
// @Summary List discounts
// @Tags Discounts
// @Produce json
// @Param classId query string false "Filter by applicable class"
// @Param feeTypeId query string false "Filter by applicable fee type"
// @Param autoApply query bool false "Filter by auto-apply flag"
// @Param active query bool false "Filter by active state"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /discounts [get]
func (h *DiscountHandler) List(c *gin.Context) {
	filter := models.DiscountFilter{
		ClassID:   c.Query("classId"),
		FeeTypeID: c.Query("feeTypeId"),
		AutoApply: queryBoolPtr(c, "autoApply"),
		Active:    queryBoolPtr(c, "active"),
		Search:    c.Query("search"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 20),
	}
	discounts, pagination, err := h.discounts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discounts, pagination)
}

// Get godoc
// @Summary Get discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 200 {object} response.Envelope
// @Router /discounts/{id} [get]
func (h *DiscountHandler) Get(c *gin.Context) {
	discount, err := h.discounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Create godoc
// @Summary Create discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param payload body service.DiscountRequest true "Discount payload"
// @Success 201 {object} response.Envelope
// @Router /discounts [post]
func (h *DiscountHandler) Create(c *gin.Context) {
	var req service.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discount, err := h.discounts.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, discount)
}

// Update godoc
// @Summary Update discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param id path string true "Discount ID"
// @Param payload body service.DiscountRequest true "Discount payload"
// @Success 200 {object} response.Envelope
// @Router /discounts/{id} [put]
func (h *DiscountHandler) Update(c *gin.Context) {
	var req service.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discount, err := h.discounts.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Delete godoc
// @Summary Delete discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 204
// @Router /discounts/{id} [delete]
func (h *DiscountHandler) Delete(c *gin.Context) {
	if err := h.discounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Preview godoc
// @Summary Preview discount resolution
// @Description Dry-runs discount resolution for a student and fee type against a base amount.
// @Tags Discounts
// @Accept json
// @Produce json
// @Param payload body service.DiscountPreviewRequest true "Preview payload"
// @Success 200 {object} response.Envelope
// @Router /discounts/preview [post]
func (h *DiscountHandler) Preview(c *gin.Context) {
	var req service.DiscountPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	preview, err := h.discounts.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}
