package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-fees-api/internal/service"
	"github.com/noah-isme/sma-fees-api/pkg/response"
)

// DuesHandler exposes the student dues ledger.
type DuesHandler struct {
	dues *service.DuesService
}

// NewDuesHandler constructs DuesHandler.
func NewDuesHandler(dues *service.DuesService) *DuesHandler {
	return &DuesHandler{dues: dues}
}

// StudentDues godoc
// @Summary Student dues statement
// @Description Derives line items from applicable fee groups, assesses late fees, resolves auto-apply discounts and includes pending carry-forward balances.
// @Tags Dues
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/dues [get]
func (h *DuesHandler) StudentDues(c *gin.Context) {
	dues, err := h.dues.GetStudentDues(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dues, nil)
}
