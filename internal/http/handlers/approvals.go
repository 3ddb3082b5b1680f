package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimee/backend/internal/approval"
)

type approvalQuery struct {
	Status  string `form:"status" validate:"omitempty,oneof=pending approved rejected expired"`
	Urgency string `form:"urgency" validate:"omitempty,oneof=low medium high critical"`
}

// @Summary List approvals
// @Tags approvals
// @Produce json
// @Param status query string false "pending, approved, rejected or expired"
// @Param urgency query string false "low, medium, high or critical"
// @Success 200 {object} map[string]any
// @Router /api/approvals [get]
func (h *Handler) ApprovalsList(c *gin.Context) {
	var q approvalQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return
	}
	if err := h.Validator.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	items, err := h.Advisor.Approvals.List(c.Request.Context(), q.Status, q.Urgency)
	if err != nil {
		writeApprovalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// @Summary Get one approval
// @Tags approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} models.PendingApproval
// @Failure 404 {object} map[string]any
// @Router /api/approvals/{id} [get]
func (h *Handler) ApprovalDetails(c *gin.Context) {
	a, err := h.Advisor.Approvals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeApprovalError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary Approve or reject
// @Tags approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval ID"
// @Param body body approval.ActionRequest true "Decision"
// @Success 200 {object} approval.ActionResult
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 410 {object} map[string]any
// @Router /api/approvals/{id}/action [post]
func (h *Handler) ApprovalAction(c *gin.Context) {
	var req approval.ActionRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.Advisor.Approvals.Act(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeApprovalError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type BulkActionRequest struct {
	IDs    []string `json:"approval_ids" validate:"required,min=1,max=100,dive,required"`
	Action string   `json:"action" validate:"required,oneof=approve reject"`
}

// @Summary Approve or reject many
// @Tags approvals
// @Accept json
// @Produce json
// @Param body body BulkActionRequest true "Decision"
// @Success 200 {object} approval.BulkResult
// @Router /api/approvals/bulk [post]
func (h *Handler) ApprovalsBulk(c *gin.Context) {
	var req BulkActionRequest
	if !h.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.Advisor.Approvals.BulkAct(c.Request.Context(), req.IDs, req.Action))
}
