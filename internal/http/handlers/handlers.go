package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aimee/backend/internal/approval"
	"github.com/aimee/backend/internal/service"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Advisor        *service.Advisor
	DB             Pinger
	Validator      *validator.Validate
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.RequestTimeout)
}

// bind decodes and validates a JSON body, writing the error response itself.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(dst); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}

type ChatMessageRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"session_id" validate:"max=128"`
	Detail    bool   `json:"detail"`
}

// @Summary Handle a chat message
// @Tags chat
// @Accept json
// @Produce json
// @Param body body ChatMessageRequest true "Message"
// @Success 200 {object} service.ChatResponse
// @Failure 400 {object} map[string]any
// @Router /api/chat/message [post]
func (h *Handler) ChatMessage(c *gin.Context) {
	var req ChatMessageRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	resp, err := h.Advisor.HandleMessage(ctx, service.ChatRequest{Message: req.Message, SessionID: req.SessionID, Detail: req.Detail})
	if err != nil {
		h.Logger.Error().Err(err).Str("session_id", req.SessionID).Msg("chat pipeline failed")
		writeError(c, http.StatusInternalServerError, "PIPELINE_ERROR", "Failed to handle message", err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Conversation history
// @Tags chat
// @Produce json
// @Param id path string true "Session ID"
// @Param limit query int false "Most recent turns only"
// @Success 200 {object} map[string]any
// @Router /api/chat/sessions/{id} [get]
func (h *Handler) SessionHistory(c *gin.Context) {
	id := c.Param("id")
	var q struct {
		Limit int `form:"limit" validate:"min=0,max=1000"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return
	}
	if err := h.Validator.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	turns, err := h.Advisor.Memory.Recent(c.Request.Context(), id, q.Limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load session", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "turns": turns})
}

// @Summary Forget a session
// @Tags chat
// @Param id path string true "Session ID"
// @Success 204
// @Router /api/chat/sessions/{id} [delete]
func (h *Handler) SessionDelete(c *gin.Context) {
	if err := h.Advisor.Memory.Clear(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to clear session", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Purge idle sessions
// @Tags chat
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/chat/sessions/sweep [post]
func (h *Handler) SessionSweep(c *gin.Context) {
	n, err := h.Advisor.Memory.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to sweep sessions", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}

type SuggestionRequest struct {
	Location    string `json:"location" validate:"required_with=ProcessName"`
	ProcessName string `json:"process_name" validate:"required_with=Location"`
	Proactive   bool   `json:"proactive"`
	Urgency     string `json:"urgency" validate:"omitempty,oneof=low medium high critical"`
	RequestedBy string `json:"requested_by" validate:"max=128"`
}

// @Summary Compute and queue a transfer proposal
// @Tags suggestions
// @Accept json
// @Produce json
// @Param body body SuggestionRequest true "Reported pair"
// @Success 200 {object} service.SuggestResponse
// @Router /api/suggestions [post]
func (h *Handler) Suggest(c *gin.Context) {
	var req SuggestionRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	out, err := h.Advisor.Suggest(ctx, service.SuggestRequest{
		Location:    req.Location,
		ProcessName: req.ProcessName,
		Proactive:   req.Proactive,
		Urgency:     req.Urgency,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "PIPELINE_ERROR", "Failed to build suggestion", err.Error())
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Locations
// @Tags inventory
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/locations [get]
func (h *Handler) LocationsList(c *gin.Context) {
	items, err := h.Advisor.Inventory.Locations(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list locations", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Processes
// @Tags inventory
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/processes [get]
func (h *Handler) ProcessesList(c *gin.Context) {
	items, err := h.Advisor.Inventory.Processes(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list processes", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Active alerts
// @Tags alerts
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/alerts [get]
func (h *Handler) AlertsList(c *gin.Context) {
	alerts, err := h.Advisor.CurrentAlerts(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "ALERT_ERROR", "Failed to evaluate alerts", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": alerts, "total": len(alerts)})
}

type ResolveAlertRequest struct {
	AlertID   string `json:"alert_id" validate:"required"`
	SessionID string `json:"session_id" validate:"max=128"`
}

// @Summary Run an alert through the advisor
// @Tags alerts
// @Accept json
// @Produce json
// @Param body body ResolveAlertRequest true "Alert"
// @Success 200 {object} service.AlertResolution
// @Failure 404 {object} map[string]any
// @Router /api/alerts/resolve [post]
func (h *Handler) ResolveAlert(c *gin.Context) {
	var req ResolveAlertRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Advisor.ResolveAlert(ctx, req.AlertID, req.SessionID)
	if err != nil {
		if errors.Is(err, service.ErrAlertNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Alert is not active", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "PIPELINE_ERROR", "Failed to resolve alert", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

// writeApprovalError maps workflow sentinels onto status codes.
func writeApprovalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Approval not found", nil)
	case errors.Is(err, approval.ErrExpired):
		writeError(c, http.StatusGone, "EXPIRED", "Approval has expired", nil)
	case errors.Is(err, approval.ErrInvalidState), errors.Is(err, approval.ErrAlreadyExists):
		writeError(c, http.StatusConflict, "INVALID_STATE", "Approval already processed", err.Error())
	case errors.Is(err, approval.ErrInvalidAction):
		writeError(c, http.StatusBadRequest, "INVALID_ACTION", "Action must be approve or reject", nil)
	default:
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Approval store failed", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
