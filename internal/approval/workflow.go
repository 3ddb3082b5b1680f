package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aimee/backend/internal/metrics"
	"github.com/aimee/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("approval not found")
	ErrInvalidState  = errors.New("approval already processed")
	ErrExpired       = errors.New("approval expired")
	ErrInvalidAction = errors.New("invalid approval action")
	ErrAlreadyExists = errors.New("approval already exists")
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"

	OriginSync = "sync"
	OriginChat = "chat"

	suggestionTypeAllocation = "allocation_change"
	executionPending         = "pending"
)

// HistorySink receives one audit row per applied transition.
type HistorySink interface {
	InsertApprovalHistory(ctx context.Context, rec models.ApprovalHistoryRecord) error
}

type NopSink struct{}

func (NopSink) InsertApprovalHistory(context.Context, models.ApprovalHistoryRecord) error {
	return nil
}

type TTLs struct {
	Sync time.Duration
	Chat time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Sync: time.Hour, Chat: 24 * time.Hour}
}

type CreateOptions struct {
	Origin      string
	Urgency     string
	RequestedBy string
}

type ActionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	User   string `json:"user"`
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type ActionResult struct {
	ApprovalID string    `json:"approval_id"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

type BulkItem struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type BulkResult struct {
	Results   []BulkItem `json:"results"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
}

// Workflow owns the approval state machine: pending moves to approved,
// rejected or expired exactly once. The status change is authoritative; the
// audit row written afterwards is best effort.
type Workflow struct {
	Store        Store
	Sink         HistorySink
	TTLs         TTLs
	AuditTimeout time.Duration
	Now          func() time.Time
	Logger       zerolog.Logger
}

func NewWorkflow(store Store, sink HistorySink, ttls TTLs, logger zerolog.Logger) *Workflow {
	if store == nil {
		store = NewMemoryStore()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Workflow{
		Store:        store,
		Sink:         sink,
		TTLs:         ttls,
		AuditTimeout: 5 * time.Second,
		Now:          time.Now,
		Logger:       logger,
	}
}

func (w *Workflow) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w *Workflow) Create(ctx context.Context, sg models.Suggestion, opts CreateOptions) (models.PendingApproval, error) {
	ttl := w.TTLs.Sync
	if opts.Origin == OriginChat {
		ttl = w.TTLs.Chat
	}
	requestedBy := opts.RequestedBy
	if requestedBy == "" {
		requestedBy = "AI"
	}
	now := w.now()
	a := models.PendingApproval{
		ID:              sg.ID,
		Timestamp:       now,
		Changes:         sg.Changes,
		Impact:          sg.Impact,
		Reason:          sg.Reason,
		ConfidenceScore: sg.ConfidenceScore,
		Urgency:         models.NormalizeUrgency(opts.Urgency),
		Status:          models.ApprovalPending,
		ExpiresAt:       now.Add(ttl),
		RequestedBy:     requestedBy,
	}
	if err := w.Store.Put(ctx, a); err != nil {
		return models.PendingApproval{}, fmt.Errorf("store approval: %w", err)
	}
	w.Logger.Info().Str("approval_id", a.ID).Int("changes", len(a.Changes)).Time("expires_at", a.ExpiresAt).Msg("approval created")
	return a, nil
}

func (w *Workflow) Get(ctx context.Context, id string) (models.PendingApproval, error) {
	a, ok, err := w.Store.Get(ctx, id)
	if err != nil {
		return models.PendingApproval{}, err
	}
	if !ok {
		return models.PendingApproval{}, ErrNotFound
	}
	return a, nil
}

// List filters by status and urgency; empty filters match everything.
func (w *Workflow) List(ctx context.Context, status, urgency string) ([]models.PendingApproval, error) {
	items, err := w.Store.Scan(ctx, func(a models.PendingApproval) bool {
		if status != "" && a.Status != status {
			return false
		}
		if urgency != "" && a.Urgency != urgency {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	return items, nil
}

func (w *Workflow) Act(ctx context.Context, id string, req ActionRequest) (ActionResult, error) {
	action := strings.ToLower(strings.TrimSpace(req.Action))

	a, err := w.Get(ctx, id)
	if err != nil {
		metrics.ObserveApprovalAction(action, metrics.ResultNotFound)
		return ActionResult{}, err
	}
	if a.Status != models.ApprovalPending {
		metrics.ObserveApprovalAction(action, metrics.ResultInvalidState)
		return ActionResult{}, fmt.Errorf("%w (status: %s)", ErrInvalidState, a.Status)
	}

	// Expiry is settled before the action is validated.
	now := w.now()
	if now.After(a.ExpiresAt) {
		swapped, err := w.Store.CompareAndSwapStatus(ctx, id, models.ApprovalPending, models.ApprovalExpired)
		if err != nil {
			return ActionResult{}, err
		}
		if !swapped {
			metrics.ObserveApprovalAction(action, metrics.ResultInvalidState)
			return ActionResult{}, ErrInvalidState
		}
		w.Logger.Info().Str("approval_id", id).Msg("approval expired on access")
		metrics.ObserveApprovalAction(action, metrics.ResultExpired)
		return ActionResult{}, ErrExpired
	}

	var target, message string
	switch action {
	case ActionApprove:
		target, message = models.ApprovalApproved, "allocation change approved"
	case ActionReject:
		target, message = models.ApprovalRejected, "allocation change rejected"
	default:
		metrics.ObserveApprovalAction(action, metrics.ResultInvalid)
		return ActionResult{}, ErrInvalidAction
	}

	swapped, err := w.Store.CompareAndSwapStatus(ctx, id, models.ApprovalPending, target)
	if err != nil {
		return ActionResult{}, err
	}
	if !swapped {
		metrics.ObserveApprovalAction(action, metrics.ResultInvalidState)
		return ActionResult{}, ErrInvalidState
	}
	metrics.ObserveApprovalAction(action, metrics.ResultApplied)

	w.audit(ctx, a, target, req, now)

	return ActionResult{
		ApprovalID: id,
		Action:     action,
		Status:     target,
		Message:    message,
		Timestamp:  now,
	}, nil
}

func (w *Workflow) audit(ctx context.Context, a models.PendingApproval, status string, req ActionRequest, at time.Time) {
	user := req.User
	if user == "" {
		user = "system"
	}
	userID := req.UserID
	if userID == "" {
		userID = "system"
	}
	rec := models.ApprovalHistoryRecord{
		SuggestionID:    a.ID,
		SuggestionType:  suggestionTypeAllocation,
		Changes:         a.Changes,
		Impact:          a.Impact,
		Reason:          a.Reason,
		ConfidenceScore: a.ConfidenceScore,
		ActionType:      status,
		ActionUser:      user,
		ActionUserID:    userID,
		ActionTimestamp: at,
		FeedbackReason:  req.Reason,
		FeedbackNotes:   req.Notes,
		ExecutionStatus: executionPending,
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.AuditTimeout)
	defer cancel()
	if err := w.Sink.InsertApprovalHistory(auditCtx, rec); err != nil {
		metrics.ObserveAuditFailure()
		w.Logger.Error().Err(err).Str("approval_id", a.ID).Msg("approval history write failed")
		return
	}
	w.Logger.Info().Str("approval_id", a.ID).Str("action", status).Msg("approval history saved")
}

// BulkAct applies the same action to every id; one failure never stops the rest.
func (w *Workflow) BulkAct(ctx context.Context, ids []string, action string) BulkResult {
	res := BulkResult{Results: make([]BulkItem, 0, len(ids)), Total: len(ids)}
	for _, id := range ids {
		if _, err := w.Act(ctx, id, ActionRequest{Action: action}); err != nil {
			res.Results = append(res.Results, BulkItem{ID: id, Success: false, Error: err.Error()})
			continue
		}
		res.Results = append(res.Results, BulkItem{ID: id, Success: true})
		res.Succeeded++
	}
	return res
}
