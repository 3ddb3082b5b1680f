package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aimee/backend/internal/ai"
	"github.com/aimee/backend/internal/alert"
	"github.com/aimee/backend/internal/allocation"
	"github.com/aimee/backend/internal/approval"
	"github.com/aimee/backend/internal/conversation"
	"github.com/aimee/backend/internal/inventory"
	"github.com/aimee/backend/internal/metrics"
	"github.com/aimee/backend/internal/models"
	"github.com/aimee/backend/internal/proposal"
	"github.com/aimee/backend/internal/recommend"
)

var ErrAlertNotFound = errors.New("alert not found")

const (
	entryChat    = "chat"
	entrySuggest = "suggest"
	entryAlert   = "alert"

	snapshotLimit  = 10
	candidateLimit = 3
)

// InventorySource is the read-only view of staffing data.
type InventorySource interface {
	Capabilities(ctx context.Context, processes []string) ([]models.CapabilityRecord, error)
	Snapshots(ctx context.Context, limit int) ([]models.SnapshotRow, error)
	Locations(ctx context.Context) ([]models.Location, error)
	Processes(ctx context.Context) ([]models.Process, error)
	AlertObservations(ctx context.Context) ([]alert.Observation, error)
}

// EmptyInventory answers every query with nothing. It stands in when no
// database is configured.
type EmptyInventory struct{}

func (EmptyInventory) Capabilities(context.Context, []string) ([]models.CapabilityRecord, error) {
	return nil, nil
}
func (EmptyInventory) Snapshots(context.Context, int) ([]models.SnapshotRow, error) { return nil, nil }
func (EmptyInventory) Locations(context.Context) ([]models.Location, error)         { return nil, nil }
func (EmptyInventory) Processes(context.Context) ([]models.Process, error)          { return nil, nil }
func (EmptyInventory) AlertObservations(context.Context) ([]alert.Observation, error) {
	return nil, nil
}

type Timeouts struct {
	Interpreter time.Duration
	Recommender time.Duration
	Inventory   time.Duration
}

type Advisor struct {
	Interpreter ai.Interpreter
	Recommender recommend.Recommender
	Inventory   InventorySource
	Matcher     *allocation.Matcher
	Synthesizer *proposal.Synthesizer
	Approvals   *approval.Workflow
	Memory      *conversation.Memory
	Alerts      *alert.Engine

	Thresholds          inventory.Thresholds
	Timeouts            Timeouts
	CapabilityProcesses []string
	RAGTopK             int
	Logger              zerolog.Logger
}

type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Count     int       `json:"count"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

type ChatRequest struct {
	Message   string
	SessionID string
	Detail    bool
}

type ChatResponse struct {
	Response   string                  `json:"response"`
	SessionID  string                  `json:"session_id"`
	Intent     models.Analysis         `json:"intent"`
	Suggestion *models.Suggestion      `json:"suggestion,omitempty"`
	Approval   *models.PendingApproval `json:"approval,omitempty"`
	Knowledge  []recommend.Document    `json:"knowledge,omitempty"`
	Candidates []recommend.Candidate   `json:"candidates,omitempty"`
	Events     []Event                 `json:"events,omitempty"`
}

// run carries one pipeline's local state.
type run struct {
	start  time.Time
	events []Event
}

func newRun() *run {
	return &run{start: time.Now()}
}

func (r *run) event(typ, msg string, count int, err error) {
	ev := Event{Type: typ, Message: msg, Count: count, ElapsedMs: time.Since(r.start).Milliseconds(), Time: time.Now().UTC()}
	if err != nil {
		ev.Error = err.Error()
	}
	r.events = append(r.events, ev)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// HandleMessage runs the full pipeline for one chat message. Collaborator
// failures degrade the answer; only approval storage errors abort it.
func (a *Advisor) HandleMessage(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return a.handle(ctx, req, entryChat)
}

func (a *Advisor) handle(ctx context.Context, req ChatRequest, entry string) (ChatResponse, error) {
	r := newRun()
	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}
	resp := ChatResponse{SessionID: session}

	analysis := a.analyze(ctx, req.Message, r)
	resp.Intent = analysis

	history, err := a.Memory.Recent(ctx, session, conversation.DefaultRecent)
	if err != nil {
		a.Logger.Warn().Err(err).Str("session_id", session).Msg("conversation history unavailable")
	}

	knowledge := a.knowledge(ctx, req.Message, r)
	resp.Knowledge = knowledge

	in := ai.NarrationInput{
		Message:   req.Message,
		Analysis:  analysis,
		Knowledge: contents(knowledge),
		History:   history,
	}

	if analysis.Kind() == models.IntentImpactAnalysis {
		last, err := a.Memory.LastSuggestion(ctx, session)
		if err != nil {
			a.Logger.Warn().Err(err).Str("session_id", session).Msg("last suggestion lookup failed")
		}
		in.Suggestion = last
		r.event("impact_lookup", "previous suggestion", boolCount(last != nil), err)
	} else {
		inv := a.loadInventory(ctx, r)
		var reported *inventory.Reported
		if loc, proc, ok := analysis.Reported(); ok {
			reported = &inventory.Reported{Location: loc, ProcessName: proc}
		}
		gaps := inventory.Analyze(inv, reported, a.Thresholds)
		r.event("gap_analysis", "shortage buckets", len(gaps.Shortage), nil)
		in.Shortage, in.Surplus = gaps.Shortage, gaps.Surplus
		in.Headcount = headcount(inv)
		resp.Candidates = a.candidates(ctx, gaps.Shortage, r)
		in.Candidates = candidateLabels(resp.Candidates)

		if analysis.WantsSuggestion() {
			sg, pending, err := a.propose(ctx, inv, gaps, analysis.Proactive(), approval.CreateOptions{
				Origin:  approval.OriginChat,
				Urgency: analysis.Urgency,
			}, r)
			if err != nil {
				metrics.ObservePipeline(entry, time.Since(r.start), metrics.OutcomeError)
				return ChatResponse{}, err
			}
			resp.Suggestion, resp.Approval = &sg, pending
			in.Suggestion = &sg
		}
	}

	resp.Response = a.narrate(ctx, in, r)

	turn := models.ConversationTurn{Message: req.Message, Response: resp.Response, Suggestion: resp.Suggestion, Intent: &analysis}
	if err := a.Memory.Add(ctx, session, turn); err != nil {
		a.Logger.Warn().Err(err).Str("session_id", session).Msg("conversation turn not saved")
	}

	outcome := metrics.OutcomeAnswer
	if resp.Suggestion != nil {
		outcome = metrics.OutcomeSuggestion
	}
	metrics.ObservePipeline(entry, time.Since(r.start), outcome)
	a.Logger.Info().
		Str("session_id", session).
		Str("intent", string(analysis.Kind())).
		Bool("suggestion", resp.Suggestion != nil).
		Int64("elapsed_ms", time.Since(r.start).Milliseconds()).
		Msg("message handled")

	if req.Detail {
		resp.Events = r.events
	}
	return resp, nil
}

func (a *Advisor) analyze(ctx context.Context, text string, r *run) models.Analysis {
	ictx, cancel := withTimeout(ctx, a.Timeouts.Interpreter)
	defer cancel()
	analysis, err := a.Interpreter.Analyze(ictx, text)
	if err != nil {
		metrics.ObserveUpstreamFailure("interpreter")
		a.Logger.Warn().Err(err).Msg("intent analysis failed, using general inquiry")
		analysis = models.DefaultAnalysis()
	}
	r.event("intent_analysis", string(analysis.Kind()), 1, err)
	return analysis
}

func (a *Advisor) knowledge(ctx context.Context, text string, r *run) []recommend.Document {
	if a.Recommender == nil {
		return nil
	}
	rctx, cancel := withTimeout(ctx, a.Timeouts.Recommender)
	defer cancel()
	docs, err := a.Recommender.Similar(rctx, text, a.RAGTopK)
	if err != nil {
		metrics.ObserveUpstreamFailure("recommender")
		a.Logger.Warn().Err(err).Msg("knowledge lookup failed, continuing without context")
		docs = nil
	}
	r.event("knowledge_search", "related documents", len(docs), err)
	return docs
}

// candidates asks the recommender who can work the most urgent short bucket.
func (a *Advisor) candidates(ctx context.Context, shortage []models.GapEntry, r *run) []recommend.Candidate {
	if a.Recommender == nil || len(shortage) == 0 {
		return nil
	}
	top := shortage[0]
	rctx, cancel := withTimeout(ctx, a.Timeouts.Recommender)
	defer cancel()
	out, err := a.Recommender.BestCandidates(rctx, top.BusinessName, top.ProcessName, "", candidateLimit)
	if err != nil {
		metrics.ObserveUpstreamFailure("recommender")
		a.Logger.Warn().Err(err).Str("business", top.BusinessName).Str("process", top.ProcessName).Msg("candidate lookup failed")
		out = nil
	}
	r.event("candidate_search", top.Location+" "+top.ProcessName, len(out), err)
	return out
}

func candidateLabels(cs []recommend.Candidate) []string {
	if len(cs) == 0 {
		return nil
	}
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		name := c.PersonName
		if name == "" {
			name = c.PersonID
		}
		if c.Location != "" {
			name += " (" + c.Location + ")"
		}
		out = append(out, name)
	}
	return out
}

func (a *Advisor) loadInventory(ctx context.Context, r *run) inventory.Inventory {
	ictx, cancel := withTimeout(ctx, a.Timeouts.Inventory)
	defer cancel()

	records, err := a.Inventory.Capabilities(ictx, a.CapabilityProcesses)
	if err != nil {
		metrics.ObserveUpstreamFailure("inventory")
		a.Logger.Warn().Err(err).Msg("capability query failed, continuing with empty inventory")
		records = nil
	}
	snapshots, serr := a.Inventory.Snapshots(ictx, snapshotLimit)
	if serr != nil {
		metrics.ObserveUpstreamFailure("inventory")
		a.Logger.Warn().Err(serr).Msg("snapshot query failed")
		snapshots = nil
	}
	r.event("inventory", "capability records", len(records), errors.Join(err, serr))
	return inventory.Build(records, snapshots)
}

// propose matches transfers and stores the result for approval. A
// suggestion without changes is returned but not queued.
func (a *Advisor) propose(ctx context.Context, inv inventory.Inventory, gaps inventory.Gaps, proactive bool, opts approval.CreateOptions, r *run) (models.Suggestion, *models.PendingApproval, error) {
	changes := a.Matcher.Match(inventory.Clone(gaps.Shortage), inventory.Clone(gaps.Surplus), inv, proactive)
	r.event("allocation", "transfer changes", len(changes), nil)

	sg := a.Synthesizer.Synthesize(changes)
	if len(sg.Changes) == 0 {
		return sg, nil, nil
	}
	pending, err := a.Approvals.Create(ctx, sg, opts)
	if err != nil {
		return models.Suggestion{}, nil, fmt.Errorf("queue suggestion %s: %w", sg.ID, err)
	}
	r.event("approval", "queued "+pending.ID, 1, nil)
	return sg, &pending, nil
}

func (a *Advisor) narrate(ctx context.Context, in ai.NarrationInput, r *run) string {
	nctx, cancel := withTimeout(ctx, a.Timeouts.Interpreter)
	defer cancel()
	out, err := a.Interpreter.Narrate(nctx, in)
	if err != nil {
		metrics.ObserveUpstreamFailure("interpreter")
		a.Logger.Warn().Err(err).Msg("narration failed, using fallback text")
		out = fallbackNarration(in)
	}
	r.event("narration", "", len(out), err)
	return out
}

func fallbackNarration(in ai.NarrationInput) string {
	if in.Suggestion != nil && len(in.Suggestion.Changes) > 0 {
		return in.Suggestion.Reason + " The proposal is waiting for approval."
	}
	if in.Suggestion != nil {
		return in.Suggestion.Reason
	}
	return "The current resources can handle the workload."
}

type SuggestRequest struct {
	Location    string
	ProcessName string
	Proactive   bool
	Urgency     string
	RequestedBy string
}

type SuggestResponse struct {
	Suggestion models.Suggestion       `json:"suggestion"`
	Approval   *models.PendingApproval `json:"approval,omitempty"`
	Shortage   []models.GapEntry       `json:"shortage"`
	Surplus    []models.GapEntry       `json:"surplus"`
}

// Suggest runs the data half of the pipeline without the interpreter. The
// approval it queues uses the short synchronous TTL.
func (a *Advisor) Suggest(ctx context.Context, req SuggestRequest) (SuggestResponse, error) {
	r := newRun()
	inv := a.loadInventory(ctx, r)
	var reported *inventory.Reported
	if req.Location != "" && req.ProcessName != "" {
		reported = &inventory.Reported{Location: req.Location, ProcessName: req.ProcessName}
	}
	gaps := inventory.Analyze(inv, reported, a.Thresholds)

	sg, pending, err := a.propose(ctx, inv, gaps, req.Proactive, approval.CreateOptions{
		Origin:      approval.OriginSync,
		Urgency:     req.Urgency,
		RequestedBy: req.RequestedBy,
	}, r)
	if err != nil {
		metrics.ObservePipeline(entrySuggest, time.Since(r.start), metrics.OutcomeError)
		return SuggestResponse{}, err
	}
	metrics.ObservePipeline(entrySuggest, time.Since(r.start), metrics.OutcomeSuggestion)
	return SuggestResponse{Suggestion: sg, Approval: pending, Shortage: gaps.Shortage, Surplus: gaps.Surplus}, nil
}

// CurrentAlerts evaluates the rule pack against fresh observations.
func (a *Advisor) CurrentAlerts(ctx context.Context) ([]models.Alert, error) {
	ictx, cancel := withTimeout(ctx, a.Timeouts.Inventory)
	defer cancel()
	obs, err := a.Inventory.AlertObservations(ictx)
	if err != nil {
		metrics.ObserveUpstreamFailure("inventory")
		a.Logger.Warn().Err(err).Int("observations", len(obs)).Msg("some alert observations unavailable")
	}
	return a.Alerts.Evaluate(obs), nil
}

type AlertResolution struct {
	Alert   models.Alert `json:"alert"`
	Request string       `json:"request"`
	ChatResponse
}

// ResolveAlert feeds an active alert through the chat pipeline as if a user
// had described it.
func (a *Advisor) ResolveAlert(ctx context.Context, alertID, sessionID string) (AlertResolution, error) {
	alerts, err := a.CurrentAlerts(ctx)
	if err != nil {
		return AlertResolution{}, err
	}
	for _, al := range alerts {
		if al.ID != alertID {
			continue
		}
		text := a.Alerts.RequestText(al)
		resp, err := a.handle(ctx, ChatRequest{Message: text, SessionID: sessionID}, entryAlert)
		if err != nil {
			return AlertResolution{}, err
		}
		return AlertResolution{Alert: al, Request: text, ChatResponse: resp}, nil
	}
	return AlertResolution{}, ErrAlertNotFound
}

func contents(docs []recommend.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Content != "" {
			out = append(out, d.Content)
		}
	}
	return out
}

func headcount(inv inventory.Inventory) int {
	seen := map[string]struct{}{}
	for _, r := range inv.Records {
		key := r.PersonID
		if key == "" {
			key = r.PersonName
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
