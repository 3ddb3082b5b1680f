package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimee/backend/internal/ai"
	"github.com/aimee/backend/internal/alert"
	"github.com/aimee/backend/internal/allocation"
	"github.com/aimee/backend/internal/approval"
	"github.com/aimee/backend/internal/conversation"
	"github.com/aimee/backend/internal/inventory"
	"github.com/aimee/backend/internal/models"
	"github.com/aimee/backend/internal/proposal"
	"github.com/aimee/backend/internal/recommend"
)

type fakeInventory struct {
	EmptyInventory
	records      []models.CapabilityRecord
	observations []alert.Observation
	err          error
}

func (f fakeInventory) Capabilities(context.Context, []string) ([]models.CapabilityRecord, error) {
	return f.records, f.err
}

func (f fakeInventory) AlertObservations(context.Context) ([]alert.Observation, error) {
	return f.observations, f.err
}

type brokenInterpreter struct{}

func (brokenInterpreter) Analyze(context.Context, string) (models.Analysis, error) {
	return models.DefaultAnalysis(), ai.ErrUpstreamUnavailable
}

func (brokenInterpreter) Narrate(context.Context, ai.NarrationInput) (string, error) {
	return "", ai.ErrUpstreamUnavailable
}

type brokenRecommender struct{ recommend.Noop }

func (brokenRecommender) Similar(context.Context, string, int) ([]recommend.Document, error) {
	return nil, errors.New("connection refused")
}

type staticRecommender struct{ recommend.Noop }

func (staticRecommender) Similar(context.Context, string, int) ([]recommend.Document, error) {
	return []recommend.Document{{ID: "k1", Content: "keep two people in correction"}}, nil
}

type candidateRecommender struct {
	recommend.Noop
	asked *[]string
	err   error
}

func (c candidateRecommender) BestCandidates(_ context.Context, business, process, location string, k int) ([]recommend.Candidate, error) {
	*c.asked = append(*c.asked, fmt.Sprintf("%s/%s/%s/%d", business, process, location, k))
	if c.err != nil {
		return nil, c.err
	}
	return []recommend.Candidate{
		{PersonID: "p-7", PersonName: "Aoki", Location: "Shinagawa", Score: 0.9},
		{PersonID: "p-9", Location: "Osaka", Score: 0.7},
	}, nil
}

func crew(location, category, business, process string, n int) []models.CapabilityRecord {
	out := make([]models.CapabilityRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.CapabilityRecord{
			PersonID:         fmt.Sprintf("%s/%s/%s/%d", location, business, process, i),
			PersonName:       fmt.Sprintf("%s-%s-%d", location, business, i),
			Location:         location,
			BusinessCategory: category,
			BusinessName:     business,
			ProcessCategory:  "OCR",
			ProcessName:      process,
		})
	}
	return out
}

func newTestAdvisor(t *testing.T, inv InventorySource) *Advisor {
	t.Helper()
	engine, err := alert.NewEngine("", zerolog.Nop())
	require.NoError(t, err)
	return &Advisor{
		Interpreter: ai.NewMockInterpreter([]string{"Sapporo", "Shinagawa", "Osaka"}),
		Recommender: recommend.Noop{},
		Inventory:   inv,
		Matcher:     allocation.NewMatcher(allocation.DefaultLimits(), allocation.OrderedSelector{}, "SS", nil),
		Synthesizer: proposal.NewSynthesizer(),
		Approvals:   approval.NewWorkflow(approval.NewMemoryStore(), nil, approval.DefaultTTLs(), zerolog.Nop()),
		Memory:      conversation.NewMemory(conversation.NewMemoryStore(), 0, 0),
		Alerts:      engine,
		Thresholds:  inventory.DefaultThresholds(),
		Timeouts:    Timeouts{Interpreter: time.Second, Recommender: time.Second, Inventory: time.Second},
		RAGTopK:     3,
		Logger:      zerolog.Nop(),
	}
}

func staffed() fakeInventory {
	var records []models.CapabilityRecord
	records = append(records, crew("Sapporo", "SS", "SS-W", "entry-1", 1)...)
	records = append(records, crew("Shinagawa", "SS", "SS-W", "entry-1", 4)...)
	return fakeInventory{records: records}
}

func TestHandleMessageQueuesChatApproval(t *testing.T) {
	a := newTestAdvisor(t, staffed())
	ctx := context.Background()

	resp, err := a.HandleMessage(ctx, ChatRequest{Message: "Sapporo entry-1 is behind", Detail: true})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, models.IntentDelayResolution, resp.Intent.Kind())
	require.NotNil(t, resp.Suggestion)
	require.Len(t, resp.Suggestion.Changes, 1)
	assert.Equal(t, "Shinagawa", resp.Suggestion.Changes[0].FromLocation)
	assert.Equal(t, "Sapporo", resp.Suggestion.Changes[0].ToLocation)
	assert.Equal(t, 2, resp.Suggestion.Changes[0].Count)

	require.NotNil(t, resp.Approval)
	assert.Equal(t, resp.Suggestion.ID, resp.Approval.ID)
	assert.Equal(t, models.ApprovalPending, resp.Approval.Status)
	assert.Equal(t, 24*time.Hour, resp.Approval.ExpiresAt.Sub(resp.Approval.Timestamp))
	assert.Contains(t, resp.Response, "waiting for approval")
	assert.NotEmpty(t, resp.Events)

	stored, err := a.Approvals.Get(ctx, resp.Approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, stored.Status)
}

func TestHandleMessageOmitsEventsWithoutDetail(t *testing.T) {
	a := newTestAdvisor(t, staffed())
	resp, err := a.HandleMessage(context.Background(), ChatRequest{Message: "hello", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Nil(t, resp.Events)
	assert.Nil(t, resp.Suggestion)
	assert.Nil(t, resp.Approval)
}

func TestEmptySuggestionIsNotQueued(t *testing.T) {
	a := newTestAdvisor(t, fakeInventory{records: crew("Osaka", "SS", "SS-W", "entry-1", 2)})
	ctx := context.Background()

	resp, err := a.HandleMessage(ctx, ChatRequest{Message: "Sapporo is behind"})
	require.NoError(t, err)
	require.NotNil(t, resp.Suggestion)
	assert.Empty(t, resp.Suggestion.Changes)
	assert.Nil(t, resp.Approval)

	list, err := a.Approvals.List(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImpactAnalysisUsesLastSuggestion(t *testing.T) {
	a := newTestAdvisor(t, staffed())
	ctx := context.Background()

	first, err := a.HandleMessage(ctx, ChatRequest{Message: "Sapporo entry-1 is behind", SessionID: "s-impact"})
	require.NoError(t, err)
	require.NotNil(t, first.Suggestion)

	second, err := a.HandleMessage(ctx, ChatRequest{Message: "is it okay for the source location?", SessionID: "s-impact"})
	require.NoError(t, err)
	assert.Equal(t, models.IntentImpactAnalysis, second.Intent.Kind())
	assert.Nil(t, second.Suggestion)
	assert.Contains(t, second.Response, first.Suggestion.ID)

	turns, err := a.Memory.Recent(ctx, "s-impact", 0)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestCollaboratorFailuresDegrade(t *testing.T) {
	a := newTestAdvisor(t, fakeInventory{err: errors.New("db down")})
	a.Interpreter = brokenInterpreter{}
	a.Recommender = brokenRecommender{}

	resp, err := a.HandleMessage(context.Background(), ChatRequest{Message: "Sapporo entry-1 is behind", Detail: true})
	require.NoError(t, err)
	assert.Equal(t, models.IntentGeneralInquiry, resp.Intent.Kind())
	assert.Equal(t, "The current resources can handle the workload.", resp.Response)
	assert.Empty(t, resp.Knowledge)

	var failed []string
	for _, ev := range resp.Events {
		if ev.Error != "" {
			failed = append(failed, ev.Type)
		}
	}
	assert.ElementsMatch(t, []string{"intent_analysis", "knowledge_search", "inventory", "narration"}, failed)
}

func TestKnowledgeReachesResponse(t *testing.T) {
	a := newTestAdvisor(t, staffed())
	a.Recommender = staticRecommender{}

	resp, err := a.HandleMessage(context.Background(), ChatRequest{Message: "how is Osaka?"})
	require.NoError(t, err)
	require.Len(t, resp.Knowledge, 1)
	assert.Contains(t, resp.Response, "keep two people in correction")
}

func TestSuggestUsesSyncTTL(t *testing.T) {
	a := newTestAdvisor(t, staffed())

	out, err := a.Suggest(context.Background(), SuggestRequest{Location: "Sapporo", ProcessName: "entry-1", Urgency: "HIGH", RequestedBy: "scheduler"})
	require.NoError(t, err)
	require.NotNil(t, out.Approval)
	assert.Equal(t, time.Hour, out.Approval.ExpiresAt.Sub(out.Approval.Timestamp))
	assert.Equal(t, models.UrgencyHigh, out.Approval.Urgency)
	assert.Equal(t, "scheduler", out.Approval.RequestedBy)
	require.Len(t, out.Shortage, 1)
	assert.Equal(t, 10, out.Shortage[0].Shortage)
}

func TestResolveAlert(t *testing.T) {
	inv := staffed()
	inv.observations = []alert.Observation{{Metric: "correction_backlog", Location: "Shinagawa", Value: 80}}
	a := newTestAdvisor(t, inv)
	ctx := context.Background()

	alerts, err := a.CurrentAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	res, err := a.ResolveAlert(ctx, alerts[0].ID, "")
	require.NoError(t, err)
	assert.Equal(t, alerts[0].ID, res.Alert.ID)
	assert.NotEmpty(t, res.Request)
	assert.NotEmpty(t, res.Response)

	_, err = a.ResolveAlert(ctx, "nope", "")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestShortageCandidatesReachResponse(t *testing.T) {
	var asked []string
	a := newTestAdvisor(t, staffed())
	a.Recommender = candidateRecommender{asked: &asked}

	resp, err := a.HandleMessage(context.Background(), ChatRequest{Message: "Sapporo entry-1 is behind", Detail: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"SS-W/entry-1//3"}, asked)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, "Aoki", resp.Candidates[0].PersonName)
	assert.Contains(t, resp.Response, "People who can cover it: Aoki (Shinagawa), p-9 (Osaka).")

	var found bool
	for _, ev := range resp.Events {
		if ev.Type == "candidate_search" {
			found = true
			assert.Equal(t, 2, ev.Count)
			assert.Empty(t, ev.Error)
		}
	}
	assert.True(t, found, "candidate_search event missing")
}

func TestCandidateLookupFailureDegrades(t *testing.T) {
	var asked []string
	a := newTestAdvisor(t, staffed())
	a.Recommender = candidateRecommender{asked: &asked, err: errors.New("timeout")}

	resp, err := a.HandleMessage(context.Background(), ChatRequest{Message: "Sapporo entry-1 is behind", Detail: true})
	require.NoError(t, err)
	assert.Len(t, asked, 1)
	assert.Empty(t, resp.Candidates)
	require.NotNil(t, resp.Suggestion)
	assert.NotContains(t, resp.Response, "People who can cover it")
}

func TestNoShortageSkipsCandidateLookup(t *testing.T) {
	var asked []string
	a := newTestAdvisor(t, fakeInventory{records: crew("Shinagawa", "SS", "SS-W", "entry-1", 4)})
	a.Recommender = candidateRecommender{asked: &asked}

	resp, err := a.HandleMessage(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Empty(t, asked)
	assert.Empty(t, resp.Candidates)
}
