package approval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimee/backend/internal/models"
)

type recordingSink struct {
	mu   sync.Mutex
	recs []models.ApprovalHistoryRecord
	err  error
}

func (s *recordingSink) InsertApprovalHistory(_ context.Context, rec models.ApprovalHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestWorkflow(sink HistorySink) *Workflow {
	w := NewWorkflow(NewMemoryStore(), sink, DefaultTTLs(), zerolog.Nop())
	w.Now = func() time.Time { return epoch }
	return w
}

func sampleSuggestion(id string) models.Suggestion {
	return models.Suggestion{
		ID: id,
		Changes: []models.TransferChange{{
			FromLocation: "Shinagawa", FromBusinessCategory: "SS", FromBusinessName: "SS-W", FromProcessCategory: "OCR", FromProcessName: "entry-1",
			ToLocation: "Sapporo", ToBusinessCategory: "SS", ToBusinessName: "SS-W", ToProcessCategory: "OCR", ToProcessName: "entry-1",
			Count: 2, Operators: []string{"op-1", "op-2"},
		}},
		Impact:          models.Impact{Productivity: "+10%", Delay: "-15min", Quality: "maintained"},
		Reason:          "cover Sapporo",
		ConfidenceScore: 0.85,
	}
}

func TestCreatePreservesSuggestionFields(t *testing.T) {
	w := newTestWorkflow(nil)
	sg := sampleSuggestion("SGT1")

	a, err := w.Create(context.Background(), sg, CreateOptions{Origin: OriginSync, Urgency: "HIGH"})
	require.NoError(t, err)
	assert.Equal(t, sg.Changes, a.Changes)
	assert.Equal(t, sg.Impact, a.Impact)
	assert.Equal(t, sg.Reason, a.Reason)
	assert.Equal(t, models.ApprovalPending, a.Status)
	assert.Equal(t, models.UrgencyHigh, a.Urgency)
	assert.Equal(t, "AI", a.RequestedBy)
	assert.Equal(t, epoch.Add(time.Hour), a.ExpiresAt)

	got, err := w.Get(context.Background(), "SGT1")
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestChatOriginUsesLongerTTL(t *testing.T) {
	w := newTestWorkflow(nil)
	a, err := w.Create(context.Background(), sampleSuggestion("SGT2"), CreateOptions{Origin: OriginChat})
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(24*time.Hour), a.ExpiresAt)
	assert.Equal(t, models.UrgencyMedium, a.Urgency)
}

func TestActOnExpiredApprovalMarksExpired(t *testing.T) {
	sink := &recordingSink{}
	w := newTestWorkflow(sink)
	ctx := context.Background()
	require.NoError(t, w.Store.Put(ctx, models.PendingApproval{
		ID: "SGT-old", Status: models.ApprovalPending, Timestamp: epoch.Add(-time.Hour), ExpiresAt: epoch.Add(-time.Second),
	}))

	_, err := w.Act(ctx, "SGT-old", ActionRequest{Action: ActionApprove})
	require.ErrorIs(t, err, ErrExpired)

	a, err := w.Get(ctx, "SGT-old")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalExpired, a.Status)
	assert.Zero(t, sink.count())

	_, err = w.Act(ctx, "SGT-old", ActionRequest{Action: ActionApprove})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestActTransitionsExactlyOnce(t *testing.T) {
	sink := &recordingSink{}
	w := newTestWorkflow(sink)
	ctx := context.Background()
	_, err := w.Create(ctx, sampleSuggestion("SGT3"), CreateOptions{})
	require.NoError(t, err)

	res, err := w.Act(ctx, "SGT3", ActionRequest{Action: "Approve", User: "yamada", Reason: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, res.Status)
	assert.Equal(t, ActionApprove, res.Action)

	_, err = w.Act(ctx, "SGT3", ActionRequest{Action: ActionReject})
	require.ErrorIs(t, err, ErrInvalidState)

	a, err := w.Get(ctx, "SGT3")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, a.Status)

	require.Equal(t, 1, sink.count())
	rec := sink.recs[0]
	assert.Equal(t, "SGT3", rec.SuggestionID)
	assert.Equal(t, models.ApprovalApproved, rec.ActionType)
	assert.Equal(t, "yamada", rec.ActionUser)
	assert.Equal(t, "system", rec.ActionUserID)
	assert.Equal(t, "ok", rec.FeedbackReason)
	assert.Equal(t, "pending", rec.ExecutionStatus)
	assert.Len(t, rec.Changes, 1)
}

func TestActRejectsUnknownAction(t *testing.T) {
	w := newTestWorkflow(nil)
	ctx := context.Background()
	_, err := w.Create(ctx, sampleSuggestion("SGT-defer"), CreateOptions{Origin: OriginSync})
	require.NoError(t, err)

	_, err = w.Act(ctx, "SGT-defer", ActionRequest{Action: "defer"})
	assert.ErrorIs(t, err, ErrInvalidAction)

	a, err := w.Get(ctx, "SGT-defer")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, a.Status)
}

func TestExpiryIsCheckedBeforeAction(t *testing.T) {
	cases := []struct {
		name   string
		action string
	}{
		{"reject", ActionReject},
		{"unknown action", "defer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			w := newTestWorkflow(sink)
			ctx := context.Background()
			_, err := w.Create(ctx, sampleSuggestion("SGT-stale"), CreateOptions{Origin: OriginSync})
			require.NoError(t, err)
			w.Now = func() time.Time { return epoch.Add(2 * time.Hour) }

			_, err = w.Act(ctx, "SGT-stale", ActionRequest{Action: tc.action})
			require.ErrorIs(t, err, ErrExpired)

			a, err := w.Get(ctx, "SGT-stale")
			require.NoError(t, err)
			assert.Equal(t, models.ApprovalExpired, a.Status)
			assert.Zero(t, sink.count())
		})
	}
}

func TestActUnknownID(t *testing.T) {
	w := newTestWorkflow(nil)
	_, err := w.Act(context.Background(), "nope", ActionRequest{Action: ActionReject})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentActsHaveExactlyOneWinner(t *testing.T) {
	sink := &recordingSink{}
	w := newTestWorkflow(sink)
	ctx := context.Background()
	_, err := w.Create(ctx, sampleSuggestion("SGT-race"), CreateOptions{})
	require.NoError(t, err)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := ActionApprove
			if i%2 == 1 {
				action = ActionReject
			}
			_, err := w.Act(ctx, "SGT-race", ActionRequest{Action: action})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidState):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(31), conflicts.Load())
	assert.Equal(t, 1, sink.count())
}

func TestAuditFailureDoesNotAffectResult(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	w := newTestWorkflow(sink)
	ctx := context.Background()
	_, err := w.Create(ctx, sampleSuggestion("SGT4"), CreateOptions{})
	require.NoError(t, err)

	res, err := w.Act(ctx, "SGT4", ActionRequest{Action: ActionReject, Notes: "too many moves"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, res.Status)

	a, err := w.Get(ctx, "SGT4")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, a.Status)
}

func TestBulkActReportsEachItem(t *testing.T) {
	w := newTestWorkflow(nil)
	ctx := context.Background()
	_, err := w.Create(ctx, sampleSuggestion("idA"), CreateOptions{})
	require.NoError(t, err)

	res := w.BulkAct(ctx, []string{"idA", "idB"}, ActionApprove)
	require.Len(t, res.Results, 2)
	assert.Equal(t, BulkItem{ID: "idA", Success: true}, res.Results[0])
	assert.Equal(t, "idB", res.Results[1].ID)
	assert.False(t, res.Results[1].Success)
	assert.NotEmpty(t, res.Results[1].Error)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Succeeded)
}

func TestListFiltersAndOrders(t *testing.T) {
	w := newTestWorkflow(nil)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		at := epoch.Add(time.Duration(i) * time.Minute)
		w.Now = func() time.Time { return at }
		urgency := models.UrgencyLow
		if i%2 == 0 {
			urgency = models.UrgencyHigh
		}
		_, err := w.Create(ctx, sampleSuggestion(id), CreateOptions{Urgency: urgency})
		require.NoError(t, err)
	}
	_, err := w.Act(ctx, "c", ActionRequest{Action: ActionApprove})
	require.NoError(t, err)

	all, err := w.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.Before(all[i-1].Timestamp))
	}

	pendingHigh, err := w.List(ctx, models.ApprovalPending, models.UrgencyHigh)
	require.NoError(t, err)
	require.Len(t, pendingHigh, 2)
	assert.Equal(t, "a", pendingHigh[0].ID)
	assert.Equal(t, "e", pendingHigh[1].ID)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sg := sampleSuggestion("copy")
	require.NoError(t, s.Put(ctx, models.PendingApproval{ID: "copy", Changes: sg.Changes, Status: models.ApprovalPending}))

	got, ok, err := s.Get(ctx, "copy")
	require.NoError(t, err)
	require.True(t, ok)
	got.Changes[0].Operators[0] = "mutated"

	again, _, _ := s.Get(ctx, "copy")
	assert.Equal(t, "op-1", again.Changes[0].Operators[0])
}

func TestCreateDoesNotOverwriteExistingApproval(t *testing.T) {
	w := newTestWorkflow(nil)
	ctx := context.Background()
	_, err := w.Create(ctx, sampleSuggestion("SGT-dup"), CreateOptions{Origin: OriginSync})
	require.NoError(t, err)
	_, err = w.Act(ctx, "SGT-dup", ActionRequest{Action: ActionApprove, User: "lead"})
	require.NoError(t, err)

	_, err = w.Create(ctx, sampleSuggestion("SGT-dup"), CreateOptions{Origin: OriginChat})
	require.ErrorIs(t, err, ErrAlreadyExists)

	a, err := w.Get(ctx, "SGT-dup")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, a.Status)
	assert.Equal(t, epoch.Add(time.Hour), a.ExpiresAt)

	all, err := w.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
