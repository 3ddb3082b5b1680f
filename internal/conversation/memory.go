package conversation

import (
	"context"
	"time"

	"github.com/aimee/backend/internal/models"
)

const (
	DefaultMaxTurns = 100
	DefaultMaxAge   = 24 * time.Hour
	DefaultRecent   = 5
)

// Memory is the session-scoped turn log. Sessions are capped at MaxTurns with
// the oldest turns evicted first; Sweep purges sessions idle past MaxAge.
type Memory struct {
	Store    Store
	MaxTurns int
	MaxAge   time.Duration
	Now      func() time.Time
}

func NewMemory(store Store, maxTurns int, maxAge time.Duration) *Memory {
	if store == nil {
		store = NewMemoryStore()
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Memory{Store: store, MaxTurns: maxTurns, MaxAge: maxAge, Now: time.Now}
}

func (m *Memory) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Memory) Add(ctx context.Context, session string, turn models.ConversationTurn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = m.now()
	}
	return m.Store.Append(ctx, session, turn, m.MaxTurns)
}

// LastSuggestion returns the most recent suggestion in the session, or nil.
func (m *Memory) LastSuggestion(ctx context.Context, session string) (*models.Suggestion, error) {
	turns, err := m.Store.Turns(ctx, session)
	if err != nil {
		return nil, err
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Suggestion != nil {
			return turns[i].Suggestion, nil
		}
	}
	return nil, nil
}

// Recent returns up to n newest turns in chronological order. n <= 0 means all.
func (m *Memory) Recent(ctx context.Context, session string, n int) ([]models.ConversationTurn, error) {
	turns, err := m.Store.Turns(ctx, session)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

func (m *Memory) Clear(ctx context.Context, session string) error {
	return m.Store.Delete(ctx, session)
}

func (m *Memory) Sweep(ctx context.Context) (int, error) {
	return m.Store.PurgeBefore(ctx, m.now().Add(-m.MaxAge))
}
