package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/aimee/backend/internal/models"
	"github.com/aimee/backend/internal/utils"
)

// Store persists per-session turn logs.
type Store interface {
	// Append adds a turn and trims the session to its newest maxTurns entries.
	Append(ctx context.Context, session string, turn models.ConversationTurn, maxTurns int) error
	Turns(ctx context.Context, session string) ([]models.ConversationTurn, error)
	Delete(ctx context.Context, session string) error
	// PurgeBefore drops every session whose last turn is older than cutoff and
	// reports how many were dropped.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

const shardCount = 16

type session struct {
	turns []models.ConversationTurn
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

type MemoryStore struct {
	shards [shardCount]*shard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: map[string]*session{}}
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	return s.shards[utils.HashStringToUint64(id)%shardCount]
}

func (s *MemoryStore) Append(_ context.Context, id string, turn models.ConversationTurn, maxTurns int) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		sess = &session{}
		sh.sessions[id] = sess
	}
	sess.turns = append(sess.turns, turn)
	if maxTurns > 0 && len(sess.turns) > maxTurns {
		drop := len(sess.turns) - maxTurns
		sess.turns = append([]models.ConversationTurn(nil), sess.turns[drop:]...)
	}
	return nil
}

func (s *MemoryStore) Turns(_ context.Context, id string) ([]models.ConversationTurn, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return nil, nil
	}
	return append([]models.ConversationTurn(nil), sess.turns...), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, id)
	return nil
}

func (s *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	purged := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if len(sess.turns) == 0 || sess.turns[len(sess.turns)-1].Timestamp.Before(cutoff) {
				delete(sh.sessions, id)
				purged++
			}
		}
		sh.mu.Unlock()
	}
	return purged, nil
}
