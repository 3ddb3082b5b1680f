package approval

import (
	"context"
	"sync"

	"github.com/aimee/backend/internal/models"
	"github.com/aimee/backend/internal/utils"
)

// Store holds the process-wide approval table.
type Store interface {
	Get(ctx context.Context, id string) (models.PendingApproval, bool, error)
	// Put inserts a new approval. It returns ErrAlreadyExists when the id is
	// taken; status changes go through CompareAndSwapStatus.
	Put(ctx context.Context, a models.PendingApproval) error
	// CompareAndSwapStatus moves id from one status to another only if it is
	// still in from. It reports whether the swap happened.
	CompareAndSwapStatus(ctx context.Context, id, from, to string) (bool, error)
	Scan(ctx context.Context, keep func(models.PendingApproval) bool) ([]models.PendingApproval, error)
}

const shardCount = 16

type shard struct {
	mu    sync.RWMutex
	items map[string]models.PendingApproval
	order []string
}

// MemoryStore shards approvals by id hash so unrelated ids never contend.
type MemoryStore struct {
	shards [shardCount]*shard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{items: map[string]models.PendingApproval{}}
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	return s.shards[utils.HashStringToUint64(id)%shardCount]
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.PendingApproval, bool, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	a, ok := sh.items[id]
	return clone(a), ok, nil
}

func (s *MemoryStore) Put(_ context.Context, a models.PendingApproval) error {
	sh := s.shardFor(a.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.items[a.ID]; exists {
		return ErrAlreadyExists
	}
	sh.order = append(sh.order, a.ID)
	sh.items[a.ID] = clone(a)
	return nil
}

func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, id, from, to string) (bool, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	a, ok := sh.items[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	sh.items[id] = a
	return true, nil
}

func (s *MemoryStore) Scan(_ context.Context, keep func(models.PendingApproval) bool) ([]models.PendingApproval, error) {
	var out []models.PendingApproval
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, id := range sh.order {
			a := sh.items[id]
			if keep == nil || keep(a) {
				out = append(out, clone(a))
			}
		}
		sh.mu.RUnlock()
	}
	return out, nil
}

func clone(a models.PendingApproval) models.PendingApproval {
	if a.Changes != nil {
		changes := make([]models.TransferChange, len(a.Changes))
		for i, c := range a.Changes {
			if c.Operators != nil {
				c.Operators = append([]string(nil), c.Operators...)
			}
			changes[i] = c
		}
		a.Changes = changes
	}
	return a
}
