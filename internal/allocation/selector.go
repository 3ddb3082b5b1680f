package allocation

import (
	"math/rand"
	"sync"
	"time"

	"github.com/aimee/backend/internal/models"
)

// Selector picks which of the movable people go. Implementations must not
// return more than n records.
type Selector interface {
	Select(candidates []models.CapabilityRecord, n int) []models.CapabilityRecord
}

// RandomSelector shuffles candidates and takes the first n. There is no skill
// ranking; skill-weighted selection is an open enhancement.
type RandomSelector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomSelector(seed int64) *RandomSelector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSelector{rnd: rand.New(rand.NewSource(seed))}
}

func (s *RandomSelector) Select(candidates []models.CapabilityRecord, n int) []models.CapabilityRecord {
	pool := make([]models.CapabilityRecord, len(candidates))
	copy(pool, candidates)
	s.mu.Lock()
	s.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	s.mu.Unlock()
	return take(pool, n)
}

// OrderedSelector takes candidates in the order given.
type OrderedSelector struct{}

func (OrderedSelector) Select(candidates []models.CapabilityRecord, n int) []models.CapabilityRecord {
	pool := make([]models.CapabilityRecord, len(candidates))
	copy(pool, candidates)
	return take(pool, n)
}

func take(pool []models.CapabilityRecord, n int) []models.CapabilityRecord {
	if n <= 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}
