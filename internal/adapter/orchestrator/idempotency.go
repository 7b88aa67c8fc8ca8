package orchestrator

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// MemoryIdempotencyStore tracks processed request IDs in memory.
type MemoryIdempotencyStore struct {
	outcomes *xsync.Map[string, *domain.ActionOutcome]
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{outcomes: xsync.NewMap[string, *domain.ActionOutcome]()}
}

func (s *MemoryIdempotencyStore) Seen(requestID string) (*domain.ActionOutcome, bool) {
	return s.outcomes.Load(requestID)
}

func (s *MemoryIdempotencyStore) Record(requestID string, outcome *domain.ActionOutcome) {
	s.outcomes.Store(requestID, outcome)
}

func (s *MemoryIdempotencyStore) Size() int {
	return s.outcomes.Size()
}
