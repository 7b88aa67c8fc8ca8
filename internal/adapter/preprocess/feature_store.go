package preprocess

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// FeatureStore keeps extracted features in memory, keyed by vector ID.
type FeatureStore struct {
	entries *xsync.Map[string, domain.Features]
}

func NewFeatureStore() *FeatureStore {
	return &FeatureStore{entries: xsync.NewMap[string, domain.Features]()}
}

func (s *FeatureStore) Put(vectorID string, features domain.Features) {
	s.entries.Store(vectorID, features)
}

func (s *FeatureStore) Get(vectorID string) (domain.Features, bool) {
	return s.entries.Load(vectorID)
}

func (s *FeatureStore) Size() int {
	return s.entries.Size()
}
