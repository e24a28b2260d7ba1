package savedstate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sekikawa0127/github-repo-search/internal/domain"
)

// Slot is a process-scoped slot holding one serialized repository so a
// detail view can be reconstructed verbatim after an interruption without
// involving the network or the cache.
type Slot struct {
	mu   sync.Mutex
	data []byte
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Save serializes repo into the slot, replacing any previous value.
func (s *Slot) Save(repo domain.Repo) error {
	data, err := json.Marshal(repo)
	if err != nil {
		return fmt.Errorf("failed to serialize repository: %w", err)
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Restore deserializes the saved repository. The second return value is
// false when the slot is empty or holds an undecodable value.
func (s *Slot) Restore() (*domain.Repo, bool) {
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()

	if len(data) == 0 {
		return nil, false
	}
	var repo domain.Repo
	if err := json.Unmarshal(data, &repo); err != nil {
		return nil, false
	}
	return &repo, true
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
}
