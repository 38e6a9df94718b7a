package decisionlog

import (
	"context"
	"sync"
	"time"

	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

const defaultListLimit = 100

// MemoryStore is an in-memory decision log for tests and single-node
// development deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	byID    map[id.DecisionID]int
}

// NewMemoryStore creates an empty in-memory log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[id.DecisionID]int)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rec.ID]; exists {
		return dErrors.Newf(dErrors.CodeValidation, "decision %s already logged", rec.ID)
	}
	s.byID[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, decisionID id.DecisionID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[decisionID]
	if !ok {
		return Record{}, dErrors.Newf(dErrors.CodeNotFound, "decision %s not found", decisionID)
	}
	return s.records[idx], nil
}

// ListSince implements Store.
func (s *MemoryStore) ListSince(_ context.Context, since time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, limit)
	for _, rec := range s.records {
		if !rec.LoggedAt.After(since) {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func validateRecord(rec Record) error {
	if rec.ID.IsNil() {
		return dErrors.NewField(dErrors.CodeValidation, "id", "decision id is required")
	}
	if rec.Fingerprint == "" {
		return dErrors.NewField(dErrors.CodeValidation, "fingerprint", "must not be empty")
	}
	if len(rec.Payload) == 0 {
		return dErrors.NewField(dErrors.CodeValidation, "payload", "must not be empty")
	}
	if rec.LoggedAt.IsZero() {
		return dErrors.NewField(dErrors.CodeValidation, "logged_at", "must be set")
	}
	return nil
}
