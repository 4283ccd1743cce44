package storage

import (
	"context"
	"sort"
	"sync"

	"dimcascade/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	batches     map[string]model.BatchResult
	summaries   map[string]model.RunSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.batches = make(map[string]model.BatchResult)
	s.summaries = make(map[string]model.RunSummary)
	return nil
}

func (s *MemoryStore) SaveBatch(_ context.Context, batch model.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[batch.ID] = batch
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (model.BatchResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[id]
	return batch, ok, nil
}

func (s *MemoryStore) ListBatchesByRun(_ context.Context, runID string) ([]model.BatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.BatchResult, 0, len(s.batches))
	for _, batch := range s.batches {
		if batch.RunID == runID {
			out = append(out, batch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GridSize == out[j].GridSize {
			return out[i].Transition < out[j].Transition
		}
		return out[i].GridSize < out[j].GridSize
	})
	return out, nil
}

func (s *MemoryStore) SaveRunSummary(_ context.Context, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetRunSummary(_ context.Context, runID string) (model.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[runID]
	return summary, ok, nil
}

func (s *MemoryStore) ListRunIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, batch := range s.batches {
		seen[batch.RunID] = true
	}
	for runID := range s.summaries {
		seen[runID] = true
	}
	out := make([]string, 0, len(seen))
	for runID := range seen {
		out = append(out, runID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}
