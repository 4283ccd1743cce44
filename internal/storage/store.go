package storage

import (
	"context"

	"dimcascade/internal/model"
)

// Store defines persistence for completed batches and run summaries.
// A batch is only saved once fully computed; no partial batch is ever
// written.
type Store interface {
	Init(ctx context.Context) error
	SaveBatch(ctx context.Context, batch model.BatchResult) error
	GetBatch(ctx context.Context, id string) (model.BatchResult, bool, error)
	ListBatchesByRun(ctx context.Context, runID string) ([]model.BatchResult, error)
	SaveRunSummary(ctx context.Context, summary model.RunSummary) error
	GetRunSummary(ctx context.Context, runID string) (model.RunSummary, bool, error)
	ListRunIDs(ctx context.Context) ([]string, error)
	Reset(ctx context.Context) error
}
