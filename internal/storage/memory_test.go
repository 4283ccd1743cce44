package storage

import (
	"context"
	"testing"

	"dimcascade/internal/model"
)

func testBatch(id, runID string, gridSize int, transition model.Transition) model.BatchResult {
	return model.BatchResult{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: CurrentSchemaVersion,
			CodecVersion:  CurrentCodecVersion,
		},
		ID:          id,
		RunID:       runID,
		GridSize:    gridSize,
		Transition:  transition,
		Rule:        model.RuleConway,
		NumPatterns: 3,
	}
}

func TestMemoryStoreBatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	batch := testBatch("b-1", "run-1", 20, model.Transition1Dto2D)
	if err := store.SaveBatch(ctx, batch); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	loaded, ok, err := store.GetBatch(ctx, "b-1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if !ok {
		t.Fatal("expected batch to exist")
	}
	if loaded.RunID != "run-1" || loaded.GridSize != 20 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	_, ok, err = store.GetBatch(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing batch: %v", err)
	}
	if ok {
		t.Fatal("missing batch should report ok=false")
	}
}

func TestMemoryStoreListBatchesByRunSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, b := range []model.BatchResult{
		testBatch("b-3", "run-1", 20, model.Transition2Dto3D),
		testBatch("b-1", "run-1", 15, model.Transition1Dto2D),
		testBatch("b-2", "run-1", 20, model.Transition1Dto2D),
		testBatch("b-4", "run-2", 15, model.Transition1Dto2D),
	} {
		if err := store.SaveBatch(ctx, b); err != nil {
			t.Fatalf("save batch %s: %v", b.ID, err)
		}
	}

	batches, err := store.ListBatchesByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches for run-1, got %d", len(batches))
	}
	if batches[0].ID != "b-1" || batches[1].ID != "b-2" || batches[2].ID != "b-3" {
		t.Fatalf("batches not sorted by size then transition: %s %s %s",
			batches[0].ID, batches[1].ID, batches[2].ID)
	}
}

func TestMemoryStoreRunSummaryAndIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := store.SaveBatch(ctx, testBatch("b-1", "run-b", 15, model.Transition1Dto2D)); err != nil {
		t.Fatalf("save batch: %v", err)
	}
	if err := store.SaveRunSummary(ctx, model.RunSummary{RunID: "run-a", OverallMean: 86}); err != nil {
		t.Fatalf("save summary: %v", err)
	}

	summary, ok, err := store.GetRunSummary(ctx, "run-a")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !ok || summary.OverallMean != 86 {
		t.Fatalf("summary round trip: ok=%t %+v", ok, summary)
	}

	ids, err := store.ListRunIDs(ctx)
	if err != nil {
		t.Fatalf("list run ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-a" || ids[1] != "run-b" {
		t.Fatalf("run ids should union batches and summaries sorted, got %v", ids)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveBatch(ctx, testBatch("b-1", "run-1", 15, model.Transition1Dto2D)); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	ids, err := store.ListRunIDs(ctx)
	if err != nil {
		t.Fatalf("list run ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("reset should empty the store, got %v", ids)
	}
}
