package stats

import (
	"os"
	"path/filepath"
	"testing"

	"dimcascade/internal/model"
)

func sampleBatch(runID string, gridSize int, transition model.Transition) model.BatchResult {
	loss := 86.2
	return model.BatchResult{
		ID:          "batch-1",
		RunID:       runID,
		GridSize:    gridSize,
		Transition:  transition,
		Rule:        model.RuleConway,
		NumPatterns: 2,
		BaseSeed:    100,
		Records: []model.TransitionRecord{
			{PatternID: 0, GridSize: gridSize, Transition: transition, Seed: 100, LossPct: &loss},
			{PatternID: 1, GridSize: gridSize, Transition: transition, Seed: 101},
		},
		Statistics: Summarize([]float64{loss}),
		Timestamp:  "2026-08-30T12:00:00Z",
	}
}

func TestBatchArtifactRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	batch := sampleBatch("run-1", 20, model.Transition1Dto2D)

	path, err := WriteBatchArtifact(baseDir, batch)
	if err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if filepath.Base(path) != "cascade_grid20_1d_2d.json" {
		t.Fatalf("unexpected artifact name %s", filepath.Base(path))
	}

	loaded, ok, err := ReadBatchArtifact(baseDir, "run-1", 20, model.Transition1Dto2D)
	if err != nil {
		t.Fatalf("read batch: %v", err)
	}
	if !ok {
		t.Fatal("expected artifact to exist")
	}
	if loaded.ID != batch.ID || len(loaded.Records) != 2 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.Records[0].LossPct == nil || *loaded.Records[0].LossPct != 86.2 {
		t.Fatal("defined loss lost in round trip")
	}
	if loaded.Records[1].LossPct != nil {
		t.Fatal("degenerate record should keep nil loss")
	}

	_, ok, err = ReadBatchArtifact(baseDir, "run-1", 99, model.Transition1Dto2D)
	if err != nil {
		t.Fatalf("read missing batch: %v", err)
	}
	if ok {
		t.Fatal("missing artifact should report ok=false")
	}
}

func TestListBatchArtifactsSorted(t *testing.T) {
	baseDir := t.TempDir()
	for _, b := range []model.BatchResult{
		sampleBatch("run-1", 20, model.Transition2Dto3D),
		sampleBatch("run-1", 15, model.Transition1Dto2D),
		sampleBatch("run-1", 20, model.Transition1Dto2D),
	} {
		if _, err := WriteBatchArtifact(baseDir, b); err != nil {
			t.Fatalf("write batch: %v", err)
		}
	}

	batches, err := ListBatchArtifacts(baseDir, "run-1")
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[0].GridSize != 15 {
		t.Fatalf("expected size 15 first, got %d", batches[0].GridSize)
	}
	if batches[1].Transition != model.Transition1Dto2D || batches[2].Transition != model.Transition2Dto3D {
		t.Fatal("same-size batches should sort by transition")
	}
}

func TestLossSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	batch := sampleBatch("run-1", 20, model.Transition1Dto2D)
	if _, err := WriteBatchArtifact(baseDir, batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	series, ok, err := ReadLossSeries(baseDir, "run-1", 20, model.Transition1Dto2D)
	if err != nil {
		t.Fatalf("read series: %v", err)
	}
	if !ok {
		t.Fatal("expected series to exist")
	}
	if len(series) != 1 || series[0] != 86.2 {
		t.Fatalf("series: got %v, want [86.2]", series)
	}
}

func TestRunSummaryRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	summary := model.RunSummary{
		RunID:       "run-1",
		Rule:        model.RuleConway,
		GridSizes:   []int{15, 20},
		OverallMean: 86.0,
		Timestamp:   "2026-08-30T12:00:00Z",
	}

	if _, err := WriteRunSummary(baseDir, summary); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	loaded, ok, err := ReadRunSummary(baseDir, "run-1")
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !ok {
		t.Fatal("expected summary to exist")
	}
	if loaded.OverallMean != 86.0 || len(loaded.GridSizes) != 2 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	_, ok, err = ReadRunSummary(baseDir, "run-2")
	if err != nil {
		t.Fatalf("read missing summary: %v", err)
	}
	if ok {
		t.Fatal("missing summary should report ok=false")
	}
}

func TestRunIndexNewestFirstAndReplace(t *testing.T) {
	baseDir := t.TempDir()

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-08-29T10:00:00Z"}); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "b", CreatedAtUTC: "2026-08-30T10:00:00Z"}); err != nil {
		t.Fatalf("append b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "b" {
		t.Fatalf("expected newest-first order, got %+v", entries)
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-08-29T10:00:00Z", OverallMeanLoss: 85.5}); err != nil {
		t.Fatalf("replace a: %v", err)
	}
	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("replace should not grow the index, got %d entries", len(entries))
	}
	if entries[1].RunID != "a" || entries[1].OverallMeanLoss != 85.5 {
		t.Fatalf("expected replaced entry, got %+v", entries[1])
	}
}

func TestExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")
	batch := sampleBatch("run-1", 20, model.Transition1Dto2D)
	if _, err := WriteBatchArtifact(baseDir, batch); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-1", outDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, file := range []string{"cascade_grid20_1d_2d.json", "loss_series_grid20_1d_2d.csv"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}
