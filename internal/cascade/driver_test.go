package cascade

import (
	"context"
	"testing"

	"dimcascade/internal/automaton"
	"dimcascade/internal/model"
)

func TestRunBatchIsDeterministic(t *testing.T) {
	ctx := context.Background()
	cfg := BatchConfig{
		GridSize:   15,
		Transition: model.Transition1Dto2D,
		Rule:       automaton.Conway(),
		Patterns:   10,
		Workers:    4,
	}

	a, err := RunBatch(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	b, err := RunBatch(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}

	if len(a.Records) != len(b.Records) {
		t.Fatalf("record counts differ: %d vs %d", len(a.Records), len(b.Records))
	}
	for i := range a.Records {
		ra, rb := a.Records[i], b.Records[i]
		if ra.Seed != rb.Seed || ra.PhiLower != rb.PhiLower || ra.PhiHigher != rb.PhiHigher {
			t.Fatalf("record %d differs between identical runs", i)
		}
	}
}

func TestRunBatchWorkerCountDoesNotAffectResults(t *testing.T) {
	ctx := context.Background()
	base := BatchConfig{
		GridSize:   15,
		Transition: model.Transition1Dto2D,
		Rule:       automaton.Conway(),
		Patterns:   12,
	}

	serial := base
	serial.Workers = 1
	parallel := base
	parallel.Workers = 8

	a, err := RunBatch(ctx, serial, nil)
	if err != nil {
		t.Fatalf("serial batch: %v", err)
	}
	b, err := RunBatch(ctx, parallel, nil)
	if err != nil {
		t.Fatalf("parallel batch: %v", err)
	}

	for i := range a.Records {
		if a.Records[i].PatternID != i {
			t.Fatalf("records out of pattern-id order at %d", i)
		}
		if a.Records[i].PhiLower != b.Records[i].PhiLower {
			t.Fatalf("worker count changed trial %d", i)
		}
	}
	if a.Statistics.Mean == nil || b.Statistics.Mean == nil || *a.Statistics.Mean != *b.Statistics.Mean {
		t.Fatal("worker count changed batch statistics")
	}
}

func TestRunBatchUsesDocumentedBaseSeeds(t *testing.T) {
	ctx := context.Background()
	batch, err := RunBatch(ctx, BatchConfig{
		GridSize:   10,
		Transition: model.Transition2Dto3D,
		Rule:       automaton.Conway(),
		Patterns:   3,
	}, nil)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if batch.BaseSeed != BaseSeed2Dto3D {
		t.Fatalf("base seed: got %d, want %d", batch.BaseSeed, BaseSeed2Dto3D)
	}
	for i, r := range batch.Records {
		if r.Seed != BaseSeed2Dto3D+int64(i) {
			t.Fatalf("record %d seed: got %d, want %d", i, r.Seed, BaseSeed2Dto3D+int64(i))
		}
	}
}

func TestRunBatchRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := RunBatch(ctx, BatchConfig{GridSize: 10, Transition: model.Transition1Dto2D, Rule: automaton.Conway()}, nil); err == nil {
		t.Fatal("expected error for zero patterns")
	}
	if _, err := RunBatch(ctx, BatchConfig{GridSize: 10, Transition: "4D→5D", Rule: automaton.Conway(), Patterns: 1}, nil); err == nil {
		t.Fatal("expected error for unknown transition")
	}
}

func TestRunBatchHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunBatch(ctx, BatchConfig{
		GridSize:   20,
		Transition: model.Transition1Dto2D,
		Rule:       automaton.Conway(),
		Patterns:   50,
	}, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestRunSingleTrialQuickStartBand(t *testing.T) {
	detail, err := RunSingleTrial(BatchConfig{
		GridSize:   20,
		Transition: model.Transition1Dto2D,
		Rule:       automaton.Conway(),
		Patterns:   1,
		BaseSeed:   42,
	}, 0)
	if err != nil {
		t.Fatalf("run trial: %v", err)
	}

	if detail.Seed != 42 {
		t.Fatalf("seed: got %d, want 42", detail.Seed)
	}
	if detail.Lower.Dim() != 1 || detail.Higher.Dim() != 2 {
		t.Fatalf("dimensions: %dD -> %dD", detail.Lower.Dim(), detail.Higher.Dim())
	}
	if detail.Record.LossPct == nil {
		t.Fatal("expected a defined loss for a random size-20 pattern")
	}
	// Random patterns at this size lose most of their Φ on embedding; the
	// dilution alone pins the loss well above half.
	if loss := *detail.Record.LossPct; loss < 50 || loss >= 100 {
		t.Fatalf("loss out of expected band: %v", loss)
	}
}

func TestRunBatchMeanLossBand(t *testing.T) {
	batch, err := RunBatch(context.Background(), BatchConfig{
		GridSize:   20,
		Transition: model.Transition1Dto2D,
		Rule:       automaton.Conway(),
		Patterns:   40,
		Workers:    4,
	}, nil)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if batch.Statistics.Mean == nil {
		t.Fatal("expected a defined mean")
	}
	if mean := *batch.Statistics.Mean; mean < 70 || mean > 95 {
		t.Fatalf("mean loss out of expected band: %v", mean)
	}
	if batch.Excluded != 0 {
		t.Fatalf("random size-20 patterns should not degenerate, excluded=%d", batch.Excluded)
	}
}

func TestDegenerateTrialIsRetainedAndExcluded(t *testing.T) {
	// Size 1 gives S = 0 and, for an all-dead or all-alive single cell,
	// Φ = 0, so the ratio is undefined.
	batch, err := RunBatch(context.Background(), BatchConfig{
		GridSize:   1,
		Transition: model.Transition1Dto2D,
		Rule:       automaton.Conway(),
		Patterns:   4,
	}, nil)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if len(batch.Records) != 4 {
		t.Fatalf("degenerate trials must be retained, got %d records", len(batch.Records))
	}
	for i, r := range batch.Records {
		if !r.Degenerate() {
			t.Fatalf("record %d should be degenerate", i)
		}
	}
	if batch.Excluded != 4 {
		t.Fatalf("excluded: got %d, want 4", batch.Excluded)
	}
	if batch.Statistics.N != 0 {
		t.Fatalf("statistics should have no samples, got n=%d", batch.Statistics.N)
	}
}

func TestProgressReachesTotal(t *testing.T) {
	var last, calls int
	_, err := RunBatch(context.Background(), BatchConfig{
		GridSize:   10,
		Transition: model.Transition1Dto2D,
		Rule:       automaton.Conway(),
		Patterns:   6,
		Workers:    3,
	}, func(done, total int) {
		calls++
		last = done
		if total != 6 {
			t.Fatalf("total: got %d, want 6", total)
		}
	})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if calls != 6 || last != 6 {
		t.Fatalf("progress: calls=%d last=%d", calls, last)
	}
}
