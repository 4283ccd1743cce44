// Package cascade drives dimensional-embedding experiments: generate a
// seeded random pattern, optionally evolve it, measure Φ, embed it one
// dimension up, re-measure, and record the loss.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dimcascade/internal/automaton"
	"dimcascade/internal/grid"
	"dimcascade/internal/model"
	"dimcascade/internal/phi"
	"dimcascade/internal/stats"
	"dimcascade/internal/storage"
)

// Base seeds are fixed per transition so a pattern id alone reproduces the
// random pattern across runs. The published dataset used 100/1000/3000 for
// the cascade and 6000/5000 for the robustness suites.
const (
	BaseSeed1Dto2D int64 = 100
	BaseSeed2Dto3D int64 = 1000
	BaseSeed3Dto4D int64 = 3000

	BaseSeedGridSweep int64 = 6000
	BaseSeedRuleCheck int64 = 5000
)

// DefaultBaseSeed returns the documented base seed for a transition.
func DefaultBaseSeed(t model.Transition) (int64, bool) {
	switch t {
	case model.Transition1Dto2D:
		return BaseSeed1Dto2D, true
	case model.Transition2Dto3D:
		return BaseSeed2Dto3D, true
	case model.Transition3Dto4D:
		return BaseSeed3Dto4D, true
	default:
		return 0, false
	}
}

// BatchConfig describes one (grid size, transition, rule) batch.
type BatchConfig struct {
	RunID      string
	GridSize   int
	Transition model.Transition
	Rule       automaton.Rule
	Patterns   int

	// Steps evolves the generated pattern before its native measurement;
	// zero measures the raw random pattern, matching the published dataset.
	Steps int
	// EvolveEmbedded also evolves the embedded grid Steps steps before the
	// higher-dimension measurement.
	EvolveEmbedded bool

	// BaseSeed overrides the transition's documented base seed when nonzero.
	BaseSeed int64
	// Workers bounds trial parallelism; <= 0 means sequential.
	Workers int
}

// Progress is invoked after each completed trial with the running count.
type Progress func(done, total int)

func (cfg BatchConfig) validate() error {
	if cfg.Patterns <= 0 {
		return errors.New("batch requires patterns > 0")
	}
	if cfg.GridSize < 1 {
		return fmt.Errorf("%w: size %d < 1", grid.ErrInvalidShape, cfg.GridSize)
	}
	if cfg.Steps < 0 {
		return errors.New("batch requires steps >= 0")
	}
	if _, ok := cfg.Transition.LowerDimension(); !ok {
		return fmt.Errorf("unknown transition: %s", cfg.Transition)
	}
	return nil
}

func (cfg BatchConfig) baseSeed() int64 {
	if cfg.BaseSeed != 0 {
		return cfg.BaseSeed
	}
	seed, _ := DefaultBaseSeed(cfg.Transition)
	return seed
}

// RunBatch executes every trial of the batch and reduces them to a
// BatchResult. Trials are independent: each worker owns its grids and a
// per-trial generator, and records are assembled in pattern-id order so the
// output is identical however many workers run. A failed trial is dropped
// and counted; a degenerate trial (Φ_lower = 0) is retained with undefined
// loss. Both are excluded from the batch statistics. Cancellation abandons
// the batch without a partial result.
func RunBatch(ctx context.Context, cfg BatchConfig, onProgress Progress) (model.BatchResult, error) {
	if err := cfg.validate(); err != nil {
		return model.BatchResult{}, err
	}

	type result struct {
		idx    int
		record model.TransitionRecord
		err    error
	}

	jobs := make(chan int)
	results := make(chan result, cfg.Patterns)

	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > cfg.Patterns {
		workerCount = cfg.Patterns
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				record, err := runTrial(cfg, idx)
				results <- result{idx: idx, record: record, err: err}
			}
		}()
	}

	for i := 0; i < cfg.Patterns; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(results)

	records := make([]*model.TransitionRecord, cfg.Patterns)
	failed := 0
	done := 0
	for res := range results {
		if res.err != nil {
			if errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded) {
				return model.BatchResult{}, res.err
			}
			failed++
		} else {
			record := res.record
			records[res.idx] = &record
		}
		done++
		if onProgress != nil {
			onProgress(done, cfg.Patterns)
		}
	}

	ordered := make([]model.TransitionRecord, 0, cfg.Patterns)
	excluded := failed
	for _, record := range records {
		if record == nil {
			continue
		}
		if record.Degenerate() {
			excluded++
		}
		ordered = append(ordered, *record)
	}

	batch := model.BatchResult{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:          uuid.NewString(),
		RunID:       cfg.RunID,
		GridSize:    cfg.GridSize,
		Transition:  cfg.Transition,
		Rule:        cfg.Rule.Name,
		NumPatterns: cfg.Patterns,
		Steps:       cfg.Steps,
		BaseSeed:    cfg.baseSeed(),
		Excluded:    excluded,
		Records:     ordered,
		Statistics:  stats.SummarizeRecords(ordered),
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	return batch, nil
}

// TrialDetail carries one trial's grids and measurements alongside its
// record, for console walkthroughs that render the pattern.
type TrialDetail struct {
	Seed    int64
	Lower   grid.Grid
	Higher  grid.Grid
	MLower  phi.Measurement
	MHigher phi.Measurement
	Record  model.TransitionRecord
}

func runTrial(cfg BatchConfig, patternID int) (model.TransitionRecord, error) {
	detail, err := RunSingleTrial(cfg, patternID)
	if err != nil {
		return model.TransitionRecord{}, err
	}
	return detail.Record, nil
}

// RunSingleTrial measures one pattern before and after embedding.
func RunSingleTrial(cfg BatchConfig, patternID int) (TrialDetail, error) {
	seed := cfg.baseSeed() + int64(patternID)
	dimLower, ok := cfg.Transition.LowerDimension()
	if !ok {
		return TrialDetail{}, fmt.Errorf("unknown transition: %s", cfg.Transition)
	}

	lower, err := grid.Generate(dimLower, cfg.GridSize, seed)
	if err != nil {
		return TrialDetail{}, err
	}
	if cfg.Steps > 0 {
		lower = automaton.Evolve(lower, cfg.Rule, cfg.Steps)
	}
	mLower := phi.Calculate(lower)

	higher, err := grid.Embed(lower)
	if err != nil {
		return TrialDetail{}, err
	}
	if cfg.EvolveEmbedded && cfg.Steps > 0 {
		higher = automaton.Evolve(higher, cfg.Rule, cfg.Steps)
	}
	mHigher := phi.Calculate(higher)

	record := model.TransitionRecord{
		PatternID:        patternID,
		GridSize:         cfg.GridSize,
		Transition:       cfg.Transition,
		Rule:             cfg.Rule.Name,
		Seed:             seed,
		PhiLower:         mLower.Phi,
		PhiHigher:        mHigher.Phi,
		RLower:           mLower.R,
		RHigher:          mHigher.R,
		SLower:           mLower.S,
		SHigher:          mHigher.S,
		DLower:           mLower.D,
		DHigher:          mHigher.D,
		AliveCellsLower:  lower.AliveCount(),
		AliveCellsHigher: higher.AliveCount(),
		RatioR:           ratio(mHigher.R, mLower.R),
		RatioS:           ratio(mHigher.S, mLower.S),
		RatioD:           ratio(mHigher.D, mLower.D),
	}

	// Φ_lower = 0 leaves the ratio undefined; the record is kept for audit
	// with nil loss rather than treated as an error.
	if r := ratio(mHigher.Phi, mLower.Phi); r != nil {
		record.RatioPhi = r
		loss := (1 - *r) * 100
		record.LossPct = &loss
	}
	return TrialDetail{
		Seed:    seed,
		Lower:   lower,
		Higher:  higher,
		MLower:  mLower,
		MHigher: mHigher,
		Record:  record,
	}, nil
}

func ratio(higher, lower float64) *float64 {
	if lower <= 0 {
		return nil
	}
	v := higher / lower
	return &v
}
