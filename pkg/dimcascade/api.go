// Package dimcascade is the embedding API for dimensional-cascade
// validation runs: the same operations the dimcascadectl commands expose,
// usable from other programs.
package dimcascade

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dimcascade/internal/automaton"
	"dimcascade/internal/cascade"
	"dimcascade/internal/grid"
	"dimcascade/internal/model"
	"dimcascade/internal/phi"
	"dimcascade/internal/stats"
	"dimcascade/internal/storage"
)

const (
	defaultResultsDir = "validation_results"
	defaultDBPath     = "dimcascade.db"

	defaultPatterns = 100
	defaultWorkers  = 4
)

// DefaultGridSizes are the published validation sizes.
func DefaultGridSizes() []int { return []int{15, 17, 20, 23, 25} }

type Options struct {
	StoreKind  string
	DBPath     string
	ResultsDir string
}

type Client struct {
	store      storage.Store
	resultsDir string

	initialized bool
}

// ValidateRequest configures a full multi-size cascade validation run.
type ValidateRequest struct {
	RunID          string
	GridSizes      []int
	Patterns       int
	Rule           model.RuleName
	Steps          int
	EvolveEmbedded bool
	Workers        int

	// Progress, when set, receives one call per completed trial.
	Progress func(gridSize int, transition model.Transition, done, total int)
}

// ValidateSummary reports where a run's artifacts landed.
type ValidateSummary struct {
	RunID       string
	ResultsDir  string
	SummaryPath string
	Summary     model.RunSummary
	Batches     []model.BatchResult
}

// GridSweepReport is the grid-size sensitivity artifact: the 1D→2D loss
// re-measured per size, passing when the means stay within a 5 point band.
type GridSweepReport struct {
	RunID          string                   `json:"run_id"`
	Transition     model.Transition         `json:"transition"`
	GridSizes      []int                    `json:"grid_sizes"`
	PatternsPer    int                      `json:"n_per_size"`
	BaseSeed       int64                    `json:"base_seed"`
	BySize         map[string]model.Summary `json:"statistics"`
	OverallMean    float64                  `json:"overall_mean"`
	StdAcrossSizes float64                  `json:"std_across_sizes"`
	Passed         bool                     `json:"passed"`
	Timestamp      string                   `json:"timestamp"`
}

// RuleCheckReport is the rule-independence artifact: the same seeded
// pattern set evolved under Conway and HighLife before measurement,
// passing when both means sit near the expected loss and near each other.
type RuleCheckReport struct {
	RunID          string           `json:"run_id"`
	Transition     model.Transition `json:"transition"`
	GridSize       int              `json:"grid_size"`
	Patterns       int              `json:"n_patterns"`
	Steps          int              `json:"steps"`
	BaseSeed       int64            `json:"base_seed"`
	Conway         model.Summary    `json:"conway"`
	HighLife       model.Summary    `json:"highlife"`
	ExpectedMean   float64          `json:"expected_mean"`
	MeanDifference float64          `json:"mean_difference"`
	Passed         bool             `json:"passed"`
	Timestamp      string           `json:"timestamp"`
}

// SanityCase is one Φ edge-case check.
type SanityCase struct {
	Name        string          `json:"name"`
	Measurement phi.Measurement `json:"measurement"`
	Passed      bool            `json:"passed"`
}

// SanityReport covers the Φ metric edge cases on a 2D grid.
type SanityReport struct {
	GridSize  int          `json:"grid_size"`
	Cases     []SanityCase `json:"cases"`
	Passed    bool         `json:"passed"`
	Timestamp string       `json:"timestamp"`
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	resultsDir := opts.ResultsDir
	if resultsDir == "" {
		resultsDir = defaultResultsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store, resultsDir: resultsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Reset wipes every persisted batch and summary from the store.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

// ResultsDir returns the artifact base directory.
func (c *Client) ResultsDir() string { return c.resultsDir }

// Validate runs the full cascade: every transition at every requested grid
// size. Each batch is persisted atomically as it completes; the combined
// summary and run index entry are written once all batches are in.
func (c *Client) Validate(ctx context.Context, req ValidateRequest) (ValidateSummary, error) {
	if err := c.Init(ctx); err != nil {
		return ValidateSummary{}, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if len(req.GridSizes) == 0 {
		req.GridSizes = DefaultGridSizes()
	}
	if req.Patterns <= 0 {
		req.Patterns = defaultPatterns
	}
	if req.Rule == "" {
		req.Rule = model.RuleConway
	}
	if req.Workers <= 0 {
		req.Workers = defaultWorkers
	}
	rule, err := automaton.RuleByName(req.Rule)
	if err != nil {
		return ValidateSummary{}, err
	}

	batches := make([]model.BatchResult, 0, len(req.GridSizes)*3)
	for _, size := range req.GridSizes {
		for _, transition := range model.Transitions() {
			cfg := cascade.BatchConfig{
				RunID:          req.RunID,
				GridSize:       size,
				Transition:     transition,
				Rule:           rule,
				Patterns:       req.Patterns,
				Steps:          req.Steps,
				EvolveEmbedded: req.EvolveEmbedded,
				Workers:        req.Workers,
			}
			var onProgress cascade.Progress
			if req.Progress != nil {
				onProgress = func(done, total int) {
					req.Progress(size, transition, done, total)
				}
			}
			batch, err := cascade.RunBatch(ctx, cfg, onProgress)
			if err != nil {
				return ValidateSummary{}, fmt.Errorf("batch grid=%d transition=%s: %w", size, transition, err)
			}
			if _, err := stats.WriteBatchArtifact(c.resultsDir, batch); err != nil {
				return ValidateSummary{}, err
			}
			if err := c.store.SaveBatch(ctx, batch); err != nil {
				return ValidateSummary{}, err
			}
			batches = append(batches, batch)
		}
	}

	summary := stats.BuildRunSummary(req.RunID, req.Rule, batches)
	summary.VersionedRecord = model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
	summaryPath, err := stats.WriteRunSummary(c.resultsDir, summary)
	if err != nil {
		return ValidateSummary{}, err
	}
	if err := c.store.SaveRunSummary(ctx, summary); err != nil {
		return ValidateSummary{}, err
	}
	if err := stats.AppendRunIndex(c.resultsDir, stats.RunIndexEntry{
		RunID:           req.RunID,
		Rule:            req.Rule,
		GridSizes:       summary.GridSizes,
		PatternsPerSize: summary.PatternsPerSize,
		OverallMeanLoss: summary.OverallMean,
		CreatedAtUTC:    summary.Timestamp,
	}); err != nil {
		return ValidateSummary{}, err
	}

	return ValidateSummary{
		RunID:       req.RunID,
		ResultsDir:  filepath.Join(c.resultsDir, req.RunID),
		SummaryPath: summaryPath,
		Summary:     summary,
		Batches:     batches,
	}, nil
}

// QuickStart runs the published single-trial example: one seeded 1D
// pattern of the given size, measured, embedded to 2D and re-measured.
func (c *Client) QuickStart(gridSize int, seed int64, ruleName model.RuleName, steps int) (cascade.TrialDetail, error) {
	if gridSize <= 0 {
		gridSize = 20
	}
	if ruleName == "" {
		ruleName = model.RuleConway
	}
	rule, err := automaton.RuleByName(ruleName)
	if err != nil {
		return cascade.TrialDetail{}, err
	}
	cfg := cascade.BatchConfig{
		GridSize:   gridSize,
		Transition: model.Transition1Dto2D,
		Rule:       rule,
		Patterns:   1,
		Steps:      steps,
		BaseSeed:   seed,
	}
	return cascade.RunSingleTrial(cfg, 0)
}

// GridSweep re-measures the 1D→2D loss across grid sizes with a dedicated
// seed range, and writes the report artifact.
func (c *Client) GridSweep(ctx context.Context, runID string, sizes []int, perSize int, workers int) (GridSweepReport, string, error) {
	if err := c.Init(ctx); err != nil {
		return GridSweepReport{}, "", err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	if len(sizes) == 0 {
		sizes = DefaultGridSizes()
	}
	if perSize <= 0 {
		perSize = 20
	}

	report := GridSweepReport{
		RunID:       runID,
		Transition:  model.Transition1Dto2D,
		GridSizes:   sizes,
		PatternsPer: perSize,
		BaseSeed:    cascade.BaseSeedGridSweep,
		BySize:      make(map[string]model.Summary, len(sizes)),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	means := make([]float64, 0, len(sizes))
	for _, size := range sizes {
		batch, err := cascade.RunBatch(ctx, cascade.BatchConfig{
			RunID:      runID,
			GridSize:   size,
			Transition: model.Transition1Dto2D,
			Rule:       automaton.Conway(),
			Patterns:   perSize,
			BaseSeed:   cascade.BaseSeedGridSweep,
			Workers:    workers,
		}, nil)
		if err != nil {
			return GridSweepReport{}, "", err
		}
		report.BySize[fmt.Sprintf("grid_%d", size)] = batch.Statistics
		if batch.Statistics.Mean != nil {
			means = append(means, *batch.Statistics.Mean)
		}
	}

	analysis := stats.Consistency(means)
	report.OverallMean = analysis.MeanAcrossSizes
	report.StdAcrossSizes = analysis.StdAcrossSizes
	report.Passed = len(means) == len(sizes) && analysis.StdAcrossSizes < 5.0

	path := filepath.Join(c.resultsDir, runID, "grid_size_sensitivity.json")
	if err := stats.WriteReportJSON(path, report); err != nil {
		return GridSweepReport{}, "", err
	}
	return report, path, nil
}

// RuleCheck runs the same seeded pattern set through Conway and HighLife
// evolution before measurement. With zero steps the rules cannot differ,
// so steps defaults to 5.
func (c *Client) RuleCheck(ctx context.Context, runID string, gridSize, patterns, steps, workers int) (RuleCheckReport, string, error) {
	if err := c.Init(ctx); err != nil {
		return RuleCheckReport{}, "", err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	if gridSize <= 0 {
		gridSize = 20
	}
	if patterns <= 0 {
		patterns = defaultPatterns
	}
	if steps <= 0 {
		steps = 5
	}

	summaries := make(map[model.RuleName]model.Summary, 2)
	for _, rule := range []automaton.Rule{automaton.Conway(), automaton.HighLife()} {
		batch, err := cascade.RunBatch(ctx, cascade.BatchConfig{
			RunID:      runID,
			GridSize:   gridSize,
			Transition: model.Transition2Dto3D,
			Rule:       rule,
			Patterns:   patterns,
			Steps:      steps,
			BaseSeed:   cascade.BaseSeedRuleCheck,
			Workers:    workers,
		}, nil)
		if err != nil {
			return RuleCheckReport{}, "", err
		}
		summaries[rule.Name] = batch.Statistics
	}

	const expectedMean = 86.0
	report := RuleCheckReport{
		RunID:        runID,
		Transition:   model.Transition2Dto3D,
		GridSize:     gridSize,
		Patterns:     patterns,
		Steps:        steps,
		BaseSeed:     cascade.BaseSeedRuleCheck,
		Conway:       summaries[model.RuleConway],
		HighLife:     summaries[model.RuleHighLife],
		ExpectedMean: expectedMean,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if report.Conway.Mean != nil && report.HighLife.Mean != nil {
		report.MeanDifference = math.Abs(*report.Conway.Mean - *report.HighLife.Mean)
		report.Passed = report.MeanDifference < 1.0 &&
			math.Abs(*report.Conway.Mean-expectedMean) < 5.0 &&
			math.Abs(*report.HighLife.Mean-expectedMean) < 5.0
	}

	path := filepath.Join(c.resultsDir, runID, "rule_independence.json")
	if err := stats.WriteReportJSON(path, report); err != nil {
		return RuleCheckReport{}, "", err
	}
	return report, path, nil
}

// Sanity checks the Φ metric's edge cases on a 2D grid and writes the
// report artifact.
func (c *Client) Sanity(gridSize int) (SanityReport, string, error) {
	if gridSize <= 0 {
		gridSize = 20
	}

	report := SanityReport{
		GridSize:  gridSize,
		Passed:    true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	add := func(name string, m phi.Measurement, passed bool) {
		report.Cases = append(report.Cases, SanityCase{Name: name, Measurement: m, Passed: passed})
		if !passed {
			report.Passed = false
		}
	}

	dead, err := grid.New(2, gridSize)
	if err != nil {
		return SanityReport{}, "", err
	}
	m := phi.Calculate(dead)
	add("all_dead", m, m.Phi == 0)

	alive := dead.Clone()
	for i := 0; i < alive.Len(); i++ {
		alive.SetCell(i, grid.Alive)
	}
	m = phi.Calculate(alive)
	add("all_alive", m, m.Phi == 0)

	checker, err := grid.Checkerboard(2, gridSize)
	if err != nil {
		return SanityReport{}, "", err
	}
	m = phi.Calculate(checker)
	add("checkerboard", m, m.Phi > 1.0)

	random, err := grid.Generate(2, gridSize, 42)
	if err != nil {
		return SanityReport{}, "", err
	}
	m = phi.Calculate(random)
	add("random", m, m.Phi > 0.5 && m.Phi < 2.0)

	single := dead.Clone()
	single.Set(grid.Alive, gridSize/2, gridSize/2)
	m = phi.Calculate(single)
	add("single_cell", m, m.Phi < 0.5)

	path := filepath.Join(c.resultsDir, "metric_sanity_check.json")
	if err := stats.WriteReportJSON(path, report); err != nil {
		return SanityReport{}, "", err
	}
	return report, path, nil
}

// Runs lists the result-directory index, newest first.
func (c *Client) Runs(limit int) ([]stats.RunIndexEntry, error) {
	entries, err := stats.ListRunIndex(c.resultsDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Summary loads a run's combined summary, preferring the store and falling
// back to the artifact file.
func (c *Client) Summary(ctx context.Context, runID string) (model.RunSummary, bool, error) {
	if runID == "" {
		return model.RunSummary{}, false, errors.New("run id is required")
	}
	if err := c.Init(ctx); err != nil {
		return model.RunSummary{}, false, err
	}
	if summary, ok, err := c.store.GetRunSummary(ctx, runID); err != nil || ok {
		return summary, ok, err
	}
	return stats.ReadRunSummary(c.resultsDir, runID)
}

// Batches loads a run's batches, preferring the store and falling back to
// the artifact files.
func (c *Client) Batches(ctx context.Context, runID string) ([]model.BatchResult, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	batches, err := c.store.ListBatchesByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(batches) > 0 {
		return batches, nil
	}
	return stats.ListBatchArtifacts(c.resultsDir, runID)
}
