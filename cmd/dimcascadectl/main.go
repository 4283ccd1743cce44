package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dimcascade/internal/model"
	"dimcascade/internal/stats"
	"dimcascade/internal/storage"
	cascadeapi "dimcascade/pkg/dimcascade"
)

const (
	resultsDir = "validation_results"
	exportsDir = "exports"
	dbPath     = "dimcascade.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	case "quick-start":
		return runQuickStart(ctx, args[1:])
	case "grid-sweep":
		return runGridSweep(ctx, args[1:])
	case "rule-check":
		return runRuleCheck(ctx, args[1:])
	case "sanity":
		return runSanity(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newClient(storeKind, db, results string) (*cascadeapi.Client, error) {
	return cascadeapi.New(cascadeapi.Options{
		StoreKind:  storeKind,
		DBPath:     db,
		ResultsDir: results,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	db := fs.String("db-path", dbPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *db, resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	db := fs.String("db-path", dbPath, "sqlite database path")
	artifacts := fs.Bool("artifacts", false, "also delete the results directory")
	out := fs.String("out", resultsDir, "results directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *db, *out)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	if *artifacts {
		if err := os.RemoveAll(*out); err != nil {
			return err
		}
	}

	fmt.Printf("reset store=%s artifacts=%t\n", *storeKind, *artifacts)
	return nil
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional validation config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	sizesFlag := fs.String("sizes", "", "comma-separated grid sizes (default 15,17,20,23,25)")
	patterns := fs.Int("patterns", 100, "patterns per grid size and transition")
	ruleName := fs.String("rule", "conway", "evolution rule: conway|highlife")
	steps := fs.Int("steps", 0, "evolution steps before native measurement (0 measures raw patterns)")
	evolveEmbedded := fs.Bool("evolve-embedded", false, "also evolve the embedded grid before re-measurement")
	workers := fs.Int("workers", 4, "worker count")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	db := fs.String("db-path", dbPath, "sqlite database path")
	out := fs.String("out", resultsDir, "results output directory")
	quiet := fs.Bool("quiet", false, "suppress per-batch progress output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultValidateRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" || setFlags["run-id"] {
		req.RunID = *runID
	}
	if *configPath == "" || setFlags["sizes"] {
		sizes, err := parseSizes(*sizesFlag)
		if err != nil {
			return err
		}
		req.GridSizes = sizes
	}
	if *configPath == "" || setFlags["patterns"] {
		req.Patterns = *patterns
	}
	if *configPath == "" || setFlags["rule"] {
		req.Rule = model.RuleName(*ruleName)
	}
	if *configPath == "" || setFlags["steps"] {
		req.Steps = *steps
	}
	if *configPath == "" || setFlags["evolve-embedded"] {
		req.EvolveEmbedded = *evolveEmbedded
	}
	if *configPath == "" || setFlags["workers"] {
		req.Workers = *workers
	}

	client, err := newClient(*storeKind, *db, *out)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if !*quiet {
		var lastBatch string
		req.Progress = func(gridSize int, transition model.Transition, done, total int) {
			key := fmt.Sprintf("%d/%s", gridSize, transition)
			if key != lastBatch {
				lastBatch = key
				fmt.Printf("batch grid=%d transition=%s trials=%s\n",
					gridSize, transition, humanize.Comma(int64(total)))
			}
			if done == total || done%25 == 0 {
				fmt.Printf("  progress %d/%d\n", done, total)
			}
		}
	}

	started := time.Now()
	result, err := client.Validate(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s batches=%d elapsed=%s\n",
		result.RunID, len(result.Batches), time.Since(started).Round(time.Millisecond))
	printRunSummary(result.Summary)
	fmt.Printf("summary written to %s\n", filepath.Clean(result.SummaryPath))
	return nil
}

func runQuickStart(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("quick-start", flag.ContinueOnError)
	gridSize := fs.Int("size", 20, "grid size")
	seed := fs.Int64("seed", 42, "rng seed")
	ruleName := fs.String("rule", "conway", "evolution rule: conway|highlife")
	steps := fs.Int("steps", 0, "evolution steps before measurement")
	showGrid := fs.Bool("show-grid", true, "render the 1D pattern and its 2D embedding")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient("memory", dbPath, resultsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.QuickStart(*gridSize, *seed, model.RuleName(*ruleName), *steps)
	if err != nil {
		return err
	}

	if *showGrid {
		fmt.Println("1D pattern:")
		fmt.Println(detail.Lower.Render())
		fmt.Println("2D embedding (middle row):")
		fmt.Println(detail.Higher.Render())
	}

	fmt.Printf("seed=%d size=%d alive=%s\n",
		detail.Seed, *gridSize, humanize.Comma(int64(detail.Lower.AliveCount())))
	fmt.Printf("phi_1d=%.4f (R=%.4f S=%.4f D=%.4f)\n",
		detail.MLower.Phi, detail.MLower.R, detail.MLower.S, detail.MLower.D)
	fmt.Printf("phi_2d=%.4f (R=%.4f S=%.4f D=%.4f)\n",
		detail.MHigher.Phi, detail.MHigher.R, detail.MHigher.S, detail.MHigher.D)
	if detail.Record.LossPct != nil {
		fmt.Printf("information_loss=%.1f%%\n", *detail.Record.LossPct)
	} else {
		fmt.Println("information_loss=undefined (phi_1d is zero)")
	}
	return nil
}

func runGridSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("grid-sweep", flag.ContinueOnError)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	sizesFlag := fs.String("sizes", "", "comma-separated grid sizes (default 15,17,20,23,25)")
	perSize := fs.Int("patterns", 20, "patterns per grid size")
	workers := fs.Int("workers", 4, "worker count")
	out := fs.String("out", resultsDir, "results output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sizes, err := parseSizes(*sizesFlag)
	if err != nil {
		return err
	}

	client, err := newClient("memory", dbPath, *out)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, path, err := client.GridSweep(ctx, *runID, sizes, *perSize, *workers)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(report.BySize))
	for key := range report.BySize {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return sizeOfKey(keys[i]) < sizeOfKey(keys[j])
	})
	for _, key := range keys {
		summary := report.BySize[key]
		if summary.Mean == nil {
			fmt.Printf("%s mean=undefined n=%d\n", key, summary.N)
			continue
		}
		fmt.Printf("%s mean=%.2f%% n=%d\n", key, *summary.Mean, summary.N)
	}
	fmt.Printf("overall_mean=%.2f%% std_across_sizes=%.3f passed=%t\n",
		report.OverallMean, report.StdAcrossSizes, report.Passed)
	fmt.Printf("report written to %s\n", filepath.Clean(path))
	return nil
}

func runRuleCheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rule-check", flag.ContinueOnError)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	gridSize := fs.Int("size", 20, "grid size")
	patterns := fs.Int("patterns", 100, "patterns per rule")
	steps := fs.Int("steps", 5, "evolution steps before measurement")
	workers := fs.Int("workers", 4, "worker count")
	out := fs.String("out", resultsDir, "results output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient("memory", dbPath, *out)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, path, err := client.RuleCheck(ctx, *runID, *gridSize, *patterns, *steps, *workers)
	if err != nil {
		return err
	}

	printRuleSummary("conway", report.Conway)
	printRuleSummary("highlife", report.HighLife)
	fmt.Printf("mean_difference=%.3f expected_mean=%.1f passed=%t\n",
		report.MeanDifference, report.ExpectedMean, report.Passed)
	fmt.Printf("report written to %s\n", filepath.Clean(path))
	return nil
}

func runSanity(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("sanity", flag.ContinueOnError)
	gridSize := fs.Int("size", 20, "grid size")
	out := fs.String("out", resultsDir, "results output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient("memory", dbPath, *out)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, path, err := client.Sanity(*gridSize)
	if err != nil {
		return err
	}

	for _, c := range report.Cases {
		fmt.Printf("%-12s phi=%.4f R=%.4f S=%.4f D=%.4f passed=%t\n",
			c.Name, c.Measurement.Phi, c.Measurement.R, c.Measurement.S, c.Measurement.D, c.Passed)
	}
	fmt.Printf("sanity passed=%t\n", report.Passed)
	fmt.Printf("report written to %s\n", filepath.Clean(path))
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	out := fs.String("out", resultsDir, "results directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(*out)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created=%s rule=%s sizes=%v patterns_per_size=%s mean_loss=%.2f%%\n",
			e.RunID, e.CreatedAtUTC, e.Rule, e.GridSizes,
			humanize.Comma(int64(e.PatternsPerSize)), e.OverallMeanLoss)
	}
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from the run index")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	db := fs.String("db-path", dbPath, "sqlite database path")
	out := fs.String("out", resultsDir, "results directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("summary requires --run-id or --latest")
	}
	if *latest {
		entries, err := stats.ListRunIndex(*out)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available")
		}
		*runID = entries[0].RunID
	}

	client, err := newClient(*storeKind, *db, *out)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, ok, err := client.Summary(ctx, *runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run %s not found", *runID)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printRunSummary(summary)
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from the run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	resultsBase := fs.String("results", resultsDir, "results directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}
	if *latest {
		entries, err := stats.ListRunIndex(*resultsBase)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available to export")
		}
		*runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(*resultsBase, *runID, *outDir)
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", *runID, filepath.Clean(exportedDir))
	return nil
}

func printRunSummary(summary model.RunSummary) {
	sizes := make([]string, 0, len(summary.BySize))
	for key := range summary.BySize {
		sizes = append(sizes, key)
	}
	sort.Slice(sizes, func(i, j int) bool {
		return sizeOfKey(sizes[i]) < sizeOfKey(sizes[j])
	})

	for _, key := range sizes {
		for _, transition := range model.Transitions() {
			s, ok := summary.BySize[key][transition]
			if !ok {
				continue
			}
			if s.Mean == nil {
				fmt.Printf("%s %s n=%d mean=undefined\n", key, transition, s.N)
				continue
			}
			line := fmt.Sprintf("%s %s n=%d mean=%.2f%%", key, transition, s.N, *s.Mean)
			if s.Std != nil {
				line += fmt.Sprintf(" std=%.2f", *s.Std)
			}
			if s.CILow != nil && s.CIHigh != nil {
				line += fmt.Sprintf(" ci95=[%.2f, %.2f]", *s.CILow, *s.CIHigh)
			}
			fmt.Println(line)
		}
	}
	for _, transition := range model.Transitions() {
		analysis, ok := summary.Consistency[transition]
		if !ok {
			continue
		}
		fmt.Printf("consistency %s mean=%.2f%% std=%.3f cv=%.2f%%\n",
			transition, analysis.MeanAcrossSizes, analysis.StdAcrossSizes, analysis.CVPct)
	}
	fmt.Printf("overall mean_loss=%.2f%% cv=%.2f%%\n", summary.OverallMean, summary.OverallCVPct)
}

func printRuleSummary(name string, s model.Summary) {
	if s.Mean == nil {
		fmt.Printf("%s n=%d mean=undefined\n", name, s.N)
		return
	}
	line := fmt.Sprintf("%s n=%d mean=%.2f%%", name, s.N, *s.Mean)
	if s.Std != nil {
		line += fmt.Sprintf(" std=%.2f", *s.Std)
	}
	fmt.Println(line)
}

func parseSizes(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	sizes := make([]int, 0, len(parts))
	for _, part := range parts {
		size, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid grid size %q: %w", part, err)
		}
		if size < 2 {
			return nil, fmt.Errorf("grid size must be >= 2, got %d", size)
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

func sizeOfKey(key string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(key, "grid_"))
	return n
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: dimcascadectl <init|reset|validate|quick-start|grid-sweep|rule-check|sanity|runs|summary|export> [flags]", msg)
}
