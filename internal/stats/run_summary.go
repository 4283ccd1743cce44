package stats

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"dimcascade/internal/model"
)

// BuildRunSummary reduces the completed batches of one validation run into
// the combined multi-size report. Batches are read only; a given batch set
// always yields the same summary regardless of input order.
func BuildRunSummary(runID string, rule model.RuleName, batches []model.BatchResult) model.RunSummary {
	summary := model.RunSummary{
		RunID:       runID,
		Rule:        rule,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		BySize:      make(map[string]map[model.Transition]model.Summary),
		Consistency: make(map[model.Transition]model.ConsistencyAnalysis),
	}

	sizeSet := make(map[int]bool)
	byKey := make(map[int]map[model.Transition]model.Summary)
	for _, batch := range batches {
		sizeSet[batch.GridSize] = true
		if byKey[batch.GridSize] == nil {
			byKey[batch.GridSize] = make(map[model.Transition]model.Summary)
		}
		byKey[batch.GridSize][batch.Transition] = batch.Statistics
		if batch.NumPatterns > summary.PatternsPerSize {
			summary.PatternsPerSize = batch.NumPatterns
		}
		if batch.Steps > summary.Steps {
			summary.Steps = batch.Steps
		}
		summary.TotalPatterns += batch.NumPatterns
	}

	sizes := make([]int, 0, len(sizeSet))
	for size := range sizeSet {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	summary.GridSizes = sizes

	for size, byTransition := range byKey {
		summary.BySize[sizeKey(size)] = byTransition
	}

	transitionMeans := make([]float64, 0, 3)
	for _, transition := range model.Transitions() {
		means := make([]float64, 0, len(sizes))
		for _, size := range sizes {
			if s, ok := byKey[size][transition]; ok && s.Mean != nil {
				means = append(means, *s.Mean)
			}
		}
		if len(means) == 0 {
			continue
		}
		analysis := Consistency(means)
		summary.Consistency[transition] = analysis
		transitionMeans = append(transitionMeans, analysis.MeanAcrossSizes)
	}

	if len(transitionMeans) > 0 {
		summary.OverallMean = stat.Mean(transitionMeans, nil)
		if len(transitionMeans) >= 2 && summary.OverallMean != 0 {
			summary.OverallCVPct = stat.StdDev(transitionMeans, nil) / summary.OverallMean * 100
		}
	}
	return summary
}

func sizeKey(size int) string {
	return fmt.Sprintf("grid_%d", size)
}
