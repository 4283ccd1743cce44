package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"dimcascade/internal/model"
)

// Summarize reduces a set of loss percentages to summary statistics.
// Undefined inputs (NaN, Inf) are dropped before aggregation. The reduction
// is order-independent: inputs are copied and sorted, so any permutation of
// the same multiset yields bit-identical output. With no usable samples
// every statistic is left nil; with one sample the CI and CV are left nil.
func Summarize(losses []float64) model.Summary {
	values := make([]float64, 0, len(losses))
	for _, v := range losses {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
	}
	sort.Float64s(values)

	n := len(values)
	summary := model.Summary{N: n}
	if n == 0 {
		return summary
	}

	mean := stat.Mean(values, nil)
	summary.Mean = ptr(mean)
	summary.Min = ptr(values[0])
	summary.Max = ptr(values[n-1])
	summary.Median = ptr(stat.Quantile(0.5, stat.LinInterp, values, nil))
	summary.Q25 = ptr(stat.Quantile(0.25, stat.LinInterp, values, nil))
	summary.Q75 = ptr(stat.Quantile(0.75, stat.LinInterp, values, nil))
	if n < 2 {
		return summary
	}

	std := stat.StdDev(values, nil)
	sem := std / math.Sqrt(float64(n))
	summary.Std = ptr(std)
	summary.SEM = ptr(sem)

	// 95% CI from the Student's t quantile with n-1 degrees of freedom.
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	margin := t.Quantile(0.975) * sem
	summary.CILow = ptr(mean - margin)
	summary.CIHigh = ptr(mean + margin)

	if mean != 0 {
		summary.CVPct = ptr(std / mean * 100)
	}
	return summary
}

// Losses extracts the defined loss percentages from a record set.
func Losses(records []model.TransitionRecord) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if r.LossPct == nil {
			continue
		}
		out = append(out, *r.LossPct)
	}
	return out
}

// SummarizeRecords aggregates the defined losses of a record set.
func SummarizeRecords(records []model.TransitionRecord) model.Summary {
	return Summarize(Losses(records))
}

// GroupByTransition aggregates records per transition.
func GroupByTransition(records []model.TransitionRecord) map[model.Transition]model.Summary {
	grouped := make(map[model.Transition][]float64)
	for _, r := range records {
		if r.LossPct == nil {
			continue
		}
		grouped[r.Transition] = append(grouped[r.Transition], *r.LossPct)
	}
	out := make(map[model.Transition]model.Summary, len(grouped))
	for transition, losses := range grouped {
		out[transition] = Summarize(losses)
	}
	return out
}

// GroupBySizeAndTransition aggregates records per (grid size, transition).
func GroupBySizeAndTransition(records []model.TransitionRecord) map[int]map[model.Transition]model.Summary {
	grouped := make(map[int][]model.TransitionRecord)
	for _, r := range records {
		grouped[r.GridSize] = append(grouped[r.GridSize], r)
	}
	out := make(map[int]map[model.Transition]model.Summary, len(grouped))
	for size, sized := range grouped {
		out[size] = GroupByTransition(sized)
	}
	return out
}

// Consistency reduces one transition's per-size mean losses to the
// cross-size robustness figures.
func Consistency(means []float64) model.ConsistencyAnalysis {
	values := append([]float64(nil), means...)
	sort.Float64s(values)

	analysis := model.ConsistencyAnalysis{}
	if len(values) == 0 {
		return analysis
	}
	analysis.MeanAcrossSizes = stat.Mean(values, nil)
	analysis.MinMean = values[0]
	analysis.MaxMean = values[len(values)-1]
	if len(values) >= 2 {
		analysis.StdAcrossSizes = stat.StdDev(values, nil)
		if analysis.MeanAcrossSizes != 0 {
			analysis.CVPct = analysis.StdAcrossSizes / analysis.MeanAcrossSizes * 100
		}
	}
	return analysis
}

func ptr(v float64) *float64 { return &v }
