package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RuleName tags the cellular-automaton rule a batch was evolved under.
type RuleName string

const (
	RuleConway   RuleName = "conway"
	RuleHighLife RuleName = "highlife"
)

// Transition tags a dimensional embedding step.
type Transition string

const (
	Transition1Dto2D Transition = "1D→2D"
	Transition2Dto3D Transition = "2D→3D"
	Transition3Dto4D Transition = "3D→4D"
)

// Transitions lists the supported transitions in cascade order.
func Transitions() []Transition {
	return []Transition{Transition1Dto2D, Transition2Dto3D, Transition3Dto4D}
}

// LowerDimension returns the source dimension of the transition.
func (t Transition) LowerDimension() (int, bool) {
	switch t {
	case Transition1Dto2D:
		return 1, true
	case Transition2Dto3D:
		return 2, true
	case Transition3Dto4D:
		return 3, true
	default:
		return 0, false
	}
}

// TransitionRecord is one trial result: a pattern measured in its native
// dimension, embedded one dimension up, and re-measured. Ratio and loss are
// nil when the lower-dimension Φ is zero and the ratio is undefined; such a
// record is retained for auditing but excluded from aggregate statistics.
type TransitionRecord struct {
	PatternID  int        `json:"pattern_id"`
	GridSize   int        `json:"grid_size"`
	Transition Transition `json:"transition"`
	Rule       RuleName   `json:"rule"`
	Seed       int64      `json:"seed"`

	PhiLower  float64  `json:"phi_lower"`
	PhiHigher float64  `json:"phi_higher"`
	RatioPhi  *float64 `json:"ratio_phi"`
	LossPct   *float64 `json:"loss_pct"`

	RLower  float64  `json:"R_lower"`
	RHigher float64  `json:"R_higher"`
	RatioR  *float64 `json:"ratio_R"`
	SLower  float64  `json:"S_lower"`
	SHigher float64  `json:"S_higher"`
	RatioS  *float64 `json:"ratio_S"`
	DLower  float64  `json:"D_lower"`
	DHigher float64  `json:"D_higher"`
	RatioD  *float64 `json:"ratio_D"`

	AliveCellsLower  int `json:"alive_cells_lower"`
	AliveCellsHigher int `json:"alive_cells_higher"`
}

// Degenerate reports whether the trial's loss is undefined.
func (r TransitionRecord) Degenerate() bool {
	return r.LossPct == nil
}

// Summary holds aggregate statistics over the defined losses of a record
// set. Pointer fields are nil where the statistic is undefined for the
// sample size (CI and CV need n >= 2, everything else n >= 1).
type Summary struct {
	N      int      `json:"n"`
	Mean   *float64 `json:"mean_loss_pct"`
	Std    *float64 `json:"std_loss_pct"`
	SEM    *float64 `json:"sem_loss_pct"`
	Min    *float64 `json:"min_loss_pct"`
	Max    *float64 `json:"max_loss_pct"`
	Median *float64 `json:"median_loss_pct"`
	Q25    *float64 `json:"q25_loss_pct"`
	Q75    *float64 `json:"q75_loss_pct"`
	CILow  *float64 `json:"ci_low"`
	CIHigh *float64 `json:"ci_high"`
	CVPct  *float64 `json:"cv_pct"`
}

// BatchResult is the persisted unit: all trials for one
// (grid size, transition, rule) combination plus their statistics.
type BatchResult struct {
	VersionedRecord
	ID          string             `json:"id"`
	RunID       string             `json:"run_id"`
	GridSize    int                `json:"grid_size"`
	Transition  Transition         `json:"transition"`
	Rule        RuleName           `json:"rule"`
	NumPatterns int                `json:"num_patterns"`
	Steps       int                `json:"steps"`
	BaseSeed    int64              `json:"base_seed"`
	Excluded    int                `json:"excluded"`
	Records     []TransitionRecord `json:"records"`
	Statistics  Summary            `json:"statistics"`
	Timestamp   string             `json:"timestamp"`
}

// ConsistencyAnalysis compares a transition's mean loss across grid sizes.
type ConsistencyAnalysis struct {
	MeanAcrossSizes float64 `json:"mean_across_sizes"`
	StdAcrossSizes  float64 `json:"std_across_sizes"`
	MinMean         float64 `json:"min_mean"`
	MaxMean         float64 `json:"max_mean"`
	CVPct           float64 `json:"coefficient_of_variation"`
}

// RunSummary aggregates every batch of a validation run into one report,
// the artifact consumed by downstream figure generation.
type RunSummary struct {
	VersionedRecord
	RunID           string                             `json:"run_id"`
	Rule            RuleName                           `json:"rule"`
	GridSizes       []int                              `json:"grid_sizes"`
	PatternsPerSize int                                `json:"n_patterns_per_size"`
	TotalPatterns   int                                `json:"total_patterns"`
	Steps           int                                `json:"steps"`
	Timestamp       string                             `json:"timestamp"`
	BySize          map[string]map[Transition]Summary  `json:"results_by_size"`
	Consistency     map[Transition]ConsistencyAnalysis `json:"consistency_analysis"`
	OverallMean     float64                            `json:"overall_mean_loss_pct"`
	OverallCVPct    float64                            `json:"overall_cv_pct"`
}
