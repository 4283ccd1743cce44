package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dimcascade/internal/model"
)

const runIndexFile = "run_index.json"

// RunIndexEntry is one line of the results-directory index, newest first.
type RunIndexEntry struct {
	RunID           string         `json:"run_id"`
	Rule            model.RuleName `json:"rule"`
	GridSizes       []int          `json:"grid_sizes"`
	PatternsPerSize int            `json:"n_patterns_per_size"`
	OverallMeanLoss float64        `json:"overall_mean_loss_pct"`
	CreatedAtUTC    string         `json:"created_at_utc"`
}

// WriteBatchArtifact persists one completed batch under the run directory
// as an indented JSON document plus a CSV loss series for plotting.
func WriteBatchArtifact(baseDir string, batch model.BatchResult) (string, error) {
	if batch.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, batch.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(runDir, batchFileName(batch.GridSize, batch.Transition))
	if err := writeJSON(path, batch); err != nil {
		return "", err
	}
	if err := writeLossSeries(filepath.Join(runDir, seriesFileName(batch.GridSize, batch.Transition)), batch.Records); err != nil {
		return "", err
	}
	return path, nil
}

// ReadBatchArtifact loads one batch back; the second return is false when
// the artifact does not exist.
func ReadBatchArtifact(baseDir, runID string, gridSize int, transition model.Transition) (model.BatchResult, bool, error) {
	path := filepath.Join(baseDir, runID, batchFileName(gridSize, transition))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.BatchResult{}, false, nil
		}
		return model.BatchResult{}, false, err
	}
	var batch model.BatchResult
	if err := json.Unmarshal(data, &batch); err != nil {
		return model.BatchResult{}, false, err
	}
	return batch, true, nil
}

// ListBatchArtifacts returns the batch documents of one run sorted by
// grid size then transition.
func ListBatchArtifacts(baseDir, runID string) ([]model.BatchResult, error) {
	runDir := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.BatchResult{}, nil
		}
		return nil, err
	}

	batches := make([]model.BatchResult, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "cascade_grid") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(runDir, name))
		if err != nil {
			return nil, err
		}
		var batch model.BatchResult
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		batches = append(batches, batch)
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].GridSize == batches[j].GridSize {
			return batches[i].Transition < batches[j].Transition
		}
		return batches[i].GridSize < batches[j].GridSize
	})
	return batches, nil
}

// WriteRunSummary persists the combined multi-size summary for a run.
func WriteRunSummary(baseDir string, summary model.RunSummary) (string, error) {
	if summary.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, summary.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(runDir, "multisize_summary.json")
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}
	return path, nil
}

// ReadRunSummary loads a run's combined summary if present.
func ReadRunSummary(baseDir, runID string) (model.RunSummary, bool, error) {
	path := filepath.Join(baseDir, runID, "multisize_summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunSummary{}, false, nil
		}
		return model.RunSummary{}, false, err
	}
	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.RunSummary{}, false, err
	}
	return summary, true, nil
}

// AppendRunIndex records or replaces a run's entry in the index.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries sorted newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// WriteReportJSON dumps an arbitrary report payload as indented JSON,
// used by the robustness commands for their standalone artifacts.
func WriteReportJSON(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, payload)
}

// ReadLossSeries loads a batch's CSV loss series. Degenerate trials are
// stored as empty cells and omitted from the returned values.
func ReadLossSeries(baseDir, runID string, gridSize int, transition model.Transition) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, seriesFileName(gridSize, transition))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("loss series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("loss series row must have at least 2 columns")
		}
		if record[1] == "" {
			continue
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func writeLossSeries(path string, records []model.TransitionRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"pattern_id", "loss_pct"}); err != nil {
		return err
	}
	for _, record := range records {
		loss := ""
		if record.LossPct != nil {
			loss = strconv.FormatFloat(*record.LossPct, 'f', -1, 64)
		}
		if err := writer.Write([]string{strconv.Itoa(record.PatternID), loss}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func batchFileName(gridSize int, transition model.Transition) string {
	return fmt.Sprintf("cascade_grid%d_%s.json", gridSize, transitionSlug(transition))
}

func seriesFileName(gridSize int, transition model.Transition) string {
	return fmt.Sprintf("loss_series_grid%d_%s.csv", gridSize, transitionSlug(transition))
}

func transitionSlug(transition model.Transition) string {
	switch transition {
	case model.Transition1Dto2D:
		return "1d_2d"
	case model.Transition2Dto3D:
		return "2d_3d"
	case model.Transition3Dto4D:
		return "3d_4d"
	default:
		return strings.ToLower(strings.NewReplacer("→", "_", " ", "").Replace(string(transition)))
	}
}

// ExportRunArtifacts copies every artifact file for a run into outDir and
// returns the export directory.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
