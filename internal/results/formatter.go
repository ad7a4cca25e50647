// Package results writes batch outcomes as YAML, JSON or CSV.
package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// Supported output formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// RunConfig is the configuration section of a saved batch
type RunConfig struct {
	Catalog     string `yaml:"catalog" json:"catalog"`
	Camera      int    `yaml:"camera" json:"camera"`
	Chip        int    `yaml:"chip" json:"chip"`
	Window      int    `yaml:"window" json:"window"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	Timestamp   string `yaml:"timestamp" json:"timestamp"`
}

// Report is the complete saved batch
type Report struct {
	Config  RunConfig         `yaml:"config" json:"config"`
	Summary pipeline.Summary  `yaml:"summary" json:"summary"`
	Results []pipeline.Result `yaml:"results" json:"results"`
}

// NewReport pairs a batch with the settings that produced it.
func NewReport(cfg RunConfig, batch *pipeline.Batch) *Report {
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	return &Report{Config: cfg, Summary: batch.Summary, Results: batch.Results}
}

// Write encodes the report to w in the given format.
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatCSV:
		return writeCSV(w, r.Results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

var csvHeader = []string{
	"Target", "RA", "Dec", "Postcard", "Raw X", "Raw Y", "X", "Y",
	"Distance", "Candidates", "Row0", "Col0", "Epochs", "Product", "Error Kind", "Error",
}

func writeCSV(w io.Writer, results []pipeline.Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Target,
			ftoa(r.Position.RA),
			ftoa(r.Position.Dec),
			r.Postcard,
			ftoa(r.Raw.X),
			ftoa(r.Raw.Y),
			ftoa(r.Corrected.X),
			ftoa(r.Corrected.Y),
			ftoa(r.Distance),
			strconv.Itoa(r.Candidates),
			strconv.Itoa(r.Row0),
			strconv.Itoa(r.Col0),
			strconv.Itoa(r.Epochs),
			r.Product,
			r.ErrorKind,
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Save writes the report into dir as results-<timestamp>.<format> and
// returns the path.
func Save(r *Report, dir, format string) (string, error) {
	if format == "" {
		format = FormatYAML
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("results-%s.%s", r.Config.Timestamp, format))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create results file: %w", err)
	}
	defer file.Close()

	if err := Write(file, r, format); err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	return path, nil
}

// Load reads a YAML or JSON report saved by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var r Report
	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(data, &r)
	default:
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse results %s: %w", path, err)
	}
	return &r, nil
}

// PrintSummary writes a human readable summary of a report.
func PrintSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Batch Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Total Targets:   %d\n", s.Total)
	fmt.Fprintf(w, "Succeeded:       %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed:          %d\n", s.Failed)
	if len(s.ErrorKinds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failures by kind:")
		for _, kind := range sortedKeys(s.ErrorKinds) {
			fmt.Fprintf(w, "  %s: %d\n", kind, s.ErrorKinds[kind])
		}
	}
	fmt.Fprintf(w, "Elapsed:         %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(w, "========================================")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
