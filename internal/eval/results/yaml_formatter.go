package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/docscan/internal/eval/metrics"
)

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	DatasetPath   string  `yaml:"datasetpath"`
	SampleSize    int     `yaml:"samplesize"`
	SampleWidth   int     `yaml:"samplewidth"`
	EdgeThreshold float64 `yaml:"edgethreshold"`
	DocumentRatio float64 `yaml:"documentratio"`
	Timestamp     string  `yaml:"timestamp"`
}

// EvalSummary holds the headline scores
type EvalSummary struct {
	Accuracy       float64 `yaml:"accuracy"`
	Precision      float64 `yaml:"precision"`
	Recall         float64 `yaml:"recall"`
	F1             float64 `yaml:"f1"`
	TruePositives  int     `yaml:"truepositives"`
	FalsePositives int     `yaml:"falsepositives"`
	TrueNegatives  int     `yaml:"truenegatives"`
	FalseNegatives int     `yaml:"falsenegatives"`
	Failures       int     `yaml:"failures"`
}

// EvalResult represents a single evaluation result
type EvalResult struct {
	Path      string  `yaml:"path"`
	Expected  bool    `yaml:"expected"`
	Predicted bool    `yaml:"predicted"`
	EdgeRatio float64 `yaml:"edgeratio"`
	Error     string  `yaml:"error,omitempty"`
}

// EvalSpec represents the complete evaluation file
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Summary EvalSummary  `yaml:"summary"`
	Results []EvalResult `yaml:"results"`
}

// Build converts aggregated metrics into the YAML document
func Build(cfg EvalConfig, agg *metrics.AggregateResults) EvalSpec {
	spec := EvalSpec{
		Config: cfg,
		Summary: EvalSummary{
			Accuracy:       agg.Accuracy,
			Precision:      agg.Precision,
			Recall:         agg.Recall,
			F1:             agg.F1,
			TruePositives:  agg.Confusion.TruePositives,
			FalsePositives: agg.Confusion.FalsePositives,
			TrueNegatives:  agg.Confusion.TrueNegatives,
			FalseNegatives: agg.Confusion.FalseNegatives,
			Failures:       agg.FailureCount,
		},
		Results: make([]EvalResult, 0, len(agg.Results)),
	}

	for _, r := range agg.Results {
		spec.Results = append(spec.Results, EvalResult{
			Path:      r.Path,
			Expected:  r.Expected,
			Predicted: r.Predicted,
			EdgeRatio: r.EdgeRatio,
			Error:     r.Error,
		})
	}
	return spec
}

// SaveToYAML writes the evaluation into dir and returns the file path
func SaveToYAML(dir string, cfg EvalConfig, agg *metrics.AggregateResults) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create evals directory: %w", err)
	}

	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	data, err := yaml.Marshal(Build(cfg, agg))
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("classifier-%s.yaml", cfg.Timestamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}

// LoadYAML reads an evaluation file written by SaveToYAML
func LoadYAML(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse results file: %w", err)
	}
	return &spec, nil
}
