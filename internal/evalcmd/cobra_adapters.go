package evalcmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/docscan/internal/classify"
)

// NewRunCmd creates the run command for scoring the document classifier
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score the document classifier against a labelled dataset",
		Long: `Run the document classifier over every image in a labelled dataset and report
accuracy, precision, recall and the confusion matrix.

The dataset is a JSONL or Parquet file of {path, is_document} records. Relative
paths are resolved against the dataset file's directory.`,
		Example: `  # Evaluate a JSONL dataset
  docscan eval run --dataset ./labels.jsonl

  # Evaluate 500 records from Parquet
  docscan eval run --dataset ./labels.parquet --sample 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.datasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", opts.datasetPath)
			}
			opts.classifier = classify.New()

			_, err := executeRun(cmd.Context(), cmd.OutOrStdout(), opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "Path to JSONL or Parquet dataset (required)")
	cmd.Flags().IntVar(&opts.sampleSize, "sample", 0, "Number of records to evaluate (0 for all)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", runtime.NumCPU(), "Images classified in parallel")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "evals", "Directory for the YAML results file (empty to skip)")
	cmd.Flags().StringVar(&opts.outputJSON, "output-json", "", "Optional path for JSON results")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var resultsPath string
	var format string
	var onlyErrors bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a report from a saved evaluation",
		Example: `  docscan eval report --results evals/classifier-2026-01-02_03-04-05.yaml
  docscan eval report --results evals/classifier-2026-01-02_03-04-05.yaml --format csv --errors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(cmd.OutOrStdout(), resultsPath, format, onlyErrors)
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "Path to a YAML results file (required)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json, csv)")
	cmd.Flags().BoolVar(&onlyErrors, "errors", false, "Only show misclassified and failed records")

	_ = cmd.MarkFlagRequired("results")
	return cmd
}

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var datasetPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List dataset records and check their images",
		Long: `Inspect records from a parquet or jsonl dataset file, showing each label and
whether the referenced image exists and decodes.`,
		Example: `  docscan eval inspect --dataset ./labels.parquet --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeInspect(cmd.Context(), cmd.OutOrStdout(), datasetPath, limit)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to parquet or jsonl dataset file (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of records to inspect (0 for all)")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}
