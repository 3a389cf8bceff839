package evalcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/lehigh-university-libraries/docscan/internal/eval/results"
)

func executeReport(out io.Writer, resultsPath, format string, onlyErrors bool) error {
	spec, err := results.LoadYAML(resultsPath)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}

	if onlyErrors {
		spec.Results = misclassified(spec.Results)
	}

	switch format {
	case "text":
		return printTextReport(out, spec)
	case "json":
		return printJSONReport(out, spec)
	case "csv":
		return printCSVReport(out, spec)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func misclassified(all []results.EvalResult) []results.EvalResult {
	var wrong []results.EvalResult
	for _, r := range all {
		if r.Error != "" || r.Expected != r.Predicted {
			wrong = append(wrong, r)
		}
	}
	return wrong
}

func label(isDocument bool) string {
	if isDocument {
		return "document"
	}
	return "photo"
}

func printTextReport(out io.Writer, spec *results.EvalSpec) error {
	fmt.Fprintln(out, "========================================")
	fmt.Fprintln(out, "Document Classifier Evaluation Report")
	fmt.Fprintln(out, "========================================")
	fmt.Fprintf(out, "Dataset:        %s\n", spec.Config.DatasetPath)
	fmt.Fprintf(out, "Timestamp:      %s\n", spec.Config.Timestamp)
	fmt.Fprintf(out, "Sample:         %dx%d, edge threshold %.0f, document ratio %.2f\n",
		spec.Config.SampleWidth, spec.Config.SampleWidth, spec.Config.EdgeThreshold, spec.Config.DocumentRatio)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Accuracy:       %.2f%%\n", spec.Summary.Accuracy*100)
	fmt.Fprintf(out, "Precision:      %.2f%%\n", spec.Summary.Precision*100)
	fmt.Fprintf(out, "Recall:         %.2f%%\n", spec.Summary.Recall*100)
	fmt.Fprintf(out, "F1:             %.3f\n", spec.Summary.F1)
	fmt.Fprintf(out, "TP/FP/TN/FN:    %d/%d/%d/%d\n",
		spec.Summary.TruePositives, spec.Summary.FalsePositives, spec.Summary.TrueNegatives, spec.Summary.FalseNegatives)
	fmt.Fprintf(out, "Failures:       %d\n", spec.Summary.Failures)

	fmt.Fprintln(out, "\nDetailed Results:")
	fmt.Fprintln(out, "========================================")

	for i, r := range spec.Results {
		fmt.Fprintf(out, "[%d] %s\n", i+1, r.Path)
		if r.Error != "" {
			fmt.Fprintf(out, "  Error: %s\n", r.Error)
			continue
		}

		status := "ok"
		if r.Expected != r.Predicted {
			status = "MISCLASSIFIED"
		}
		fmt.Fprintf(out, "  expected %s, predicted %s (edge ratio %.4f) %s\n", label(r.Expected), label(r.Predicted), r.EdgeRatio, status)
	}

	return nil
}

func printJSONReport(out io.Writer, spec *results.EvalSpec) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(spec)
}

func printCSVReport(out io.Writer, spec *results.EvalSpec) error {
	writer := csv.NewWriter(out)

	header := []string{"Path", "Expected", "Predicted", "Edge Ratio", "Error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range spec.Results {
		row := []string{
			r.Path,
			strconv.FormatBool(r.Expected),
			strconv.FormatBool(r.Predicted),
			fmt.Sprintf("%.4f", r.EdgeRatio),
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
