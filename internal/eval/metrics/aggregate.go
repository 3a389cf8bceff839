package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// EvaluationResult is the classifier outcome for a single labelled image
type EvaluationResult struct {
	Path           string        `json:"path"`
	Expected       bool          `json:"expected"`
	Predicted      bool          `json:"predicted"`
	EdgeRatio      float64       `json:"edge_ratio"`
	ProcessingTime time.Duration `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

// Correct reports whether the prediction matched the label
func (r EvaluationResult) Correct() bool {
	return r.Error == "" && r.Expected == r.Predicted
}

// ConfusionMatrix counts predictions with "document" as the positive class
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

func (m *ConfusionMatrix) add(expected, predicted bool) {
	switch {
	case expected && predicted:
		m.TruePositives++
	case !expected && predicted:
		m.FalsePositives++
	case !expected && !predicted:
		m.TrueNegatives++
	default:
		m.FalseNegatives++
	}
}

// Total is the number of classified records
func (m ConfusionMatrix) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// AggregateResults represents aggregated evaluation metrics
type AggregateResults struct {
	TotalRecords int `json:"total_records"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`

	Confusion ConfusionMatrix `json:"confusion"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`

	AverageEdgeRatioDocuments float64 `json:"average_edge_ratio_documents"`
	AverageEdgeRatioPhotos    float64 `json:"average_edge_ratio_photos"`

	AverageProcessingTime time.Duration `json:"average_processing_time"`
	TotalProcessingTime   time.Duration `json:"total_processing_time"`

	Results []EvaluationResult `json:"results"`

	EvaluationDate time.Time `json:"evaluation_date"`
	DatasetPath    string    `json:"dataset_path"`
}

// AggregateEvaluationResults aggregates multiple evaluation results
func AggregateEvaluationResults(results []EvaluationResult, datasetPath string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Results:        results,
		EvaluationDate: time.Now(),
		DatasetPath:    datasetPath,
	}

	var docRatios, photoRatios []float64
	var successDuration time.Duration

	for _, result := range results {
		agg.TotalProcessingTime += result.ProcessingTime

		if result.Error != "" {
			agg.FailureCount++
			continue
		}

		agg.SuccessCount++
		successDuration += result.ProcessingTime
		agg.Confusion.add(result.Expected, result.Predicted)

		if result.Expected {
			docRatios = append(docRatios, result.EdgeRatio)
		} else {
			photoRatios = append(photoRatios, result.EdgeRatio)
		}
	}

	m := agg.Confusion
	agg.Accuracy = ratio(m.TruePositives+m.TrueNegatives, m.Total())
	agg.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
	agg.Recall = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
	if agg.Precision+agg.Recall > 0 {
		agg.F1 = 2 * agg.Precision * agg.Recall / (agg.Precision + agg.Recall)
	}

	agg.AverageEdgeRatioDocuments = calculateAverage(docRatios)
	agg.AverageEdgeRatioPhotos = calculateAverage(photoRatios)

	if agg.SuccessCount > 0 {
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}

	return agg
}

// Misclassified returns the successful results whose prediction was wrong
func (a *AggregateResults) Misclassified() []EvaluationResult {
	var wrong []EvaluationResult
	for _, r := range a.Results {
		if r.Error == "" && !r.Correct() {
			wrong = append(wrong, r)
		}
	}
	return wrong
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// calculateAverage calculates the average of a slice of scores
func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range scores {
		sum += score
	}

	return sum / float64(len(scores))
}

// PrintSummary writes a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "DOCUMENT CLASSIFIER EVALUATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Dataset: %s\n", a.DatasetPath)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PROCESSING STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total Records: %d\n", a.TotalRecords)
	fmt.Fprintf(w, "Classified: %d\n", a.SuccessCount)
	fmt.Fprintf(w, "Failed: %d\n", a.FailureCount)
	fmt.Fprintf(w, "Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Fprintf(w, "Total Processing Time: %s\n", a.TotalProcessingTime)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "CONFUSION MATRIX (positive = document)")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "  True Positives:  %d\n", a.Confusion.TruePositives)
	fmt.Fprintf(w, "  False Positives: %d\n", a.Confusion.FalsePositives)
	fmt.Fprintf(w, "  True Negatives:  %d\n", a.Confusion.TrueNegatives)
	fmt.Fprintf(w, "  False Negatives: %d\n", a.Confusion.FalseNegatives)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "SCORES")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Accuracy:  %.2f%%\n", a.Accuracy*100)
	fmt.Fprintf(w, "Precision: %.2f%%\n", a.Precision*100)
	fmt.Fprintf(w, "Recall:    %.2f%%\n", a.Recall*100)
	fmt.Fprintf(w, "F1:        %.3f\n", a.F1)
	fmt.Fprintf(w, "Mean edge ratio (documents): %.4f\n", a.AverageEdgeRatioDocuments)
	fmt.Fprintf(w, "Mean edge ratio (photos):    %.4f\n", a.AverageEdgeRatioPhotos)
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

// SaveToJSON saves the aggregate results to a JSON file
func (a *AggregateResults) SaveToJSON(filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(a); err != nil {
		return fmt.Errorf("failed to encode results to JSON: %w", err)
	}

	return nil
}
