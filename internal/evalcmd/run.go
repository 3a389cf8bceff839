package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/docscan/internal/classify"
	"github.com/lehigh-university-libraries/docscan/internal/eval/dataset"
	"github.com/lehigh-university-libraries/docscan/internal/eval/metrics"
	"github.com/lehigh-university-libraries/docscan/internal/eval/results"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

type runOptions struct {
	datasetPath string
	sampleSize  int
	concurrency int
	outputDir   string
	outputJSON  string
	classifier  *classify.Classifier
}

func executeRun(ctx context.Context, out io.Writer, opts runOptions) (*metrics.AggregateResults, error) {
	slog.Info("Starting evaluation run", "dataset", opts.datasetPath, "sample", opts.sampleSize)

	loader := dataset.NewLoader(opts.datasetPath)
	records, err := loader.LoadSample(opts.sampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("Dataset loaded", "records", len(records))

	if opts.concurrency < 1 {
		opts.concurrency = 1
	}
	slog.Info("Processing records", "concurrency", opts.concurrency)

	evalResults := make([]metrics.EvaluationResult, len(records))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, opts.concurrency)

	for i, record := range records {
		wg.Add(1)
		go func(idx int, record dataset.Record) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				evalResults[idx] = metrics.EvaluationResult{Path: record.Path, Expected: record.IsDocument, Error: ctx.Err().Error()}
				return
			}

			slog.Debug("Processing record", "path", record.Path, "progress", fmt.Sprintf("%d/%d", idx+1, len(records)))
			evalResults[idx] = classifyRecord(opts.classifier, record, loader.BaseDir())
		}(i, record)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := metrics.AggregateEvaluationResults(evalResults, opts.datasetPath)
	agg.PrintSummary(out)

	if opts.outputJSON != "" {
		if err := agg.SaveToJSON(opts.outputJSON); err != nil {
			return nil, err
		}
		slog.Info("Saved JSON results", "path", opts.outputJSON)
	}

	if opts.outputDir != "" {
		cfg := results.EvalConfig{
			DatasetPath:   opts.datasetPath,
			SampleSize:    len(records),
			SampleWidth:   classify.SampleSize,
			EdgeThreshold: classify.EdgeThreshold,
			DocumentRatio: classify.DocumentRatio,
		}
		path, err := results.SaveToYAML(opts.outputDir, cfg, agg)
		if err != nil {
			return nil, fmt.Errorf("failed to save results: %w", err)
		}
		fmt.Fprintf(out, "\nResults saved to: %s\n", path)
		fmt.Fprintf(out, "Generate a detailed report with:\n  docscan eval report --results %s\n", path)
	}

	return agg, nil
}

func classifyRecord(classifier *classify.Classifier, record dataset.Record, baseDir string) (result metrics.EvaluationResult) {
	start := time.Now()
	result = metrics.EvaluationResult{
		Path:     record.Path,
		Expected: record.IsDocument,
	}
	defer func() { result.ProcessingTime = time.Since(start) }()

	data, err := os.ReadFile(record.ResolvePath(baseDir))
	if err != nil {
		result.Error = fmt.Sprintf("failed to read image: %v", err)
		return result
	}

	img, _, err := raster.Decode(data)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.EdgeRatio = classifier.EdgeRatio(img.ToNRGBA())
	result.Predicted = classify.IsDocumentRatio(result.EdgeRatio)
	return result
}
