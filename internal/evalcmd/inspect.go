package evalcmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/docscan/internal/eval/dataset"
)

func executeInspect(ctx context.Context, out io.Writer, datasetPath string, limit int) error {
	loader := dataset.NewLoader(datasetPath)

	records, err := loader.LoadSample(limit)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	fmt.Fprintf(out, "Loaded %d records from %s\n", len(records), datasetPath)
	fmt.Fprintln(out, strings.Repeat("=", 80))

	documents, missing := 0, 0
	for i, record := range records {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nInspection interrupted.")
			return nil
		default:
		}

		if record.IsDocument {
			documents++
		}

		path := record.ResolvePath(loader.BaseDir())
		details := describeImage(path)
		if strings.HasPrefix(details, "missing") {
			missing++
		}

		fmt.Fprintf(out, "%4d  %-8s  %-40s  %s", i+1, record.Label(), record.Path, details)
		if record.Note != "" {
			fmt.Fprintf(out, "  (%s)", record.Note)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintf(out, "Documents: %d  Photos: %d  Missing files: %d\n", documents, len(records)-documents, missing)
	return nil
}

func describeImage(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "missing"
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Sprintf("undecodable (%d bytes)", len(data))
	}
	return fmt.Sprintf("%s %dx%d", format, cfg.Width, cfg.Height)
}
