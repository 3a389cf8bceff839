package evalcmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/docscan/internal/classify"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write PNG: %v", err)
	}
}

func checkerboard(size, cell int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBA{A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func flat(size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

// newDataset writes a document, a photo, a busy photo and a missing file entry
func newDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "text.png"), checkerboard(200, 4))
	writePNG(t, filepath.Join(dir, "sky.png"), flat(64))
	writePNG(t, filepath.Join(dir, "fence.png"), checkerboard(200, 2))

	labels := `{"path":"text.png","is_document":true}
{"path":"sky.png","is_document":false}
{"path":"fence.png","is_document":false,"note":"chain link"}
{"path":"gone.png","is_document":true}
`
	path := filepath.Join(dir, "labels.jsonl")
	if err := os.WriteFile(path, []byte(labels), 0644); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}
	return path
}

func TestExecuteRun(t *testing.T) {
	datasetPath := newDataset(t)
	outputDir := filepath.Join(t.TempDir(), "evals")

	var out bytes.Buffer
	agg, err := executeRun(context.Background(), &out, runOptions{
		datasetPath: datasetPath,
		concurrency: 2,
		outputDir:   outputDir,
		classifier:  classify.New(),
	})
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}

	if agg.Confusion.TruePositives != 1 || agg.Confusion.FalsePositives != 1 || agg.Confusion.TrueNegatives != 1 {
		t.Errorf("Unexpected confusion matrix %+v", agg.Confusion)
	}
	if agg.FailureCount != 1 {
		t.Errorf("Expected 1 failure, got %d", agg.FailureCount)
	}
	for i, want := range []string{"text.png", "sky.png", "fence.png", "gone.png"} {
		if agg.Results[i].Path != want {
			t.Errorf("Expected result %d to be %s, got %s", i, want, agg.Results[i].Path)
		}
	}

	files, err := filepath.Glob(filepath.Join(outputDir, "classifier-*.yaml"))
	if err != nil || len(files) != 1 {
		t.Fatalf("Expected one YAML results file, got %v (%v)", files, err)
	}

	var report bytes.Buffer
	if err := executeReport(&report, files[0], "text", true); err != nil {
		t.Fatalf("executeReport failed: %v", err)
	}
	text := report.String()
	if !strings.Contains(text, "fence.png") || !strings.Contains(text, "gone.png") {
		t.Errorf("Expected report to list misclassified records, got:\n%s", text)
	}
	if strings.Contains(text, "sky.png") {
		t.Errorf("Expected correct records to be filtered out, got:\n%s", text)
	}

	var csvOut bytes.Buffer
	if err := executeReport(&csvOut, files[0], "csv", false); err != nil {
		t.Fatalf("csv report failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(csvOut.String()), "\n"); len(lines) != 5 {
		t.Errorf("Expected header plus 4 rows, got %d lines", len(lines))
	}

	if err := executeReport(&bytes.Buffer{}, files[0], "xml", false); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestExecuteRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executeRun(ctx, &bytes.Buffer{}, runOptions{
		datasetPath: newDataset(t),
		concurrency: 1,
		classifier:  classify.New(),
	})
	if err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestExecuteInspect(t *testing.T) {
	var out bytes.Buffer
	if err := executeInspect(context.Background(), &out, newDataset(t), 0); err != nil {
		t.Fatalf("executeInspect failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{"png 200x200", "chain link", "Documents: 2  Photos: 2  Missing files: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected inspect output to contain %q, got:\n%s", want, text)
		}
	}
}
