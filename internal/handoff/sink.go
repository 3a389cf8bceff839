// Package handoff delivers finalized capture sessions to the upload side.
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
)

const manifestName = "manifest.yaml"

// Sink receives the ordered pages of a finalized session
type Sink interface {
	Deliver(ctx context.Context, sessionID string, result *capture.Result) (*Manifest, error)
}

// Manifest describes one delivered session
type Manifest struct {
	SessionID    string         `yaml:"sessionid" json:"session_id"`
	DeliveredAt  string         `yaml:"deliveredat" json:"delivered_at"`
	MergeIntoOne bool           `yaml:"mergeintoone" json:"merge_into_one"`
	Directory    string         `yaml:"directory" json:"directory"`
	Pages        []ManifestPage `yaml:"pages" json:"pages"`
}

// ManifestPage is one delivered file, listed in page order
type ManifestPage struct {
	Ordinal     int    `yaml:"ordinal" json:"ordinal"`
	File        string `yaml:"file" json:"file"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
	ContentType string `yaml:"contenttype" json:"content_type"`
	Enhanced    bool   `yaml:"enhanced" json:"enhanced"`
	Width       int    `yaml:"width" json:"width"`
	Height      int    `yaml:"height" json:"height"`
	Size        int    `yaml:"size" json:"size"`
}

// DirectorySink writes each session into its own directory under Root
type DirectorySink struct {
	Root string
}

func NewDirectorySink(root string) *DirectorySink {
	return &DirectorySink{Root: root}
}

// Deliver writes page files in ordinal order followed by manifest.yaml
func (s *DirectorySink) Deliver(ctx context.Context, sessionID string, result *capture.Result) (*Manifest, error) {
	if result == nil || len(result.Pages) == 0 {
		return nil, capture.ErrEmptySession
	}

	dir := filepath.Join(s.Root, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	manifest := &Manifest{
		SessionID:    sessionID,
		DeliveredAt:  time.Now().Format(time.RFC3339),
		MergeIntoOne: result.MergeIntoOne,
		Directory:    dir,
		Pages:        make([]ManifestPage, 0, len(result.Pages)),
	}

	for _, page := range result.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		filename := fmt.Sprintf("page-%03d%s", page.Ordinal, extensionFor(page.ContentType))
		if err := os.WriteFile(filepath.Join(dir, filename), page.Data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write page %d: %w", page.Ordinal, err)
		}

		manifest.Pages = append(manifest.Pages, ManifestPage{
			Ordinal:     page.Ordinal,
			File:        filename,
			Source:      page.Source,
			ContentType: page.ContentType,
			Enhanced:    page.Enhanced,
			Width:       page.Width,
			Height:      page.Height,
			Size:        len(page.Data),
		})
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	slog.Info("Session delivered", "session_id", sessionID, "dir", dir, "pages", len(manifest.Pages), "merge_into_one", manifest.MergeIntoOne)
	return manifest, nil
}

// LoadManifest reads a manifest written by DirectorySink
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tiff"
	default:
		return ".bin"
	}
}
