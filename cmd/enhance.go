package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
	"github.com/lehigh-university-libraries/docscan/internal/config"
	"github.com/lehigh-university-libraries/docscan/internal/handoff"
	"github.com/lehigh-university-libraries/docscan/internal/preview"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

func newEnhanceCmd() *cobra.Command {
	var opts raster.Options
	var merge bool
	var outputDir string
	var workers int

	cmd := &cobra.Command{
		Use:   "enhance [images...]",
		Short: "Enhance images as one capture session and deliver them",
		Long: `Runs the given images through a capture session in argument order, applying the
selected enhancement stages, then finalizes the session into the output directory.`,
		Example: `  # Enhance three pages and ask for a single merged document
  docscan enhance page1.jpg page2.jpg page3.jpg --merge

  # Grayscale only, written to ./out
  docscan enhance scan.png --grayscale --sharpen=false --auto-adjust=false -o ./out`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cmd.Flags().Changed("grayscale") {
				opts.Grayscale = cfg.Enhancement.Grayscale
			}
			if !cmd.Flags().Changed("sharpen") {
				opts.Sharpen = cfg.Enhancement.Sharpen
			}
			if !cmd.Flags().Changed("auto-adjust") {
				opts.AutoAdjust = cfg.Enhancement.AutoAdjust
			}
			if !cmd.Flags().Changed("output-dir") {
				outputDir = cfg.OutputDir
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.EnhanceWorkers
			}

			_, err := runEnhance(cmd.Context(), cmd.OutOrStdout(), args, opts, merge, handoff.NewDirectorySink(outputDir), workers)
			return err
		},
	}

	defaults := raster.DefaultOptions()
	cmd.Flags().BoolVar(&opts.Grayscale, "grayscale", defaults.Grayscale, "Convert pages to grayscale")
	cmd.Flags().BoolVar(&opts.Sharpen, "sharpen", defaults.Sharpen, "Sharpen pages")
	cmd.Flags().BoolVar(&opts.AutoAdjust, "auto-adjust", defaults.AutoAdjust, "Stretch page contrast")
	cmd.Flags().BoolVar(&merge, "merge", false, "Request that pages be merged into one document")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "./finalized", "Directory the session is delivered to")
	cmd.Flags().IntVar(&workers, "workers", 0, "Pages enhanced in parallel (defaults to ENHANCE_WORKERS)")

	return cmd
}

func runEnhance(ctx context.Context, out io.Writer, files []string, opts raster.Options, merge bool, sink handoff.Sink, workers int) (*handoff.Manifest, error) {
	previews := preview.NewRegistry()
	session := capture.New(raster.NewEnhancer(), previews,
		capture.WithOptions(opts),
		capture.WithConcurrency(workers))

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			session.Cancel()
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := session.AddCapture(filepath.Base(file), data); err != nil {
			session.Cancel()
			return nil, fmt.Errorf("failed to add %s: %w", file, err)
		}
	}

	result, err := session.Finalize(ctx, merge)
	if err != nil {
		session.Cancel()
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}

	manifest, err := sink.Deliver(ctx, session.ID(), result)
	if err != nil {
		return nil, fmt.Errorf("failed to deliver session: %w", err)
	}

	fmt.Fprintf(out, "Session %s delivered to %s\n", manifest.SessionID, manifest.Directory)
	for _, page := range manifest.Pages {
		status := "enhanced"
		if !page.Enhanced {
			status = "original"
		}
		fmt.Fprintf(out, "  %3d  %-20s <- %s (%dx%d, %s)\n", page.Ordinal, page.File, page.Source, page.Width, page.Height, status)
	}
	if manifest.MergeIntoOne {
		fmt.Fprintln(out, "Pages will be merged into one document")
	}

	return manifest, nil
}
