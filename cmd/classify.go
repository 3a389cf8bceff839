package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/docscan/internal/classify"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

func newClassifyCmd() *cobra.Command {
	classifier := classify.New()

	cmd := &cobra.Command{
		Use:   "classify [images...]",
		Short: "Guess whether images are scanned documents or photographs",
		Example: `  docscan classify receipt.jpg holiday.jpg
  docscan classify scans/*.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(out, "%s\terror: %v\n", path, err)
					failed++
					continue
				}
				img, _, err := raster.Decode(data)
				if err != nil {
					fmt.Fprintf(out, "%s\terror: %v\n", path, err)
					failed++
					continue
				}

				ratio := classifier.EdgeRatio(img.ToNRGBA())
				kind := "photo"
				if classify.IsDocumentRatio(ratio) {
					kind = "document"
				}
				fmt.Fprintf(out, "%s\t%s\t%.4f\n", path, kind, ratio)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d images could not be classified", failed, len(args))
			}
			return nil
		},
	}

	return cmd
}
