package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/docscan/internal/evalcmd"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Document classifier evaluation tools",
		Long: `Evaluation tools for measuring how well the edge-density classifier separates
scanned documents from photographs.

Datasets are JSONL or Parquet files of {path, is_document} records.`,
	}

	cmd.AddCommand(evalcmd.NewRunCmd())
	cmd.AddCommand(evalcmd.NewReportCmd())
	cmd.AddCommand(evalcmd.NewInspectCmd())

	return cmd
}
