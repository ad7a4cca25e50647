package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
	"github.com/lehigh-university-libraries/ellie/internal/results"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var targetsPath string
	var format string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process many targets concurrently",
		Long: `Runs every target in a YAML file through the cutout pipeline. A failing
target is recorded with its error kind and does not stop the others. Results
are saved into the output directory and a summary is printed.

The targets file holds a "targets" list; each entry has either "id" (with an
optional "survey") or "ra" and "dec".`,
		Example: `  # Run with the default concurrency
  ellie batch --targets targets.yaml

  # Write CSV results with 8 workers
  ellie batch --targets targets.yaml --format csv --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				concurrency = a.cfg.Concurrency
			}

			targets, err := pipeline.LoadTargets(targetsPath)
			if err != nil {
				return err
			}

			p, err := pipeline.FromConfig(a.cfg)
			if err != nil {
				return err
			}

			batch, runErr := p.RunBatch(cmd.Context(), targets, concurrency)

			report := results.NewReport(results.RunConfig{
				Catalog:     a.cfg.CatalogPath,
				Camera:      a.cfg.Camera,
				Chip:        a.cfg.Chip,
				Window:      a.cfg.Window,
				Concurrency: concurrency,
				Timestamp:   time.Now().Format("2006-01-02_15-04-05"),
			}, batch)

			path, err := results.Save(report, a.cfg.OutputDir, format)
			if err != nil {
				return fmt.Errorf("failed to save results: %w", err)
			}
			slog.Info("Results saved", "path", path)

			results.PrintSummary(cmd.OutOrStdout(), batch.Summary)
			return runErr
		},
	}

	cmd.Flags().StringVar(&targetsPath, "targets", "", "YAML file listing targets (required)")
	cmd.Flags().StringVar(&format, "format", results.FormatYAML, "Results format: yaml, json or csv")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Targets processed at once (env ELLIE_CONCURRENCY)")

	_ = cmd.MarkFlagRequired("targets")

	return cmd
}
