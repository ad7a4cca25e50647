package cmd

import (
	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
	"github.com/spf13/cobra"
)

func newCutoutCmd(a *app) *cobra.Command {
	var tf targetFlags
	var format string

	cmd := &cobra.Command{
		Use:   "cutout",
		Short: "Cut out a target, measure its light curve and write a product",
		Long: `Locates the target's postcard, extracts the configured window from every
epoch, runs aperture photometry and writes a FITS product into the output
directory: the cutout cube with its postcard header and provenance cards, plus
a LIGHTCURVE table of epoch, raw flux and normalized flux.`,
		Example: `  # Cut out by coordinates into ./products
  ellie cutout --ra 324.566 --dec -33.1727 --output-dir products

  # Use a larger window
  ellie cutout --id 219870537 --window 15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.target(cmd)
			if err != nil {
				return err
			}

			p, err := pipeline.FromConfig(a.cfg)
			if err != nil {
				return err
			}

			res, err := p.Run(cmd.Context(), t)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), res, format)
		},
	}

	tf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")

	return cmd
}
