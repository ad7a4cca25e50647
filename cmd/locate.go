package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lehigh-university-libraries/ellie/internal/locator"
	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// locateReport is what locate prints.
type locateReport struct {
	Target     string              `yaml:"target" json:"target"`
	Position   locator.SkyPosition `yaml:"position" json:"position"`
	Postcard   string              `yaml:"postcard" json:"postcard"`
	Raw        pointing.Pixel      `yaml:"raw" json:"raw"`
	Corrected  pointing.Pixel      `yaml:"corrected" json:"corrected"`
	Distance   float64             `yaml:"distance" json:"distance"`
	Candidates []locator.Candidate `yaml:"candidates" json:"candidates"`
}

func newLocateCmd(a *app) *cobra.Command {
	var tf targetFlags
	var (
		format   string
		pixel    []float64
		postcard int
	)

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Find the postcard containing a sky position",
		Long: `Projects the position into every postcard, applies the pointing correction
and reports the postcard whose center is closest among those whose footprint
contains the corrected pixel.

With --pixel and --postcard the position is taken from a corrected pixel on
that postcard instead: the correction is removed, the raw pixel is mapped back
onto the sky and the result is located as usual.`,
		Example: `  # Locate by coordinates
  ellie locate --ra 324.566 --dec -33.1727

  # Locate a TIC source through the resolver
  ellie locate --id 219870537 --survey tic --format json

  # Which postcard is closest for a pixel seen on catalog entry 0
  ellie locate --pixel 120.5,88 --postcard 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.FromConfig(a.cfg)
			if err != nil {
				return err
			}

			var (
				t   pipeline.Target
				pos locator.SkyPosition
			)
			if cmd.Flags().Changed("pixel") {
				if len(pixel) != 2 {
					return fmt.Errorf("--pixel takes x,y, got %d values", len(pixel))
				}
				pos, err = p.Matcher().Unproject(postcard, pointing.Pixel{X: pixel[0], Y: pixel[1]})
				if err != nil {
					return err
				}
				t = pipeline.At(pos.RA, pos.Dec)
			} else {
				t, err = tf.target(cmd)
				if err != nil {
					return err
				}
				pos, err = p.Position(cmd.Context(), t)
				if err != nil {
					return err
				}
			}

			match, err := p.Locate(pos)
			if err != nil {
				return err
			}

			report := locateReport{
				Target:     t.Name(),
				Position:   pos,
				Postcard:   match.Record.File,
				Raw:        match.Raw,
				Corrected:  match.Corrected,
				Distance:   match.Distance,
				Candidates: match.Candidates,
			}
			return printReport(cmd.OutOrStdout(), report, format)
		},
	}

	tf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	cmd.Flags().Float64SliceVar(&pixel, "pixel", nil, "Corrected pixel x,y on the --postcard entry, instead of a sky position")
	cmd.Flags().IntVar(&postcard, "postcard", 0, "Catalog index (0-based) of the postcard --pixel is measured on")
	cmd.MarkFlagsRequiredTogether("pixel", "postcard")
	cmd.MarkFlagsMutuallyExclusive("pixel", "ra")
	cmd.MarkFlagsMutuallyExclusive("pixel", "dec")
	cmd.MarkFlagsMutuallyExclusive("pixel", "id")

	return cmd
}

func printReport(w io.Writer, v any, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
