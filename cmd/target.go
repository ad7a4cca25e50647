package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/ellie/internal/pipeline"
	"github.com/spf13/cobra"
)

// targetFlags selects a single target by position or identifier.
type targetFlags struct {
	ra, dec float64
	id      string
	survey  string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.ra, "ra", 0, "Right ascension in degrees")
	cmd.Flags().Float64Var(&f.dec, "dec", 0, "Declination in degrees")
	cmd.Flags().StringVar(&f.id, "id", "", "Source identifier to resolve instead of --ra/--dec")
	cmd.Flags().StringVar(&f.survey, "survey", "tic", "Survey of --id: tic or gaia")
	cmd.MarkFlagsRequiredTogether("ra", "dec")
	cmd.MarkFlagsMutuallyExclusive("id", "ra")
	cmd.MarkFlagsMutuallyExclusive("id", "dec")
}

func (f *targetFlags) target(cmd *cobra.Command) (pipeline.Target, error) {
	var t pipeline.Target
	switch {
	case f.id != "":
		t = pipeline.Target{ID: f.id, Survey: f.survey}
	case cmd.Flags().Changed("ra"):
		t = pipeline.At(f.ra, f.dec)
	default:
		return t, fmt.Errorf("either --ra/--dec or --id is required")
	}
	return t, t.Validate()
}
