package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/spf13/cobra"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and convert postcard catalogs",
	}

	cmd.AddCommand(newCatalogInspectCmd(a))
	cmd.AddCommand(newCatalogConvertCmd(a))

	return cmd
}

func newCatalogInspectCmd(a *app) *cobra.Command {
	var limit int
	var cards bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print catalog records",
		Example: `  # First 10 postcards
  ellie catalog inspect --catalog postcard.cat

  # Every postcard with its header cards
  ellie catalog inspect --limit 0 --cards`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := catalog.NewLoader(a.cfg.CatalogPath, a.cfg.MaxHeaderCards).Load()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tFILE\tCENX\tCENY\tSIZE1\tSIZE2\tCAMERA\tCCD\tCARDS")
			for i, rec := range records {
				if limit > 0 && i >= limit {
					break
				}
				camera, _ := rec.Camera()
				chip, _ := rec.Chip()
				fmt.Fprintf(w, "%d\t%s\t%g\t%g\t%g\t%g\t%d\t%d\t%d\n",
					rec.Index, rec.File, rec.CenterX, rec.CenterY,
					2*rec.HalfWidth, 2*rec.HalfHeight, camera, chip, rec.Header.Len())
				if cards {
					for _, c := range rec.Header.Cards() {
						fmt.Fprintf(w, "\t  %s\t%v\t\t\t\t\t\t\n", c.Name, c.Value)
					}
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d postcards in %s\n", len(records), a.cfg.CatalogPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of records to print (0 for all)")
	cmd.Flags().BoolVar(&cards, "cards", false, "Also print each record's header cards")

	return cmd
}

func newCatalogConvertCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Write the catalog as parquet",
		Long: `Reads the configured catalog and writes it as a parquet file, which loads
faster and keeps header card order.`,
		Example: `  ellie catalog convert --catalog postcard.cat --out postcard.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := catalog.NewLoader(a.cfg.CatalogPath, a.cfg.MaxHeaderCards).Load()
			if err != nil {
				return err
			}
			if err := catalog.WriteParquet(out, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d postcards to %s\n", len(records), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Parquet file to write (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
