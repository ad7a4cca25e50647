package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/ellie/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// app carries the loaded configuration to every subcommand.
type app struct {
	cfg     *config.Config
	verbose bool

	// flag values that override the environment when set
	catalogPath string
	pointingDir string
	camera      int
	chip        int
	postcardDir string
	window      int
	outputDir   string
	resolverURL string
	logLevel    string
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "ellie",
		Short: "Find the TESS postcard holding a star and cut out its light curve",
		Long: `Ellie locates the postcard whose footprint contains a sky position,
applies the camera/chip pointing correction, extracts a pixel window across
every epoch and writes a light curve product.

Settings come from ELLIE_* environment variables (a .env file is loaded when
present) and can be overridden with flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.load(cmd.Flags())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.catalogPath, "catalog", "", "Postcard catalog, ascii table or .parquet (env ELLIE_CATALOG)")
	flags.StringVar(&a.pointingDir, "pointing-dir", "", "Directory holding pointing model files (env ELLIE_POINTING_DIR)")
	flags.IntVar(&a.camera, "camera", 0, "Camera whose pointing model is applied (env ELLIE_CAMERA)")
	flags.IntVar(&a.chip, "chip", 0, "Chip whose pointing model is applied (env ELLIE_CHIP)")
	flags.StringVar(&a.postcardDir, "postcard-dir", "", "Directory holding postcard FITS files (env ELLIE_POSTCARD_DIR)")
	flags.IntVar(&a.window, "window", 0, "Cutout window size in pixels (env ELLIE_WINDOW)")
	flags.StringVar(&a.outputDir, "output-dir", "", "Directory products and results are written to (env ELLIE_OUTPUT_DIR)")
	flags.StringVar(&a.resolverURL, "resolver-url", "", "Base URL of the TIC/Gaia resolver service (env ELLIE_RESOLVER_URL)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (env ELLIE_LOG_LEVEL)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Shorthand for --log-level debug")

	cmd.AddCommand(newLocateCmd(a))
	cmd.AddCommand(newCutoutCmd(a))
	cmd.AddCommand(newBatchCmd(a))
	cmd.AddCommand(newCatalogCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

func (a *app) load(flags *pflag.FlagSet) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if flags.Changed("catalog") {
		cfg.CatalogPath = a.catalogPath
	}
	if flags.Changed("pointing-dir") {
		cfg.PointingDir = a.pointingDir
	}
	if flags.Changed("camera") {
		cfg.Camera = a.camera
	}
	if flags.Changed("chip") {
		cfg.Chip = a.chip
	}
	if flags.Changed("postcard-dir") {
		cfg.PostcardDir = a.postcardDir
	}
	if flags.Changed("window") {
		cfg.Window = a.window
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = a.outputDir
	}
	if flags.Changed("resolver-url") {
		cfg.ResolverURL = a.resolverURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	a.cfg = cfg
	return nil
}
