package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aea-online/shopmap/internal/config"
	"github.com/aea-online/shopmap/internal/pipeline"
	"github.com/aea-online/shopmap/internal/resolve"
)

var cfg *config.Config

var (
	noGeocode   bool
	inputPath   string
	outputPath  string
	geojsonPath string
)

var rootCmd = &cobra.Command{
	Use:   "shopmap",
	Short: "Build the geocoded AEA member shop map data",
	Long: "Reads the member roster, normalizes every row, geocodes addresses through a persistent " +
		"cache and writes data/shops.json for the map. Use --no-geocode to place shops at state centroids.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyPathFlags(cfg)
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		opts := pipeline.Options{
			InputPath:   cfg.Paths.Resolve(cfg.Paths.Input),
			OutputPath:  cfg.Paths.Resolve(cfg.Paths.Output),
			CachePath:   cfg.Paths.Resolve(cfg.Paths.Cache),
			GeoJSONPath: cfg.Paths.Resolve(cfg.Paths.GeoJSON),
			NoGeocode:   noGeocode,
		}
		if !noGeocode {
			client, err := newGeocodeClient(cfg.Geocode)
			if err != nil {
				return err
			}
			opts.Client = client
			opts.Breaker = resolve.NewBreaker(cfg.Geocode.Circuit.FailureThreshold, cfg.Geocode.Circuit.ResetTimeout())
		}

		summary, err := pipeline.Run(ctx, opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d shops (%d states, %d hiring, %d openings) to %s\n",
			summary.Metadata.TotalShops,
			summary.Metadata.UniqueStates,
			summary.Metadata.HiringCount,
			summary.Metadata.TotalOpenings,
			opts.OutputPath,
		)
		return nil
	},
}

// applyPathFlags overrides configured paths with any flags given.
func applyPathFlags(c *config.Config) {
	if inputPath != "" {
		c.Paths.Input = inputPath
	}
	if outputPath != "" {
		c.Paths.Output = outputPath
	}
	if geojsonPath != "" {
		c.Paths.GeoJSON = geojsonPath
	}
}

func init() {
	rootCmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip geocoding and place shops at state centroids")
	rootCmd.Flags().StringVar(&inputPath, "input", "", "roster CSV or XLSX (default from config)")
	rootCmd.PersistentFlags().StringVar(&outputPath, "output", "", "shops.json path (default from config)")
	rootCmd.Flags().StringVar(&geojsonPath, "geojson", "", "also write a GeoJSON FeatureCollection to this path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shopmap: %v\n", err)
		os.Exit(1)
	}
}
