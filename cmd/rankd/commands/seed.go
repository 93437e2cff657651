package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/quantrank/internal/rankconfig"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed factor and preset definitions",
	Long: `Loads the scoring configuration file and seeds the factor registry.

Factors that already exist are left untouched; presets are upserted to
the configured definition. Run this once against a fresh database, or
again after adding factors to the configuration file.

Example:
  go run ./cmd/rankd seed
  go run ./cmd/rankd seed --config config/scoring.yaml`,
	RunE: runSeed,
}

var seedConfigPath string

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedConfigPath, "config", "", "scoring config path (overrides SCORING_CONFIG)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, closeApp, err := buildApp()
	if err != nil {
		return err
	}
	defer closeApp()

	path := a.cfg.ScoringConfigPath
	if seedConfigPath != "" {
		path = seedConfigPath
	}

	cfg, err := rankconfig.Load(path)
	if err != nil {
		return fmt.Errorf("load scoring config: %w", err)
	}
	if err := rankconfig.Validate(cfg); err != nil {
		return fmt.Errorf("validate scoring config: %w", err)
	}

	if err := a.registry.Seed(context.Background(), cfg); err != nil {
		return fmt.Errorf("seed registry: %w", err)
	}

	hash, err := rankconfig.Hash(cfg)
	if err == nil {
		fmt.Printf("Config %s (%s) hash %s\n", cfg.Meta.ConfigID, cfg.Meta.Version, hash)
	}
	fmt.Printf("Seeded %d factors and %d presets from %s\n", len(cfg.Factors), len(cfg.Presets), path)

	return nil
}
