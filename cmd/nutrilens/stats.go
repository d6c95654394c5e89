package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Long: `Display statistics about the active store.

Example:
  nutrilens stats
  nutrilens stats --store clinic/north --json`,
	RunE: runStats,
}

// statsResult is the JSON form of stats output.
type statsResult struct {
	Store           string `json:"store"`
	DBPath          string `json:"db_path"`
	IngredientCount int    `json:"ingredient_count"`
	CorrectionCount int    `json:"correction_count"`
	UserCount       int    `json:"user_count"`
	SchemaVersion   string `json:"schema_version"`
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	cfg := client.Config()

	if outputJSON {
		return outputAsJSON(cmd, statsResult{
			Store:           cfg.Store,
			DBPath:          cfg.DBPath,
			IngredientCount: stats.IngredientCount,
			CorrectionCount: stats.CorrectionCount,
			UserCount:       stats.UserCount,
			SchemaVersion:   stats.SchemaVersion,
		})
	}

	out := cmd.OutOrStdout()
	printInfo(out, "Store %s", cfg.Store)
	printField(out, "Path", "%s", cfg.DBPath)
	printField(out, "Ingredients", "%d", stats.IngredientCount)
	printField(out, "Corrections", "%d", stats.CorrectionCount)
	printField(out, "Users", "%d", stats.UserCount)
	printField(out, "Schema", "v%s", stats.SchemaVersion)
	return nil
}
