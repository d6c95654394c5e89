package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/anantham/nutrilens"
	"github.com/anantham/nutrilens/internal/store"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage local nutrilens stores",
	Long: `Manage local stores. Each store is a separate database, so one
install can keep, say, each clinic's users apart.

Stores live under $NUTRILENS_HOME/stores (default ~/.nutrilens/stores).

Example:
  nutrilens store list
  nutrilens store create clinic/north
  nutrilens store delete clinic/north --confirm`,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local stores",
	RunE:  runStoreList,
}

var storeCreateCmd = &cobra.Command{
	Use:   "create <store-id>",
	Short: "Create a new store",
	Long: `Create a new local store.

Store ID format:
  - Lowercase alphanumeric characters and hyphens
  - 1 to 4 path segments separated by '/'
  - Each segment 1-64 characters, no leading/trailing hyphens`,
	Args: cobra.ExactArgs(1),
	RunE: runStoreCreate,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <store-id>",
	Short: "Delete a store and all its data",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreDelete,
}

var storeDeleteConfirm bool

func init() {
	storeDeleteCmd.Flags().BoolVar(&storeDeleteConfirm, "confirm", false, "Confirm deletion (required)")

	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeCreateCmd)
	storeCmd.AddCommand(storeDeleteCmd)
}

// storeListEntry represents a store in list output.
type storeListEntry struct {
	ID              string `json:"id"`
	IngredientCount int    `json:"ingredient_count"`
	CorrectionCount int    `json:"correction_count"`
}

func openStoreStats(cmd *cobra.Command, storeID string) (*nutrilens.StoreStats, error) {
	s, err := nutrilens.NewStore(store.StoreDBPath(storeID))
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Stats(cmd.Context())
}

func runStoreList(cmd *cobra.Command, args []string) error {
	ids, err := store.ListStores()
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}
	sort.Strings(ids)

	entries := make([]storeListEntry, 0, len(ids))
	for _, id := range ids {
		entry := storeListEntry{ID: id}
		if stats, err := openStoreStats(cmd, id); err == nil {
			entry.IngredientCount = stats.IngredientCount
			entry.CorrectionCount = stats.CorrectionCount
		}
		entries = append(entries, entry)
	}

	if outputJSON {
		return outputAsJSON(cmd, entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		printWarning(out, "No stores found.")
		printMuted(out, "Create one with: nutrilens store create <store-id>")
		return nil
	}
	printInfo(out, "Local stores (%d):", len(entries))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-30s %12s %12s\n", "STORE ID", "INGREDIENTS", "CORRECTIONS")
	for _, e := range entries {
		fmt.Fprintf(out, "%-30s %12d %12d\n", e.ID, e.IngredientCount, e.CorrectionCount)
	}
	return nil
}

func runStoreCreate(cmd *cobra.Command, args []string) error {
	storeID := args[0]
	if err := store.ValidateStoreIDForCreation(storeID); err != nil {
		return fmt.Errorf("invalid store ID %q: %w\n\nValid examples: my-clinic, team/kitchen, org/site/ward", storeID, err)
	}

	dbPath := store.StoreDBPath(storeID)
	if _, err := os.Stat(dbPath); err == nil {
		return fmt.Errorf("store %q already exists at %s", storeID, filepath.Dir(dbPath))
	}

	s, err := nutrilens.NewStore(dbPath)
	if err != nil {
		_ = os.RemoveAll(filepath.Dir(dbPath))
		return fmt.Errorf("initialize store: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]string{"id": storeID, "location": filepath.Dir(dbPath)})
	}
	out := cmd.OutOrStdout()
	printSuccess(out, "Store created: %s", storeID)
	printField(out, "Location", "%s", filepath.Dir(dbPath))
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	storeID := args[0]
	if err := store.ValidateStoreID(storeID); err != nil {
		return fmt.Errorf("invalid store ID %q: %w", storeID, err)
	}
	if !storeDeleteConfirm {
		return fmt.Errorf("--confirm flag is required for delete")
	}
	if storeID == store.DefaultStoreID {
		return fmt.Errorf("cannot delete protected store %q", store.DefaultStoreID)
	}

	dbPath := store.StoreDBPath(storeID)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("store %q not found", storeID)
	}

	var stats nutrilens.StoreStats
	if st, err := openStoreStats(cmd, storeID); err == nil {
		stats = *st
	}
	if err := os.RemoveAll(filepath.Dir(dbPath)); err != nil {
		return fmt.Errorf("delete store: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]any{
			"id":                  storeID,
			"ingredients_deleted": stats.IngredientCount,
			"corrections_deleted": stats.CorrectionCount,
		})
	}
	printSuccess(cmd.OutOrStdout(), "Deleted store %s (%d ingredients, %d corrections)",
		storeID, stats.IngredientCount, stats.CorrectionCount)
	return nil
}
