package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/anantham/nutrilens"
	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect and prune a user's ingredient library",
	Long: `Inspect and prune a user's learned ingredient library.

Subcommands:
  list    List entries, most confident first
  show    Show the entry a name would be learned into
  forget  Remove an entry by ID

Example:
  nutrilens library list --user-id u1 --prefix da --limit 5
  nutrilens library show --user-id u1 idly
  nutrilens library forget --user-id u1 01HZX3...`,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned ingredients",
	RunE:  runLibraryList,
}

var libraryShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the entry matching a name",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryShow,
}

var libraryForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Remove an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryForget,
}

var (
	libraryUserID string
	libraryPrefix string
	libraryLimit  int
)

func init() {
	libraryCmd.PersistentFlags().StringVar(&libraryUserID, "user-id", "", "Owner of the library (required)")
	libraryCmd.MarkPersistentFlagRequired("user-id")

	libraryListCmd.Flags().StringVar(&libraryPrefix, "prefix", "", "Only names starting with this prefix")
	libraryListCmd.Flags().IntVar(&libraryLimit, "limit", 0, "Maximum entries (0 = all)")

	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryShowCmd)
	libraryCmd.AddCommand(libraryForgetCmd)
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := client.Autocomplete(cmd.Context(), libraryUserID, libraryPrefix, libraryLimit)
	if err != nil {
		return fmt.Errorf("list library: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		printWarning(out, "No learned ingredients for %s.", libraryUserID)
		return nil
	}
	printInfo(out, "Learned ingredients for %s (%d):", libraryUserID, len(entries))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-26s %-24s %6s %8s %10s %10s\n", "ID", "NAME", "N", "CONF", "KCAL/100G", "LAST USED")
	for _, e := range entries {
		fmt.Fprintf(out, "%-26s %-24s %6d %8.2f %10.1f %10s\n",
			e.ID, truncate(e.IngredientName, 24), e.SampleSize, e.ConfidenceScore, e.Calories.Mean, formatRelativeTime(e.LastUsed))
	}
	return nil
}

func runLibraryShow(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	entry, err := client.Lookup(cmd.Context(), libraryUserID, args[0])
	if errors.Is(err, nutrilens.ErrNotFound) {
		return fmt.Errorf("no library entry matches %q", args[0])
	}
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, entry)
	}
	out := cmd.OutOrStdout()
	printInfo(out, "%s", entry.IngredientName)
	printIngredient(out, entry)
	return nil
}

func runLibraryForget(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Forget(cmd.Context(), libraryUserID, args[0]); err != nil {
		if errors.Is(err, nutrilens.ErrNotFound) {
			return fmt.Errorf("entry %s not found for %s", args[0], libraryUserID)
		}
		return fmt.Errorf("forget: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, map[string]string{"id": args[0], "user_id": libraryUserID})
	}
	printSuccess(cmd.OutOrStdout(), "Removed %s", args[0])
	return nil
}

func printIngredient(out io.Writer, e *nutrilens.UserIngredient) {
	printField(out, "ID", "%s", e.ID)
	printField(out, "Normalized", "%s", e.NormalizedName)
	printField(out, "Samples", "%d", e.SampleSize)
	printField(out, "Confidence", "%.2f", e.ConfidenceScore)
	printField(out, "Calories", "%.1f kcal/100g (sd %.1f)", e.Calories.Mean, e.StdDevCalories())
	printField(out, "Protein", "%.1f g/100g", e.Protein.Mean)
	printField(out, "Fat", "%.1f g/100g", e.Fat.Mean)
	printField(out, "Carbs", "%.1f g/100g", e.Carbohydrates.Mean)
	if e.TypicalQuantity != nil {
		printField(out, "Typical", "%.1f %s", *e.TypicalQuantity, e.TypicalUnit)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
