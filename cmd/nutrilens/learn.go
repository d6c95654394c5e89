package main

import (
	"fmt"

	"github.com/anantham/nutrilens"
	"github.com/spf13/cobra"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Teach a user's ingredient library",
	Long: `Fold one corrected ingredient line into a user's ingredient library.

Nutrient values are totals for the given quantity; they are converted to
per-100g values using the unit. A similar existing entry (same name after
normalization, or a close spelling) is updated instead of duplicated.

Example:
  nutrilens learn --user-id u1 --name "Idli" --quantity 2 --unit pieces --calories 116 --protein-g 4
  nutrilens learn --user-id u1 --name "cooked rice" --quantity 1 --unit cup --calories 205 --json`,
	RunE: runLearn,
}

var (
	learnUserID   string
	learnName     string
	learnQuantity float64
	learnUnit     string
)

func init() {
	learnCmd.Flags().StringVar(&learnUserID, "user-id", "", "Owner of the library (required)")
	learnCmd.Flags().StringVar(&learnName, "name", "", "Ingredient name (required)")
	learnCmd.Flags().Float64Var(&learnQuantity, "quantity", 0, "Amount eaten (required)")
	learnCmd.Flags().StringVar(&learnUnit, "unit", "", "Unit of quantity, e.g. g, cup, piece (required)")
	learnCmd.Flags().Float64("calories", 0, "kcal for the quantity")
	learnCmd.Flags().Float64("protein-g", 0, "Protein grams for the quantity")
	learnCmd.Flags().Float64("fat-g", 0, "Fat grams for the quantity")
	learnCmd.Flags().Float64("carbohydrates-g", 0, "Carbohydrate grams for the quantity")

	learnCmd.MarkFlagRequired("user-id")
	learnCmd.MarkFlagRequired("name")
	learnCmd.MarkFlagRequired("quantity")
	learnCmd.MarkFlagRequired("unit")
}

func optionalFlag(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		return nil
	}
	return &v
}

func runLearn(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	qty := learnQuantity
	obs := &nutrilens.IngredientObservation{
		Name:           learnName,
		Quantity:       &qty,
		Unit:           learnUnit,
		Calories:       optionalFlag(cmd, "calories"),
		ProteinG:       optionalFlag(cmd, "protein-g"),
		FatG:           optionalFlag(cmd, "fat-g"),
		CarbohydratesG: optionalFlag(cmd, "carbohydrates-g"),
	}

	res, err := client.Learn(cmd.Context(), obs, learnUserID)
	if err != nil {
		return fmt.Errorf("learn: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	if res.Entry == nil {
		printWarning(out, "Not learned: %s", res.Reason)
		return nil
	}
	printSuccess(out, "Ingredient %s: %s", res.Action, res.Entry.IngredientName)
	printIngredient(out, res.Entry)
	return nil
}
