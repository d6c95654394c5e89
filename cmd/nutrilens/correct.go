package main

import (
	"fmt"

	"github.com/anantham/nutrilens"
	"github.com/spf13/cobra"
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Log a user correction of an AI estimate",
	Long: `Log a user's correction of AI-estimated nutrition values.

Either name a single field with --field, --ai and --user, or pass the
AI and user versions of the whole estimate as JSON files; then one
correction is logged for every field the user changed.

Example:
  nutrilens correct --field calories --ai 250 --user 500 --user-id u1 --location restaurant
  nutrilens correct --ai-file ai.json --user-file edited.json --user-id u1 --meal-id m42`,
	RunE: runCorrect,
}

var (
	correctField       string
	correctAI          float64
	correctUser        float64
	correctAIFile      string
	correctUserFile    string
	correctUserID      string
	correctMealID      string
	correctConfidence  float64
	correctLocation    string
	correctMealType    string
	correctDescription string
)

func init() {
	correctCmd.Flags().StringVar(&correctField, "field", "", "Corrected field, e.g. calories or protein_g")
	correctCmd.Flags().Float64Var(&correctAI, "ai", 0, "AI value of the field")
	correctCmd.Flags().Float64Var(&correctUser, "user", 0, "User value of the field")
	correctCmd.Flags().StringVar(&correctAIFile, "ai-file", "", "AI estimate JSON (- for stdin)")
	correctCmd.Flags().StringVar(&correctUserFile, "user-file", "", "User-edited estimate JSON")
	correctCmd.Flags().StringVar(&correctUserID, "user-id", "", "User who made the correction")
	correctCmd.Flags().StringVar(&correctMealID, "meal-id", "", "Meal the correction belongs to")
	correctCmd.Flags().Float64Var(&correctConfidence, "confidence", 0, "AI confidence (0.0-1.0) of the original estimate")
	correctCmd.Flags().StringVar(&correctLocation, "location", "", "Location type, e.g. home or restaurant")
	correctCmd.Flags().StringVar(&correctMealType, "meal-type", "", "breakfast, lunch, dinner or snack")
	correctCmd.Flags().StringVar(&correctDescription, "description", "", "Meal description")

	correctCmd.MarkFlagsRequiredTogether("ai-file", "user-file")
	correctCmd.MarkFlagsMutuallyExclusive("field", "ai-file")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	if correctField == "" && correctAIFile == "" {
		return fmt.Errorf("either --field or --ai-file/--user-file is required")
	}

	cc := nutrilens.CorrectionContext{
		UserID:          correctUserID,
		MealID:          correctMealID,
		LocationType:    correctLocation,
		MealType:        correctMealType,
		MealDescription: correctDescription,
	}
	if cmd.Flags().Changed("confidence") {
		if correctConfidence < nutrilens.ConfidenceMin || correctConfidence > nutrilens.ConfidenceMax {
			return fmt.Errorf("--confidence must be within [0, 1]")
		}
		c := correctConfidence
		cc.ConfidenceScore = &c
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	var recs []nutrilens.CorrectionRecord
	if correctField != "" {
		var ai, user *float64
		if cmd.Flags().Changed("ai") {
			ai = &correctAI
		}
		if cmd.Flags().Changed("user") {
			user = &correctUser
		}
		rec, err := client.RecordCorrection(cmd.Context(), correctField, ai, user, cc)
		if err != nil {
			return fmt.Errorf("record correction: %w", err)
		}
		recs = append(recs, *rec)
	} else {
		aiEst, err := readEstimate(cmd, correctAIFile)
		if err != nil {
			return err
		}
		userEst, err := readEstimate(cmd, correctUserFile)
		if err != nil {
			return err
		}
		recs, err = client.RecordEstimateCorrections(cmd.Context(), aiEst, userEst, cc)
		if err != nil {
			return fmt.Errorf("record corrections: %w", err)
		}
	}

	if outputJSON {
		if recs == nil {
			recs = []nutrilens.CorrectionRecord{}
		}
		return outputAsJSON(cmd, recs)
	}

	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		printWarning(out, "No changed fields; nothing recorded.")
		return nil
	}
	printSuccess(out, "Recorded %d correction(s)", len(recs))
	for _, r := range recs {
		errText := "not derivable"
		if r.PercentError != nil {
			errText = fmt.Sprintf("%+.2f%% (abs %.2f)", *r.PercentError, *r.AbsoluteError)
		}
		fmt.Fprintf(out, "  %-16s AI %-8s user %-8s error %s\n", r.FieldName, formatOptional(r.AIValue), formatOptional(r.UserValue), errText)
	}
	return nil
}
