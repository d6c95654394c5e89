package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/anantham/nutrilens"
	"github.com/spf13/cobra"
)

var errEstimateRejected = errors.New("estimate rejected")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an AI nutrition estimate for implausible values",
	Long: `Check an AI nutrition estimate against physical limits: macro energy
balance, parts exceeding wholes, and outlier values.

The estimate comes from field flags or from a JSON file (use - for stdin).
Exits non-zero when the estimate has ERROR issues.

Example:
  nutrilens validate --calories 450 --protein-g 20 --fat-g 15 --carbohydrates-g 60
  nutrilens validate --file estimate.json --json
  echo '{"fiber_g":50,"carbohydrates_g":30}' | nutrilens validate --file -`,
	RunE: runValidate,
}

var validateFile string

func init() {
	validateCmd.Flags().StringVar(&validateFile, "file", "", "JSON estimate file (- for stdin)")
	addEstimateFlags(validateCmd)
}

// estimateFlagNames maps CLI flags to estimate fields.
var estimateFlagNames = map[string]string{
	"calories":        nutrilens.FieldCalories,
	"protein-g":       nutrilens.FieldProtein,
	"fat-g":           nutrilens.FieldFat,
	"carbohydrates-g": nutrilens.FieldCarbohydrates,
	"fiber-g":         nutrilens.FieldFiber,
	"sugar-g":         nutrilens.FieldSugar,
	"saturated-fat-g": nutrilens.FieldSaturatedFat,
	"sodium-mg":       nutrilens.FieldSodium,
}

func addEstimateFlags(cmd *cobra.Command) {
	for flag, field := range estimateFlagNames {
		cmd.Flags().Float64(flag, 0, fmt.Sprintf("Estimated %s", field))
	}
}

// estimateFromFlags builds an estimate from the flags that were set.
func estimateFromFlags(cmd *cobra.Command) (nutrilens.NutritionEstimate, error) {
	values := make(map[string]float64)
	for flag, field := range estimateFlagNames {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetFloat64(flag)
		if err != nil {
			return nutrilens.NutritionEstimate{}, err
		}
		values[field] = v
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nutrilens.NutritionEstimate{}, err
	}
	var est nutrilens.NutritionEstimate
	err = json.Unmarshal(data, &est)
	return est, err
}

// readEstimate decodes a JSON estimate from path, or stdin for "-".
func readEstimate(cmd *cobra.Command, path string) (nutrilens.NutritionEstimate, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nutrilens.NutritionEstimate{}, fmt.Errorf("open estimate: %w", err)
		}
		defer f.Close()
		r = f
	}
	var est nutrilens.NutritionEstimate
	if err := json.NewDecoder(r).Decode(&est); err != nil {
		return nutrilens.NutritionEstimate{}, fmt.Errorf("decode estimate %s: %w", path, err)
	}
	return est, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		est nutrilens.NutritionEstimate
		err error
	)
	if validateFile != "" {
		est, err = readEstimate(cmd, validateFile)
	} else {
		est, err = estimateFromFlags(cmd)
	}
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	res := client.Validate(cmd.Context(), est)

	if outputJSON {
		if err := outputAsJSON(cmd, res); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		if res.Valid {
			printSuccess(out, "Estimate is plausible")
		} else {
			printError(out, "Estimate rejected: physically implausible")
		}
		for _, issue := range res.Issues {
			printIssue(out, issue)
		}
	}

	if !res.Valid {
		return errEstimateRejected
	}
	return nil
}
