package main

import (
	"fmt"

	"github.com/anantham/nutrilens"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report AI estimate accuracy from logged corrections",
	Long: `Summarize the correction log: error by field and by location type,
systematic bias, and how well the AI's stated confidence predicts its
error.

Example:
  nutrilens report
  nutrilens report --min-confidence 0.9
  nutrilens report --user-id u1 --json`,
	RunE: runReport,
}

var (
	reportUserID        string
	reportMinConfidence float64
)

func init() {
	reportCmd.Flags().StringVar(&reportUserID, "user-id", "", "Only this user's per-field accuracy")
	reportCmd.Flags().Float64Var(&reportMinConfidence, "min-confidence", nutrilens.DefaultCalibrationMin, "Calibration threshold")
}

// accuracyReport is the JSON form of the full report.
type accuracyReport struct {
	ByField     []nutrilens.FieldAccuracy    `json:"by_field"`
	ByLocation  []nutrilens.LocationAccuracy `json:"by_location"`
	Bias        []nutrilens.FieldBias        `json:"bias"`
	Calibration nutrilens.Calibration        `json:"calibration"`
	Buckets     []nutrilens.Calibration      `json:"buckets"`
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportMinConfidence < nutrilens.ConfidenceMin || reportMinConfidence > nutrilens.ConfidenceMax {
		return fmt.Errorf("--min-confidence must be within [0, 1]")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	agg := client.Accuracy()

	if reportUserID != "" {
		fields, err := agg.AccuracyForUser(ctx, reportUserID)
		if err != nil {
			return fmt.Errorf("user accuracy: %w", err)
		}
		if outputJSON {
			return outputAsJSON(cmd, fields)
		}
		out := cmd.OutOrStdout()
		if len(fields) == 0 {
			printWarning(out, "No corrections recorded for %s.", reportUserID)
			return nil
		}
		printInfo(out, "Accuracy for %s (worst first):", reportUserID)
		for _, f := range fields {
			fmt.Fprintf(out, "  %-18s mean |error| %7.2f%%  mean abs %9.2f  n=%d\n",
				f.FieldName, f.MeanAbsPercentError, f.MeanAbsoluteError, f.Count)
		}
		return nil
	}

	var r accuracyReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.ByField, err = agg.OverallAccuracyByField(gctx)
		return err
	})
	g.Go(func() (err error) {
		r.ByLocation, err = agg.AccuracyByLocation(gctx)
		return err
	})
	g.Go(func() (err error) {
		r.Bias, err = agg.DetectSystematicBias(gctx)
		return err
	})
	g.Go(func() (err error) {
		r.Calibration, err = agg.ConfidenceCalibration(gctx, reportMinConfidence)
		return err
	})
	g.Go(func() (err error) {
		r.Buckets, err = agg.ConfidenceBuckets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, r)
	}
	fmt.Fprint(cmd.OutOrStdout(), nutrilens.RenderReport(r.ByField, r.ByLocation, r.Bias, r.Calibration, r.Buckets))
	return nil
}
