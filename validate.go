package nutrilens

import (
	"fmt"
	"math"
)

// Atwater energy factors in kcal per gram.
const (
	KcalPerGramProtein = 4.0
	KcalPerGramFat     = 9.0
	KcalPerGramCarbs   = 4.0
)

// Plausibility thresholds.
const (
	energyMismatchTolerance = 0.20
	macroCalorieSlack       = 1.10

	highCaloriesThreshold = 2500.0
	highSodiumThreshold   = 3000.0
	highFiberThreshold    = 30.0
	highProteinThreshold  = 150.0
)

// NewErrorIssue creates an ERROR issue. The issue holds copies of actual
// and suggested.
func NewErrorIssue(field, message string, actual, suggested *float64) ValidationIssue {
	return ValidationIssue{Severity: SeverityError, Field: field, Message: message, ActualValue: copyFloat(actual), SuggestedFix: copyFloat(suggested)}
}

// NewWarningIssue creates a WARNING issue.
func NewWarningIssue(field, message string, actual, suggested *float64) ValidationIssue {
	return ValidationIssue{Severity: SeverityWarning, Field: field, Message: message, ActualValue: copyFloat(actual), SuggestedFix: copyFloat(suggested)}
}

// NewValidationResult builds a result whose Valid flag is derived from issues.
func NewValidationResult(issues []ValidationIssue) ValidationResult {
	if issues == nil {
		issues = []ValidationIssue{}
	}
	valid := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			valid = false
			break
		}
	}
	return ValidationResult{Valid: valid, Issues: issues}
}

// Errors returns the ERROR issues in order.
func (r ValidationResult) Errors() []ValidationIssue {
	return r.filter(SeverityError)
}

// Warnings returns the WARNING issues in order.
func (r ValidationResult) Warnings() []ValidationIssue {
	return r.filter(SeverityWarning)
}

// HasWarnings reports whether any WARNING issue was raised.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings()) > 0
}

func (r ValidationResult) filter(sev Severity) []ValidationIssue {
	out := []ValidationIssue{}
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Validate checks an AI nutrition estimate against energy balance, macro
// subset relationships, and outlier thresholds. It is pure and safe for
// concurrent use. Missing values skip the checks that need them.
func Validate(est NutritionEstimate) ValidationResult {
	var issues []ValidationIssue

	issues = append(issues, checkEnergyBalance(est)...)
	issues = append(issues, checkMacroRatios(est)...)

	if exceeds(est.FiberG, est.CarbohydratesG) {
		issues = append(issues, NewErrorIssue(FieldFiber,
			fmt.Sprintf("Fiber (%.1fg) cannot exceed total carbohydrates (%.1fg)", *est.FiberG, *est.CarbohydratesG),
			est.FiberG, ptr(*est.CarbohydratesG)))
	}
	if exceeds(est.SugarG, est.CarbohydratesG) {
		issues = append(issues, NewErrorIssue(FieldSugar,
			fmt.Sprintf("Sugar (%.1fg) cannot exceed total carbohydrates (%.1fg)", *est.SugarG, *est.CarbohydratesG),
			est.SugarG, ptr(*est.CarbohydratesG)))
	}
	if exceeds(est.SaturatedFatG, est.FatG) {
		issues = append(issues, NewErrorIssue(FieldSaturatedFat,
			fmt.Sprintf("Saturated fat (%.1fg) cannot exceed total fat (%.1fg)", *est.SaturatedFatG, *est.FatG),
			est.SaturatedFatG, ptr(*est.FatG)))
	}

	issues = append(issues, checkOutliers(est)...)

	return NewValidationResult(issues)
}

func checkEnergyBalance(est NutritionEstimate) []ValidationIssue {
	if est.ProteinG == nil || est.FatG == nil || est.CarbohydratesG == nil || est.Calories == nil {
		return nil
	}
	expected := *est.ProteinG*KcalPerGramProtein + *est.FatG*KcalPerGramFat + *est.CarbohydratesG*KcalPerGramCarbs
	if !(expected > 0) {
		return nil
	}
	deviation := math.Abs(*est.Calories-expected) / expected
	if !(deviation > energyMismatchTolerance) {
		return nil
	}
	return []ValidationIssue{NewWarningIssue(FieldCalories,
		fmt.Sprintf("Energy mismatch: %.0f kcal reported, macros imply %.0f kcal (%.0f%% off)", *est.Calories, expected, deviation*100),
		est.Calories, ptr(expected))}
}

func checkMacroRatios(est NutritionEstimate) []ValidationIssue {
	if est.Calories == nil || !(*est.Calories > 0) {
		return nil
	}
	limit := *est.Calories * macroCalorieSlack

	macros := []struct {
		field  string
		label  string
		grams  *float64
		factor float64
	}{
		{FieldProtein, "Protein", est.ProteinG, KcalPerGramProtein},
		{FieldFat, "Fat", est.FatG, KcalPerGramFat},
		{FieldCarbohydrates, "Carbohydrates", est.CarbohydratesG, KcalPerGramCarbs},
	}

	var issues []ValidationIssue
	for _, m := range macros {
		if m.grams == nil {
			continue
		}
		kcal := *m.grams * m.factor
		if kcal > limit {
			issues = append(issues, NewErrorIssue(m.field,
				fmt.Sprintf("%s (%.1fg = %.0f kcal) exceeds total calories (%.0f kcal)", m.label, *m.grams, kcal, *est.Calories),
				m.grams, ptr(*est.Calories/m.factor)))
		}
	}
	return issues
}

func checkOutliers(est NutritionEstimate) []ValidationIssue {
	var issues []ValidationIssue
	if above(est.Calories, highCaloriesThreshold) {
		issues = append(issues, NewWarningIssue(FieldCalories,
			fmt.Sprintf("Very high calorie count for a single meal: %.0f kcal", *est.Calories), est.Calories, nil))
	}
	if above(est.SodiumMg, highSodiumThreshold) {
		issues = append(issues, NewWarningIssue(FieldSodium,
			fmt.Sprintf("Very high sodium: %.0fmg", *est.SodiumMg), est.SodiumMg, nil))
	}
	if above(est.FiberG, highFiberThreshold) {
		issues = append(issues, NewWarningIssue(FieldFiber,
			fmt.Sprintf("Very high fiber: %.1fg", *est.FiberG), est.FiberG, nil))
	}
	if above(est.ProteinG, highProteinThreshold) {
		issues = append(issues, NewWarningIssue(FieldProtein,
			fmt.Sprintf("Very high protein: %.1fg", *est.ProteinG), est.ProteinG, nil))
	}
	return issues
}

// exceeds reports part > whole when both are present. Equality is allowed.
func exceeds(part, whole *float64) bool {
	return part != nil && whole != nil && *part > *whole
}

func above(v *float64, threshold float64) bool {
	return v != nil && *v > threshold
}

func ptr(v float64) *float64 {
	return &v
}
