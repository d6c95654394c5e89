package nutrilens_test

import (
	"strings"
	"testing"

	"github.com/anantham/nutrilens"
)

func fp(v float64) *float64 { return &v }

func TestValidate_EmptyEstimateIsValid(t *testing.T) {
	res := nutrilens.Validate(nutrilens.NutritionEstimate{})
	if !res.Valid {
		t.Error("Valid = false for empty estimate, want true")
	}
	if res.Issues == nil || len(res.Issues) != 0 {
		t.Errorf("Issues = %v, want empty non-nil slice", res.Issues)
	}
}

func TestValidate_FiberExceedsCarbs(t *testing.T) {
	res := nutrilens.Validate(nutrilens.NutritionEstimate{FiberG: fp(50), CarbohydratesG: fp(30)})
	if res.Valid {
		t.Fatal("Valid = true, want false")
	}
	errs := res.Errors()
	if len(errs) != 1 {
		t.Fatalf("len(Errors()) = %d, want 1: %+v", len(errs), errs)
	}
	if errs[0].Field != nutrilens.FieldFiber {
		t.Errorf("Field = %q, want %q", errs[0].Field, nutrilens.FieldFiber)
	}
	if !strings.Contains(errs[0].Message, "cannot exceed total carbohydrates") {
		t.Errorf("Message = %q", errs[0].Message)
	}
	if errs[0].SuggestedFix == nil || *errs[0].SuggestedFix != 30 {
		t.Errorf("SuggestedFix = %v, want 30", errs[0].SuggestedFix)
	}
}

func TestValidate_SubsetChecks(t *testing.T) {
	tests := []struct {
		name      string
		est       nutrilens.NutritionEstimate
		wantField string
	}{
		{"fiber over carbs", nutrilens.NutritionEstimate{FiberG: fp(12), CarbohydratesG: fp(10)}, nutrilens.FieldFiber},
		{"sugar over carbs", nutrilens.NutritionEstimate{SugarG: fp(12), CarbohydratesG: fp(10)}, nutrilens.FieldSugar},
		{"saturated over fat", nutrilens.NutritionEstimate{SaturatedFatG: fp(8), FatG: fp(5)}, nutrilens.FieldSaturatedFat},
		{"fiber equals carbs", nutrilens.NutritionEstimate{FiberG: fp(10), CarbohydratesG: fp(10)}, ""},
		{"sugar equals carbs", nutrilens.NutritionEstimate{SugarG: fp(10), CarbohydratesG: fp(10)}, ""},
		{"saturated equals fat", nutrilens.NutritionEstimate{SaturatedFatG: fp(5), FatG: fp(5)}, ""},
		{"fiber under carbs", nutrilens.NutritionEstimate{FiberG: fp(3), CarbohydratesG: fp(10)}, ""},
		{"carbs missing", nutrilens.NutritionEstimate{FiberG: fp(12)}, ""},
		{"fat missing", nutrilens.NutritionEstimate{SaturatedFatG: fp(8)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := nutrilens.Validate(tt.est)
			errs := res.Errors()
			if tt.wantField == "" {
				if !res.Valid || len(errs) != 0 {
					t.Errorf("got errors %+v, want none", errs)
				}
				return
			}
			if res.Valid || len(errs) != 1 || errs[0].Field != tt.wantField {
				t.Errorf("Errors() = %+v, want one on %s", errs, tt.wantField)
			}
		})
	}
}

func TestValidate_PerfectAtwaterNeverWarns(t *testing.T) {
	for _, m := range [][3]float64{{0, 0, 1}, {10, 5, 30}, {25, 10, 60}, {0.3, 0.7, 0.1}, {100, 100, 100}} {
		p, f, c := m[0], m[1], m[2]
		cal := p*4 + f*9 + c*4
		res := nutrilens.Validate(nutrilens.NutritionEstimate{
			Calories: fp(cal), ProteinG: fp(p), FatG: fp(f), CarbohydratesG: fp(c),
		})
		for _, w := range res.Warnings() {
			if strings.HasPrefix(w.Message, "Energy mismatch") {
				t.Errorf("p=%v f=%v c=%v: unexpected energy warning %q", p, f, c, w.Message)
			}
		}
	}
}

func TestValidate_EnergyMismatchIsWarningOnly(t *testing.T) {
	// macros imply 10*4 + 10*9 + 10*4 = 170 kcal
	res := nutrilens.Validate(nutrilens.NutritionEstimate{
		Calories: fp(300), ProteinG: fp(10), FatG: fp(10), CarbohydratesG: fp(10),
	})
	if !res.Valid {
		t.Fatalf("Valid = false, want true: %+v", res.Issues)
	}
	warns := res.Warnings()
	if len(warns) != 1 || warns[0].Field != nutrilens.FieldCalories {
		t.Fatalf("Warnings() = %+v, want one on calories", warns)
	}
	if warns[0].SuggestedFix == nil || *warns[0].SuggestedFix != 170 {
		t.Errorf("SuggestedFix = %v, want 170", warns[0].SuggestedFix)
	}
}

func TestValidate_EnergyWithinTolerance(t *testing.T) {
	// 170 expected, 200 is 17.6% off
	res := nutrilens.Validate(nutrilens.NutritionEstimate{
		Calories: fp(200), ProteinG: fp(10), FatG: fp(10), CarbohydratesG: fp(10),
	})
	if res.HasWarnings() {
		t.Errorf("HasWarnings() = true, want false: %+v", res.Issues)
	}
}

func TestValidate_EnergySkippedWhenMacroMissing(t *testing.T) {
	res := nutrilens.Validate(nutrilens.NutritionEstimate{Calories: fp(900), ProteinG: fp(10), FatG: fp(10)})
	if res.HasWarnings() {
		t.Errorf("HasWarnings() = true, want false: %+v", res.Issues)
	}
}

func TestValidate_MacroExceedsCalories(t *testing.T) {
	// 30g fat = 270 kcal against 200 kcal total (limit 220)
	res := nutrilens.Validate(nutrilens.NutritionEstimate{Calories: fp(200), FatG: fp(30)})
	errs := res.Errors()
	if len(errs) != 1 || errs[0].Field != nutrilens.FieldFat {
		t.Fatalf("Errors() = %+v, want one on fat_g", errs)
	}
	if !strings.Contains(errs[0].Message, "exceeds total calories") {
		t.Errorf("Message = %q", errs[0].Message)
	}
}

func TestValidate_MacroWithinSlack(t *testing.T) {
	// 54g protein = 216 kcal, within 200 * 1.10
	res := nutrilens.Validate(nutrilens.NutritionEstimate{Calories: fp(200), ProteinG: fp(54)})
	if !res.Valid {
		t.Errorf("Valid = false, want true: %+v", res.Issues)
	}
}

func TestValidate_MacroRatioSkippedForZeroCalories(t *testing.T) {
	res := nutrilens.Validate(nutrilens.NutritionEstimate{Calories: fp(0), ProteinG: fp(10)})
	if len(res.Errors()) != 0 {
		t.Errorf("Errors() = %+v, want none", res.Errors())
	}
}

func TestValidate_Outliers(t *testing.T) {
	res := nutrilens.Validate(nutrilens.NutritionEstimate{
		Calories: fp(2600),
		SodiumMg: fp(3500),
		FiberG:   fp(35),
		ProteinG: fp(160),
	})
	fields := map[string]bool{}
	for _, w := range res.Warnings() {
		if strings.HasPrefix(w.Message, "Very high") {
			fields[w.Field] = true
		}
	}
	for _, f := range []string{nutrilens.FieldCalories, nutrilens.FieldSodium, nutrilens.FieldFiber, nutrilens.FieldProtein} {
		if !fields[f] {
			t.Errorf("missing outlier warning on %s", f)
		}
	}
	if !res.Valid {
		t.Errorf("Valid = false, want true: %+v", res.Errors())
	}
}

func TestValidate_NegativeInputsDoNotPanic(t *testing.T) {
	res := nutrilens.Validate(nutrilens.NutritionEstimate{
		Calories: fp(-10), ProteinG: fp(-1), FatG: fp(-2), CarbohydratesG: fp(-3),
		FiberG: fp(-4), SugarG: fp(-5), SaturatedFatG: fp(-6), SodiumMg: fp(-7),
	})
	_ = res.Valid
}

func TestValidationResult_ValidIffNoErrors(t *testing.T) {
	warnOnly := nutrilens.NewValidationResult([]nutrilens.ValidationIssue{
		nutrilens.NewWarningIssue("calories", "w", nil, nil),
	})
	if !warnOnly.Valid {
		t.Error("warning-only result Valid = false, want true")
	}

	mixed := nutrilens.NewValidationResult([]nutrilens.ValidationIssue{
		nutrilens.NewWarningIssue("calories", "w", nil, nil),
		nutrilens.NewErrorIssue("fiber_g", "e", nil, nil),
	})
	if mixed.Valid {
		t.Error("result with ERROR Valid = true, want false")
	}
	if len(mixed.Errors()) != 1 || len(mixed.Warnings()) != 1 {
		t.Errorf("Errors()=%d Warnings()=%d, want 1 and 1", len(mixed.Errors()), len(mixed.Warnings()))
	}
}

func TestValidate_IssuesDoNotAliasEstimate(t *testing.T) {
	est := nutrilens.NutritionEstimate{FiberG: fp(50), CarbohydratesG: fp(30), SodiumMg: fp(4000)}
	res := nutrilens.Validate(est)
	if len(res.Issues) < 2 {
		t.Fatalf("Issues = %+v, want fiber error and sodium warning", res.Issues)
	}

	*est.FiberG = 1
	*est.CarbohydratesG = 2
	*est.SodiumMg = 3

	for _, issue := range res.Issues {
		switch issue.Field {
		case nutrilens.FieldFiber:
			if issue.ActualValue == nil || *issue.ActualValue != 50 {
				t.Errorf("fiber ActualValue = %v, want 50", issue.ActualValue)
			}
			if issue.Severity == nutrilens.SeverityError && (issue.SuggestedFix == nil || *issue.SuggestedFix != 30) {
				t.Errorf("fiber SuggestedFix = %v, want 30", issue.SuggestedFix)
			}
		case nutrilens.FieldSodium:
			if issue.ActualValue == nil || *issue.ActualValue != 4000 {
				t.Errorf("sodium ActualValue = %v, want 4000", issue.ActualValue)
			}
		}
	}
}

func TestNewIssue_CopiesValues(t *testing.T) {
	actual, suggested := 10.0, 5.0
	issue := nutrilens.NewErrorIssue(nutrilens.FieldSugar, "too much", &actual, &suggested)
	actual, suggested = 99, 99
	if *issue.ActualValue != 10 || *issue.SuggestedFix != 5 {
		t.Errorf("issue = %v / %v, want 10 / 5", *issue.ActualValue, *issue.SuggestedFix)
	}
	if w := nutrilens.NewWarningIssue(nutrilens.FieldSodium, "high", nil, nil); w.ActualValue != nil || w.SuggestedFix != nil {
		t.Errorf("nil inputs produced %+v", w)
	}
}
