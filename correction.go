package nutrilens

import (
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// CorrectionErrors derives the signed percent error and absolute error of an
// AI value against a user value. Both results are nil when either input is
// missing or the user value is zero.
//
//	percent  = round2((user - ai) / user * 100)
//	absolute = |user - ai|
func CorrectionErrors(aiValue, userValue *float64) (percentError, absoluteError *float64) {
	if aiValue == nil || userValue == nil || *userValue == 0 {
		return nil, nil
	}
	diff := *userValue - *aiValue
	pct := round2(diff / *userValue * 100)
	abs := math.Abs(diff)
	if math.IsNaN(pct) || math.IsNaN(abs) {
		return nil, nil
	}
	return &pct, &abs
}

// NewCorrectionRecord builds a correction record with derived errors, a new
// ID, and CorrectedAt defaulted to now.
func NewCorrectionRecord(fieldName string, aiValue, userValue *float64, cc CorrectionContext) (*CorrectionRecord, error) {
	fieldName = strings.TrimSpace(fieldName)
	if fieldName == "" {
		return nil, ErrEmptyFieldName
	}
	if cc.CorrectedAt.IsZero() {
		cc.CorrectedAt = time.Now().UTC()
	}
	rec := &CorrectionRecord{
		ID:                ulid.Make().String(),
		FieldName:         fieldName,
		AIValue:           copyFloat(aiValue),
		UserValue:         copyFloat(userValue),
		CorrectionContext: cc,
	}
	rec.Recompute()
	return rec, nil
}

// Recompute re-derives PercentError and AbsoluteError from the current
// AIValue and UserValue.
func (r *CorrectionRecord) Recompute() {
	r.PercentError, r.AbsoluteError = CorrectionErrors(r.AIValue, r.UserValue)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Fields lists the estimate fields in report order.
var Fields = []string{
	FieldCalories, FieldProtein, FieldFat, FieldCarbohydrates,
	FieldFiber, FieldSugar, FieldSaturatedFat, FieldSodium,
}

// FieldValue returns the value of a named field of est, or nil when the
// field is unknown or unset.
func (est NutritionEstimate) FieldValue(field string) *float64 {
	switch field {
	case FieldCalories:
		return est.Calories
	case FieldProtein:
		return est.ProteinG
	case FieldFat:
		return est.FatG
	case FieldCarbohydrates:
		return est.CarbohydratesG
	case FieldFiber:
		return est.FiberG
	case FieldSugar:
		return est.SugarG
	case FieldSaturatedFat:
		return est.SaturatedFatG
	case FieldSodium:
		return est.SodiumMg
	}
	return nil
}

// ChangedFields returns the fields whose value differs between an AI
// estimate and the user's version of it. A field unset on the user side is
// not a correction.
func ChangedFields(ai, user NutritionEstimate) []string {
	var changed []string
	for _, f := range Fields {
		u := user.FieldValue(f)
		if u == nil {
			continue
		}
		a := ai.FieldValue(f)
		if a == nil || *a != *u {
			changed = append(changed, f)
		}
	}
	return changed
}
