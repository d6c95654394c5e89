package nutrilens

import "time"

// Nutrient field names used in validation issues and correction records.
const (
	FieldCalories      = "calories"
	FieldProtein       = "protein_g"
	FieldFat           = "fat_g"
	FieldCarbohydrates = "carbohydrates_g"
	FieldFiber         = "fiber_g"
	FieldSugar         = "sugar_g"
	FieldSaturatedFat  = "saturated_fat_g"
	FieldSodium        = "sodium_mg"
)

// NutritionEstimate is a parsed AI nutrition estimate for one meal.
// A nil field means the AI did not report it.
type NutritionEstimate struct {
	Calories       *float64 `json:"calories,omitempty"`
	ProteinG       *float64 `json:"protein_g,omitempty"`
	FatG           *float64 `json:"fat_g,omitempty"`
	CarbohydratesG *float64 `json:"carbohydrates_g,omitempty"`
	FiberG         *float64 `json:"fiber_g,omitempty"`
	SugarG         *float64 `json:"sugar_g,omitempty"`
	SaturatedFatG  *float64 `json:"saturated_fat_g,omitempty"`
	SodiumMg       *float64 `json:"sodium_mg,omitempty"`
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// ValidationIssue is a single finding against a nutrition estimate.
type ValidationIssue struct {
	Severity     Severity `json:"severity"`
	Field        string   `json:"field"`
	Message      string   `json:"message"`
	ActualValue  *float64 `json:"actual_value,omitempty"`
	SuggestedFix *float64 `json:"suggested_fix,omitempty"`
}

// ValidationResult is the verdict for a nutrition estimate.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}

// CorrectionContext carries the meal context recorded alongside a correction.
type CorrectionContext struct {
	UserID          string     `json:"user_id,omitempty"`
	MealID          string     `json:"meal_id,omitempty"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty"`
	LocationType    string     `json:"location_type,omitempty"`
	MealType        string     `json:"meal_type,omitempty"`
	MealDescription string     `json:"meal_description,omitempty"`
	AIAnalyzedAt    *time.Time `json:"ai_analyzed_at,omitempty"`
	CorrectedAt     time.Time  `json:"corrected_at,omitempty"`
}

// CorrectionRecord is one field-level correction of an AI value by a user.
// PercentError and AbsoluteError are derived from AIValue and UserValue.
type CorrectionRecord struct {
	ID            string   `json:"id"`
	FieldName     string   `json:"field_name"`
	AIValue       *float64 `json:"ai_value,omitempty"`
	UserValue     *float64 `json:"user_value,omitempty"`
	PercentError  *float64 `json:"percent_error,omitempty"`
	AbsoluteError *float64 `json:"absolute_error,omitempty"`
	CorrectionContext
}

// IngredientObservation is one AI-extracted, possibly user-corrected,
// ingredient line item.
type IngredientObservation struct {
	Name           string   `json:"name"`
	Quantity       *float64 `json:"quantity,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	Calories       *float64 `json:"calories,omitempty"`
	ProteinG       *float64 `json:"protein_g,omitempty"`
	FatG           *float64 `json:"fat_g,omitempty"`
	CarbohydratesG *float64 `json:"carbohydrates_g,omitempty"`
}

// UserIngredient is a learned, per-user ingredient profile. All nutrient
// statistics are per 100 g.
type UserIngredient struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	IngredientName  string      `json:"ingredient_name"`
	NormalizedName  string      `json:"normalized_name"`
	Calories        RunningStat `json:"calories"`
	Protein         RunningStat `json:"protein"`
	Fat             RunningStat `json:"fat"`
	Carbohydrates   RunningStat `json:"carbohydrates"`
	SampleSize      int         `json:"sample_size"`
	ConfidenceScore float64     `json:"confidence_score"`
	TypicalQuantity *float64    `json:"typical_quantity,omitempty"`
	TypicalUnit     string      `json:"typical_unit,omitempty"`
	LastUsed        time.Time   `json:"last_used"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	// Version is the optimistic concurrency token; zero means not yet stored.
	Version int64 `json:"version"`
}

// StdDevCalories returns the running standard deviation of calories per 100 g.
func (u *UserIngredient) StdDevCalories() float64 {
	return u.Calories.StdDev()
}

// LearnAction describes what a learning call did to the library.
type LearnAction string

const (
	LearnSkipped LearnAction = "skipped"
	LearnCreated LearnAction = "created"
	LearnUpdated LearnAction = "updated"
	LearnFailed  LearnAction = "failed"
)

// LearnResult reports the outcome of folding one observation into a library.
type LearnResult struct {
	Action LearnAction     `json:"action"`
	Reason string          `json:"reason,omitempty"`
	Entry  *UserIngredient `json:"entry,omitempty"`
}

// FieldAccuracy summarizes correction error for one field.
type FieldAccuracy struct {
	FieldName string `json:"field_name"`
	// MeanAbsPercentError is avg(|percent_error|) over records with a derived error.
	MeanAbsPercentError float64 `json:"mean_abs_percent_error"`
	Count               int     `json:"count"`
	MeanAbsoluteError   float64 `json:"mean_absolute_error"`
}

// LocationAccuracy summarizes correction error for one field at one location type.
type LocationAccuracy struct {
	LocationType string `json:"location_type"`
	FieldAccuracy
}

// FieldBias is the signed mean percent error of a field. Positive means the
// AI underestimates the field, negative means it overestimates.
type FieldBias struct {
	FieldName        string  `json:"field_name"`
	MeanPercentError float64 `json:"mean_percent_error"`
	Count            int     `json:"count"`
}

// Calibration is the mean |percent_error| over records at or above a stated
// AI confidence.
type Calibration struct {
	MinConfidence       float64 `json:"min_confidence"`
	MaxConfidence       float64 `json:"max_confidence,omitempty"`
	MeanAbsPercentError float64 `json:"mean_abs_percent_error"`
	Count               int     `json:"count"`
}

// CorrectionQuery filters correction records.
type CorrectionQuery struct {
	UserID          string
	FieldName       string
	RequireLocation bool
	MinConfidence   *float64
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	IngredientCount int    `json:"ingredient_count"`
	CorrectionCount int    `json:"correction_count"`
	UserCount       int    `json:"user_count"`
	SchemaVersion   string `json:"schema_version"`
}

// Learning and confidence defaults.
const (
	DefaultMatchThreshold       = 2
	DefaultConfidenceSampleK    = 5.0
	DefaultConsistencyThreshold = 15.0
	DefaultConsistencyScale     = 50.0
	DefaultMaxRetries           = 3
	DefaultCalibrationMin       = 0.8
	ConfidenceMin               = 0.0
	ConfidenceMax               = 1.0
)
