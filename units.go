package nutrilens

import (
	"math"
	"strings"
)

type unitKind string

const (
	unitKindMass   unitKind = "mass"
	unitKindVolume unitKind = "volume"
	unitKindCount  unitKind = "count"
)

type unitDef struct {
	kind unitKind
	// grams per unit; volume assumes 1 g/ml, count units hold a default weight
	grams float64
}

// Canonical unit names.
const (
	UnitGram       = "g"
	UnitPiece      = "piece"
	defaultPieceG  = 50.0
	defaultSliceG  = 30.0
	defaultBowlG   = 200.0
	defaultServeG  = 150.0
	defaultUnknown = defaultPieceG
)

var unitTable = map[string]unitDef{
	"g":       {unitKindMass, 1},
	"kg":      {unitKindMass, 1000},
	"mg":      {unitKindMass, 0.001},
	"oz":      {unitKindMass, 28.349523125},
	"lb":      {unitKindMass, 453.59237},
	"ml":      {unitKindVolume, 1},
	"l":       {unitKindVolume, 1000},
	"cup":     {unitKindVolume, 240},
	"tbsp":    {unitKindVolume, 15},
	"tsp":     {unitKindVolume, 5},
	"piece":   {unitKindCount, defaultPieceG},
	"slice":   {unitKindCount, defaultSliceG},
	"bowl":    {unitKindCount, defaultBowlG},
	"serving": {unitKindCount, defaultServeG},
}

var unitSynonyms = map[string]string{
	"gram": "g", "grams": "g", "gm": "g", "gms": "g", "gr": "g", "grm": "g",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"milligram": "mg", "milligrams": "mg",
	"ounce": "oz", "ounces": "oz",
	"pound": "lb", "pounds": "lb", "lbs": "lb",
	"milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml", "mls": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l", "ltr": "l",
	"cups": "cup",
	"tablespoon": "tbsp", "tablespoons": "tbsp", "tbs": "tbsp", "tbsps": "tbsp",
	"teaspoon": "tsp", "teaspoons": "tsp", "tsps": "tsp",
	"pieces": "piece", "pc": "piece", "pcs": "piece", "nos": "piece", "no": "piece",
	"count": "piece", "unit": "piece", "units": "piece", "each": "piece", "whole": "piece",
	"slices": "slice",
	"bowls": "bowl", "katori": "bowl",
	"servings": "serving", "portion": "serving", "portions": "serving", "plate": "serving",
}

// pieceWeights holds typical grams per piece for count-measured ingredients,
// keyed by normalized name.
var pieceWeights = map[string]float64{
	"idli":    40,
	"dosa":    100,
	"chapati": 40,
	"roti":    40,
	"paratha": 80,
	"puri":    25,
	"vada":    50,
	"egg":     50,
	"banana":  120,
	"apple":   180,
	"orange":  130,
	"tomato":  100,
	"potato":  170,
	"onion":   110,
	"bread":   30,
	"samosa":  70,
}

// NormalizeUnit returns the canonical form of a unit string. Unknown units
// are returned lowercased and trimmed.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	if canonical, ok := unitSynonyms[u]; ok {
		return canonical
	}
	return u
}

// IsCountUnit reports whether unit measures pieces rather than mass or volume.
// Unknown units count as pieces.
func IsCountUnit(unit string) bool {
	def, ok := unitTable[NormalizeUnit(unit)]
	return !ok || def.kind == unitKindCount
}

// GramsFor estimates the mass of quantity units of an ingredient. Count
// units use the ingredient's typical piece weight when known. The second
// result is false when no positive mass can be derived.
func GramsFor(normalizedName string, quantity float64, unit string) (float64, bool) {
	if !(quantity > 0) || math.IsInf(quantity, 0) {
		return 0, false
	}
	u := NormalizeUnit(unit)
	def, ok := unitTable[u]
	if !ok {
		def = unitDef{kind: unitKindCount, grams: defaultUnknown}
	}
	perUnit := def.grams
	if def.kind == unitKindCount && (u == UnitPiece || !ok) {
		if w, known := pieceWeights[normalizedName]; known {
			perUnit = w
		}
	}
	grams := quantity * perUnit
	if !(grams > 0) {
		return 0, false
	}
	return grams, true
}

// Per100g scales an absolute nutrient amount measured over grams to a
// per-100 g value. Nil in, nil out.
func Per100g(amount *float64, grams float64) *float64 {
	if amount == nil || !(grams > 0) {
		return nil
	}
	v := *amount * 100 / grams
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
