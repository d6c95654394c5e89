package nutrilens

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// InfiniteDistance is returned by NullableDistance when either side is absent.
const InfiniteDistance = math.MaxInt32

var nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// defaultAliases maps spelling, plural, and regional variants to a
// canonical ingredient name. Keys and values are already normalized.
var defaultAliases = map[string]string{
	"idly":          "idli",
	"idlies":        "idli",
	"idlis":         "idli",
	"iddli":         "idli",
	"dosai":         "dosa",
	"dosas":         "dosa",
	"yogurt":        "yoghurt",
	"yogurts":       "yoghurt",
	"curd":          "yoghurt",
	"curds":         "yoghurt",
	"dahi":          "yoghurt",
	"capsicum":      "bell pepper",
	"capsicums":     "bell pepper",
	"bell peppers":  "bell pepper",
	"brinjal":       "eggplant",
	"brinjals":      "eggplant",
	"aubergine":     "eggplant",
	"baingan":       "eggplant",
	"eggplants":     "eggplant",
	"chapathi":      "chapati",
	"chapatti":      "chapati",
	"chappati":      "chapati",
	"chapatis":      "chapati",
	"phulka":        "chapati",
	"sambhar":       "sambar",
	"sambaar":       "sambar",
	"ladies finger": "okra",
	"lady finger":   "okra",
	"bhindi":        "okra",
	"cilantro":      "coriander",
	"dhania":        "coriander",
	"garbanzo":      "chickpea",
	"garbanzos":     "chickpea",
	"chickpeas":     "chickpea",
	"chana":         "chickpea",
	"aloo":          "potato",
	"potatoes":      "potato",
	"tomatoes":      "tomato",
	"eggs":          "egg",
	"bananas":       "banana",
	"prawns":        "prawn",
	"shrimps":       "shrimp",
}

// Candidate is a snapshot of one library entry considered for fuzzy matching.
type Candidate struct {
	ID             string
	NormalizedName string
	Confidence     float64
}

// Normalizer canonicalizes ingredient names and fuzzy-matches them against
// candidates. It is read-only after construction and safe for concurrent use.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer returns a Normalizer using the built-in alias table merged
// with extra. Extra aliases are normalized before use and override built-ins.
func NewNormalizer(extra map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(defaultAliases)+len(extra))}
	for k, v := range defaultAliases {
		n.aliases[k] = v
	}
	for k, v := range extra {
		key, canonical := cleanName(k), cleanName(v)
		if key == "" || canonical == "" {
			continue
		}
		n.aliases[key] = canonical
	}
	n.aliases = resolveAliases(n.aliases)
	return n
}

// resolveAliases follows each alias through the table to its final
// canonical name so Normalize is idempotent. A cycle resolves to the first
// repeated name.
func resolveAliases(aliases map[string]string) map[string]string {
	resolved := make(map[string]string, len(aliases))
	for key, canonical := range aliases {
		seen := map[string]bool{key: true}
		for !seen[canonical] {
			seen[canonical] = true
			next, ok := aliases[canonical]
			if !ok {
				break
			}
			canonical = next
		}
		resolved[key] = canonical
	}
	return resolved
}

// DefaultNormalizer uses only the built-in alias table.
var DefaultNormalizer = NewNormalizer(nil)

// Normalize canonicalizes a raw ingredient name: lowercase, punctuation and
// separators to single spaces, diacritics stripped, whitespace collapsed,
// then a literal alias lookup. Blank input yields "".
func (n *Normalizer) Normalize(raw string) string {
	cleaned := cleanName(raw)
	if cleaned == "" {
		return ""
	}
	if canonical, ok := n.aliases[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// AreSimilar reports whether two raw names are within threshold edits of
// each other after normalization.
func (n *Normalizer) AreSimilar(a, b string, threshold int) bool {
	return LevenshteinDistance(n.Normalize(a), n.Normalize(b)) <= threshold
}

// FindBestMatch normalizes query and returns the candidate with the smallest
// edit distance when that distance is within threshold. Ties prefer higher
// confidence, then lexically smaller name, then smaller ID. Candidates with
// an empty normalized name never match.
func (n *Normalizer) FindBestMatch(query string, candidates []Candidate, threshold int) (Candidate, bool) {
	return MatchNormalized(n.Normalize(query), candidates, threshold)
}

// MatchNormalized is FindBestMatch for a query that is already normalized.
func MatchNormalized(q string, candidates []Candidate, threshold int) (Candidate, bool) {
	if q == "" || len(candidates) == 0 {
		return Candidate{}, false
	}

	best := -1
	bestDist := InfiniteDistance
	for i, c := range candidates {
		d := InfiniteDistance
		if c.NormalizedName != "" {
			d = LevenshteinDistance(q, c.NormalizedName)
		}
		if d == InfiniteDistance {
			continue
		}
		if best < 0 || d < bestDist || (d == bestDist && preferCandidate(c, candidates[best])) {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > threshold {
		return Candidate{}, false
	}
	return candidates[best], true
}

func preferCandidate(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.NormalizedName != b.NormalizedName {
		return a.NormalizedName < b.NormalizedName
	}
	return a.ID < b.ID
}

// Normalize canonicalizes raw with the DefaultNormalizer.
func Normalize(raw string) string {
	return DefaultNormalizer.Normalize(raw)
}

// AreSimilar compares two raw names with the DefaultNormalizer.
func AreSimilar(a, b string, threshold int) bool {
	return DefaultNormalizer.AreSimilar(a, b, threshold)
}

// FindBestMatch matches query with the DefaultNormalizer.
func FindBestMatch(query string, candidates []Candidate, threshold int) (Candidate, bool) {
	return DefaultNormalizer.FindBestMatch(query, candidates, threshold)
}

// LevenshteinDistance is the unit-cost insert/delete/substitute edit distance.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	return matchr.Levenshtein(a, b)
}

// NullableDistance is LevenshteinDistance for possibly absent strings. It
// returns InfiniteDistance when either side is nil.
func NullableDistance(a, b *string) int {
	if a == nil || b == nil {
		return InfiniteDistance
	}
	return LevenshteinDistance(*a, *b)
}

func cleanName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	// Diacritics go first so decomposed marks are not mistaken for separators.
	s = stripDiacritics(s)
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// letterFolds covers lowercase letters that have no canonical decomposition.
var letterFolds = strings.NewReplacer(
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ß", "ss",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return letterFolds.Replace(out)
}

// aliasFile is the YAML layout of an alias file:
//
//	aliases:
//	  idli: [idly, idlies]
//	  yoghurt: [curd, dahi]
type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliasFile reads extra aliases from a YAML file and returns them as a
// variant -> canonical map suitable for NewNormalizer.
func LoadAliasFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alias file %q: %w", path, err)
	}
	defer f.Close()

	var af aliasFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&af); err != nil {
		return nil, fmt.Errorf("decode alias file %q: %w", path, err)
	}

	canonicals := make([]string, 0, len(af.Aliases))
	for c := range af.Aliases {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	out := make(map[string]string)
	for _, canonical := range canonicals {
		for _, variant := range af.Aliases[canonical] {
			out[variant] = canonical
		}
	}
	return out, nil
}
