package nutrilens

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// confidenceBands are the half-open confidence ranges used by
// ConfidenceBuckets. The last band includes 1.0.
var confidenceBands = [][2]float64{
	{0, 0.5},
	{0.5, 0.7},
	{0.7, 0.9},
	{0.9, 1.0},
}

// AccuracyAggregator computes read-only accuracy summaries over a
// correction store. Every view returns zero values or an empty slice for an
// empty store.
type AccuracyAggregator struct {
	store          CorrectionStore
	calibrationMin float64
}

// NewAccuracyAggregator creates an aggregator over store. calibrationMin is
// the confidence threshold used by GenerateReport.
func NewAccuracyAggregator(store CorrectionStore, calibrationMin float64) *AccuracyAggregator {
	return &AccuracyAggregator{store: store, calibrationMin: calibrationMin}
}

// OverallAccuracyByField summarizes every field, worst accuracy first.
func (a *AccuracyAggregator) OverallAccuracyByField(ctx context.Context) ([]FieldAccuracy, error) {
	recs, err := a.store.Corrections(ctx, CorrectionQuery{})
	if err != nil {
		return nil, fmt.Errorf("accuracy: load corrections: %w", err)
	}
	return SummarizeByField(recs), nil
}

// AccuracyForUser summarizes one user's corrections by field.
func (a *AccuracyAggregator) AccuracyForUser(ctx context.Context, userID string) ([]FieldAccuracy, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	recs, err := a.store.Corrections(ctx, CorrectionQuery{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("accuracy: load corrections: %w", err)
	}
	return SummarizeByField(recs), nil
}

// AccuracyByLocation summarizes corrections that carry a location type,
// grouped by location and field.
func (a *AccuracyAggregator) AccuracyByLocation(ctx context.Context) ([]LocationAccuracy, error) {
	recs, err := a.store.Corrections(ctx, CorrectionQuery{RequireLocation: true})
	if err != nil {
		return nil, fmt.Errorf("accuracy: load corrections: %w", err)
	}
	return SummarizeByLocation(recs), nil
}

// DetectSystematicBias reports the signed mean percent error per field,
// largest magnitude first.
func (a *AccuracyAggregator) DetectSystematicBias(ctx context.Context) ([]FieldBias, error) {
	recs, err := a.store.Corrections(ctx, CorrectionQuery{})
	if err != nil {
		return nil, fmt.Errorf("accuracy: load corrections: %w", err)
	}
	return SummarizeBias(recs), nil
}

// ConfidenceCalibration is the mean |percent error| over records whose AI
// confidence is at least minConfidence.
func (a *AccuracyAggregator) ConfidenceCalibration(ctx context.Context, minConfidence float64) (Calibration, error) {
	recs, err := a.store.Corrections(ctx, CorrectionQuery{MinConfidence: &minConfidence})
	if err != nil {
		return Calibration{}, fmt.Errorf("accuracy: load corrections: %w", err)
	}
	c := Calibration{MinConfidence: minConfidence, MaxConfidence: ConfidenceMax}
	var m meanAcc
	for _, r := range recs {
		if r.ConfidenceScore == nil || *r.ConfidenceScore < minConfidence {
			continue
		}
		c.Count++
		m.addAbs(r.PercentError)
	}
	c.MeanAbsPercentError = m.mean()
	return c, nil
}

// ConfidenceBuckets reports calibration per confidence band. All bands are
// returned, empty ones with a zero count.
func (a *AccuracyAggregator) ConfidenceBuckets(ctx context.Context) ([]Calibration, error) {
	recs, err := a.store.Corrections(ctx, CorrectionQuery{})
	if err != nil {
		return nil, fmt.Errorf("accuracy: load corrections: %w", err)
	}
	return SummarizeBuckets(recs), nil
}

// SummarizeByField groups records by field name. Count covers every record
// of a field; means skip records without derived errors.
func SummarizeByField(recs []CorrectionRecord) []FieldAccuracy {
	groups := make(map[string]*fieldAcc)
	for _, r := range recs {
		g, ok := groups[r.FieldName]
		if !ok {
			g = &fieldAcc{}
			groups[r.FieldName] = g
		}
		g.add(r)
	}

	out := make([]FieldAccuracy, 0, len(groups))
	for name, g := range groups {
		out = append(out, g.result(name))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanAbsPercentError != out[j].MeanAbsPercentError {
			return out[i].MeanAbsPercentError > out[j].MeanAbsPercentError
		}
		return out[i].FieldName < out[j].FieldName
	})
	return out
}

// SummarizeByLocation groups records with a location type by
// (location, field), worst accuracy first.
func SummarizeByLocation(recs []CorrectionRecord) []LocationAccuracy {
	type key struct{ location, field string }
	groups := make(map[key]*fieldAcc)
	for _, r := range recs {
		if r.LocationType == "" {
			continue
		}
		k := key{r.LocationType, r.FieldName}
		g, ok := groups[k]
		if !ok {
			g = &fieldAcc{}
			groups[k] = g
		}
		g.add(r)
	}

	out := make([]LocationAccuracy, 0, len(groups))
	for k, g := range groups {
		out = append(out, LocationAccuracy{LocationType: k.location, FieldAccuracy: g.result(k.field)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanAbsPercentError != out[j].MeanAbsPercentError {
			return out[i].MeanAbsPercentError > out[j].MeanAbsPercentError
		}
		if out[i].LocationType != out[j].LocationType {
			return out[i].LocationType < out[j].LocationType
		}
		return out[i].FieldName < out[j].FieldName
	})
	return out
}

// SummarizeBias computes the signed mean percent error per field, ordered
// by magnitude.
func SummarizeBias(recs []CorrectionRecord) []FieldBias {
	type biasAcc struct {
		count int
		m     meanAcc
	}
	groups := make(map[string]*biasAcc)
	for _, r := range recs {
		g, ok := groups[r.FieldName]
		if !ok {
			g = &biasAcc{}
			groups[r.FieldName] = g
		}
		g.count++
		if r.PercentError != nil {
			g.m.add(*r.PercentError)
		}
	}

	out := make([]FieldBias, 0, len(groups))
	for name, g := range groups {
		out = append(out, FieldBias{FieldName: name, MeanPercentError: g.m.mean(), Count: g.count})
	}
	sort.Slice(out, func(i, j int) bool {
		bi, bj := math.Abs(out[i].MeanPercentError), math.Abs(out[j].MeanPercentError)
		if bi != bj {
			return bi > bj
		}
		return out[i].FieldName < out[j].FieldName
	})
	return out
}

// SummarizeBuckets computes calibration for each confidence band. Records
// without a confidence score are ignored.
func SummarizeBuckets(recs []CorrectionRecord) []Calibration {
	out := make([]Calibration, len(confidenceBands))
	accs := make([]meanAcc, len(confidenceBands))
	for i, b := range confidenceBands {
		out[i] = Calibration{MinConfidence: b[0], MaxConfidence: b[1]}
	}
	for _, r := range recs {
		if r.ConfidenceScore == nil {
			continue
		}
		i := bandIndex(*r.ConfidenceScore)
		if i < 0 {
			continue
		}
		out[i].Count++
		accs[i].addAbs(r.PercentError)
	}
	for i := range out {
		out[i].MeanAbsPercentError = accs[i].mean()
	}
	return out
}

func bandIndex(c float64) int {
	last := len(confidenceBands) - 1
	for i, b := range confidenceBands {
		if c >= b[0] && (c < b[1] || (i == last && c <= b[1])) {
			return i
		}
	}
	return -1
}

// GenerateReport renders every view as deterministic plain text.
func (a *AccuracyAggregator) GenerateReport(ctx context.Context) (string, error) {
	var (
		byField    []FieldAccuracy
		byLocation []LocationAccuracy
		bias       []FieldBias
		calib      Calibration
		buckets    []Calibration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byField, err = a.OverallAccuracyByField(gctx)
		return err
	})
	g.Go(func() (err error) {
		byLocation, err = a.AccuracyByLocation(gctx)
		return err
	})
	g.Go(func() (err error) {
		bias, err = a.DetectSystematicBias(gctx)
		return err
	})
	g.Go(func() (err error) {
		calib, err = a.ConfidenceCalibration(gctx, a.calibrationMin)
		return err
	})
	g.Go(func() (err error) {
		buckets, err = a.ConfidenceBuckets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	return RenderReport(byField, byLocation, bias, calib, buckets), nil
}

// RenderReport formats precomputed views.
func RenderReport(byField []FieldAccuracy, byLocation []LocationAccuracy, bias []FieldBias, calib Calibration, buckets []Calibration) string {
	var b strings.Builder
	b.WriteString("Nutrition AI Accuracy Report\n")
	b.WriteString("============================\n")

	b.WriteString("\nAccuracy by field (worst first):\n")
	if len(byField) == 0 {
		b.WriteString("  (no data)\n")
	}
	for _, f := range byField {
		fmt.Fprintf(&b, "  %-18s mean |error| %7.2f%%  mean abs %9.2f  n=%d\n",
			f.FieldName, f.MeanAbsPercentError, f.MeanAbsoluteError, f.Count)
	}

	b.WriteString("\nAccuracy by location:\n")
	if len(byLocation) == 0 {
		b.WriteString("  (no data)\n")
	}
	for _, l := range byLocation {
		fmt.Fprintf(&b, "  %-12s %-18s mean |error| %7.2f%%  mean abs %9.2f  n=%d\n",
			l.LocationType, l.FieldName, l.MeanAbsPercentError, l.MeanAbsoluteError, l.Count)
	}

	b.WriteString("\nSystematic bias:\n")
	if len(bias) == 0 {
		b.WriteString("  (no data)\n")
	}
	for _, f := range bias {
		fmt.Fprintf(&b, "  %-18s %+8.2f%%  %s  n=%d\n",
			f.FieldName, f.MeanPercentError, biasDirection(f.MeanPercentError), f.Count)
	}

	fmt.Fprintf(&b, "\nConfidence calibration (confidence >= %.2f):\n", calib.MinConfidence)
	if calib.Count == 0 {
		b.WriteString("  (no data)\n")
	} else {
		fmt.Fprintf(&b, "  mean |error| %7.2f%%  n=%d\n", calib.MeanAbsPercentError, calib.Count)
	}

	b.WriteString("\nConfidence buckets:\n")
	for i, c := range buckets {
		closer := ")"
		if i == len(buckets)-1 {
			closer = "]"
		}
		fmt.Fprintf(&b, "  [%.2f, %.2f%s  mean |error| %7.2f%%  n=%d\n",
			c.MinConfidence, c.MaxConfidence, closer, c.MeanAbsPercentError, c.Count)
	}
	return b.String()
}

func biasDirection(meanPct float64) string {
	switch {
	case meanPct > 0:
		return "AI underestimates"
	case meanPct < 0:
		return "AI overestimates"
	default:
		return "no bias"
	}
}

type fieldAcc struct {
	count int
	pct   meanAcc
	abs   meanAcc
}

func (f *fieldAcc) add(r CorrectionRecord) {
	f.count++
	f.pct.addAbs(r.PercentError)
	if r.AbsoluteError != nil {
		f.abs.add(*r.AbsoluteError)
	}
}

func (f *fieldAcc) result(name string) FieldAccuracy {
	return FieldAccuracy{
		FieldName:           name,
		MeanAbsPercentError: f.pct.mean(),
		Count:               f.count,
		MeanAbsoluteError:   f.abs.mean(),
	}
}

// meanAcc is a running sum that yields 0 when empty.
type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	m.sum += v
	m.n++
}

func (m *meanAcc) addAbs(v *float64) {
	if v != nil {
		m.add(math.Abs(*v))
	}
}

func (m meanAcc) mean() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}
