package nutrilens

import "math"

// RunningStat is an online mean/variance accumulator (Welford). It keeps
// only the count, the mean, and the sum of squared deviations from the mean.
type RunningStat struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	M2   float64 `json:"m2"`
}

// Add folds one sample into the accumulator. NaN and infinite samples are
// ignored.
func (s *RunningStat) Add(x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	s.N++
	delta := x - s.Mean
	s.Mean += delta / float64(s.N)
	s.M2 += delta * (x - s.Mean)
	if s.M2 < 0 {
		s.M2 = 0
	}
}

// AddPtr folds a sample if present.
func (s *RunningStat) AddPtr(x *float64) {
	if x != nil {
		s.Add(*x)
	}
}

// Variance returns the sample variance, or 0 with fewer than two samples.
func (s RunningStat) Variance() float64 {
	if s.N < 2 {
		return 0
	}
	return s.M2 / float64(s.N-1)
}

// StdDev returns the sample standard deviation.
func (s RunningStat) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// ConfidenceModel scores how trustworthy a learned profile is from its
// sample count and calorie variability.
type ConfidenceModel struct {
	// SampleK controls how fast the sample-size factor saturates: 1 - e^(-n/k).
	SampleK float64
	// ConsistencyThreshold is the calorie std dev (kcal/100g) at or below which
	// consistency is full.
	ConsistencyThreshold float64
	// ConsistencyScale is the std dev excess over the threshold at which the
	// consistency factor has decayed to 1/e.
	ConsistencyScale float64
}

// DefaultConfidenceModel returns the default tuning.
func DefaultConfidenceModel() ConfidenceModel {
	return ConfidenceModel{
		SampleK:              DefaultConfidenceSampleK,
		ConsistencyThreshold: DefaultConsistencyThreshold,
		ConsistencyScale:     DefaultConsistencyScale,
	}
}

// SampleFactor is monotonically increasing in n and saturates toward 1.
func (m ConfidenceModel) SampleFactor(n int) float64 {
	if n <= 0 {
		return 0
	}
	k := m.SampleK
	if !(k > 0) {
		k = DefaultConfidenceSampleK
	}
	return 1 - math.Exp(-float64(n)/k)
}

// ConsistencyFactor is 1 up to the threshold and decays exponentially above it.
func (m ConfidenceModel) ConsistencyFactor(stdDev float64) float64 {
	if math.IsNaN(stdDev) || stdDev <= m.ConsistencyThreshold {
		return 1
	}
	scale := m.ConsistencyScale
	if !(scale > 0) {
		scale = DefaultConsistencyScale
	}
	return math.Exp(-(stdDev - m.ConsistencyThreshold) / scale)
}

// Score combines both factors and clamps to [ConfidenceMin, ConfidenceMax].
func (m ConfidenceModel) Score(n int, stdDev float64) float64 {
	return clampConfidence(m.SampleFactor(n) * m.ConsistencyFactor(stdDev))
}

func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < ConfidenceMin {
		return ConfidenceMin
	}
	if v > ConfidenceMax {
		return ConfidenceMax
	}
	return v
}
