package nutrilens_test

import (
	"math"
	"testing"

	"github.com/anantham/nutrilens"
)

func TestRunningStat_MatchesBatch(t *testing.T) {
	samples := []float64{130, 145, 120, 160, 151.5, 138, 129}

	var s nutrilens.RunningStat
	for _, x := range samples {
		s.Add(x)
	}

	var sum float64
	for _, x := range samples {
		sum += x
	}
	mean := sum / float64(len(samples))
	var ss float64
	for _, x := range samples {
		ss += (x - mean) * (x - mean)
	}
	variance := ss / float64(len(samples)-1)

	if s.N != len(samples) {
		t.Errorf("N = %d, want %d", s.N, len(samples))
	}
	if math.Abs(s.Mean-mean) > 1e-9 {
		t.Errorf("Mean = %v, want %v", s.Mean, mean)
	}
	if math.Abs(s.Variance()-variance) > 1e-9 {
		t.Errorf("Variance() = %v, want %v", s.Variance(), variance)
	}
	if math.Abs(s.StdDev()-math.Sqrt(variance)) > 1e-9 {
		t.Errorf("StdDev() = %v, want %v", s.StdDev(), math.Sqrt(variance))
	}
}

func TestRunningStat_IdenticalSamples(t *testing.T) {
	var s nutrilens.RunningStat
	for i := 0; i < 50; i++ {
		s.Add(97.3)
	}
	if s.Mean != 97.3 {
		t.Errorf("Mean = %v, want exactly 97.3", s.Mean)
	}
	if s.StdDev() != 0 {
		t.Errorf("StdDev() = %v, want 0", s.StdDev())
	}
}

func TestRunningStat_Degenerate(t *testing.T) {
	var s nutrilens.RunningStat
	if s.Variance() != 0 || s.StdDev() != 0 {
		t.Error("empty stat has non-zero spread")
	}
	s.Add(10)
	if s.Variance() != 0 {
		t.Errorf("single sample Variance() = %v, want 0", s.Variance())
	}
	s.Add(math.NaN())
	s.Add(math.Inf(1))
	s.AddPtr(nil)
	if s.N != 1 {
		t.Errorf("N = %d after invalid samples, want 1", s.N)
	}
}

func TestConfidenceModel_Bounds(t *testing.T) {
	m := nutrilens.DefaultConfidenceModel()
	for _, n := range []int{0, 1, 2, 5, 10, 100, 10000} {
		for _, sd := range []float64{0, 10, 15, 16, 50, 500, math.NaN()} {
			c := m.Score(n, sd)
			if c < 0 || c > 1 || math.IsNaN(c) {
				t.Errorf("Score(%d, %v) = %v, out of [0,1]", n, sd, c)
			}
		}
	}
	if m.Score(0, 0) != 0 {
		t.Errorf("Score(0, 0) = %v, want 0", m.Score(0, 0))
	}
}

func TestConfidenceModel_MonotoneInSamples(t *testing.T) {
	m := nutrilens.DefaultConfidenceModel()
	for _, sd := range []float64{0, 15, 40, 120} {
		prev := -1.0
		for n := 1; n <= 60; n++ {
			c := m.Score(n, sd)
			if c < prev {
				t.Fatalf("sd=%v: Score(%d) = %v < Score(%d) = %v", sd, n, c, n-1, prev)
			}
			prev = c
		}
	}
}

func TestConfidenceModel_ConsistencyNeverPenalized(t *testing.T) {
	m := nutrilens.DefaultConfidenceModel()
	for n := 1; n <= 20; n++ {
		if m.Score(n, 5) < m.Score(n, 80) {
			t.Errorf("n=%d: consistent data scored lower than noisy data", n)
		}
	}
	if m.ConsistencyFactor(m.ConsistencyThreshold) != 1 {
		t.Error("ConsistencyFactor at threshold != 1")
	}
	if got := m.ConsistencyFactor(m.ConsistencyThreshold + m.ConsistencyScale); math.Abs(got-math.Exp(-1)) > 1e-12 {
		t.Errorf("ConsistencyFactor(threshold+scale) = %v, want 1/e", got)
	}
}

func TestConfidenceModel_SampleFactor(t *testing.T) {
	m := nutrilens.ConfidenceModel{SampleK: 5}
	want := 1 - math.Exp(-1.0/5)
	if got := m.SampleFactor(1); math.Abs(got-want) > 1e-12 {
		t.Errorf("SampleFactor(1) = %v, want %v", got, want)
	}
	if got := m.SampleFactor(1000); got <= 0.99 || got > 1 {
		t.Errorf("SampleFactor(1000) = %v, want close to 1", got)
	}
}
