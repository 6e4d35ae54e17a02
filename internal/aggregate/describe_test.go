package aggregate

import (
	"math"
	"testing"
)

func TestDescribe(t *testing.T) {
	s := Describe([]float64{4, 1, 3, 2})

	if s.Count != 4 {
		t.Errorf("expected count 4, got %d", s.Count)
	}
	checks := map[string][2]float64{
		"mean": {s.Mean, 2.5},
		"std":  {s.Std, math.Sqrt(5.0 / 3.0)},
		"min":  {s.Min, 1},
		"p25":  {s.P25, 1.75},
		"p50":  {s.P50, 2.5},
		"p75":  {s.P75, 3.25},
		"max":  {s.Max, 4},
	}
	for name, c := range checks {
		if math.Abs(c[0]-c[1]) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", name, c[1], c[0])
		}
	}
}

func TestDescribeSingleAndEmpty(t *testing.T) {
	s := Describe([]float64{0.7})
	if s.Count != 1 || s.Std != 0 || s.P50 != 0.7 {
		t.Errorf("unexpected single-value summary %+v", s)
	}
	if got := Describe(nil); got != (Summary{}) {
		t.Errorf("expected zero summary, got %+v", got)
	}
}

func TestDescribeDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Describe(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input was modified: %v", in)
	}
}
