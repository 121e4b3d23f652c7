package calc

import (
	"errors"
	"testing"
)

func TestMedianAndMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		median float64
		mean   float64
	}{
		{"odd", []float64{3, 1, 2}, 2, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5, 2.5},
		{"single", []float64{7}, 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			med, err := Median(tt.values)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if med != tt.median {
				t.Errorf("median: expected %f, got %f", tt.median, med)
			}
			mean, _ := Mean(tt.values)
			if mean != tt.mean {
				t.Errorf("mean: expected %f, got %f", tt.mean, mean)
			}
		})
	}
}

func TestMedianDoesNotMutate(t *testing.T) {
	values := []float64{3, 1, 2}
	_, _ = Median(values)
	if values[0] != 3 || values[1] != 1 {
		t.Errorf("input was reordered: %v", values)
	}
}

func TestEmptySeries(t *testing.T) {
	if _, err := Mean(nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Mean: expected ErrEmptySeries, got %v", err)
	}
	if _, err := Median(nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Median: expected ErrEmptySeries, got %v", err)
	}
	if _, _, err := MinMax(nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("MinMax: expected ErrEmptySeries, got %v", err)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	// rank = 0.25 * 4 = 1 -> 20
	p25, _ := Percentile(values, 25)
	if p25 != 20 {
		t.Errorf("P25: expected 20, got %f", p25)
	}
	// rank = 0.05 * 4 = 0.2 -> 10 + 0.2*10 = 12
	p5, _ := Percentile(values, 5)
	if !almostEqual(p5, 12, 1e-9) {
		t.Errorf("P5: expected 12, got %f", p5)
	}

	ps, err := Percentiles(values, 0, 50, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps[0] != 10 || ps[50] != 30 || ps[100] != 50 {
		t.Errorf("unexpected percentiles: %v", ps)
	}
}

func TestStdDev(t *testing.T) {
	// Sample std of {2,4,4,4,5,5,7,9} = sqrt(32/7)
	sd, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(sd*sd, 32.0/7.0, 1e-9) {
		t.Errorf("expected variance 32/7, got %f", sd*sd)
	}
}

func TestLinearRegression(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	ys := []float64{3, 5, 7, 9} // y = 2x + 1

	slope, intercept, r2, err := LinearRegression(xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(slope, 2, 1e-12) || !almostEqual(intercept, 1, 1e-12) {
		t.Errorf("expected y = 2x + 1, got y = %fx + %f", slope, intercept)
	}
	if !almostEqual(r2, 1, 1e-12) {
		t.Errorf("expected perfect fit, got r2=%f", r2)
	}

	if _, _, _, err := LinearRegression([]float64{1}, []float64{1}); err == nil {
		t.Error("expected error for single observation")
	}
}
