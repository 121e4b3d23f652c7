package calc

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptySeries is returned by statistics that are undefined on an empty input.
var ErrEmptySeries = errors.New("series is empty")

// Mean returns the arithmetic mean.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySeries
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// Median returns the middle value (average of the two middle values for even lengths).
// The input slice is not modified.
func Median(values []float64) (float64, error) {
	return Percentile(values, 50)
}

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between closest ranks. The input slice is not modified.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySeries
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p), nil
}

// Percentiles computes several percentiles with a single sort.
func Percentiles(values []float64, ps ...float64) (map[float64]float64, error) {
	if len(values) == 0 {
		return nil, ErrEmptySeries
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	out := make(map[float64]float64, len(ps))
	for _, p := range ps {
		out[p] = percentileSorted(sorted, p)
	}
	return out, nil
}

func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// StdDev returns the sample standard deviation (n-1 denominator).
// A single observation has zero dispersion.
func StdDev(values []float64) (float64, error) {
	mean, err := Mean(values)
	if err != nil {
		return 0, err
	}
	if len(values) == 1 {
		return 0, nil
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1)), nil
}

// MinMax returns the smallest and largest values.
func MinMax(values []float64) (float64, float64, error) {
	if len(values) == 0 {
		return 0, 0, ErrEmptySeries
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}

// LinearRegression fits y = slope*x + intercept by ordinary least squares and
// reports the coefficient of determination.
func LinearRegression(xs, ys []float64) (slope, intercept, r2 float64, err error) {
	if len(xs) != len(ys) {
		return 0, 0, 0, errors.New("regression inputs differ in length")
	}
	if len(xs) < 2 {
		return 0, 0, 0, ErrEmptySeries
	}

	meanX, _ := Mean(xs)
	meanY, _ := Mean(ys)

	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, 0, 0, errors.New("regression x values have no variance")
	}

	slope = sxy / sxx
	intercept = meanY - slope*meanX
	if syy == 0 {
		r2 = 1
	} else {
		r2 = (sxy * sxy) / (sxx * syy)
	}
	return slope, intercept, r2, nil
}
