package valuation

import (
	"math"
	"sort"
)

// MethodWeights assigns a blending weight to each method.
type MethodWeights map[Method]float64

// DefaultWeights: intrinsic value leads, market evidence follows, sponsor view last.
func DefaultWeights() MethodWeights {
	return MethodWeights{
		MethodDCF:         0.4,
		MethodComparables: 0.3,
		MethodPrecedents:  0.2,
		MethodLBO:         0.1,
	}
}

// Summary is the blended view across method results.
type Summary struct {
	WeightedAverage float64            `json:"weighted_average"`
	Low             float64            `json:"low"`
	High            float64            `json:"high"`
	Recommended     float64            `json:"recommended"`
	Confidence      float64            `json:"confidence"`
	AppliedWeights  map[Method]float64 `json:"applied_weights"`
}

// Aggregate blends method results. Weights are renormalised over the methods
// present; if none of them carries a weight, the results are averaged equally.
// The range spans the lowest low to the highest high.
func Aggregate(results []ValuationResult, weights MethodWeights) (Summary, error) {
	if len(results) == 0 {
		return Summary{}, ErrNoResults
	}

	total := 0.0
	for _, r := range results {
		total += weights[r.Method]
	}

	applied := make(map[Method]float64, len(results))
	for _, r := range results {
		if total > 0 {
			applied[r.Method] = weights[r.Method] / total
		} else {
			applied[r.Method] = 1 / float64(len(results))
		}
	}

	s := Summary{
		Low:            math.Inf(1),
		High:           math.Inf(-1),
		AppliedWeights: applied,
	}
	for _, r := range results {
		w := applied[r.Method]
		s.WeightedAverage += w * r.Value
		s.Confidence += w * r.Confidence
		s.Low = math.Min(s.Low, r.Low)
		s.High = math.Max(s.High, r.High)
	}
	s.Recommended = s.WeightedAverage
	return s, nil
}

// collectRisks merges per-method risk factors without duplicates, in a stable order.
func collectRisks(results []ValuationResult, extra ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range results {
		for _, f := range r.RiskFactors {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	for _, f := range extra {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Methods lists the methods that carried weight, sorted by name.
func (s Summary) Methods() []Method {
	out := make([]Method, 0, len(s.AppliedWeights))
	for k := range s.AppliedWeights {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
