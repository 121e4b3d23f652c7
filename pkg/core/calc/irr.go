package calc

import (
	"errors"
	"math"
)

// ErrNoIRR is returned when the cash flow series has no sign change, or the
// root could not be bracketed.
var ErrNoIRR = errors.New("cash flows have no internal rate of return")

const (
	irrLowerBound = -0.9999
	irrUpperBound = 10.0
	irrTolerance  = 1e-9
	irrMaxIter    = 200
)

// IRR solves NPV(rate) = 0 by bisection. cashFlows[0] is the t=0 flow
// (typically the negative investment).
func IRR(cashFlows []float64) (float64, error) {
	if len(cashFlows) < 2 {
		return 0, ErrNoIRR
	}

	hasPos, hasNeg := false, false
	for _, cf := range cashFlows {
		if cf > 0 {
			hasPos = true
		} else if cf < 0 {
			hasNeg = true
		}
	}
	if !hasPos || !hasNeg {
		return 0, ErrNoIRR
	}

	lo, hi := irrLowerBound, irrUpperBound
	fLo := NPV(lo, cashFlows)
	fHi := NPV(hi, cashFlows)
	if math.Signbit(fLo) == math.Signbit(fHi) {
		return 0, ErrNoIRR
	}

	for i := 0; i < irrMaxIter; i++ {
		mid := (lo + hi) / 2
		fMid := NPV(mid, cashFlows)
		if math.Abs(fMid) < irrTolerance || (hi-lo)/2 < irrTolerance {
			return mid, nil
		}
		if math.Signbit(fMid) == math.Signbit(fLo) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// MultipleIRR is the annualised return implied by a money multiple over a
// holding period: (exit/entry)^(1/T) - 1.
func MultipleIRR(entry, exit float64, years int) (float64, error) {
	if entry <= 0 || exit <= 0 || years <= 0 {
		return 0, ErrNoIRR
	}
	return math.Pow(exit/entry, 1/float64(years)) - 1, nil
}
