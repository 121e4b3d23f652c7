package valuation

import (
	"errors"
	"time"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/calc"
	"deal_valuation/pkg/core/projection"
)

// Method identifies a valuation approach.
type Method string

const (
	MethodDCF         Method = "dcf"
	MethodComparables Method = "comparables"
	MethodPrecedents  Method = "precedent_transactions"
	MethodLBO         Method = "lbo"
)

var (
	// ErrInvalidTerminalSpread mirrors calc.ErrInvalidTerminalSpread so callers
	// only need this package.
	ErrInvalidTerminalSpread = calc.ErrInvalidTerminalSpread
	ErrNoProjections         = errors.New("no projected cash flows")
	ErrNoPeers               = errors.New("no usable peer multiples")
	ErrInvalidLBOInput       = errors.New("invalid LBO input")
	ErrNoValidDraws          = errors.New("monte carlo produced no valid draws")
	ErrNoResults             = errors.New("no valuation results to aggregate")
)

// ValuationResult is one method's output for a run. It is not mutated after creation.
type ValuationResult struct {
	Method         Method             `json:"method"`
	Value          float64            `json:"value"`
	Low            float64            `json:"low"`
	High           float64            `json:"high"`
	Confidence     float64            `json:"confidence"`
	KeyAssumptions map[string]float64 `json:"key_assumptions,omitempty"`
	Sensitivity    *SensitivityGrid   `json:"sensitivity,omitempty"`
	RiskFactors    []string           `json:"risk_factors,omitempty"`

	DCF      *DCFResult               `json:"dcf,omitempty"`
	Relative *RelativeValuationResult `json:"relative,omitempty"`
	LBO      *LBOResult               `json:"lbo,omitempty"`
}

// ComprehensiveValuation aggregates every method result for one company and run.
type ComprehensiveValuation struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	CompanyName string    `json:"company_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Snapshot    assumption.CompanySnapshot      `json:"snapshot"`
	Assumptions assumption.ValuationAssumptions `json:"assumptions"`
	Projection  projection.Projection           `json:"projection"`

	Results        []ValuationResult `json:"results"`
	SkippedMethods map[Method]string `json:"skipped_methods,omitempty"`
	MonteCarlo     *MonteCarloResult `json:"monte_carlo,omitempty"`

	WeightedAverage float64            `json:"weighted_average"`
	Low             float64            `json:"low"`
	High            float64            `json:"high"`
	Recommended     float64            `json:"recommended"`
	Confidence      float64            `json:"confidence"`
	AppliedWeights  map[Method]float64 `json:"applied_weights"`
	RiskFactors     []string           `json:"risk_factors,omitempty"`
	Narrative       string             `json:"narrative,omitempty"`
}

// Result returns the result for a method, if that method ran.
func (c *ComprehensiveValuation) Result(m Method) (ValuationResult, bool) {
	for _, r := range c.Results {
		if r.Method == m {
			return r, true
		}
	}
	return ValuationResult{}, false
}
