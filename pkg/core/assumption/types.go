// Package assumption builds the projection and discount-rate inputs for a
// valuation run from a company snapshot, industry defaults and user overrides.
package assumption

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// =============================================================================
// CONFIDENCE & DISTRIBUTIONS
// =============================================================================

// ConfidenceLevel indicates data reliability
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// ConfidenceFromScore maps a 0..1 score onto a label.
func ConfidenceFromScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.75:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// DistributionType for Monte Carlo simulation
type DistributionType string

const (
	DistNormal     DistributionType = "normal"
	DistTriangular DistributionType = "triangular"
	DistUniform    DistributionType = "uniform"
	DistLognormal  DistributionType = "lognormal"
)

// Distribution describes how a single parameter is drawn in a simulation.
// Normal/lognormal use Mean and Std; uniform uses Min and Max; triangular uses Min, Mode, Max.
type Distribution struct {
	Type DistributionType `json:"type" yaml:"type"`
	Mean float64          `json:"mean,omitempty" yaml:"mean"`
	Std  float64          `json:"std,omitempty" yaml:"std"`
	Min  float64          `json:"min,omitempty" yaml:"min"`
	Mode float64          `json:"mode,omitempty" yaml:"mode"`
	Max  float64          `json:"max,omitempty" yaml:"max"`
}

// Validate checks that the parameters make sense for the distribution type.
func (d Distribution) Validate() error {
	switch d.Type {
	case DistNormal, DistLognormal:
		if d.Std < 0 {
			return fmt.Errorf("%s distribution requires std >= 0", d.Type)
		}
	case DistUniform:
		if d.Max < d.Min {
			return fmt.Errorf("uniform distribution requires max >= min")
		}
	case DistTriangular:
		if !(d.Min <= d.Mode && d.Mode <= d.Max) || d.Min == d.Max {
			return fmt.Errorf("triangular distribution requires min <= mode <= max and min < max")
		}
	default:
		return fmt.Errorf("unknown distribution type '%s'", d.Type)
	}
	return nil
}

// Sample draws one value. A zero Distribution (no Type) always returns Mean.
// Lognormal treats Mean and Std as parameters of the underlying normal.
func (d Distribution) Sample(r *rand.Rand) float64 {
	switch d.Type {
	case DistNormal:
		return d.Mean + d.Std*r.NormFloat64()
	case DistLognormal:
		return math.Exp(d.Mean + d.Std*r.NormFloat64())
	case DistUniform:
		return d.Min + (d.Max-d.Min)*r.Float64()
	case DistTriangular:
		u := r.Float64()
		span := d.Max - d.Min
		cut := (d.Mode - d.Min) / span
		if u < cut {
			return d.Min + math.Sqrt(u*span*(d.Mode-d.Min))
		}
		return d.Max - math.Sqrt((1-u)*span*(d.Max-d.Mode))
	default:
		return d.Mean
	}
}

// IsZero reports whether the distribution is unset.
func (d Distribution) IsZero() bool { return d.Type == "" }

// =============================================================================
// INPUTS
// =============================================================================

// CompanySnapshot is the financial state of a target at valuation time.
// Amounts are in a single currency unit (e.g. USD); rates are decimals.
type CompanySnapshot struct {
	CompanyID         string    `json:"company_id" yaml:"company_id" validate:"required"`
	Name              string    `json:"name" yaml:"name"`
	Industry          string    `json:"industry" yaml:"industry"`
	Revenue           float64   `json:"revenue" yaml:"revenue" validate:"gte=0"`
	EBITDA            float64   `json:"ebitda" yaml:"ebitda"`
	EBITDAMargin      float64   `json:"ebitda_margin,omitempty" yaml:"ebitda_margin"`
	NetIncome         float64   `json:"net_income,omitempty" yaml:"net_income"`
	HistoricalRevenue []float64 `json:"historical_revenue,omitempty" yaml:"historical_revenue"` // oldest first
	NetDebt           float64   `json:"net_debt" yaml:"net_debt"`
	Cash              float64   `json:"cash,omitempty" yaml:"cash"`
	SharesOutstanding float64   `json:"shares_outstanding,omitempty" yaml:"shares_outstanding"`
	AsOf              time.Time `json:"as_of,omitempty" yaml:"as_of"`
}

// Margin resolves the EBITDA margin from the explicit field or the EBITDA/revenue ratio.
// ok is false when neither is available.
func (s CompanySnapshot) Margin() (margin float64, ok bool) {
	if s.EBITDAMargin != 0 {
		return s.EBITDAMargin, true
	}
	if s.Revenue > 0 && s.EBITDA != 0 {
		return s.EBITDA / s.Revenue, true
	}
	return 0, false
}

// Overrides lets a user pin any assumption. Nil fields fall back to derived values.
// Per-year slices replace the derived series; short slices are padded with their last value.
type Overrides struct {
	RevenueGrowth         []float64 `json:"revenue_growth,omitempty" yaml:"revenue_growth"`
	EBITDAMargin          []float64 `json:"ebitda_margin,omitempty" yaml:"ebitda_margin"`
	CapexPercent          []float64 `json:"capex_percent,omitempty" yaml:"capex_percent"`
	WorkingCapitalPercent []float64 `json:"working_capital_percent,omitempty" yaml:"working_capital_percent"`

	TaxRate             *float64 `json:"tax_rate,omitempty" yaml:"tax_rate"`
	TerminalGrowth      *float64 `json:"terminal_growth,omitempty" yaml:"terminal_growth"`
	DiscountRate        *float64 `json:"discount_rate,omitempty" yaml:"discount_rate"`
	Beta                *float64 `json:"beta,omitempty" yaml:"beta"`
	RiskFreeRate        *float64 `json:"risk_free_rate,omitempty" yaml:"risk_free_rate"`
	MarketRiskPremium   *float64 `json:"market_risk_premium,omitempty" yaml:"market_risk_premium"`
	DepreciationPercent *float64 `json:"depreciation_percent,omitempty" yaml:"depreciation_percent"`
	HistoricalGrowth    *float64 `json:"historical_growth,omitempty" yaml:"historical_growth"`
	Years               int      `json:"years,omitempty" yaml:"years" validate:"omitempty,min=1,max=15"`
}

// =============================================================================
// OUTPUT
// =============================================================================

// ValuationAssumptions is the complete, immutable input set for one valuation run.
type ValuationAssumptions struct {
	Industry string `json:"industry"`
	Years    int    `json:"years"`

	// Per-year drivers, index 0 = first projected year
	RevenueGrowth         []float64 `json:"revenue_growth"`
	EBITDAMargin          []float64 `json:"ebitda_margin"`
	CapexPercent          []float64 `json:"capex_percent"`
	WorkingCapitalPercent []float64 `json:"working_capital_percent"`

	TaxRate             float64 `json:"tax_rate"`
	TerminalGrowth      float64 `json:"terminal_growth"`
	DiscountRate        float64 `json:"discount_rate"`
	Beta                float64 `json:"beta"`
	RiskFreeRate        float64 `json:"risk_free_rate"`
	MarketRiskPremium   float64 `json:"market_risk_premium"`
	DepreciationPercent float64 `json:"depreciation_percent,omitempty"` // 0 = tax on EBITDA
	HistoricalGrowth    float64 `json:"historical_growth"`
}

// Clone returns a deep copy so callers can derive variants without touching the original.
func (a ValuationAssumptions) Clone() ValuationAssumptions {
	c := a
	c.RevenueGrowth = append([]float64(nil), a.RevenueGrowth...)
	c.EBITDAMargin = append([]float64(nil), a.EBITDAMargin...)
	c.CapexPercent = append([]float64(nil), a.CapexPercent...)
	c.WorkingCapitalPercent = append([]float64(nil), a.WorkingCapitalPercent...)
	return c
}

// KeyFigures flattens the scalar assumptions for reporting.
func (a ValuationAssumptions) KeyFigures() map[string]float64 {
	figures := map[string]float64{
		"discount_rate":       a.DiscountRate,
		"terminal_growth":     a.TerminalGrowth,
		"tax_rate":            a.TaxRate,
		"beta":                a.Beta,
		"risk_free_rate":      a.RiskFreeRate,
		"market_risk_premium": a.MarketRiskPremium,
		"historical_growth":   a.HistoricalGrowth,
	}
	if len(a.RevenueGrowth) > 0 {
		figures["year1_growth"] = a.RevenueGrowth[0]
	}
	if len(a.EBITDAMargin) > 0 {
		figures["year1_ebitda_margin"] = a.EBITDAMargin[0]
	}
	return figures
}

// Validate reports structural problems. The builder always produces valid
// output; this guards assumptions assembled by hand or decoded from JSON.
func (a ValuationAssumptions) Validate() error {
	if a.Years <= 0 {
		return fmt.Errorf("years must be positive")
	}
	series := map[string][]float64{
		"revenue_growth":          a.RevenueGrowth,
		"ebitda_margin":           a.EBITDAMargin,
		"capex_percent":           a.CapexPercent,
		"working_capital_percent": a.WorkingCapitalPercent,
	}
	for name, s := range series {
		if len(s) != a.Years {
			return fmt.Errorf("%s has %d entries, expected %d", name, len(s), a.Years)
		}
	}
	if a.TaxRate < 0 || a.TaxRate >= 1 {
		return fmt.Errorf("tax rate %.4f out of range [0,1)", a.TaxRate)
	}
	if a.DiscountRate <= a.TerminalGrowth {
		return fmt.Errorf("discount rate %.4f must exceed terminal growth %.4f", a.DiscountRate, a.TerminalGrowth)
	}
	return nil
}
