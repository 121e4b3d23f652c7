// Package projection rolls a company's revenue, EBITDA, capital spending and
// working capital forward from a set of valuation assumptions.
package projection

import (
	"errors"
	"fmt"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/calc"
)

// ErrNoBaseRevenue is returned when there is nothing to compound from.
var ErrNoBaseRevenue = errors.New("base revenue must be positive")

// ProjectionEngine builds year-by-year free cash flows.
type ProjectionEngine struct{}

// NewProjectionEngine creates a new projection engine
func NewProjectionEngine() *ProjectionEngine {
	return &ProjectionEngine{}
}

// Project compounds baseRevenue through every year of the assumptions.
func (e *ProjectionEngine) Project(baseRevenue float64, a assumption.ValuationAssumptions) (Projection, error) {
	if baseRevenue <= 0 {
		return Projection{}, ErrNoBaseRevenue
	}
	if a.Years <= 0 {
		return Projection{}, fmt.Errorf("projection horizon must be positive, got %d", a.Years)
	}

	proj := Projection{BaseRevenue: baseRevenue, Years: make([]ProjectedYear, 0, a.Years)}
	prevRevenue := baseRevenue
	for i := 0; i < a.Years; i++ {
		year := e.ProjectYear(prevRevenue, a, i)
		proj.Years = append(proj.Years, year)
		prevRevenue = year.Revenue
	}
	return proj, nil
}

// ProjectYear calculates year idx (0-based) from the prior year's revenue.
func (e *ProjectionEngine) ProjectYear(prevRevenue float64, a assumption.ValuationAssumptions, idx int) ProjectedYear {
	growth := at(a.RevenueGrowth, idx)
	margin := at(a.EBITDAMargin, idx)

	// 1. Top line and EBITDA
	revenue := calc.ProjectRevenue(prevRevenue, growth)
	ebitda := revenue * margin

	// 2. Reinvestment
	capex := calc.ProjectFromRatio(revenue, at(a.CapexPercent, idx))
	deltaWC := calc.ProjectFromRatio(revenue, at(a.WorkingCapitalPercent, idx))

	// 3. Tax. Without a depreciation driver EBITDA stands in for EBIT.
	depreciation := 0.0
	if a.DepreciationPercent > 0 {
		depreciation = revenue * a.DepreciationPercent
	}
	taxable := ebitda - depreciation
	tax := 0.0
	if taxable > 0 {
		tax = taxable * a.TaxRate
	}

	// 4. Free cash flow (D&A is non-cash, only its tax shield matters)
	fcf := ebitda - tax - capex - deltaWC

	return ProjectedYear{
		Year:           idx + 1,
		Revenue:        revenue,
		RevenueGrowth:  growth,
		EBITDA:         ebitda,
		EBITDAMargin:   margin,
		Depreciation:   depreciation,
		TaxableIncome:  taxable,
		Tax:            tax,
		Capex:          capex,
		WorkingCapital: deltaWC,
		FreeCashFlow:   fcf,
	}
}

// at returns s[i], repeating the last element past the end.
func at(s []float64, i int) float64 {
	if len(s) == 0 {
		return 0
	}
	if i < len(s) {
		return s[i]
	}
	return s[len(s)-1]
}
