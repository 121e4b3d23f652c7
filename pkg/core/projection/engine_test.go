package projection

import (
	"errors"
	"math"
	"testing"

	"deal_valuation/pkg/core/assumption"
)

func flatAssumptions(years int, growth, margin float64) assumption.ValuationAssumptions {
	fill := func(v float64) []float64 {
		s := make([]float64, years)
		for i := range s {
			s[i] = v
		}
		return s
	}
	return assumption.ValuationAssumptions{
		Years:                 years,
		RevenueGrowth:         fill(growth),
		EBITDAMargin:          fill(margin),
		CapexPercent:          fill(0.05),
		WorkingCapitalPercent: fill(0.02),
		TaxRate:               0.25,
		TerminalGrowth:        0.02,
		DiscountRate:          0.10,
	}
}

func TestProject_EBITDAIsRevenueTimesMargin(t *testing.T) {
	e := NewProjectionEngine()
	margins := []float64{0.1, 0.137, 0.2, 0.33333, 0.05}
	a := flatAssumptions(5, 0.07, 0)
	a.EBITDAMargin = margins

	proj, err := e.Project(12_345_678.9, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, y := range proj.Years {
		if y.EBITDA != y.Revenue*margins[i] {
			t.Errorf("year %d: EBITDA %f != revenue*margin %f", y.Year, y.EBITDA, y.Revenue*margins[i])
		}
	}
}

func TestProject_CashFlowBuild(t *testing.T) {
	e := NewProjectionEngine()
	a := flatAssumptions(2, 0.10, 0.20)

	proj, err := e.Project(1000, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Year 1: revenue 1100, EBITDA 220, tax 55, capex 55, ΔWC 22 -> FCF 88
	y1 := proj.Years[0]
	checks := map[string][2]float64{
		"revenue": {y1.Revenue, 1100},
		"ebitda":  {y1.EBITDA, 220},
		"tax":     {y1.Tax, 55},
		"capex":   {y1.Capex, 55},
		"wc":      {y1.WorkingCapital, 22},
		"fcf":     {y1.FreeCashFlow, 88},
	}
	for name, c := range checks {
		if math.Abs(c[0]-c[1]) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", name, c[1], c[0])
		}
	}

	// Year 2 compounds from year 1
	if math.Abs(proj.Years[1].Revenue-1210) > 1e-9 {
		t.Errorf("expected year 2 revenue 1210, got %f", proj.Years[1].Revenue)
	}
	if len(proj.FreeCashFlows()) != 2 || len(proj.EBITDASeries()) != 2 {
		t.Error("series helpers should return one entry per year")
	}
}

func TestProject_DepreciationShieldsTax(t *testing.T) {
	e := NewProjectionEngine()
	a := flatAssumptions(1, 0, 0.20)
	a.DepreciationPercent = 0.05

	proj, _ := e.Project(1000, a)
	y := proj.Years[0]
	// taxable = 200 - 50 = 150 -> tax 37.5
	if math.Abs(y.Tax-37.5) > 1e-9 {
		t.Errorf("expected tax 37.5, got %f", y.Tax)
	}
	// FCF = 200 - 37.5 - 50 - 20 = 92.5
	if math.Abs(y.FreeCashFlow-92.5) > 1e-9 {
		t.Errorf("expected FCF 92.5, got %f", y.FreeCashFlow)
	}
}

func TestProject_NegativeEBITDANoTax(t *testing.T) {
	e := NewProjectionEngine()
	proj, _ := e.Project(1000, flatAssumptions(1, 0, -0.1))
	if proj.Years[0].Tax != 0 {
		t.Errorf("loss-making year should pay no tax, got %f", proj.Years[0].Tax)
	}
}

func TestProject_Errors(t *testing.T) {
	e := NewProjectionEngine()
	if _, err := e.Project(0, flatAssumptions(5, 0.1, 0.2)); !errors.Is(err, ErrNoBaseRevenue) {
		t.Errorf("expected ErrNoBaseRevenue, got %v", err)
	}
	if _, err := e.Project(100, assumption.ValuationAssumptions{}); err == nil {
		t.Error("expected error for zero-year horizon")
	}
}

func TestTerminal(t *testing.T) {
	if _, ok := (Projection{}).Terminal(); ok {
		t.Error("empty projection has no terminal year")
	}
	proj, _ := NewProjectionEngine().Project(100, flatAssumptions(3, 0.1, 0.2))
	last, ok := proj.Terminal()
	if !ok || last.Year != 3 {
		t.Errorf("expected terminal year 3, got %d", last.Year)
	}
}
