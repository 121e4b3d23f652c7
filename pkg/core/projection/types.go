package projection

// ProjectedYear holds the cash-flow build for one projected year.
type ProjectedYear struct {
	Year           int     `json:"year"` // 1-based offset from the base year
	Revenue        float64 `json:"revenue"`
	RevenueGrowth  float64 `json:"revenue_growth"`
	EBITDA         float64 `json:"ebitda"`
	EBITDAMargin   float64 `json:"ebitda_margin"`
	Depreciation   float64 `json:"depreciation,omitempty"`
	TaxableIncome  float64 `json:"taxable_income"`
	Tax            float64 `json:"tax"`
	Capex          float64 `json:"capex"`
	WorkingCapital float64 `json:"working_capital_change"`
	FreeCashFlow   float64 `json:"free_cash_flow"`
}

// Projection is the full forward build from a base revenue.
type Projection struct {
	BaseRevenue float64         `json:"base_revenue"`
	Years       []ProjectedYear `json:"years"`
}

// FreeCashFlows returns the FCF series in year order.
func (p Projection) FreeCashFlows() []float64 {
	out := make([]float64, len(p.Years))
	for i, y := range p.Years {
		out[i] = y.FreeCashFlow
	}
	return out
}

// EBITDASeries returns the EBITDA series in year order.
func (p Projection) EBITDASeries() []float64 {
	out := make([]float64, len(p.Years))
	for i, y := range p.Years {
		out[i] = y.EBITDA
	}
	return out
}

// Terminal returns the last projected year. ok is false for an empty projection.
func (p Projection) Terminal() (ProjectedYear, bool) {
	if len(p.Years) == 0 {
		return ProjectedYear{}, false
	}
	return p.Years[len(p.Years)-1], true
}
