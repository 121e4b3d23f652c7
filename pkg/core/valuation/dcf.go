package valuation

import (
	"fmt"

	"deal_valuation/pkg/core/calc"
	"deal_valuation/pkg/core/projection"
)

// DCFInput encapsulates all inputs required for a Discounted Cash Flow valuation
type DCFInput struct {
	Projection        projection.Projection
	WACC              float64
	TerminalGrowth    float64 // e.g. 0.025
	NetDebt           float64
	SharesOutstanding float64
}

// DCFResult holds the valuation outputs
type DCFResult struct {
	EnterpriseValue     float64   `json:"enterprise_value"`
	EquityValue         float64   `json:"equity_value"`
	SharePrice          float64   `json:"share_price,omitempty"`
	PVFCF               float64   `json:"pv_fcf"`
	PVTerminal          float64   `json:"pv_terminal"`
	TerminalValue       float64   `json:"terminal_value"`
	TerminalShare       float64   `json:"terminal_share"`   // PV(TV) / EV
	ImpliedMultiple     float64   `json:"implied_multiple"` // TV / terminal EBITDA
	DiscountedCashFlows []float64 `json:"discounted_cash_flows"`
}

// CalculateDCF performs a standard 2-stage DCF analysis.
// It fails rather than dividing when WACC does not exceed terminal growth.
func CalculateDCF(input DCFInput) (DCFResult, error) {
	terminal, ok := input.Projection.Terminal()
	if !ok {
		return DCFResult{}, ErrNoProjections
	}

	// 1. Explicit period
	fcfs := input.Projection.FreeCashFlows()
	discounted := make([]float64, len(fcfs))
	var pvFCF float64
	for i, fcf := range fcfs {
		discounted[i] = calc.PresentValue(fcf, input.WACC, i+1)
		pvFCF += discounted[i]
	}

	// 2. Terminal Value (Gordon Growth)
	// TV = FCF_N * (1 + g) / (WACC - g)
	tv, err := calc.TerminalValueGordonGrowth(terminal.FreeCashFlow*(1+input.TerminalGrowth), input.WACC, input.TerminalGrowth)
	if err != nil {
		return DCFResult{}, fmt.Errorf("terminal value (wacc=%.4f, g=%.4f): %w", input.WACC, input.TerminalGrowth, err)
	}
	pvTerminal := calc.PresentValue(tv, input.WACC, len(fcfs))

	// 3. Aggregation
	ev := pvFCF + pvTerminal
	eqVal := ev - input.NetDebt
	sharePrice := calc.SafeDivide(eqVal, input.SharesOutstanding, 0)

	return DCFResult{
		EnterpriseValue:     ev,
		EquityValue:         eqVal,
		SharePrice:          sharePrice,
		PVFCF:               pvFCF,
		PVTerminal:          pvTerminal,
		TerminalValue:       tv,
		TerminalShare:       calc.SafeDivide(pvTerminal, ev, 0),
		ImpliedMultiple:     calc.SafeDivide(tv, terminal.EBITDA, 0),
		DiscountedCashFlows: discounted,
	}, nil
}

// dcfRiskFactors flags the usual weak spots of a DCF.
func dcfRiskFactors(in DCFInput, res DCFResult) []string {
	var risks []string
	if res.TerminalShare > 0.75 {
		risks = append(risks, fmt.Sprintf("Terminal value is %.0f%% of enterprise value", res.TerminalShare*100))
	}
	if in.WACC-in.TerminalGrowth < 0.03 {
		risks = append(risks, fmt.Sprintf("Narrow WACC/growth spread (%.2f%%) makes terminal value highly sensitive", (in.WACC-in.TerminalGrowth)*100))
	}
	for _, y := range in.Projection.Years {
		if y.FreeCashFlow < 0 {
			risks = append(risks, fmt.Sprintf("Negative free cash flow projected in year %d", y.Year))
			break
		}
	}
	return risks
}

// dcfConfidence starts at 0.75 and is docked for each structural weakness.
func dcfConfidence(risks []string) float64 {
	c := 0.75 - 0.1*float64(len(risks))
	if c < 0.3 {
		c = 0.3
	}
	return c
}
