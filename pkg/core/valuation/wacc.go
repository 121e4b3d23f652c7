package valuation

import (
	"fmt"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/calc"
)

// WACCInput parameters for calculating Cost of Capital
type WACCInput struct {
	UnleveredBeta     float64
	RiskFreeRate      float64
	MarketRiskPremium float64
	PreTaxCostOfDebt  float64
	TaxRate           float64
	DebtToEquityRatio float64 // Target Leverage (D/E)
}

// WACCResult holds the calculated rates
type WACCResult struct {
	LeveredBeta  float64 `json:"levered_beta"`
	CostOfEquity float64 `json:"cost_of_equity"`
	CostOfDebt   float64 `json:"cost_of_debt"` // After-tax
	WACC         float64 `json:"wacc"`
	WeightDebt   float64 `json:"weight_debt"`
	WeightEquity float64 `json:"weight_equity"`
}

// CapitalStructure is the acquirer's target financing mix for a levered discount rate.
type CapitalStructure struct {
	PreTaxCostOfDebt float64 `json:"pre_tax_cost_of_debt" validate:"gte=0,lt=1"`
	DebtToEquity     float64 `json:"debt_to_equity" validate:"gte=0"`
}

// CalculateWACC computes the Weighted Average Cost of Capital using CAPM and Hamada Equation
func CalculateWACC(input WACCInput) (WACCResult, error) {
	if input.DebtToEquityRatio < 0 {
		return WACCResult{}, fmt.Errorf("debt to equity ratio must be non-negative, got %.4f", input.DebtToEquityRatio)
	}

	// 1. Re-lever Beta (Hamada)
	// BetaL = BetaU * (1 + (1-t)*(D/E))
	leveredBeta := input.UnleveredBeta * (1 + (1-input.TaxRate)*input.DebtToEquityRatio)

	// 2. Cost of Equity (CAPM)
	ke := calc.CostOfEquityCAPM(input.RiskFreeRate, leveredBeta, input.MarketRiskPremium)

	// 3. Weights from D/E = x: Wd = x/(1+x), We = 1/(1+x)
	wd := input.DebtToEquityRatio / (1 + input.DebtToEquityRatio)
	we := 1.0 / (1 + input.DebtToEquityRatio)

	// 4. WACC
	wacc := calc.WACC(input.PreTaxCostOfDebt, input.TaxRate, wd, ke, we)

	return WACCResult{
		LeveredBeta:  leveredBeta,
		CostOfEquity: ke,
		CostOfDebt:   input.PreTaxCostOfDebt * (1 - input.TaxRate),
		WACC:         wacc,
		WeightDebt:   wd,
		WeightEquity: we,
	}, nil
}

// WACCFromAssumptions levers the assumption set's beta to a target capital structure.
func WACCFromAssumptions(a assumption.ValuationAssumptions, cs CapitalStructure) (WACCResult, error) {
	return CalculateWACC(WACCInput{
		UnleveredBeta:     a.Beta,
		RiskFreeRate:      a.RiskFreeRate,
		MarketRiskPremium: a.MarketRiskPremium,
		PreTaxCostOfDebt:  cs.PreTaxCostOfDebt,
		TaxRate:           a.TaxRate,
		DebtToEquityRatio: cs.DebtToEquity,
	})
}
