// Package calc provides deterministic financial calculations shared by the
// valuation, projection and offer packages.
// This file implements cost of capital and discounting primitives.
package calc

import (
	"errors"
	"math"
)

// ErrInvalidTerminalSpread is returned when the discount rate does not exceed
// the perpetual growth rate, which leaves the Gordon growth formula undefined.
var ErrInvalidTerminalSpread = errors.New("discount rate must exceed terminal growth rate")

// =============================================================================
// COST OF CAPITAL
// =============================================================================

// CostOfEquityCAPM calculates required return on equity using CAPM.
//
// FORMULA: r_e = r_f + β × MRP
//
// Where:
//   - r_f = Risk-free rate (10-year Treasury)
//   - β = Equity beta (market sensitivity)
//   - MRP = Market Risk Premium (expected market return - risk-free rate)
func CostOfEquityCAPM(riskFreeRate, beta, marketRiskPremium float64) float64 {
	return riskFreeRate + beta*marketRiskPremium
}

// WACC calculates Weighted Average Cost of Capital.
//
// FORMULA: WACC = r_d × (1 - T) × (D/V) + r_e × (E/V)
func WACC(costOfDebt, taxRate, debtWeight, costOfEquity, equityWeight float64) float64 {
	afterTaxDebtCost := costOfDebt * (1 - taxRate) * debtWeight
	equityCost := costOfEquity * equityWeight
	return afterTaxDebtCost + equityCost
}

// =============================================================================
// DISCOUNTING
// =============================================================================

// TerminalValueGordonGrowth calculates terminal value using Gordon Growth Model.
//
// FORMULA: TV = CF_{t+1} / (r - g)
//
// Where:
//   - CF_{t+1} = Next period's cash flow (after forecast horizon)
//   - r = Discount rate (WACC or cost of equity)
//   - g = Long-run growth rate (must be < r)
func TerminalValueGordonGrowth(nextPeriodCF, discountRate, growthRate float64) (float64, error) {
	if discountRate <= growthRate {
		return 0, ErrInvalidTerminalSpread
	}
	return nextPeriodCF / (discountRate - growthRate), nil
}

// DiscountFactor returns 1 / (1 + r)^t.
func DiscountFactor(discountRate float64, periods int) float64 {
	return 1.0 / math.Pow(1+discountRate, float64(periods))
}

// PresentValue calculates PV of a single cash flow.
//
// FORMULA: PV = CF / (1 + r)^t
func PresentValue(cashFlow, discountRate float64, periods int) float64 {
	if periods < 0 {
		return 0
	}
	return cashFlow * DiscountFactor(discountRate, periods)
}

// PresentValueOfCashFlows calculates PV of a series of cash flows.
//
// FORMULA: PV = Σ [ CF_t / (1 + r)^t ]
//
// Cash flows are assumed to be at end of each period (ordinary annuity).
func PresentValueOfCashFlows(cashFlows []float64, discountRate float64) float64 {
	var pv float64
	for t, cf := range cashFlows {
		pv += PresentValue(cf, discountRate, t+1)
	}
	return pv
}

// NPV is the net present value of a series whose first element sits at t=0.
func NPV(rate float64, cashFlows []float64) float64 {
	var npv float64
	for t, cf := range cashFlows {
		npv += PresentValue(cf, rate, t)
	}
	return npv
}

// SafeDivide returns a/b, or fallback when b is zero or the result is not finite.
func SafeDivide(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	res := a / b
	if math.IsNaN(res) || math.IsInf(res, 0) {
		return fallback
	}
	return res
}

// =============================================================================
// FORECAST HELPERS
// =============================================================================

// ProjectRevenue calculates projected revenue based on growth assumption.
//
// FORMULA: Sales_t = Sales_{t-1} × (1 + Growth_t)
func ProjectRevenue(priorRevenue, growthRate float64) float64 {
	return priorRevenue * (1 + growthRate)
}

// ProjectFromRatio calculates projected amount from revenue ratio.
//
// FORMULA: Amount = Revenue × Ratio
func ProjectFromRatio(revenue, ratio float64) float64 {
	return revenue * ratio
}

// CAGR is the compound annual growth rate between two values over a number of years.
// Returns 0 when the inputs cannot produce a real-valued rate.
func CAGR(begin, end float64, years float64) float64 {
	if begin <= 0 || end <= 0 || years <= 0 {
		return 0
	}
	return math.Pow(end/begin, 1/years) - 1
}
