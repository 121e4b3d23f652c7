package valuation

import (
	"fmt"
	"math"

	"deal_valuation/pkg/core/calc"
	"deal_valuation/pkg/core/projection"
)

// LBOInput parameters for Ability-To-Pay analysis
type LBOInput struct {
	TargetEBITDA       float64   `json:"target_ebitda"`
	LeverageRatio      float64   `json:"leverage_ratio"` // Debt / EBITDA (e.g. 5.0x)
	InterestRate       float64   `json:"interest_rate"`  // Cost of Debt
	TaxRate            float64   `json:"tax_rate"`
	EntryMultiple      float64   `json:"entry_multiple,omitempty"` // If set, achieved IRR/MOIC are reported for this price
	ExitMultiple       float64   `json:"exit_multiple"`
	HoldingPeriod      int       `json:"holding_period"` // Years (e.g. 5)
	ProjectedEBITDA    []float64 `json:"projected_ebitda"`
	ProjectedCapex     []float64 `json:"projected_capex"`
	ProjectedChangeNWC []float64 `json:"projected_change_nwc"`
	TargetIRR          float64   `json:"target_irr"` // e.g. 0.20
}

// LBOTerms are the sponsor-side parameters; operating flows come from a projection.
type LBOTerms struct {
	LeverageRatio float64 `json:"leverage_ratio" yaml:"leverage_ratio" validate:"gte=0,lte=10"`
	InterestRate  float64 `json:"interest_rate" yaml:"interest_rate" validate:"gte=0,lt=1"`
	EntryMultiple float64 `json:"entry_multiple,omitempty" yaml:"entry_multiple" validate:"gte=0"`
	ExitMultiple  float64 `json:"exit_multiple" yaml:"exit_multiple" validate:"gt=0"`
	HoldingPeriod int     `json:"holding_period" yaml:"holding_period" validate:"gte=1"`
	TargetIRR     float64 `json:"target_irr" yaml:"target_irr" validate:"gt=0,lt=2"`
}

// DefaultLBOTerms is a typical mid-market sponsor case.
func DefaultLBOTerms() LBOTerms {
	return LBOTerms{
		LeverageRatio: 4.0,
		InterestRate:  0.08,
		ExitMultiple:  8.0,
		HoldingPeriod: 5,
		TargetIRR:     0.20,
	}
}

// NewLBOInput builds the LBO waterfall inputs from a projection.
func NewLBOInput(targetEBITDA, taxRate float64, proj projection.Projection, terms LBOTerms) LBOInput {
	in := LBOInput{
		TargetEBITDA:  targetEBITDA,
		LeverageRatio: terms.LeverageRatio,
		InterestRate:  terms.InterestRate,
		TaxRate:       taxRate,
		EntryMultiple: terms.EntryMultiple,
		ExitMultiple:  terms.ExitMultiple,
		HoldingPeriod: terms.HoldingPeriod,
		TargetIRR:     terms.TargetIRR,
	}
	for _, y := range proj.Years {
		in.ProjectedEBITDA = append(in.ProjectedEBITDA, y.EBITDA)
		in.ProjectedCapex = append(in.ProjectedCapex, y.Capex)
		in.ProjectedChangeNWC = append(in.ProjectedChangeNWC, y.WorkingCapital)
	}
	return in
}

// LBOResult
type LBOResult struct {
	MaxEntryEV           float64   `json:"max_entry_ev"`
	ImpliedEntryMultiple float64   `json:"implied_entry_multiple"`
	EquityCheck          float64   `json:"equity_check"`
	DebtRaised           float64   `json:"debt_raised"`
	ExitEV               float64   `json:"exit_ev"`
	ExitDebt             float64   `json:"exit_debt"`
	ExitEquityValue      float64   `json:"exit_equity_value"`
	DebtSchedule         []float64 `json:"debt_schedule"`

	// Set only when an EntryMultiple was supplied
	AchievedIRR  float64 `json:"achieved_irr,omitempty"`
	AchievedMOIC float64 `json:"achieved_moic,omitempty"`
}

// Validate checks the waterfall can be run for the holding period.
func (in LBOInput) Validate() error {
	switch {
	case in.TargetEBITDA <= 0:
		return fmt.Errorf("%w: target EBITDA must be positive", ErrInvalidLBOInput)
	case in.HoldingPeriod <= 0:
		return fmt.Errorf("%w: holding period must be at least one year", ErrInvalidLBOInput)
	case len(in.ProjectedEBITDA) < in.HoldingPeriod,
		len(in.ProjectedCapex) < in.HoldingPeriod,
		len(in.ProjectedChangeNWC) < in.HoldingPeriod:
		return fmt.Errorf("%w: holding period %d exceeds projection length", ErrInvalidLBOInput, in.HoldingPeriod)
	case in.ExitMultiple <= 0:
		return fmt.Errorf("%w: exit multiple must be positive", ErrInvalidLBOInput)
	case in.TargetIRR <= -1:
		return fmt.Errorf("%w: target IRR must exceed -100%%", ErrInvalidLBOInput)
	}
	return nil
}

// CalculateLBO determines the specific price a sponsor can pay to achieve TargetIRR
func CalculateLBO(input LBOInput) (LBOResult, error) {
	if err := input.Validate(); err != nil {
		return LBOResult{}, err
	}

	// 1. Debt raised at entry
	initialDebt := input.TargetEBITDA * input.LeverageRatio

	// 2. Cash Flow Waterfall: FCF sweeps debt, deficits draw on a revolver
	currentDebt := initialDebt
	schedule := make([]float64, 0, input.HoldingPeriod)

	for i := 0; i < input.HoldingPeriod; i++ {
		ebitda := input.ProjectedEBITDA[i]
		interest := currentDebt * input.InterestRate

		taxes := (ebitda - interest) * input.TaxRate
		if taxes < 0 {
			taxes = 0
		}

		fcf := ebitda - interest - taxes - input.ProjectedCapex[i] - input.ProjectedChangeNWC[i]

		currentDebt -= fcf
		if currentDebt < 0 {
			currentDebt = 0
		}
		schedule = append(schedule, currentDebt)
	}

	// 3. Exit
	exitEV := input.ProjectedEBITDA[input.HoldingPeriod-1] * input.ExitMultiple
	exitEquity := exitEV - currentDebt

	// 4. Backward induction: Entry = Exit / (1+IRR)^T
	requiredEquity := exitEquity / math.Pow(1.0+input.TargetIRR, float64(input.HoldingPeriod))
	maxEntryEV := requiredEquity + initialDebt

	res := LBOResult{
		MaxEntryEV:           maxEntryEV,
		ImpliedEntryMultiple: maxEntryEV / input.TargetEBITDA,
		EquityCheck:          requiredEquity,
		DebtRaised:           initialDebt,
		ExitEV:               exitEV,
		ExitDebt:             currentDebt,
		ExitEquityValue:      exitEquity,
		DebtSchedule:         schedule,
	}

	// 5. Returns at a fixed entry price
	if input.EntryMultiple > 0 {
		entryEquity := input.TargetEBITDA*input.EntryMultiple - initialDebt
		if entryEquity <= 0 {
			return res, fmt.Errorf("%w: entry equity is non-positive at %.2fx with %.2fx leverage",
				ErrInvalidLBOInput, input.EntryMultiple, input.LeverageRatio)
		}
		res.AchievedMOIC = exitEquity / entryEquity
		if irr, err := calc.MultipleIRR(entryEquity, exitEquity, input.HoldingPeriod); err == nil {
			res.AchievedIRR = irr
		}
	}

	return res, nil
}

func lboRiskFactors(in LBOInput, res LBOResult) []string {
	var risks []string
	if in.LeverageRatio > 5 {
		risks = append(risks, fmt.Sprintf("Leverage of %.1fx EBITDA is above typical covenant levels", in.LeverageRatio))
	}
	if res.ExitDebt > res.DebtRaised {
		risks = append(risks, "Cash flow does not service debt; revolver draws grow over the hold")
	}
	if res.ExitEquityValue <= 0 {
		risks = append(risks, "Exit equity is wiped out at the assumed exit multiple")
	}
	return risks
}
