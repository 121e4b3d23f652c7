package valuation

import (
	"context"
	"fmt"
	"time"
)

// SensitivityRequest recomputes the base case over custom axes. Empty axes
// fall back to the grid a full run would produce.
type SensitivityRequest struct {
	Request
	WACCs          []float64 `json:"waccs,omitempty" validate:"omitempty,max=25"`
	TerminalGrowth []float64 `json:"terminal_growth,omitempty" validate:"omitempty,max=25"`
	ExitMultiples  []float64 `json:"exit_multiples,omitempty" validate:"omitempty,max=25"`
	EBITDAGrowth   []float64 `json:"ebitda_growth,omitempty" validate:"omitempty,max=25"`
}

// SensitivityReport holds the DCF grid and, when sponsor terms were given, the LBO grid.
type SensitivityReport struct {
	CompanyID      string           `json:"company_id"`
	DiscountRate   float64          `json:"discount_rate"`
	TerminalGrowth float64          `json:"terminal_growth"`
	DCF            *SensitivityGrid `json:"dcf"`
	LBO            *SensitivityGrid `json:"lbo,omitempty"`
}

// Sensitivity builds the grids without running the relative methods or the narrative.
func (e *Engine) Sensitivity(ctx context.Context, req SensitivityRequest) (*SensitivityReport, error) {
	prep, err := e.Prepare(ctx, req.Request)
	if err != nil {
		return nil, err
	}
	a := prep.Assumptions

	waccs := req.WACCs
	if len(waccs) == 0 {
		waccs = DefaultAxis(a.DiscountRate, 0.01, 5)
	}
	growths := req.TerminalGrowth
	if len(growths) == 0 {
		growths = DefaultAxis(a.TerminalGrowth, 0.005, 5)
	}

	rep := &SensitivityReport{
		CompanyID:      prep.Snapshot.CompanyID,
		DiscountRate:   a.DiscountRate,
		TerminalGrowth: a.TerminalGrowth,
		DCF:            DCFSensitivity(prep.Projection, prep.Snapshot.NetDebt, waccs, growths),
	}

	if req.LBO != nil {
		terms := *req.LBO
		exits := req.ExitMultiples
		if len(exits) == 0 {
			exits = DefaultAxis(terms.ExitMultiple, 1.0, 3)
		}
		ebitdaGrowth := req.EBITDAGrowth
		if len(ebitdaGrowth) == 0 {
			ebitdaGrowth = DefaultAxis(a.RevenueGrowth[0], 0.02, 3)
		}
		in := NewLBOInput(prep.Target.EBITDA, a.TaxRate, prep.Projection, terms)
		if err := in.Validate(); err != nil {
			return nil, err
		}
		rep.LBO = LBOSensitivity(in, exits, ebitdaGrowth)
	}

	e.logger.Debug().Str("company_id", rep.CompanyID).Int("invalid_cells", rep.DCF.InvalidCells()).Msg("sensitivity computed")
	return rep, nil
}

// Simulate runs only the Monte Carlo step on the prepared base case. A request
// without a config draws around the base assumptions with the engine defaults.
func (e *Engine) Simulate(ctx context.Context, req Request) (*MonteCarloResult, error) {
	prep, err := e.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var cfg MonteCarloConfig
	if req.MonteCarlo != nil {
		cfg = *req.MonteCarlo
	} else {
		cfg = DefaultMonteCarloConfig(prep.Assumptions, e.iterations, uint64(e.now().UnixNano()))
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = e.iterations
	}
	if cfg.Workers == 0 {
		cfg.Workers = e.workers
	}

	start := e.now()
	res, err := RunMonteCarlo(ctx, SimulationInput{
		BaseRevenue: prep.Snapshot.Revenue,
		Assumptions: prep.Assumptions,
		NetDebt:     prep.Snapshot.NetDebt,
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("monte carlo: %w", err)
	}
	e.metrics.MonteCarloDraws(res.ValidDraws, res.InvalidDraws)
	e.logger.Info().Str("company_id", prep.Snapshot.CompanyID).Int("iterations", res.Iterations).
		Int("invalid", res.InvalidDraws).Float64("p50", res.P50).Dur("elapsed", time.Since(start)).
		Msg("simulation complete")
	return res, nil
}
