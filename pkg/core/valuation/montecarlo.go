package valuation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/calc"
	"deal_valuation/pkg/core/projection"
)

// monteCarloChunk is the number of iterations one RNG stream covers.
// Chunks are seeded by index so results do not depend on worker count.
const monteCarloChunk = 500

// MonteCarloConfig describes which parameters are drawn and how.
// GrowthShift and MarginShift are added to every projected year; DiscountRate
// and TerminalGrowth replace the base scalar. An unset distribution keeps the base.
type MonteCarloConfig struct {
	Iterations int    `json:"iterations" validate:"gte=1,lte=1000000"`
	Seed       uint64 `json:"seed"`
	Workers    int    `json:"workers,omitempty" validate:"gte=0,lte=64"`

	GrowthShift    assumption.Distribution `json:"growth_shift"`
	MarginShift    assumption.Distribution `json:"margin_shift"`
	DiscountRate   assumption.Distribution `json:"discount_rate"`
	TerminalGrowth assumption.Distribution `json:"terminal_growth"`

	// Threshold is the EV for ProbabilityAbove; zero uses the base DCF value.
	Threshold float64 `json:"threshold,omitempty"`
}

// DefaultMonteCarloConfig centres the draws on the base assumptions.
func DefaultMonteCarloConfig(a assumption.ValuationAssumptions, iterations int, seed uint64) MonteCarloConfig {
	return MonteCarloConfig{
		Iterations:  iterations,
		Seed:        seed,
		GrowthShift: assumption.Distribution{Type: assumption.DistNormal, Mean: 0, Std: 0.02},
		MarginShift: assumption.Distribution{Type: assumption.DistNormal, Mean: 0, Std: 0.015},
		DiscountRate: assumption.Distribution{
			Type: assumption.DistNormal, Mean: a.DiscountRate, Std: 0.01,
		},
		TerminalGrowth: assumption.Distribution{
			Type: assumption.DistTriangular,
			Min:  a.TerminalGrowth - 0.005,
			Mode: a.TerminalGrowth,
			Max:  a.TerminalGrowth + 0.005,
		},
	}
}

// Validate checks iteration count and every configured distribution.
func (c MonteCarloConfig) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", c.Iterations)
	}
	dists := map[string]assumption.Distribution{
		"growth_shift":    c.GrowthShift,
		"margin_shift":    c.MarginShift,
		"discount_rate":   c.DiscountRate,
		"terminal_growth": c.TerminalGrowth,
	}
	for name, d := range dists {
		if d.IsZero() {
			continue
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// MonteCarloResult summarises the simulated enterprise values.
type MonteCarloResult struct {
	Iterations   int     `json:"iterations"`
	ValidDraws   int     `json:"valid_draws"`
	InvalidDraws int     `json:"invalid_draws"`
	Seed         uint64  `json:"seed"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	P5           float64 `json:"p5"`
	P25          float64 `json:"p25"`
	P50          float64 `json:"p50"`
	P75          float64 `json:"p75"`
	P95          float64 `json:"p95"`

	Threshold        float64 `json:"threshold"`
	ProbabilityAbove float64 `json:"probability_above"`
}

// SimulationInput is the base case the simulation perturbs.
type SimulationInput struct {
	BaseRevenue float64
	Assumptions assumption.ValuationAssumptions
	NetDebt     float64
}

// RunMonteCarlo re-runs projection and DCF for each draw across a bounded
// worker group. Draws that cannot be valued (e.g. wacc <= g) are counted
// and skipped. The same seed and iteration count always give the same result.
func RunMonteCarlo(ctx context.Context, in SimulationInput, cfg MonteCarloConfig) (*MonteCarloResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if in.BaseRevenue <= 0 {
		return nil, projection.ErrNoBaseRevenue
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	values := make([]float64, cfg.Iterations)
	valid := make([]bool, cfg.Iterations)
	engine := projection.NewProjectionEngine()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < cfg.Iterations; start += monteCarloChunk {
		start := start
		end := min(start+monteCarloChunk, cfg.Iterations)
		chunk := uint64(start / monteCarloChunk)

		g.Go(func() error {
			rng := rand.New(rand.NewPCG(cfg.Seed, chunk))
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				ev, ok := simulateOnce(engine, in, cfg, rng)
				values[i], valid[i] = ev, ok
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monte carlo cancelled: %w", err)
	}

	evs := make([]float64, 0, cfg.Iterations)
	for i, ok := range valid {
		if ok {
			evs = append(evs, values[i])
		}
	}
	if len(evs) == 0 {
		return nil, ErrNoValidDraws
	}

	res := &MonteCarloResult{
		Iterations:   cfg.Iterations,
		ValidDraws:   len(evs),
		InvalidDraws: cfg.Iterations - len(evs),
		Seed:         cfg.Seed,
	}
	res.Mean, _ = calc.Mean(evs)
	res.StdDev, _ = calc.StdDev(evs)
	res.Min, res.Max, _ = calc.MinMax(evs)
	ps, _ := calc.Percentiles(evs, 5, 25, 50, 75, 95)
	res.P5, res.P25, res.P50, res.P75, res.P95 = ps[5], ps[25], ps[50], ps[75], ps[95]

	res.Threshold = cfg.Threshold
	if res.Threshold == 0 {
		res.Threshold = baseEnterpriseValue(engine, in)
	}
	above := 0
	for _, v := range evs {
		if v > res.Threshold {
			above++
		}
	}
	res.ProbabilityAbove = float64(above) / float64(len(evs))
	return res, nil
}

func simulateOnce(engine *projection.ProjectionEngine, in SimulationInput, cfg MonteCarloConfig, rng *rand.Rand) (float64, bool) {
	a := in.Assumptions.Clone()

	// Fixed draw order keeps streams aligned across runs.
	growthShift := cfg.GrowthShift.Sample(rng)
	marginShift := cfg.MarginShift.Sample(rng)
	rate := a.DiscountRate
	if !cfg.DiscountRate.IsZero() {
		rate = cfg.DiscountRate.Sample(rng)
	}
	tg := a.TerminalGrowth
	if !cfg.TerminalGrowth.IsZero() {
		tg = cfg.TerminalGrowth.Sample(rng)
	}

	for i := range a.RevenueGrowth {
		a.RevenueGrowth[i] += growthShift
	}
	for i := range a.EBITDAMargin {
		a.EBITDAMargin[i] += marginShift
	}
	a.DiscountRate, a.TerminalGrowth = rate, tg

	proj, err := engine.Project(in.BaseRevenue, a)
	if err != nil {
		return 0, false
	}
	res, err := CalculateDCF(DCFInput{Projection: proj, WACC: rate, TerminalGrowth: tg, NetDebt: in.NetDebt})
	if err != nil {
		return 0, false
	}
	return res.EnterpriseValue, true
}

func baseEnterpriseValue(engine *projection.ProjectionEngine, in SimulationInput) float64 {
	proj, err := engine.Project(in.BaseRevenue, in.Assumptions)
	if err != nil {
		return 0
	}
	res, err := CalculateDCF(DCFInput{
		Projection:     proj,
		WACC:           in.Assumptions.DiscountRate,
		TerminalGrowth: in.Assumptions.TerminalGrowth,
	})
	if err != nil {
		return 0
	}
	return res.EnterpriseValue
}
