package valuation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/metrics"
	"deal_valuation/pkg/core/projection"
)

// ErrNoSnapshot is returned when a request carries no financials and no source is configured.
var ErrNoSnapshot = errors.New("no company snapshot available")

// SnapshotSource supplies the target's current financials.
type SnapshotSource interface {
	Snapshot(ctx context.Context, companyID string) (assumption.CompanySnapshot, error)
}

// PeerProvider supplies comparable companies and precedent deals by industry.
type PeerProvider interface {
	Comparables(industry string) []ComparableCompany
	Precedents(industry string) []PrecedentTransaction
}

// Narrator writes the prose summary of a finished valuation.
type Narrator interface {
	ValuationNarrative(ctx context.Context, cv *ComprehensiveValuation) (string, error)
}

// Request drives one comprehensive valuation run.
type Request struct {
	CompanyID string                      `json:"company_id" validate:"required"`
	Snapshot  *assumption.CompanySnapshot `json:"snapshot,omitempty"`
	Industry  string                      `json:"industry,omitempty"`
	Overrides *assumption.Overrides       `json:"overrides,omitempty"`

	// CapitalStructure levers beta to a target D/E when no discount rate override is given.
	CapitalStructure *CapitalStructure `json:"capital_structure,omitempty"`

	// Inline peers take precedence over the provider.
	Comparables []ComparableCompany    `json:"comparables,omitempty"`
	Precedents  []PrecedentTransaction `json:"precedents,omitempty"`

	LBO        *LBOTerms         `json:"lbo,omitempty"`
	MonteCarlo *MonteCarloConfig `json:"monte_carlo,omitempty"`
	Weights    MethodWeights     `json:"weights,omitempty"`

	SkipNarrative bool `json:"skip_narrative,omitempty"`
}

// Prepared is the shared base case: snapshot, assumptions and projection.
type Prepared struct {
	Snapshot    assumption.CompanySnapshot
	Industry    string
	Assumptions assumption.ValuationAssumptions
	Projection  projection.Projection
	WACC        *WACCResult
	// Target feeds the multiple and LBO methods. A missing EBITDA is
	// derived with the same margin the projection uses.
	Target TargetMetrics
}

// Engine orchestrates every valuation method for a company.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	builder    *assumption.Builder
	projector  *projection.ProjectionEngine
	source     SnapshotSource
	peers      PeerProvider
	narrator   Narrator
	weights    MethodWeights
	iterations int
	workers    int
	logger     *log.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

func WithSnapshotSource(s SnapshotSource) Option { return func(e *Engine) { e.source = s } }
func WithPeerProvider(p PeerProvider) Option { return func(e *Engine) { e.peers = p } }
func WithNarrator(n Narrator) Option { return func(e *Engine) { e.narrator = n } }
func WithWeights(w MethodWeights) Option { return func(e *Engine) { e.weights = w } }
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithMonteCarloDefaults sets the draw count and worker bound used when a
// simulation request leaves them unset. Zero iterations keeps the default.
func WithMonteCarloDefaults(iterations, workers int) Option {
	return func(e *Engine) {
		if iterations > 0 {
			e.iterations = iterations
		}
		e.workers = workers
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = logging.Component(l, "valuation") }
}

// NewEngine builds an engine. A nil builder uses the built-in industry profiles.
func NewEngine(builder *assumption.Builder, opts ...Option) *Engine {
	if builder == nil {
		builder = assumption.NewBuilder(nil)
	}
	e := &Engine{
		builder:    builder,
		projector:  projection.NewProjectionEngine(),
		weights:    DefaultWeights(),
		iterations: 10000,
		logger:     logging.Nop(),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Builder exposes the assumption builder (used by config reloads and the API).
func (e *Engine) Builder() *assumption.Builder { return e.builder }

// Prepare resolves the snapshot, builds assumptions and projects cash flows.
func (e *Engine) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	snap, err := e.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	industry := req.Industry
	if industry == "" {
		industry = snap.Industry
	}
	industry = assumption.NormalizeIndustry(industry)

	a := e.builder.Build(snap, industry, req.Overrides)

	p := &Prepared{Snapshot: snap, Industry: industry}
	if req.CapitalStructure != nil && (req.Overrides == nil || req.Overrides.DiscountRate == nil) {
		w, err := WACCFromAssumptions(a, *req.CapitalStructure)
		if err != nil {
			return nil, fmt.Errorf("wacc: %w", err)
		}
		a.DiscountRate = w.WACC
		p.WACC = &w
	}

	proj, err := e.projector.Project(snap.Revenue, a)
	if err != nil {
		return nil, fmt.Errorf("projection for %s: %w", snap.CompanyID, err)
	}

	p.Assumptions = a
	p.Projection = proj
	p.Target = targetMetrics(snap, a)
	return p, nil
}

func (e *Engine) snapshot(ctx context.Context, req Request) (assumption.CompanySnapshot, error) {
	if req.Snapshot != nil {
		snap := *req.Snapshot
		if snap.CompanyID == "" {
			snap.CompanyID = req.CompanyID
		}
		return snap, nil
	}
	if e.source == nil {
		return assumption.CompanySnapshot{}, ErrNoSnapshot
	}
	snap, err := e.source.Snapshot(ctx, req.CompanyID)
	if err != nil {
		return assumption.CompanySnapshot{}, fmt.Errorf("snapshot %s: %w", req.CompanyID, err)
	}
	return snap, nil
}

// Run executes the full valuation. A DCF failure aborts the run; optional
// methods without usable inputs are skipped and listed in SkippedMethods.
func (e *Engine) Run(ctx context.Context, req Request) (cv *ComprehensiveValuation, err error) {
	start := e.now()
	began := time.Now()
	defer func() { e.metrics.ValuationRun(time.Since(began), err) }()

	prep, err := e.Prepare(ctx, req)
	if err != nil {
		e.logger.Error().Str("company_id", req.CompanyID).Err(err).Msg("valuation setup failed")
		return nil, err
	}
	snap, a := prep.Snapshot, prep.Assumptions

	cv = &ComprehensiveValuation{
		ID:             e.newID(),
		CompanyID:      snap.CompanyID,
		CompanyName:    snap.Name,
		CreatedAt:      start.UTC(),
		Snapshot:       snap,
		Assumptions:    a,
		Projection:     prep.Projection,
		SkippedMethods: map[Method]string{},
	}

	e.logger.Info().Str("company_id", snap.CompanyID).Str("industry", prep.Industry).
		Float64("discount_rate", a.DiscountRate).Float64("terminal_growth", a.TerminalGrowth).
		Msg("running valuation")

	// 1. DCF (mandatory)
	dcf, err := e.runDCF(prep)
	if err != nil {
		e.logger.Error().Str("company_id", snap.CompanyID).Err(err).Msg("dcf failed")
		return nil, fmt.Errorf("dcf: %w", err)
	}
	cv.Results = append(cv.Results, dcf)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Relative methods
	target := prep.Target
	comps := req.Comparables
	precs := req.Precedents
	if e.peers != nil {
		if len(comps) == 0 {
			comps = e.peers.Comparables(prep.Industry)
		}
		if len(precs) == 0 {
			precs = e.peers.Precedents(prep.Industry)
		}
	}

	if rel, err := CalculateComps(target, comps); err != nil {
		e.skip(cv, MethodComparables, err)
	} else {
		cv.Results = append(cv.Results, relativeResult(rel))
	}
	if rel, err := CalculateTransactions(target, precs); err != nil {
		e.skip(cv, MethodPrecedents, err)
	} else {
		cv.Results = append(cv.Results, relativeResult(rel))
	}

	// 3. LBO (only with sponsor terms)
	if req.LBO == nil {
		e.skip(cv, MethodLBO, errors.New("no sponsor terms supplied"))
	} else if res, err := e.runLBO(prep, *req.LBO); err != nil {
		e.skip(cv, MethodLBO, err)
	} else {
		cv.Results = append(cv.Results, res)
	}

	// 4. Monte Carlo
	var extraRisks []string
	if req.MonteCarlo != nil {
		cfg := *req.MonteCarlo
		if cfg.Iterations == 0 {
			cfg.Iterations = e.iterations
		}
		if cfg.Workers == 0 {
			cfg.Workers = e.workers
		}
		mc, err := RunMonteCarlo(ctx, SimulationInput{
			BaseRevenue: snap.Revenue,
			Assumptions: a,
			NetDebt:     snap.NetDebt,
		}, cfg)
		switch {
		case err == nil:
			cv.MonteCarlo = mc
			e.metrics.MonteCarloDraws(mc.ValidDraws, mc.InvalidDraws)
			if mc.InvalidDraws > 0 {
				extraRisks = append(extraRisks, fmt.Sprintf("%d of %d simulated draws could not be valued", mc.InvalidDraws, mc.Iterations))
			}
		case errors.Is(err, ErrNoValidDraws):
			extraRisks = append(extraRisks, "Monte Carlo produced no valid draws")
		case ctx.Err() != nil:
			return nil, err
		default:
			return nil, fmt.Errorf("monte carlo: %w", err)
		}
	}

	// 5. Aggregate
	weights := e.weights
	if len(req.Weights) > 0 {
		weights = req.Weights
	}
	sum, err := Aggregate(cv.Results, weights)
	if err != nil {
		return nil, err
	}
	cv.WeightedAverage = sum.WeightedAverage
	cv.Low, cv.High = sum.Low, sum.High
	cv.Recommended = sum.Recommended
	cv.Confidence = sum.Confidence
	cv.AppliedWeights = sum.AppliedWeights
	cv.RiskFactors = collectRisks(cv.Results, extraRisks...)

	// 6. Narrative
	if e.narrator != nil && !req.SkipNarrative {
		text, err := e.narrator.ValuationNarrative(ctx, cv)
		if err != nil {
			e.logger.Warn().Str("company_id", snap.CompanyID).Err(err).Msg("narrative unavailable")
		}
		cv.Narrative = text
	}

	e.logger.Info().Str("id", cv.ID).Str("company_id", snap.CompanyID).
		Float64("recommended", cv.Recommended).Float64("low", cv.Low).Float64("high", cv.High).
		Int("methods", len(cv.Results)).Dur("elapsed", time.Since(began)).
		Msg("valuation complete")
	return cv, nil
}

func (e *Engine) skip(cv *ComprehensiveValuation, m Method, reason error) {
	cv.SkippedMethods[m] = reason.Error()
	e.metrics.MethodSkipped(string(m))
	e.logger.Debug().Str("method", string(m)).Str("reason", reason.Error()).Msg("method skipped")
}

func (e *Engine) runDCF(prep *Prepared) (ValuationResult, error) {
	a := prep.Assumptions
	in := DCFInput{
		Projection:        prep.Projection,
		WACC:              a.DiscountRate,
		TerminalGrowth:    a.TerminalGrowth,
		NetDebt:           prep.Snapshot.NetDebt,
		SharesOutstanding: prep.Snapshot.SharesOutstanding,
	}
	res, err := CalculateDCF(in)
	if err != nil {
		return ValuationResult{}, err
	}

	grid := DCFSensitivity(prep.Projection, prep.Snapshot.NetDebt,
		DefaultAxis(a.DiscountRate, 0.01, 5),
		DefaultAxis(a.TerminalGrowth, 0.005, 5))
	low, high, ok := grid.Range()
	if !ok {
		low, high = res.EnterpriseValue, res.EnterpriseValue
	}

	risks := dcfRiskFactors(in, res)
	if n := grid.InvalidCells(); n > 0 {
		risks = append(risks, fmt.Sprintf("%d sensitivity cells have WACC at or below terminal growth", n))
	}

	return ValuationResult{
		Method:         MethodDCF,
		Value:          res.EnterpriseValue,
		Low:            low,
		High:           high,
		Confidence:     dcfConfidence(risks),
		KeyAssumptions: a.KeyFigures(),
		Sensitivity:    grid,
		RiskFactors:    risks,
		DCF:            &res,
	}, nil
}

func (e *Engine) runLBO(prep *Prepared, terms LBOTerms) (ValuationResult, error) {
	in := NewLBOInput(prep.Target.EBITDA, prep.Assumptions.TaxRate, prep.Projection, terms)
	res, err := CalculateLBO(in)
	if err != nil {
		return ValuationResult{}, err
	}

	grid := LBOSensitivity(in,
		DefaultAxis(terms.ExitMultiple, 1.0, 3),
		DefaultAxis(prep.Assumptions.RevenueGrowth[0], 0.02, 3))
	low, high, ok := grid.Range()
	if !ok {
		low, high = res.MaxEntryEV, res.MaxEntryEV
	}
	// the grid regrows EBITDA at a flat rate, so the base case may sit outside it
	low, high = math.Min(low, res.MaxEntryEV), math.Max(high, res.MaxEntryEV)

	risks := lboRiskFactors(in, res)
	return ValuationResult{
		Method:     MethodLBO,
		Value:      res.MaxEntryEV,
		Low:        low,
		High:       high,
		Confidence: dcfConfidence(risks) - 0.05,
		KeyAssumptions: map[string]float64{
			"leverage_ratio": terms.LeverageRatio,
			"interest_rate":  terms.InterestRate,
			"exit_multiple":  terms.ExitMultiple,
			"target_irr":     terms.TargetIRR,
			"holding_period": float64(terms.HoldingPeriod),
		},
		Sensitivity: grid,
		RiskFactors: risks,
		LBO:         &res,
	}, nil
}

func relativeResult(rel RelativeValuationResult) ValuationResult {
	return ValuationResult{
		Method:     rel.Method,
		Value:      rel.Valuation,
		Low:        rel.Low,
		High:       rel.High,
		Confidence: rel.Confidence,
		KeyAssumptions: map[string]float64{
			"median_ev_revenue": rel.EVRevenue.Median,
			"median_ev_ebitda":  rel.EVEBITDA.Median,
			"revenue_weight":    rel.RevenueWeight,
			"ebitda_weight":     rel.EBITDAWeight,
			"peer_count":        float64(rel.PeerCount),
		},
		RiskFactors: relativeRiskFactors(rel),
		Relative:    &rel,
	}
}

func targetMetrics(snap assumption.CompanySnapshot, a assumption.ValuationAssumptions) TargetMetrics {
	ebitda := snap.EBITDA
	if ebitda == 0 {
		margin, ok := snap.Margin()
		if !ok && len(a.EBITDAMargin) > 0 {
			margin = a.EBITDAMargin[0]
		}
		ebitda = snap.Revenue * margin
	}
	return TargetMetrics{Revenue: snap.Revenue, EBITDA: ebitda}
}
