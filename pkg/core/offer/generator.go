package offer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/metrics"
)

// InsightWriter produces free-text commentary on a finished stack.
// It never changes the numbers.
type InsightWriter interface {
	OfferInsights(ctx context.Context, stack *OfferStack) (string, error)
}

// Request asks for an offer stack over a valuation range.
type Request struct {
	CompanyID       string         `json:"company_id" validate:"required"`
	CompanyName     string         `json:"company_name,omitempty"`
	ValuationID     string         `json:"valuation_id,omitempty"`
	Range           ValuationRange `json:"range"`
	IncludeOptional bool           `json:"include_optional,omitempty"`
	Templates       []TemplateName `json:"templates,omitempty"`
	SkipInsights    bool           `json:"skip_insights,omitempty"`
}

// Generator builds offer stacks from a template ladder.
type Generator struct {
	templates []Template
	byName    map[TemplateName]Template
	insights  InsightWriter
	logger    *log.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

func WithInsights(w InsightWriter) GeneratorOption { return func(g *Generator) { g.insights = w } }
func WithGeneratorMetrics(m *metrics.Metrics) GeneratorOption { return func(g *Generator) { g.metrics = m } }
func WithGeneratorClock(now func() time.Time) GeneratorOption { return func(g *Generator) { g.now = now } }
func WithGeneratorLogger(l *log.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = logging.Component(l, "offer") }
}

// NewGenerator validates the templates and builds a generator. Nil templates use DefaultTemplates.
func NewGenerator(templates []Template, opts ...GeneratorOption) (*Generator, error) {
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	g := &Generator{
		templates: templates,
		byName:    make(map[TemplateName]Template, len(templates)),
		logger:    logging.Nop(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := g.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate template %s", ErrInvalidTemplate, t.Name)
		}
		g.byName[t.Name] = t
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Templates returns the configured ladder.
func (g *Generator) Templates() []Template {
	return append([]Template(nil), g.templates...)
}

// Generate builds every requested scenario, validates its funding, then asks
// the insight writer for commentary. Insight failures are logged, not returned.
func (g *Generator) Generate(ctx context.Context, req Request) (*OfferStack, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	selected, err := g.selectTemplates(req)
	if err != nil {
		return nil, err
	}

	now := g.now()
	stack := &OfferStack{
		ID:          g.newID(),
		CompanyID:   req.CompanyID,
		CompanyName: req.CompanyName,
		ValuationID: req.ValuationID,
		Range:       req.Range,
		CreatedAt:   now.UTC(),
	}

	names := make([]string, 0, len(selected))
	for _, t := range selected {
		sc, err := BuildScenario(t, req.Range, now)
		if err != nil {
			return nil, err
		}
		sc.ID = g.newID()
		stack.Scenarios = append(stack.Scenarios, sc)
		names = append(names, string(t.Name))
	}
	g.metrics.OfferStack(names)

	if g.insights != nil && !req.SkipInsights {
		text, err := g.insights.OfferInsights(ctx, stack)
		if err != nil {
			g.logger.Warn().Str("company_id", req.CompanyID).Err(err).Msg("offer insights unavailable")
		}
		stack.Insights = text
	}

	g.logger.Info().Str("stack_id", stack.ID).Str("company_id", req.CompanyID).
		Int("scenarios", len(stack.Scenarios)).
		Str("low", req.Range.Low.StringFixed(2)).Str("high", req.Range.High.StringFixed(2)).
		Msg("offer stack generated")
	return stack, nil
}

func (g *Generator) selectTemplates(req Request) ([]Template, error) {
	if len(req.Templates) > 0 {
		out := make([]Template, 0, len(req.Templates))
		for _, name := range req.Templates {
			t, ok := g.byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
			}
			out = append(out, t)
		}
		return out, nil
	}

	var out []Template
	for _, t := range g.templates {
		if t.Optional && !req.IncludeOptional {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, ErrNoScenarios
	}
	return out, nil
}

// BuildScenario prices one template within the range and allocates funding.
// The last component absorbs rounding so the funding always equals the price.
func BuildScenario(t Template, r ValuationRange, now time.Time) (OfferScenario, error) {
	if err := t.Validate(); err != nil {
		return OfferScenario{}, err
	}

	fraction := decimal.NewFromFloat(t.RangeFraction)
	price := r.PriceAt(fraction)

	sc := OfferScenario{
		Name:          t.Label,
		Template:      t.Name,
		Description:   t.Description,
		PurchasePrice: price,
		RangePosition: t.RangeFraction,
		Structure:     t.Structure,
		CreatedAt:     now.UTC(),
	}

	allocated := decimal.Zero
	for i, a := range t.Mix {
		pct := decimal.NewFromFloat(a.Percent)
		amount := price.Mul(pct).Round(2)
		if i == len(t.Mix)-1 {
			amount = price.Sub(allocated)
		}
		allocated = allocated.Add(amount)

		p := sourceProfiles[a.Source]
		sc.Funding = append(sc.Funding, FundingComponent{
			Source:        a.Source,
			Amount:        amount,
			Percentage:    pct,
			Terms:         p.terms,
			CostOfCapital: p.costOfCapital,
			RiskFactor:    p.risk,
		})
	}
	if err := sc.Validate(); err != nil {
		return OfferScenario{}, err
	}

	sc.RiskScore, sc.WeightedCostOfCapital = weightedScores(sc.Funding, price)
	sc.ConfidenceScore = confidenceScore(sc.RiskScore, t.RangeFraction)
	sc.ClosingConditions = closingConditions(sc.Funding)
	sc.Timeline = timeline(now, sc.HasEarnout())
	return sc, nil
}

// weightedScores returns the amount-weighted risk factor and cost of capital.
func weightedScores(funding []FundingComponent, price decimal.Decimal) (risk, cost float64) {
	if !price.IsPositive() {
		return 0, 0
	}
	for _, c := range funding {
		w := c.Amount.Div(price).InexactFloat64()
		risk += w * c.RiskFactor
		cost += w * c.CostOfCapital
	}
	return risk, cost
}

// confidenceScore is the likelihood the offer closes: funding risk lowers it,
// a higher position in the range makes it more attractive to the seller.
func confidenceScore(risk, position float64) float64 {
	c := (1 - risk) * (0.8 + 0.2*position)
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func closingConditions(funding []FundingComponent) []string {
	conds := append([]string(nil), standardConditions...)
	for _, c := range funding {
		conds = append(conds, sourceConditions[c.Source]...)
	}
	return conds
}

func timeline(now time.Time, earnout bool) []Milestone {
	steps := standardTimeline
	if earnout {
		steps = append(append([]milestoneOffset(nil), standardTimeline...), earnoutMilestone)
	}
	out := make([]Milestone, 0, len(steps))
	for _, s := range steps {
		out = append(out, Milestone{
			Name:       s.name,
			DaysOffset: s.days,
			Date:       now.UTC().AddDate(0, 0, s.days),
		})
	}
	return out
}
