package assumption

import (
	"math"

	"deal_valuation/pkg/core/calc"
)

const (
	minHistoricalGrowth = -0.5
	maxHistoricalGrowth = 1.0
)

// Builder turns snapshots into ValuationAssumptions using an industry table.
// It is safe for concurrent use once constructed.
type Builder struct {
	profiles          map[string]IndustryProfile
	riskFreeRate      float64
	marketRiskPremium float64
}

// NewBuilder creates a builder. Profiles passed in are merged over the built-in table,
// so config only needs to list the industries it wants to change.
func NewBuilder(profiles map[string]IndustryProfile) *Builder {
	merged := DefaultProfiles()
	for k, p := range profiles {
		key := NormalizeIndustry(k)
		if p.Name == "" {
			p.Name = key
		}
		merged[key] = p
	}
	return &Builder{
		profiles:          merged,
		riskFreeRate:      DefaultRiskFreeRate,
		marketRiskPremium: DefaultMarketRiskPremium,
	}
}

// WithMarketRates sets the CAPM market inputs. Non-positive values keep the defaults.
func (b *Builder) WithMarketRates(riskFree, marketRiskPremium float64) *Builder {
	if riskFree > 0 {
		b.riskFreeRate = riskFree
	}
	if marketRiskPremium > 0 {
		b.marketRiskPremium = marketRiskPremium
	}
	return b
}

// Profile returns the profile for an industry label, falling back to the default profile.
func (b *Builder) Profile(industry string) IndustryProfile {
	if p, ok := b.profiles[NormalizeIndustry(industry)]; ok {
		return p
	}
	return b.profiles[DefaultIndustry]
}

// Industries lists the configured profile keys.
func (b *Builder) Industries() []string {
	out := make([]string, 0, len(b.profiles))
	for k := range b.profiles {
		out = append(out, k)
	}
	return out
}

// Build produces the assumption set for one run. Missing inputs silently take
// industry defaults; there is no error path.
func (b *Builder) Build(snap CompanySnapshot, industry string, ov *Overrides) ValuationAssumptions {
	if industry == "" {
		industry = snap.Industry
	}
	profile := b.Profile(industry)
	if ov == nil {
		ov = &Overrides{}
	}

	years := DefaultYears
	if ov.Years > 0 {
		years = ov.Years
	}

	// 1. Growth: historical rate faded by fixed multipliers
	histGrowth := HistoricalGrowth(snap.HistoricalRevenue, profile.DefaultGrowth)
	if ov.HistoricalGrowth != nil {
		histGrowth = *ov.HistoricalGrowth
	}
	growth := make([]float64, years)
	for i := range growth {
		growth[i] = histGrowth * decayAt(i)
	}

	// 2. Margin: company first, then industry
	margin, ok := snap.Margin()
	if !ok {
		margin = profile.EBITDAMargin
	}

	// 3. CAPM discount rate
	beta := pick(ov.Beta, profile.Beta)
	rf := pick(ov.RiskFreeRate, b.riskFreeRate)
	mrp := pick(ov.MarketRiskPremium, b.marketRiskPremium)
	discount := calc.CostOfEquityCAPM(rf, beta, mrp)

	return ValuationAssumptions{
		Industry:              profile.Name,
		Years:                 years,
		RevenueGrowth:         series(ov.RevenueGrowth, growth, years),
		EBITDAMargin:          series(ov.EBITDAMargin, constant(margin, years), years),
		CapexPercent:          series(ov.CapexPercent, constant(profile.CapexPercent, years), years),
		WorkingCapitalPercent: series(ov.WorkingCapitalPercent, constant(profile.WorkingCapitalPercent, years), years),
		TaxRate:               pick(ov.TaxRate, profile.TaxRate),
		TerminalGrowth:        pick(ov.TerminalGrowth, profile.TerminalGrowth),
		DiscountRate:          pick(ov.DiscountRate, discount),
		Beta:                  beta,
		RiskFreeRate:          rf,
		MarketRiskPremium:     mrp,
		DepreciationPercent:   pick(ov.DepreciationPercent, 0),
		HistoricalGrowth:      histGrowth,
	}
}

// HistoricalGrowth estimates the annual growth rate from a revenue history (oldest first).
// Two points give a CAGR; three or more blend the CAGR with a log-linear trend.
// Fewer than two usable points return fallback.
func HistoricalGrowth(history []float64, fallback float64) float64 {
	var clean []float64
	for _, v := range history {
		if v > 0 {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		return fallback
	}

	cagr := calc.CAGR(clean[0], clean[len(clean)-1], float64(len(clean)-1))
	growth := cagr

	if len(clean) >= 3 {
		xs := make([]float64, len(clean))
		ys := make([]float64, len(clean))
		for i, v := range clean {
			xs[i] = float64(i)
			ys[i] = math.Log(v)
		}
		if slope, _, _, err := calc.LinearRegression(xs, ys); err == nil {
			trend := math.Exp(slope) - 1
			growth = (cagr + trend) / 2
		}
	}

	return math.Max(minHistoricalGrowth, math.Min(maxHistoricalGrowth, growth))
}

func decayAt(year int) float64 {
	if year < len(GrowthDecay) {
		return GrowthDecay[year]
	}
	return GrowthDecay[len(GrowthDecay)-1]
}

func pick(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// series returns override padded/truncated to n, or a copy of derived if override is empty.
func series(override, derived []float64, n int) []float64 {
	if len(override) == 0 {
		return append([]float64(nil), derived[:n]...)
	}
	out := make([]float64, n)
	for i := range out {
		if i < len(override) {
			out[i] = override[i]
		} else {
			out[i] = override[len(override)-1]
		}
	}
	return out
}
