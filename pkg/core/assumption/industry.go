package assumption

import "strings"

// IndustryProfile holds the defaults used when a snapshot is missing data.
type IndustryProfile struct {
	Name                  string  `yaml:"name" json:"name"`
	Beta                  float64 `yaml:"beta" json:"beta"`
	DefaultGrowth         float64 `yaml:"default_growth" json:"default_growth"`
	EBITDAMargin          float64 `yaml:"ebitda_margin" json:"ebitda_margin"`
	CapexPercent          float64 `yaml:"capex_percent" json:"capex_percent"`
	WorkingCapitalPercent float64 `yaml:"working_capital_percent" json:"working_capital_percent"`
	TaxRate               float64 `yaml:"tax_rate" json:"tax_rate"`
	TerminalGrowth        float64 `yaml:"terminal_growth" json:"terminal_growth"`
}

// DefaultIndustry is the fallback profile key.
const DefaultIndustry = "default"

// Market-wide CAPM defaults.
const (
	DefaultRiskFreeRate      = 0.045
	DefaultMarketRiskPremium = 0.065
	DefaultYears             = 5
)

// GrowthDecay fades the historical growth rate across the first five projection years.
var GrowthDecay = []float64{0.9, 0.8, 0.7, 0.6, 0.5}

// DefaultProfiles returns a fresh copy of the built-in industry table.
func DefaultProfiles() map[string]IndustryProfile {
	return map[string]IndustryProfile{
		"technology": {
			Name: "technology", Beta: 1.25, DefaultGrowth: 0.15, EBITDAMargin: 0.25,
			CapexPercent: 0.04, WorkingCapitalPercent: 0.02, TaxRate: 0.21, TerminalGrowth: 0.03,
		},
		"healthcare": {
			Name: "healthcare", Beta: 0.95, DefaultGrowth: 0.08, EBITDAMargin: 0.20,
			CapexPercent: 0.05, WorkingCapitalPercent: 0.03, TaxRate: 0.21, TerminalGrowth: 0.025,
		},
		"manufacturing": {
			Name: "manufacturing", Beta: 1.10, DefaultGrowth: 0.05, EBITDAMargin: 0.15,
			CapexPercent: 0.06, WorkingCapitalPercent: 0.05, TaxRate: 0.25, TerminalGrowth: 0.02,
		},
		"financial_services": {
			Name: "financial_services", Beta: 1.15, DefaultGrowth: 0.06, EBITDAMargin: 0.30,
			CapexPercent: 0.02, WorkingCapitalPercent: 0.01, TaxRate: 0.25, TerminalGrowth: 0.025,
		},
		"retail": {
			Name: "retail", Beta: 1.05, DefaultGrowth: 0.04, EBITDAMargin: 0.10,
			CapexPercent: 0.03, WorkingCapitalPercent: 0.04, TaxRate: 0.25, TerminalGrowth: 0.02,
		},
		"business_services": {
			Name: "business_services", Beta: 1.00, DefaultGrowth: 0.07, EBITDAMargin: 0.18,
			CapexPercent: 0.03, WorkingCapitalPercent: 0.03, TaxRate: 0.25, TerminalGrowth: 0.025,
		},
		"energy": {
			Name: "energy", Beta: 1.20, DefaultGrowth: 0.03, EBITDAMargin: 0.22,
			CapexPercent: 0.10, WorkingCapitalPercent: 0.03, TaxRate: 0.25, TerminalGrowth: 0.015,
		},
		DefaultIndustry: {
			Name: DefaultIndustry, Beta: 1.0, DefaultGrowth: 0.05, EBITDAMargin: 0.15,
			CapexPercent: 0.04, WorkingCapitalPercent: 0.03, TaxRate: 0.25, TerminalGrowth: 0.025,
		},
	}
}

// NormalizeIndustry lower-cases and snake-cases a free-form industry label.
func NormalizeIndustry(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.NewReplacer(" ", "_", "-", "_", "&", "and").Replace(label)
	switch label {
	case "tech", "software", "saas":
		return "technology"
	case "health", "medical", "life_sciences":
		return "healthcare"
	case "industrial", "industrials":
		return "manufacturing"
	case "finance", "financials", "fintech":
		return "financial_services"
	case "services", "professional_services":
		return "business_services"
	case "consumer", "ecommerce", "e_commerce":
		return "retail"
	case "":
		return DefaultIndustry
	}
	return label
}
