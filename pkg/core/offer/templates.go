package offer

import (
	"fmt"
	"math"
)

// TemplateName identifies a financing template.
type TemplateName string

const (
	TemplateConservative       TemplateName = "conservative"
	TemplateAggressive         TemplateName = "aggressive"
	TemplateCreative           TemplateName = "creative"
	TemplateManagementFriendly TemplateName = "management_friendly"
	TemplateStrategic          TemplateName = "strategic"
)

// Allocation is one source's share of the price in a template.
type Allocation struct {
	Source  Source  `yaml:"source" json:"source"`
	Percent float64 `yaml:"percent" json:"percent"`
}

// Template positions a price in the valuation range and splits it across sources.
type Template struct {
	Name          TemplateName  `yaml:"name" json:"name"`
	Label         string        `yaml:"label" json:"label"`
	Description   string        `yaml:"description" json:"description"`
	RangeFraction float64       `yaml:"range_fraction" json:"range_fraction"`
	Mix           []Allocation  `yaml:"mix" json:"mix"`
	Structure     DealStructure `yaml:"structure" json:"structure"`
	Optional      bool          `yaml:"optional" json:"optional"`
}

// Validate checks the fraction is within the range and the mix sums to 100%.
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTemplate)
	}
	if t.RangeFraction < 0 || t.RangeFraction > 1 {
		return fmt.Errorf("%w: %s range fraction %.2f outside [0,1]", ErrInvalidTemplate, t.Name, t.RangeFraction)
	}
	if len(t.Mix) == 0 {
		return fmt.Errorf("%w: %s has no funding mix", ErrInvalidTemplate, t.Name)
	}
	total := 0.0
	for _, a := range t.Mix {
		if _, ok := sourceProfiles[a.Source]; !ok {
			return fmt.Errorf("%w: %s uses unknown source %q", ErrInvalidTemplate, t.Name, a.Source)
		}
		if a.Percent <= 0 {
			return fmt.Errorf("%w: %s allocates %.2f to %s", ErrInvalidTemplate, t.Name, a.Percent, a.Source)
		}
		total += a.Percent
	}
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("%w: %s mix sums to %.4f", ErrInvalidTemplate, t.Name, total)
	}
	return nil
}

// DefaultTemplates is the standard offer ladder.
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:          TemplateConservative,
			Label:         "Conservative",
			Description:   "Low entry price funded mostly with cash; minimal execution risk.",
			RangeFraction: 0.3,
			Mix:           []Allocation{{SourceCash, 0.70}, {SourceSeniorDebt, 0.30}},
			Structure:     StructureAssetPurchase,
		},
		{
			Name:          TemplateAggressive,
			Label:         "Aggressive",
			Description:   "Price near the top of the range to pre-empt competing bidders, levered with debt and a seller note.",
			RangeFraction: 0.8,
			Mix:           []Allocation{{SourceCash, 0.40}, {SourceSeniorDebt, 0.50}, {SourceSellerNote, 0.10}},
			Structure:     StructureStockPurchase,
		},
		{
			Name:          TemplateCreative,
			Label:         "Creative",
			Description:   "Bridges a valuation gap with contingent consideration and seller financing.",
			RangeFraction: 0.6,
			Mix: []Allocation{
				{SourceCash, 0.35}, {SourceSeniorDebt, 0.25}, {SourceEarnout, 0.25}, {SourceSellerNote, 0.15},
			},
			Structure: StructureStockPurchase,
		},
		{
			Name:          TemplateManagementFriendly,
			Label:         "Management-friendly",
			Description:   "Mid-range price with management rolling equity to stay aligned post-close.",
			RangeFraction: 0.5,
			Mix:           []Allocation{{SourceCash, 0.50}, {SourceSeniorDebt, 0.20}, {SourceEquityRollover, 0.30}},
			Structure:     StructureStockPurchase,
			Optional:      true,
		},
		{
			Name:          TemplateStrategic,
			Label:         "Strategic",
			Description:   "Full strategic price reflecting synergies, structured as a merger.",
			RangeFraction: 0.9,
			Mix:           []Allocation{{SourceCash, 0.60}, {SourceSeniorDebt, 0.40}},
			Structure:     StructureMerger,
			Optional:      true,
		},
	}
}

// sourceProfile carries the canned terms attached to each funding source.
type sourceProfile struct {
	terms         string
	costOfCapital float64
	risk          float64
}

var sourceProfiles = map[Source]sourceProfile{
	SourceCash: {
		terms:         "Cash consideration paid at closing from acquirer balance sheet",
		costOfCapital: 0.08,
		risk:          0.10,
	},
	SourceSeniorDebt: {
		terms:         "Senior secured term loan, 5-year amortisation, SOFR + 450bps, 1.25x fixed charge coverage covenant",
		costOfCapital: 0.085,
		risk:          0.30,
	},
	SourceSellerNote: {
		terms:         "Subordinated seller note, 5-year term, 6% interest paid quarterly, bullet at maturity",
		costOfCapital: 0.06,
		risk:          0.40,
	},
	SourceEarnout: {
		terms:         "Contingent payment on achieving agreed revenue and EBITDA targets over 24 months",
		costOfCapital: 0.12,
		risk:          0.60,
	},
	SourceEquityRollover: {
		terms:         "Management rolls existing equity into the acquiring holding company at the deal price",
		costOfCapital: 0.15,
		risk:          0.50,
	},
}

var standardConditions = []string{
	"Satisfactory completion of financial, legal and commercial due diligence",
	"Execution of a definitive purchase agreement",
	"Receipt of required regulatory and third-party consents",
	"No material adverse change in the business prior to closing",
	"Key employee retention agreements executed",
}

var sourceConditions = map[Source][]string{
	SourceSeniorDebt: {
		"Committed debt financing on terms consistent with this offer",
	},
	SourceSellerNote: {
		"Subordination agreement between senior lenders and the seller note holder",
	},
	SourceEarnout: {
		"Agreement on earnout performance metrics and measurement methodology",
		"Seller access to monthly financial reporting during the earnout period",
		"Operating covenants protecting earnout achievability",
	},
	SourceEquityRollover: {
		"Management rollover and shareholder agreement executed",
	},
}

type milestoneOffset struct {
	name string
	days int
}

var standardTimeline = []milestoneOffset{
	{"Letter of intent signed", 0},
	{"Due diligence complete", 30},
	{"Definitive agreement signed", 60},
	{"Regulatory approvals received", 75},
	{"Closing", 90},
}

var earnoutMilestone = milestoneOffset{"First earnout measurement", 365}
