// Package offer turns a valuation range into named acquisition offer
// scenarios with funding mix, closing conditions and a deal timeline.
package offer

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrFundingMismatch = errors.New("funding components do not sum to purchase price")
	ErrInvalidRange    = errors.New("invalid valuation range")
	ErrUnknownTemplate = errors.New("unknown offer template")
	ErrInvalidTemplate = errors.New("invalid offer template")
	ErrNoScenarios     = errors.New("no offer scenarios requested")
)

// Source is a way of funding the purchase price.
type Source string

const (
	SourceCash           Source = "cash"
	SourceSeniorDebt     Source = "senior_debt"
	SourceSellerNote     Source = "seller_note"
	SourceEarnout        Source = "earnout"
	SourceEquityRollover Source = "equity_rollover"
)

// DealStructure is the legal form of the acquisition.
type DealStructure string

const (
	StructureAssetPurchase DealStructure = "asset_purchase"
	StructureStockPurchase DealStructure = "stock_purchase"
	StructureMerger        DealStructure = "merger"
)

// FundingComponent is one slice of the purchase price.
type FundingComponent struct {
	Source        Source          `json:"source"`
	Amount        decimal.Decimal `json:"amount"`
	Percentage    decimal.Decimal `json:"percentage"` // fraction of price, e.g. 0.7
	Terms         string          `json:"terms"`
	CostOfCapital float64         `json:"cost_of_capital"`
	RiskFactor    float64         `json:"risk_factor"`
}

// Milestone is a dated step in the deal timeline.
type Milestone struct {
	Name       string    `json:"name"`
	DaysOffset int       `json:"days_offset"`
	Date       time.Time `json:"date"`
}

// OfferScenario is one complete offer. Scenarios are independent of each other once built.
type OfferScenario struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	Template              TemplateName       `json:"template"`
	Description           string             `json:"description"`
	PurchasePrice         decimal.Decimal    `json:"purchase_price"`
	RangePosition         float64            `json:"range_position"`
	Funding               []FundingComponent `json:"funding"`
	Structure             DealStructure      `json:"structure"`
	ClosingConditions     []string           `json:"closing_conditions"`
	Timeline              []Milestone        `json:"timeline"`
	RiskScore             float64            `json:"risk_score"`
	ConfidenceScore       float64            `json:"confidence_score"`
	WeightedCostOfCapital float64            `json:"weighted_cost_of_capital"`
	CreatedAt             time.Time          `json:"created_at"`
}

// Validate enforces that the funding components add up to the purchase price exactly.
func (s OfferScenario) Validate() error {
	total := decimal.Zero
	for _, c := range s.Funding {
		if c.Amount.IsNegative() {
			return fmt.Errorf("%s: negative %s amount %s", s.Name, c.Source, c.Amount.StringFixed(2))
		}
		total = total.Add(c.Amount)
	}
	if !total.Equal(s.PurchasePrice) {
		return fmt.Errorf("%s: %w (funding %s, price %s)", s.Name, ErrFundingMismatch,
			total.StringFixed(2), s.PurchasePrice.StringFixed(2))
	}
	return nil
}

// Component returns the funding component for a source, if present.
func (s OfferScenario) Component(src Source) (FundingComponent, bool) {
	for _, c := range s.Funding {
		if c.Source == src {
			return c, true
		}
	}
	return FundingComponent{}, false
}

// HasEarnout reports whether part of the price is contingent.
func (s OfferScenario) HasEarnout() bool {
	_, ok := s.Component(SourceEarnout)
	return ok
}

// ValuationRange is the low/high enterprise value the offers are placed within.
type ValuationRange struct {
	Low  decimal.Decimal `json:"low"`
	High decimal.Decimal `json:"high"`
}

// NewRange builds a range from float valuation outputs, rounded to cents.
func NewRange(low, high float64) ValuationRange {
	return ValuationRange{
		Low:  decimal.NewFromFloat(low).Round(2),
		High: decimal.NewFromFloat(high).Round(2),
	}
}

// Validate requires 0 < low <= high.
func (r ValuationRange) Validate() error {
	if !r.Low.IsPositive() {
		return fmt.Errorf("%w: low must be positive, got %s", ErrInvalidRange, r.Low.String())
	}
	if r.High.LessThan(r.Low) {
		return fmt.Errorf("%w: high %s below low %s", ErrInvalidRange, r.High.String(), r.Low.String())
	}
	return nil
}

// PriceAt returns low + (high-low)*fraction, rounded to cents.
func (r ValuationRange) PriceAt(fraction decimal.Decimal) decimal.Decimal {
	return r.Low.Add(r.High.Sub(r.Low).Mul(fraction)).Round(2)
}

// OfferStack is the set of scenarios generated for one request.
type OfferStack struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	CompanyName string          `json:"company_name,omitempty"`
	ValuationID string          `json:"valuation_id,omitempty"`
	Range       ValuationRange  `json:"range"`
	Scenarios   []OfferScenario `json:"scenarios"`
	Insights    string          `json:"insights,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Scenario finds a scenario by template.
func (s *OfferStack) Scenario(t TemplateName) (OfferScenario, bool) {
	for _, sc := range s.Scenarios {
		if sc.Template == t {
			return sc, true
		}
	}
	return OfferScenario{}, false
}

// Recommended is the scenario with the best confidence score.
func (s *OfferStack) Recommended() (OfferScenario, bool) {
	if len(s.Scenarios) == 0 {
		return OfferScenario{}, false
	}
	best := s.Scenarios[0]
	for _, sc := range s.Scenarios[1:] {
		if sc.ConfidenceScore > best.ConfidenceScore {
			best = sc
		}
	}
	return best, true
}
