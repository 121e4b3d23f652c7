package valuation

import (
	"fmt"
	"time"

	"deal_valuation/pkg/core/calc"
)

const (
	revenueBlendWeight = 0.3
	ebitdaBlendWeight  = 0.7

	largePeerSetSize    = 5
	largePeerConfidence = 0.8
	smallPeerConfidence = 0.6
)

// TargetMetrics holds the target company's current metrics (LTM)
type TargetMetrics struct {
	Revenue float64 `json:"revenue"`
	EBITDA  float64 `json:"ebitda"`
}

// ComparableCompany represents a publicly traded peer
type ComparableCompany struct {
	Name            string  `json:"name" yaml:"name"`
	Ticker          string  `json:"ticker,omitempty" yaml:"ticker"`
	Industry        string  `json:"industry,omitempty" yaml:"industry"`
	EnterpriseValue float64 `json:"enterprise_value,omitempty" yaml:"enterprise_value"`
	Revenue         float64 `json:"revenue,omitempty" yaml:"revenue"`
	EBITDA          float64 `json:"ebitda,omitempty" yaml:"ebitda"`
	EVRevenue       float64 `json:"ev_revenue,omitempty" yaml:"ev_revenue"`
	EVEBITDA        float64 `json:"ev_ebitda,omitempty" yaml:"ev_ebitda"`
}

// Multiples returns the trading multiples, deriving them from EV when not quoted.
func (c ComparableCompany) Multiples() (evRevenue, evEBITDA float64) {
	return deriveMultiples(c.EVRevenue, c.EVEBITDA, c.EnterpriseValue, c.Revenue, c.EBITDA)
}

// PrecedentTransaction represents a completed acquisition of a similar business
type PrecedentTransaction struct {
	Target         string    `json:"target" yaml:"target"`
	Acquirer       string    `json:"acquirer,omitempty" yaml:"acquirer"`
	Industry       string    `json:"industry,omitempty" yaml:"industry"`
	AnnouncedAt    time.Time `json:"announced_at,omitempty" yaml:"announced_at"`
	DealValue      float64   `json:"deal_value,omitempty" yaml:"deal_value"`
	Revenue        float64   `json:"revenue,omitempty" yaml:"revenue"`
	EBITDA         float64   `json:"ebitda,omitempty" yaml:"ebitda"`
	EVRevenue      float64   `json:"ev_revenue,omitempty" yaml:"ev_revenue"`
	EVEBITDA       float64   `json:"ev_ebitda,omitempty" yaml:"ev_ebitda"`
	ControlPremium float64   `json:"control_premium,omitempty" yaml:"control_premium"`
}

// Multiples returns the transaction multiples, deriving them from deal value when not quoted.
func (p PrecedentTransaction) Multiples() (evRevenue, evEBITDA float64) {
	return deriveMultiples(p.EVRevenue, p.EVEBITDA, p.DealValue, p.Revenue, p.EBITDA)
}

func deriveMultiples(quotedRev, quotedEBITDA, ev, revenue, ebitda float64) (float64, float64) {
	evRev := quotedRev
	if evRev == 0 && ev > 0 {
		evRev = calc.SafeDivide(ev, revenue, 0)
	}
	evEBITDA := quotedEBITDA
	if evEBITDA == 0 && ev > 0 && ebitda > 0 {
		evEBITDA = ev / ebitda
	}
	return evRev, evEBITDA
}

// MultipleStats summarises one multiple across a peer set
type MultipleStats struct {
	Count  int     `json:"count"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
}

// RelativeValuationResult holds the valuation derived from peer multiples
type RelativeValuationResult struct {
	Method           Method        `json:"method"`
	PeerCount        int           `json:"peer_count"`
	EVRevenue        MultipleStats `json:"ev_revenue"`
	EVEBITDA         MultipleStats `json:"ev_ebitda"`
	RevenueValuation float64       `json:"revenue_valuation"`
	EBITDAValuation  float64       `json:"ebitda_valuation"`
	RevenueWeight    float64       `json:"revenue_weight"`
	EBITDAWeight     float64       `json:"ebitda_weight"`
	Valuation        float64       `json:"valuation"`
	Low              float64       `json:"low"`
	High             float64       `json:"high"`
	Confidence       float64       `json:"confidence"`

	MedianControlPremium float64 `json:"median_control_premium,omitempty"`
}

type multipleSample struct {
	evRevenue float64
	evEBITDA  float64
}

// CalculateComps performs Comparable Companies Analysis
func CalculateComps(target TargetMetrics, peers []ComparableCompany) (RelativeValuationResult, error) {
	samples := make([]multipleSample, 0, len(peers))
	for _, p := range peers {
		r, e := p.Multiples()
		samples = append(samples, multipleSample{evRevenue: r, evEBITDA: e})
	}
	return calculateMultiples(MethodComparables, target, samples)
}

// CalculateTransactions performs Precedent Transaction Analysis.
// The multiples already embed the control premium paid, so no extra premium is layered on.
func CalculateTransactions(target TargetMetrics, deals []PrecedentTransaction) (RelativeValuationResult, error) {
	samples := make([]multipleSample, 0, len(deals))
	var premiums []float64
	for _, d := range deals {
		r, e := d.Multiples()
		samples = append(samples, multipleSample{evRevenue: r, evEBITDA: e})
		if d.ControlPremium > 0 {
			premiums = append(premiums, d.ControlPremium)
		}
	}

	res, err := calculateMultiples(MethodPrecedents, target, samples)
	if err != nil {
		return res, err
	}
	if med, err := calc.Median(premiums); err == nil {
		res.MedianControlPremium = med
	}
	return res, nil
}

func calculateMultiples(method Method, target TargetMetrics, samples []multipleSample) (RelativeValuationResult, error) {
	var revMults, ebitdaMults []float64
	usable := 0
	for _, s := range samples {
		counted := false
		if s.evRevenue > 0 {
			revMults = append(revMults, s.evRevenue)
			counted = true
		}
		if s.evEBITDA > 0 {
			ebitdaMults = append(ebitdaMults, s.evEBITDA)
			counted = true
		}
		if counted {
			usable++
		}
	}

	res := RelativeValuationResult{Method: method, PeerCount: usable}
	res.EVRevenue = summarise(revMults)
	res.EVEBITDA = summarise(ebitdaMults)

	useRevenue := res.EVRevenue.Count > 0 && target.Revenue > 0
	useEBITDA := res.EVEBITDA.Count > 0 && target.EBITDA > 0
	if !useRevenue && !useEBITDA {
		return res, fmt.Errorf("%s: %w", method, ErrNoPeers)
	}

	res.RevenueValuation = target.Revenue * res.EVRevenue.Median
	if target.EBITDA > 0 {
		res.EBITDAValuation = target.EBITDA * res.EVEBITDA.Median
	}

	// Blend weights: 30/70 with positive EBITDA, otherwise revenue only
	switch {
	case useRevenue && useEBITDA:
		res.RevenueWeight, res.EBITDAWeight = revenueBlendWeight, ebitdaBlendWeight
		res.Valuation = res.RevenueWeight*res.RevenueValuation + res.EBITDAWeight*res.EBITDAValuation
		res.Low = res.RevenueWeight*target.Revenue*res.EVRevenue.P25 + res.EBITDAWeight*target.EBITDA*res.EVEBITDA.P25
		res.High = res.RevenueWeight*target.Revenue*res.EVRevenue.P75 + res.EBITDAWeight*target.EBITDA*res.EVEBITDA.P75
	case useRevenue:
		res.RevenueWeight = 1
		res.Valuation = res.RevenueValuation
		res.Low = target.Revenue * res.EVRevenue.P25
		res.High = target.Revenue * res.EVRevenue.P75
	default:
		res.EBITDAWeight = 1
		res.Valuation = res.EBITDAValuation
		res.Low = target.EBITDA * res.EVEBITDA.P25
		res.High = target.EBITDA * res.EVEBITDA.P75
	}

	res.Confidence = smallPeerConfidence
	if usable >= largePeerSetSize {
		res.Confidence = largePeerConfidence
	}
	return res, nil
}

func summarise(mults []float64) MultipleStats {
	if len(mults) == 0 {
		return MultipleStats{}
	}
	ps, _ := calc.Percentiles(mults, 25, 50, 75)
	mean, _ := calc.Mean(mults)
	return MultipleStats{
		Count:  len(mults),
		Median: ps[50],
		Mean:   mean,
		P25:    ps[25],
		P75:    ps[75],
	}
}

func relativeRiskFactors(res RelativeValuationResult) []string {
	var risks []string
	if res.PeerCount < largePeerSetSize {
		risks = append(risks, fmt.Sprintf("Small peer set (%d) for %s", res.PeerCount, res.Method))
	}
	if res.EVEBITDA.Count > 1 && res.EVEBITDA.P25 > 0 && res.EVEBITDA.P75/res.EVEBITDA.P25 > 2 {
		risks = append(risks, "Wide dispersion in peer EV/EBITDA multiples")
	}
	if res.EBITDAWeight == 0 {
		risks = append(risks, "Valuation relies on revenue multiples only")
	}
	return risks
}
