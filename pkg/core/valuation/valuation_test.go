package valuation

import (
	"errors"
	"math"
	"testing"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/projection"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func flat(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func testAssumptions(years int) assumption.ValuationAssumptions {
	return assumption.ValuationAssumptions{
		Industry:              "technology",
		Years:                 years,
		RevenueGrowth:         flat(years, 0.10),
		EBITDAMargin:          flat(years, 0.20),
		CapexPercent:          flat(years, 0.05),
		WorkingCapitalPercent: flat(years, 0.02),
		TaxRate:               0.25,
		TerminalGrowth:        0.02,
		DiscountRate:          0.10,
		Beta:                  1.0,
		RiskFreeRate:          0.045,
		MarketRiskPremium:     0.055,
	}
}

func testProjection(t *testing.T, years int) projection.Projection {
	t.Helper()
	proj, err := projection.NewProjectionEngine().Project(1000, testAssumptions(years))
	if err != nil {
		t.Fatalf("projection: %v", err)
	}
	return proj
}

// =============================================================================
// DCF
// =============================================================================

func TestCalculateDCF_KnownValue(t *testing.T) {
	// One year: FCF 88, TV = 88*1.02/0.08 = 1122, EV = (88+1122)/1.1 = 1100
	res, err := CalculateDCF(DCFInput{
		Projection:        testProjection(t, 1),
		WACC:              0.10,
		TerminalGrowth:    0.02,
		NetDebt:           100,
		SharesOutstanding: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(res.EnterpriseValue, 1100, 1e-9) {
		t.Errorf("expected EV 1100, got %f", res.EnterpriseValue)
	}
	if !almostEqual(res.EquityValue, 1000, 1e-9) || !almostEqual(res.SharePrice, 100, 1e-9) {
		t.Errorf("expected equity 1000 / price 100, got %f / %f", res.EquityValue, res.SharePrice)
	}
	if !almostEqual(res.TerminalValue, 1122, 1e-9) {
		t.Errorf("expected TV 1122, got %f", res.TerminalValue)
	}
	if !almostEqual(res.ImpliedMultiple, 1122.0/220.0, 1e-9) {
		t.Errorf("unexpected implied multiple %f", res.ImpliedMultiple)
	}
}

func TestCalculateDCF_PositiveWhenSpreadValid(t *testing.T) {
	proj := testProjection(t, 5)
	for _, y := range proj.Years {
		if y.FreeCashFlow <= 0 {
			t.Fatalf("fixture should have positive FCF, year %d has %f", y.Year, y.FreeCashFlow)
		}
	}
	for _, w := range []float64{0.03, 0.08, 0.15, 0.30} {
		res, err := CalculateDCF(DCFInput{Projection: proj, WACC: w, TerminalGrowth: 0.02})
		if err != nil {
			t.Fatalf("wacc %.2f: unexpected error %v", w, err)
		}
		if res.EnterpriseValue <= 0 {
			t.Errorf("wacc %.2f: EV should be positive, got %f", w, res.EnterpriseValue)
		}
	}
}

func TestCalculateDCF_InvalidSpread(t *testing.T) {
	proj := testProjection(t, 5)
	for _, tc := range []struct{ wacc, g float64 }{{0.05, 0.05}, {0.04, 0.06}} {
		_, err := CalculateDCF(DCFInput{Projection: proj, WACC: tc.wacc, TerminalGrowth: tc.g})
		if !errors.Is(err, ErrInvalidTerminalSpread) {
			t.Errorf("wacc %.2f g %.2f: expected ErrInvalidTerminalSpread, got %v", tc.wacc, tc.g, err)
		}
	}
}

func TestCalculateDCF_NoProjections(t *testing.T) {
	if _, err := CalculateDCF(DCFInput{WACC: 0.1, TerminalGrowth: 0.02}); !errors.Is(err, ErrNoProjections) {
		t.Errorf("expected ErrNoProjections, got %v", err)
	}
}

func TestCalculateWACC_Hamada(t *testing.T) {
	res, err := CalculateWACC(WACCInput{
		UnleveredBeta:     1.0,
		RiskFreeRate:      0.04,
		MarketRiskPremium: 0.06,
		PreTaxCostOfDebt:  0.08,
		TaxRate:           0.25,
		DebtToEquityRatio: 1.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// βL = 1 * (1 + 0.75) = 1.75, Ke = 0.04 + 1.75*0.06 = 0.145
	// WACC = 0.5*0.145 + 0.5*0.06 = 0.1025
	if !almostEqual(res.LeveredBeta, 1.75, 1e-12) || !almostEqual(res.WACC, 0.1025, 1e-12) {
		t.Errorf("unexpected result %+v", res)
	}
	if _, err := CalculateWACC(WACCInput{DebtToEquityRatio: -1}); err == nil {
		t.Error("expected error for negative leverage")
	}
}

// =============================================================================
// RELATIVE
// =============================================================================

func revenuePeers(mults ...float64) []ComparableCompany {
	peers := make([]ComparableCompany, len(mults))
	for i, m := range mults {
		peers[i] = ComparableCompany{Name: "peer", EVRevenue: m, EVEBITDA: m * 5}
	}
	return peers
}

func TestCalculateComps_NonPositiveEBITDAUsesRevenueOnly(t *testing.T) {
	for _, ebitda := range []float64{0, -1_500_000} {
		res, err := CalculateComps(TargetMetrics{Revenue: 10_000_000, EBITDA: ebitda}, revenuePeers(1.5, 2.0, 2.5))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Valuation != 20_000_000 {
			t.Errorf("ebitda %.0f: expected exactly 20,000,000, got %f", ebitda, res.Valuation)
		}
		if res.Valuation != res.RevenueValuation || res.RevenueWeight != 1 || res.EBITDAWeight != 0 {
			t.Errorf("blend should be 100%% revenue, got %+v", res)
		}
	}
}

func TestCalculateComps_Blend(t *testing.T) {
	res, err := CalculateComps(TargetMetrics{Revenue: 100, EBITDA: 20}, revenuePeers(2, 2, 2, 2, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// revenue: 100*2 = 200, ebitda: 20*10 = 200
	if !almostEqual(res.Valuation, 200, 1e-9) {
		t.Errorf("expected 200, got %f", res.Valuation)
	}
	if res.RevenueWeight != 0.3 || res.EBITDAWeight != 0.7 {
		t.Errorf("expected 30/70 weights, got %f/%f", res.RevenueWeight, res.EBITDAWeight)
	}
}

func TestCalculateComps_ConfidenceStep(t *testing.T) {
	tests := []struct {
		peers int
		want  float64
	}{
		{1, 0.6}, {4, 0.6}, {5, 0.8}, {9, 0.8},
	}
	for _, tt := range tests {
		mults := flat(tt.peers, 2)
		res, err := CalculateComps(TargetMetrics{Revenue: 100, EBITDA: 10}, revenuePeers(mults...))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Confidence != tt.want {
			t.Errorf("%d peers: expected confidence %.1f, got %.1f", tt.peers, tt.want, res.Confidence)
		}
	}
}

func TestCalculateComps_RangeFromQuartiles(t *testing.T) {
	res, err := CalculateComps(TargetMetrics{Revenue: 100}, revenuePeers(1, 2, 3, 4, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// P25 = 2, P50 = 3, P75 = 4
	if res.Low != 200 || res.Valuation != 300 || res.High != 400 {
		t.Errorf("expected 200/300/400, got %f/%f/%f", res.Low, res.Valuation, res.High)
	}
}

func TestCalculateComps_DerivesMultiplesAndSkipsUnusable(t *testing.T) {
	peers := []ComparableCompany{
		{Name: "derived", EnterpriseValue: 500, Revenue: 250, EBITDA: 50}, // 2.0x / 10x
		{Name: "empty"},
		{Name: "negative", EVRevenue: -1, EVEBITDA: -3},
	}
	res, err := CalculateComps(TargetMetrics{Revenue: 100, EBITDA: 10}, peers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PeerCount != 1 {
		t.Errorf("expected 1 usable peer, got %d", res.PeerCount)
	}
	if !almostEqual(res.Valuation, 0.3*200+0.7*100, 1e-9) {
		t.Errorf("unexpected valuation %f", res.Valuation)
	}
}

func TestCalculateComps_NoPeers(t *testing.T) {
	if _, err := CalculateComps(TargetMetrics{Revenue: 100, EBITDA: 10}, nil); !errors.Is(err, ErrNoPeers) {
		t.Errorf("expected ErrNoPeers, got %v", err)
	}
}

func TestCalculateTransactions_ControlPremium(t *testing.T) {
	deals := []PrecedentTransaction{
		{Target: "a", EVRevenue: 2, EVEBITDA: 9, ControlPremium: 0.2},
		{Target: "b", EVRevenue: 3, EVEBITDA: 11, ControlPremium: 0.4},
		{Target: "c", EVRevenue: 2.5, EVEBITDA: 10, ControlPremium: 0.3},
	}
	res, err := CalculateTransactions(TargetMetrics{Revenue: 100, EBITDA: 20}, deals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodPrecedents {
		t.Errorf("expected method %s, got %s", MethodPrecedents, res.Method)
	}
	if !almostEqual(res.MedianControlPremium, 0.3, 1e-12) {
		t.Errorf("expected median premium 0.3, got %f", res.MedianControlPremium)
	}
	if !almostEqual(res.Valuation, 0.3*250+0.7*200, 1e-9) {
		t.Errorf("unexpected valuation %f", res.Valuation)
	}
}

// =============================================================================
// LBO
// =============================================================================

func simpleLBO() LBOInput {
	return LBOInput{
		TargetEBITDA:       100,
		ExitMultiple:       10,
		HoldingPeriod:      5,
		ProjectedEBITDA:    flat(5, 100),
		ProjectedCapex:     flat(5, 0),
		ProjectedChangeNWC: flat(5, 0),
		TargetIRR:          0.20,
	}
}

func TestCalculateLBO_BackwardInduction(t *testing.T) {
	in := simpleLBO()
	in.EntryMultiple = 4

	res, err := CalculateLBO(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 1000 / math.Pow(1.2, 5)
	if !almostEqual(res.MaxEntryEV, want, 1e-9) {
		t.Errorf("expected max entry EV %f, got %f", want, res.MaxEntryEV)
	}
	if !almostEqual(res.AchievedMOIC, 2.5, 1e-12) {
		t.Errorf("expected MOIC 2.5, got %f", res.AchievedMOIC)
	}
	if !almostEqual(res.AchievedIRR, math.Pow(2.5, 0.2)-1, 1e-12) {
		t.Errorf("unexpected IRR %f", res.AchievedIRR)
	}
}

func TestCalculateLBO_DebtSweep(t *testing.T) {
	in := simpleLBO()
	in.LeverageRatio = 3
	in.InterestRate = 0.1

	res, err := CalculateLBO(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Year 1: interest 30, FCF 70 -> debt 230
	if !almostEqual(res.DebtSchedule[0], 230, 1e-9) {
		t.Errorf("expected 230 after year 1, got %f", res.DebtSchedule[0])
	}
	for i := 1; i < len(res.DebtSchedule); i++ {
		if res.DebtSchedule[i] > res.DebtSchedule[i-1] {
			t.Errorf("debt should not grow with positive FCF: %v", res.DebtSchedule)
		}
	}
	if res.ExitDebt < 0 {
		t.Errorf("debt cannot go negative, got %f", res.ExitDebt)
	}
}

func TestCalculateLBO_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LBOInput)
	}{
		{"holding past projection", func(in *LBOInput) { in.HoldingPeriod = 7 }},
		{"no ebitda", func(in *LBOInput) { in.TargetEBITDA = 0 }},
		{"no exit multiple", func(in *LBOInput) { in.ExitMultiple = 0 }},
		{"zero hold", func(in *LBOInput) { in.HoldingPeriod = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := simpleLBO()
			tt.mutate(&in)
			if _, err := CalculateLBO(in); !errors.Is(err, ErrInvalidLBOInput) {
				t.Errorf("expected ErrInvalidLBOInput, got %v", err)
			}
		})
	}
}

// =============================================================================
// SENSITIVITY & AGGREGATION
// =============================================================================

func TestDCFSensitivity_FlagsInvalidCells(t *testing.T) {
	proj := testProjection(t, 5)
	grid := DCFSensitivity(proj, 0, []float64{0.02, 0.10}, []float64{0.01, 0.03})

	if grid.Valid[0][1] {
		t.Error("wacc 2% / g 3% should be invalid")
	}
	if !grid.Valid[1][0] || !grid.Valid[1][1] || !grid.Valid[0][0] {
		t.Error("cells with wacc > g should be valid")
	}
	if grid.InvalidCells() != 1 {
		t.Errorf("expected 1 invalid cell, got %d", grid.InvalidCells())
	}

	// Each cell is a full recomputation
	want, _ := CalculateDCF(DCFInput{Projection: proj, WACC: 0.10, TerminalGrowth: 0.03})
	if !almostEqual(grid.Values[1][1], want.EnterpriseValue, 1e-6) {
		t.Errorf("cell mismatch: %f vs %f", grid.Values[1][1], want.EnterpriseValue)
	}

	low, high, ok := grid.Range()
	if !ok || low > high {
		t.Errorf("bad range %f..%f", low, high)
	}
}

func TestLBOSensitivity_MonotoneInExitMultiple(t *testing.T) {
	grid := LBOSensitivity(simpleLBO(), []float64{6, 8, 10}, []float64{0, 0.05})
	for j := range grid.Cols {
		for i := 1; i < len(grid.Rows); i++ {
			if grid.Values[i][j] <= grid.Values[i-1][j] {
				t.Errorf("higher exit multiple should raise max entry EV (col %d)", j)
			}
		}
	}
}

func TestDefaultAxis(t *testing.T) {
	axis := DefaultAxis(0.10, 0.01, 4)
	if len(axis) != 5 || axis[2] != 0.10 || axis[0] != 0.08 || axis[4] != 0.12 {
		t.Errorf("unexpected axis %v", axis)
	}
}

func TestAggregate_RenormalisesWeights(t *testing.T) {
	results := []ValuationResult{
		{Method: MethodDCF, Value: 100, Low: 80, High: 120, Confidence: 0.7},
		{Method: MethodComparables, Value: 200, Low: 150, High: 260, Confidence: 0.8},
	}
	sum, err := Aggregate(results, DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.4/0.7 and 0.3/0.7
	want := (0.4*100 + 0.3*200) / 0.7
	if !almostEqual(sum.WeightedAverage, want, 1e-9) || sum.Recommended != sum.WeightedAverage {
		t.Errorf("expected %f, got %f", want, sum.WeightedAverage)
	}
	if sum.Low != 80 || sum.High != 260 {
		t.Errorf("expected range 80..260, got %f..%f", sum.Low, sum.High)
	}
	total := 0.0
	for _, w := range sum.AppliedWeights {
		total += w
	}
	if !almostEqual(total, 1, 1e-12) {
		t.Errorf("applied weights should sum to 1, got %f", total)
	}
	if m := sum.Methods(); len(m) != 2 || m[0] != MethodComparables {
		t.Errorf("unexpected methods %v", m)
	}
}

func TestAggregate_Errors(t *testing.T) {
	if _, err := Aggregate(nil, DefaultWeights()); !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
	sum, err := Aggregate([]ValuationResult{{Method: "custom", Value: 10}}, DefaultWeights())
	if err != nil || sum.WeightedAverage != 10 {
		t.Errorf("unweighted method should fall back to equal weights, got %v / %f", err, sum.WeightedAverage)
	}
}
