package offer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestGenerator(t *testing.T, opts ...GeneratorOption) *Generator {
	t.Helper()
	opts = append([]GeneratorOption{WithGeneratorClock(func() time.Time { return testNow })}, opts...)
	g, err := NewGenerator(nil, opts...)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

type stubInsights struct {
	text string
	err  error
	seen *OfferStack
}

func (s *stubInsights) OfferInsights(_ context.Context, stack *OfferStack) (string, error) {
	s.seen = stack
	return s.text, s.err
}

func TestConservativeScenario_WorkedExample(t *testing.T) {
	g := newTestGenerator(t)
	stack, err := g.Generate(context.Background(), Request{
		CompanyID: "acme",
		Range:     ValuationRange{Low: dec("5000000"), High: dec("10000000")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sc, ok := stack.Scenario(TemplateConservative)
	if !ok {
		t.Fatal("conservative scenario missing")
	}
	if !sc.PurchasePrice.Equal(dec("6500000")) {
		t.Errorf("expected price 6,500,000, got %s", sc.PurchasePrice)
	}
	cash, _ := sc.Component(SourceCash)
	debt, _ := sc.Component(SourceSeniorDebt)
	if !cash.Amount.Equal(dec("4550000")) {
		t.Errorf("expected cash 4,550,000, got %s", cash.Amount)
	}
	if !debt.Amount.Equal(dec("1950000")) {
		t.Errorf("expected debt 1,950,000, got %s", debt.Amount)
	}
}

func TestGenerate_FundingAlwaysSumsToPrice(t *testing.T) {
	ranges := []ValuationRange{
		{Low: dec("5000000"), High: dec("10000000")},
		{Low: dec("1234567.89"), High: dec("9876543.21")},
		{Low: dec("333333.33"), High: dec("333333.33")},
		{Low: dec("0.07"), High: dec("0.13")},
	}
	g := newTestGenerator(t)
	for _, r := range ranges {
		stack, err := g.Generate(context.Background(), Request{CompanyID: "x", Range: r, IncludeOptional: true})
		if err != nil {
			t.Fatalf("range %s..%s: %v", r.Low, r.High, err)
		}
		if len(stack.Scenarios) != 5 {
			t.Fatalf("expected 5 scenarios with optional templates, got %d", len(stack.Scenarios))
		}
		for _, sc := range stack.Scenarios {
			total := decimal.Zero
			for _, c := range sc.Funding {
				total = total.Add(c.Amount)
			}
			if !total.Equal(sc.PurchasePrice) {
				t.Errorf("%s: funding %s != price %s", sc.Name, total, sc.PurchasePrice)
			}
			if err := sc.Validate(); err != nil {
				t.Errorf("%s: %v", sc.Name, err)
			}
			if sc.PurchasePrice.LessThan(r.Low) || sc.PurchasePrice.GreaterThan(r.High) {
				t.Errorf("%s: price %s outside range", sc.Name, sc.PurchasePrice)
			}
		}
	}
}

func TestValidate_DetectsMismatch(t *testing.T) {
	sc := OfferScenario{
		Name:          "broken",
		PurchasePrice: dec("100"),
		Funding: []FundingComponent{
			{Source: SourceCash, Amount: dec("70")},
			{Source: SourceSeniorDebt, Amount: dec("29.99")},
		},
	}
	if err := sc.Validate(); !errors.Is(err, ErrFundingMismatch) {
		t.Errorf("expected ErrFundingMismatch, got %v", err)
	}
}

func TestGenerate_DefaultLadder(t *testing.T) {
	g := newTestGenerator(t)
	stack, err := g.Generate(context.Background(), Request{
		CompanyID: "acme",
		Range:     ValuationRange{Low: dec("5000000"), High: dec("10000000")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TemplateName{TemplateConservative, TemplateAggressive, TemplateCreative}
	if len(stack.Scenarios) != len(want) {
		t.Fatalf("expected %d scenarios, got %d", len(want), len(stack.Scenarios))
	}
	seen := map[string]bool{stack.ID: true}
	for i, sc := range stack.Scenarios {
		if sc.Template != want[i] {
			t.Errorf("scenario %d: expected %s, got %s", i, want[i], sc.Template)
		}
		if sc.ID == "" || seen[sc.ID] {
			t.Errorf("scenario %d has empty or duplicate ID %q", i, sc.ID)
		}
		seen[sc.ID] = true
	}

	// Prices follow range position
	agg, _ := stack.Scenario(TemplateAggressive)
	creative, _ := stack.Scenario(TemplateCreative)
	if !agg.PurchasePrice.Equal(dec("9000000")) || !creative.PurchasePrice.Equal(dec("8000000")) {
		t.Errorf("unexpected prices: aggressive %s creative %s", agg.PurchasePrice, creative.PurchasePrice)
	}
}

func TestGenerate_ExplicitTemplates(t *testing.T) {
	g := newTestGenerator(t)
	r := ValuationRange{Low: dec("100"), High: dec("200")}

	stack, err := g.Generate(context.Background(), Request{CompanyID: "x", Range: r, Templates: []TemplateName{TemplateStrategic}})
	if err != nil || len(stack.Scenarios) != 1 || stack.Scenarios[0].Structure != StructureMerger {
		t.Fatalf("expected single strategic merger scenario, got %v / %+v", err, stack)
	}

	_, err = g.Generate(context.Background(), Request{CompanyID: "x", Range: r, Templates: []TemplateName{"moonshot"}})
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestGenerate_InvalidRange(t *testing.T) {
	g := newTestGenerator(t)
	for _, r := range []ValuationRange{
		{Low: dec("0"), High: dec("10")},
		{Low: dec("10"), High: dec("5")},
	} {
		if _, err := g.Generate(context.Background(), Request{CompanyID: "x", Range: r}); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("range %s..%s: expected ErrInvalidRange, got %v", r.Low, r.High, err)
		}
	}
}

func TestEarnoutScenarioConditionsAndTimeline(t *testing.T) {
	g := newTestGenerator(t)
	stack, _ := g.Generate(context.Background(), Request{
		CompanyID: "x",
		Range:     ValuationRange{Low: dec("100"), High: dec("200")},
	})

	creative, _ := stack.Scenario(TemplateCreative)
	conservative, _ := stack.Scenario(TemplateConservative)

	if !creative.HasEarnout() || conservative.HasEarnout() {
		t.Fatal("only the creative template carries an earnout")
	}
	if len(creative.ClosingConditions) <= len(conservative.ClosingConditions) {
		t.Error("earnout scenario should add closing conditions")
	}
	found := false
	for _, c := range creative.ClosingConditions {
		if c == "Agreement on earnout performance metrics and measurement methodology" {
			found = true
		}
	}
	if !found {
		t.Error("missing earnout metric condition")
	}

	if len(conservative.Timeline) != 5 || len(creative.Timeline) != 6 {
		t.Fatalf("unexpected timeline lengths %d / %d", len(conservative.Timeline), len(creative.Timeline))
	}
	closing := conservative.Timeline[4]
	if closing.DaysOffset != 90 || !closing.Date.Equal(testNow.AddDate(0, 0, 90)) {
		t.Errorf("closing should be 90 days out, got %+v", closing)
	}
	if last := creative.Timeline[5]; last.DaysOffset != 365 {
		t.Errorf("earnout milestone should be at +365, got %d", last.DaysOffset)
	}
}

func TestRiskAndConfidenceScores(t *testing.T) {
	r := ValuationRange{Low: dec("100"), High: dec("200")}
	cons, err := BuildScenario(DefaultTemplates()[0], r, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.7*0.10 + 0.3*0.30 = 0.16
	if d := cons.RiskScore - 0.16; d > 1e-9 || d < -1e-9 {
		t.Errorf("expected risk 0.16, got %f", cons.RiskScore)
	}
	// 0.7*0.08 + 0.3*0.085 = 0.0815
	if d := cons.WeightedCostOfCapital - 0.0815; d > 1e-9 || d < -1e-9 {
		t.Errorf("expected cost of capital 0.0815, got %f", cons.WeightedCostOfCapital)
	}

	creative, _ := BuildScenario(DefaultTemplates()[2], r, testNow)
	if creative.RiskScore <= cons.RiskScore {
		t.Error("earnout-heavy scenario should carry more risk")
	}
	for _, sc := range []OfferScenario{cons, creative} {
		if sc.ConfidenceScore <= 0 || sc.ConfidenceScore > 1 {
			t.Errorf("%s: confidence %f out of (0,1]", sc.Name, sc.ConfidenceScore)
		}
	}
}

func TestInsightsDoNotAlterNumbers(t *testing.T) {
	ins := &stubInsights{text: "Lead with the creative structure."}
	g := newTestGenerator(t, WithInsights(ins))
	r := ValuationRange{Low: dec("5000000"), High: dec("10000000")}

	with, err := g.Generate(context.Background(), Request{CompanyID: "x", Range: r})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	without, _ := g.Generate(context.Background(), Request{CompanyID: "x", Range: r, SkipInsights: true})

	if with.Insights != ins.text || without.Insights != "" {
		t.Errorf("unexpected insights %q / %q", with.Insights, without.Insights)
	}
	for i := range with.Scenarios {
		if !with.Scenarios[i].PurchasePrice.Equal(without.Scenarios[i].PurchasePrice) {
			t.Error("insights must not change prices")
		}
	}

	ins.err = errors.New("quota exceeded")
	ins.text = ""
	if _, err := g.Generate(context.Background(), Request{CompanyID: "x", Range: r}); err != nil {
		t.Errorf("insight failure should not fail generation: %v", err)
	}
}

func TestTemplateValidation(t *testing.T) {
	bad := []Template{
		{Name: "half", RangeFraction: 0.5, Mix: []Allocation{{SourceCash, 0.5}}},
		{Name: "over", RangeFraction: 1.5, Mix: []Allocation{{SourceCash, 1}}},
		{Name: "mystery", RangeFraction: 0.5, Mix: []Allocation{{"crypto", 1}}},
		{RangeFraction: 0.5, Mix: []Allocation{{SourceCash, 1}}},
	}
	for _, tpl := range bad {
		if _, err := NewGenerator([]Template{tpl}); !errors.Is(err, ErrInvalidTemplate) {
			t.Errorf("template %q: expected ErrInvalidTemplate, got %v", tpl.Name, err)
		}
	}
}

func TestRecommended(t *testing.T) {
	stack := &OfferStack{Scenarios: []OfferScenario{
		{Name: "a", ConfidenceScore: 0.5},
		{Name: "b", ConfidenceScore: 0.7},
		{Name: "c", ConfidenceScore: 0.6},
	}}
	if best, ok := stack.Recommended(); !ok || best.Name != "b" {
		t.Errorf("expected b, got %+v", best)
	}
	if _, ok := (&OfferStack{}).Recommended(); ok {
		t.Error("empty stack has no recommendation")
	}
}
