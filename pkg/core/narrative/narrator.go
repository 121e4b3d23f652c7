// Package narrative turns valuation and offer results into prose. Model output
// is advisory: it never feeds back into any number, and when the model is
// unavailable a deterministic templated text is returned instead.
package narrative

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/phuslu/log"

	"deal_valuation/pkg/core/agent"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/metrics"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/prompt"
	"deal_valuation/pkg/core/utils"
	"deal_valuation/pkg/core/valuation"
)

// Agent names used for routing in models.yaml.
const (
	AgentValuation = "valuation_narrative"
	AgentOffer     = "offer_insights"
)

// Reply is the structured response requested from the model.
type Reply struct {
	Summary        string   `json:"summary" validate:"required"`
	Highlights     []string `json:"highlights"`
	Risks          []string `json:"risks"`
	Recommendation string   `json:"recommendation"`
}

// Markdown renders the reply as a short document.
func (r Reply) Markdown() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Summary))
	b.WriteString("\n")
	writeList(&b, "Highlights", r.Highlights)
	writeList(&b, "Risks", r.Risks)
	if rec := strings.TrimSpace(r.Recommendation); rec != "" {
		b.WriteString("\n**Recommendation:** ")
		b.WriteString(rec)
		b.WriteString("\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", strings.TrimSpace(it))
	}
}

// Narrator implements valuation.Narrator and offer.InsightWriter.
type Narrator struct {
	manager *agent.Manager
	prompts *prompt.Registry
	logger  *log.Logger
	metrics *metrics.Metrics
}

var (
	_ valuation.Narrator  = (*Narrator)(nil)
	_ offer.InsightWriter = (*Narrator)(nil)
)

// New builds a Narrator. A nil manager always yields templated text.
func New(manager *agent.Manager, prompts *prompt.Registry, logger *log.Logger, m *metrics.Metrics) *Narrator {
	return &Narrator{
		manager: manager,
		prompts: prompts,
		logger:  logging.Component(logger, "narrative"),
		metrics: m,
	}
}

// ValuationNarrative explains a comprehensive valuation.
func (n *Narrator) ValuationNarrative(ctx context.Context, cv *valuation.ComprehensiveValuation) (string, error) {
	if cv == nil {
		return "", fmt.Errorf("nil valuation")
	}
	vars := valuationVars(cv)
	text, err := n.generate(ctx, AgentValuation, prompt.NarrativeValuation, vars)
	if err != nil {
		return n.fallback(err, cv.CompanyID, ValuationFallback(cv)), nil
	}
	return text, nil
}

// OfferInsights writes negotiation guidance for an offer stack.
func (n *Narrator) OfferInsights(ctx context.Context, stack *offer.OfferStack) (string, error) {
	if stack == nil {
		return "", fmt.Errorf("nil offer stack")
	}
	text, err := n.generate(ctx, AgentOffer, prompt.NarrativeOffer, offerVars(stack))
	if err != nil {
		return n.fallback(err, stack.CompanyID, OfferFallback(stack)), nil
	}
	return text, nil
}

func (n *Narrator) generate(ctx context.Context, agentName, promptID string, vars *prompt.PromptExecutionContext) (string, error) {
	if n.manager == nil || n.prompts == nil {
		return "", fmt.Errorf("no model configured")
	}
	system, user, err := n.prompts.Render(promptID, vars)
	if err != nil {
		return "", err
	}
	raw, err := n.manager.ExecutePrompt(ctx, agentName, user, system, map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return "", err
	}

	var reply Reply
	if _, err := utils.SmartParse(raw, &reply); err != nil {
		// Some models ignore the JSON instruction and answer in prose.
		text := utils.CleanMarkdown(raw)
		if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") || utils.ValidateMarkdown(text) != nil {
			return "", fmt.Errorf("unusable model output: %w", err)
		}
		return text, nil
	}
	text := utils.CleanMarkdown(reply.Markdown())
	if err := utils.ValidateMarkdown(text); err != nil {
		return "", err
	}
	return text, nil
}

func (n *Narrator) fallback(cause error, companyID, text string) string {
	n.metrics.NarrativeFallback()
	n.logger.Warn().Err(cause).Str("company_id", companyID).Msg("model unavailable, using templated narrative")
	return text
}

func valuationVars(cv *valuation.ComprehensiveValuation) *prompt.PromptExecutionContext {
	name := cv.CompanyName
	if name == "" {
		name = cv.CompanyID
	}
	ctx := prompt.NewContext().
		Set("CompanyName", name).
		Set("Recommended", Money(cv.Recommended)).
		Set("Low", Money(cv.Low)).
		Set("High", Money(cv.High)).
		Set("Confidence", Percent(cv.Confidence)).
		Set("Methods", methodLines(cv)).
		Set("Risks", cv.RiskFactors)
	if cv.Snapshot.Industry != "" {
		ctx.Set("Industry", cv.Snapshot.Industry)
	}
	if mc := cv.MonteCarlo; mc != nil {
		ctx.Set("MonteCarlo", fmt.Sprintf("median %s, P5-P95 %s to %s over %d valid draws",
			Money(mc.P50), Money(mc.P5), Money(mc.P95), mc.ValidDraws))
	}
	return ctx
}

func methodLines(cv *valuation.ComprehensiveValuation) []string {
	lines := make([]string, 0, len(cv.Results))
	for _, r := range cv.Results {
		lines = append(lines, fmt.Sprintf("%s: %s (range %s to %s, weight %s)",
			r.Method, Money(r.Value), Money(r.Low), Money(r.High), Percent(cv.AppliedWeights[r.Method])))
	}
	return lines
}

func offerVars(stack *offer.OfferStack) *prompt.PromptExecutionContext {
	name := stack.CompanyName
	if name == "" {
		name = stack.CompanyID
	}
	lines := make([]string, 0, len(stack.Scenarios))
	for _, sc := range stack.Scenarios {
		lines = append(lines, scenarioLine(sc))
	}
	ctx := prompt.NewContext().
		Set("CompanyName", name).
		Set("Low", Money(stack.Range.Low.InexactFloat64())).
		Set("High", Money(stack.Range.High.InexactFloat64())).
		Set("Scenarios", lines)
	if best, ok := stack.Recommended(); ok {
		ctx.Set("Recommended", best.Name)
	}
	return ctx
}

func scenarioLine(sc offer.OfferScenario) string {
	parts := make([]string, 0, len(sc.Funding))
	for _, c := range sc.Funding {
		parts = append(parts, fmt.Sprintf("%s %s", c.Source, Percent(c.Percentage.InexactFloat64())))
	}
	return fmt.Sprintf("%s: %s, %s, risk %.2f, confidence %.2f",
		sc.Name, Money(sc.PurchasePrice.InexactFloat64()), strings.Join(parts, " / "), sc.RiskScore, sc.ConfidenceScore)
}

// ValuationFallback is the templated narrative used without a model.
func ValuationFallback(cv *valuation.ComprehensiveValuation) string {
	var b strings.Builder
	name := cv.CompanyName
	if name == "" {
		name = cv.CompanyID
	}
	fmt.Fprintf(&b, "%s is valued at %s, within a range of %s to %s (confidence %s).\n",
		name, Money(cv.Recommended), Money(cv.Low), Money(cv.High), Percent(cv.Confidence))

	results := append([]valuation.ValuationResult(nil), cv.Results...)
	sort.SliceStable(results, func(i, j int) bool {
		return cv.AppliedWeights[results[i].Method] > cv.AppliedWeights[results[j].Method]
	})
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s: %s at %s weight", r.Method, Money(r.Value), Percent(cv.AppliedWeights[r.Method])))
	}
	writeList(&b, "Methods", lines)
	if mc := cv.MonteCarlo; mc != nil {
		writeList(&b, "Simulation", []string{fmt.Sprintf("%d draws, median %s, 90%% interval %s to %s",
			mc.ValidDraws, Money(mc.P50), Money(mc.P5), Money(mc.P95))})
	}
	writeList(&b, "Risks", cv.RiskFactors)
	return b.String()
}

// OfferFallback is the templated offer guidance used without a model.
func OfferFallback(stack *offer.OfferStack) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d offer scenarios between %s and %s.\n", len(stack.Scenarios),
		Money(stack.Range.Low.InexactFloat64()), Money(stack.Range.High.InexactFloat64()))
	lines := make([]string, 0, len(stack.Scenarios))
	for _, sc := range stack.Scenarios {
		lines = append(lines, scenarioLine(sc))
	}
	writeList(&b, "Scenarios", lines)
	if best, ok := stack.Recommended(); ok {
		fmt.Fprintf(&b, "\n**Recommendation:** lead with %s.\n", best.Name)
	}
	return b.String()
}

// Money formats a currency amount compactly, e.g. $6.50M.
func Money(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%s$%.2fB", sign, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s$%.2fM", sign, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s$%.1fK", sign, v/1e3)
	}
	return fmt.Sprintf("%s$%.2f", sign, v)
}

// Percent formats a fraction as a whole percentage.
func Percent(f float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(f*100))
}
