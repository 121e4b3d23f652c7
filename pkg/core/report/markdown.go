// Package report renders finished valuations and offer stacks for people:
// an HTML summary, an Excel workbook and a PDF offer sheet.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"deal_valuation/pkg/core/narrative"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/valuation"
)

// ErrNoValuation is returned when a bundle has nothing to report on.
var ErrNoValuation = errors.New("report needs a valuation")

// Bundle is the material one report is built from. Offers is optional.
type Bundle struct {
	Valuation *valuation.ComprehensiveValuation
	Offers    *offer.OfferStack
}

func (b Bundle) company() string {
	if b.Valuation.CompanyName != "" {
		return b.Valuation.CompanyName
	}
	return b.Valuation.CompanyID
}

func (b Bundle) title() string { return "Valuation: " + b.company() }

// Markdown builds the summary document.
func Markdown(b Bundle) (string, error) {
	cv := b.Valuation
	if cv == nil {
		return "", ErrNoValuation
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", b.title())
	fmt.Fprintf(&sb, "Generated %s, valuation `%s`.\n\n", cv.CreatedAt.Format("2006-01-02 15:04 MST"), cv.ID)

	sb.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Recommended | %s |\n", narrative.Money(cv.Recommended))
	fmt.Fprintf(&sb, "| Range | %s to %s |\n", narrative.Money(cv.Low), narrative.Money(cv.High))
	fmt.Fprintf(&sb, "| Confidence | %s |\n\n", narrative.Percent(cv.Confidence))

	sb.WriteString("## Methods\n\n")
	sb.WriteString("| Method | Value | Low | High | Weight | Confidence |\n|---|---|---|---|---|---|\n")
	for _, r := range cv.Results {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n", r.Method,
			narrative.Money(r.Value), narrative.Money(r.Low), narrative.Money(r.High),
			narrative.Percent(cv.AppliedWeights[r.Method]), narrative.Percent(r.Confidence))
	}
	sb.WriteString("\n")

	if len(cv.SkippedMethods) > 0 {
		skipped := make([]string, 0, len(cv.SkippedMethods))
		for m := range cv.SkippedMethods {
			skipped = append(skipped, string(m))
		}
		sort.Strings(skipped)
		sb.WriteString("Skipped methods:\n\n")
		for _, m := range skipped {
			fmt.Fprintf(&sb, "- %s: %s\n", m, cv.SkippedMethods[valuation.Method(m)])
		}
		sb.WriteString("\n")
	}

	if mc := cv.MonteCarlo; mc != nil {
		sb.WriteString("## Monte Carlo\n\n")
		fmt.Fprintf(&sb, "%d of %d draws valid (seed %d). ", mc.ValidDraws, mc.Iterations, mc.Seed)
		fmt.Fprintf(&sb, "P5 %s, P50 %s, P95 %s, mean %s.\n\n",
			narrative.Money(mc.P5), narrative.Money(mc.P50), narrative.Money(mc.P95), narrative.Money(mc.Mean))
	}

	if len(cv.RiskFactors) > 0 {
		sb.WriteString("## Risk factors\n\n")
		for _, f := range cv.RiskFactors {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
		sb.WriteString("\n")
	}

	text := cv.Narrative
	if strings.TrimSpace(text) == "" {
		text = narrative.ValuationFallback(cv)
	}
	sb.WriteString("## Summary\n\n")
	sb.WriteString(strings.TrimSpace(text))
	sb.WriteString("\n\n")

	if st := b.Offers; st != nil && len(st.Scenarios) > 0 {
		sb.WriteString("## Offer scenarios\n\n")
		sb.WriteString("| Scenario | Price | Structure | Funding | Risk | Confidence |\n|---|---|---|---|---|---|\n")
		for _, sc := range st.Scenarios {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %.2f | %.2f |\n", sc.Name,
				narrative.Money(sc.PurchasePrice.InexactFloat64()), sc.Structure,
				fundingMix(sc), sc.RiskScore, sc.ConfidenceScore)
		}
		sb.WriteString("\n")
		if best, ok := st.Recommended(); ok {
			fmt.Fprintf(&sb, "Highest confidence: **%s** at %s.\n\n", best.Name, narrative.Money(best.PurchasePrice.InexactFloat64()))
		}
		if st.Insights != "" {
			sb.WriteString(strings.TrimSpace(st.Insights))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func fundingMix(sc offer.OfferScenario) string {
	parts := make([]string, 0, len(sc.Funding))
	for _, c := range sc.Funding {
		parts = append(parts, fmt.Sprintf("%s %s", c.Source, narrative.Percent(c.Percentage.InexactFloat64())))
	}
	return strings.Join(parts, ", ")
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(gmhtml.WithXHTML()),
)

// RenderHTML renders the summary as a standalone HTML page. Raw HTML in
// model-written text is dropped by the renderer.
func RenderHTML(b Bundle) ([]byte, error) {
	src, err := Markdown(b)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := md.Convert([]byte(src), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(b.title()))
	out.WriteString("<style>body{font-family:sans-serif;max-width:60em;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}
