package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"deal_valuation/pkg/core/narrative"
)

const (
	pdfFont   = "Arial"
	pdfMargin = 15.0
)

// WritePDF writes a one-page offer summary: headline valuation, the method
// table and every offer scenario with its funding split.
func WritePDF(w io.Writer, b Bundle) error {
	cv := b.Valuation
	if cv == nil {
		return ErrNoValuation
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 20, pdfMargin)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, tr(b.title()), "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, "Generated: "+cv.CreatedAt.Format("2006-01-02"), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetFont(pdfFont, "", 11)
	headline := fmt.Sprintf("Recommended %s, range %s to %s, confidence %s",
		narrative.Money(cv.Recommended), narrative.Money(cv.Low), narrative.Money(cv.High), narrative.Percent(cv.Confidence))
	pdf.MultiCell(0, 6, tr(headline), "", "L", false)
	pdf.Ln(4)

	methods := make([][]string, 0, len(cv.Results))
	for _, r := range cv.Results {
		methods = append(methods, []string{
			string(r.Method), narrative.Money(r.Value), narrative.Money(r.Low), narrative.Money(r.High),
			narrative.Percent(cv.AppliedWeights[r.Method]),
		})
	}
	pdfTable(pdf, tr, []string{"Method", "Value", "Low", "High", "Weight"}, []float64{50, 35, 35, 35, 25}, methods)
	pdf.Ln(6)

	if st := b.Offers; st != nil && len(st.Scenarios) > 0 {
		pdf.SetFont(pdfFont, "B", 13)
		pdf.CellFormat(0, 8, "Offer scenarios", "", 1, "L", false, 0, "")
		rows := make([][]string, 0, len(st.Scenarios))
		for _, sc := range st.Scenarios {
			rows = append(rows, []string{
				sc.Name, narrative.Money(sc.PurchasePrice.InexactFloat64()), string(sc.Structure),
				fmt.Sprintf("%.2f", sc.RiskScore), fmt.Sprintf("%.2f", sc.ConfidenceScore),
			})
		}
		pdfTable(pdf, tr, []string{"Scenario", "Price", "Structure", "Risk", "Confidence"}, []float64{45, 35, 40, 25, 35}, rows)
		pdf.Ln(4)

		pdf.SetFont(pdfFont, "", 9)
		for _, sc := range st.Scenarios {
			pdf.MultiCell(0, 5, tr(sc.Name+": "+fundingMix(sc)), "", "L", false)
		}
		if st.Insights != "" {
			pdf.Ln(4)
			pdf.SetFont(pdfFont, "", 10)
			pdf.MultiCell(0, 5, tr(plainText(st.Insights)), "", "L", false)
		}
	}

	if text := strings.TrimSpace(cv.Narrative); text != "" {
		pdf.Ln(4)
		pdf.SetFont(pdfFont, "B", 13)
		pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 10)
		pdf.MultiCell(0, 5, tr(plainText(text)), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return pdf.Output(w)
}

func pdfTable(pdf *gofpdf.Fpdf, tr func(string) string, header []string, widths []float64, rows [][]string) {
	pdf.SetFont(pdfFont, "B", 10)
	pdf.SetFillColor(68, 114, 196)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", 9)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(242, 242, 242)
	for n, row := range rows {
		fill := n%2 == 1
		for i, cell := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

var markdownMarks = strings.NewReplacer("### ", "", "## ", "", "# ", "", "**", "", "`", "")

// plainText drops the markdown marks the narrative uses.
func plainText(s string) string {
	return markdownMarks.Replace(s)
}
