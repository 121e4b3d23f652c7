package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"deal_valuation/pkg/core/offer"
)

// Sheet names, in workbook order.
const (
	SheetSummary     = "Summary"
	SheetProjections = "Projections"
	SheetSensitivity = "Sensitivity"
	SheetOffers      = "Offers"
)

const (
	currencyFormat = "$#,##0"
	percentFormat  = "0.0%"
)

type workbook struct {
	f        *excelize.File
	header   int
	currency int
	percent  int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetProjections, SheetSensitivity, SheetOffers} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	wb := &workbook{f: f}
	var err error
	wb.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	cf, pf := currencyFormat, percentFormat
	if wb.currency, err = f.NewStyle(&excelize.Style{CustomNumFmt: &cf}); err != nil {
		return nil, fmt.Errorf("failed to create currency style: %w", err)
	}
	if wb.percent, err = f.NewStyle(&excelize.Style{CustomNumFmt: &pf}); err != nil {
		return nil, fmt.Errorf("failed to create percent style: %w", err)
	}
	return wb, nil
}

// row writes values starting at column A of the given row.
func (wb *workbook) row(sheet string, n int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	return wb.f.SetSheetRow(sheet, cell, &values)
}

func (wb *workbook) headerRow(sheet string, n int, labels ...interface{}) error {
	if err := wb.row(sheet, n, labels...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, n)
	last, _ := excelize.CoordinatesToCellName(len(labels), n)
	return wb.f.SetCellStyle(sheet, first, last, wb.header)
}

// styleCols applies a style to columns [from, to] over rows [top, bottom].
func (wb *workbook) styleCols(sheet string, style, from, to, top, bottom int) error {
	if bottom < top {
		return nil
	}
	a, _ := excelize.CoordinatesToCellName(from, top)
	b, _ := excelize.CoordinatesToCellName(to, bottom)
	return wb.f.SetCellStyle(sheet, a, b, style)
}

// WriteWorkbook writes the Summary, Projections, Sensitivity and Offers sheets.
func WriteWorkbook(w io.Writer, b Bundle) error {
	if b.Valuation == nil {
		return ErrNoValuation
	}
	wb, err := newWorkbook()
	if err != nil {
		return err
	}
	defer wb.f.Close()

	steps := []func(Bundle) error{wb.summary, wb.projections, wb.sensitivity, wb.offers}
	for _, step := range steps {
		if err := step(b); err != nil {
			return err
		}
	}
	wb.f.SetActiveSheet(0)
	return wb.f.Write(w)
}

func (wb *workbook) summary(b Bundle) error {
	cv := b.Valuation
	s := SheetSummary
	rows := [][]interface{}{
		{"Company", b.company()},
		{"Valuation ID", cv.ID},
		{"Created", cv.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Recommended", cv.Recommended},
		{"Low", cv.Low},
		{"High", cv.High},
		{"Confidence", cv.Confidence},
	}
	for i, r := range rows {
		if err := wb.row(s, i+1, r...); err != nil {
			return err
		}
	}
	if err := wb.styleCols(s, wb.currency, 2, 2, 4, 6); err != nil {
		return err
	}
	if err := wb.styleCols(s, wb.percent, 2, 2, 7, 7); err != nil {
		return err
	}

	start := len(rows) + 2
	if err := wb.headerRow(s, start, "Method", "Value", "Low", "High", "Weight", "Confidence"); err != nil {
		return err
	}
	for i, r := range cv.Results {
		if err := wb.row(s, start+1+i, string(r.Method), r.Value, r.Low, r.High, cv.AppliedWeights[r.Method], r.Confidence); err != nil {
			return err
		}
	}
	end := start + len(cv.Results)
	if err := wb.styleCols(s, wb.currency, 2, 4, start+1, end); err != nil {
		return err
	}
	if err := wb.styleCols(s, wb.percent, 5, 6, start+1, end); err != nil {
		return err
	}
	return wb.f.SetColWidth(s, "A", "F", 18)
}

func (wb *workbook) projections(b Bundle) error {
	s := SheetProjections
	if err := wb.headerRow(s, 1, "Year", "Revenue", "Growth", "EBITDA", "Margin", "Tax", "Capex", "Change in WC", "Free cash flow"); err != nil {
		return err
	}
	years := b.Valuation.Projection.Years
	for i, y := range years {
		if err := wb.row(s, i+2, y.Year, y.Revenue, y.RevenueGrowth, y.EBITDA, y.EBITDAMargin, y.Tax, y.Capex, y.WorkingCapital, y.FreeCashFlow); err != nil {
			return err
		}
	}
	last := len(years) + 1
	for _, cols := range [][2]int{{2, 2}, {4, 4}, {6, 9}} {
		if err := wb.styleCols(s, wb.currency, cols[0], cols[1], 2, last); err != nil {
			return err
		}
	}
	for _, col := range []int{3, 5} {
		if err := wb.styleCols(s, wb.percent, col, col, 2, last); err != nil {
			return err
		}
	}
	return wb.f.SetColWidth(s, "A", "I", 15)
}

// sensitivity stacks one block per method grid; invalid cells are written as "n/a".
func (wb *workbook) sensitivity(b Bundle) error {
	s := SheetSensitivity
	n := 1
	for _, r := range b.Valuation.Results {
		g := r.Sensitivity
		if g == nil {
			continue
		}
		title := fmt.Sprintf("%s: %s (rows) x %s (columns)", r.Method, g.RowLabel, g.ColLabel)
		if err := wb.row(s, n, title); err != nil {
			return err
		}
		header := []interface{}{g.RowLabel}
		for _, c := range g.Cols {
			header = append(header, c)
		}
		if err := wb.headerRow(s, n+1, header...); err != nil {
			return err
		}
		for i, rv := range g.Rows {
			line := []interface{}{rv}
			for j := range g.Cols {
				if g.Valid[i][j] {
					line = append(line, g.Values[i][j])
				} else {
					line = append(line, "n/a")
				}
			}
			if err := wb.row(s, n+2+i, line...); err != nil {
				return err
			}
		}
		if err := wb.styleCols(s, wb.currency, 2, len(g.Cols)+1, n+2, n+1+len(g.Rows)); err != nil {
			return err
		}
		n += len(g.Rows) + 3
	}
	if n == 1 {
		return wb.row(s, 1, "No sensitivity grids for this valuation")
	}
	return wb.f.SetColWidth(s, "A", "H", 16)
}

var offerSources = []offer.Source{
	offer.SourceCash, offer.SourceSeniorDebt, offer.SourceSellerNote, offer.SourceEarnout, offer.SourceEquityRollover,
}

func (wb *workbook) offers(b Bundle) error {
	s := SheetOffers
	if b.Offers == nil || len(b.Offers.Scenarios) == 0 {
		return wb.row(s, 1, "No offer stack generated")
	}
	header := []interface{}{"Scenario", "Structure", "Purchase price"}
	for _, src := range offerSources {
		header = append(header, string(src))
	}
	header = append(header, "Risk", "Confidence", "Cost of capital")
	if err := wb.headerRow(s, 1, header...); err != nil {
		return err
	}

	for i, sc := range b.Offers.Scenarios {
		line := []interface{}{sc.Name, string(sc.Structure), sc.PurchasePrice.InexactFloat64()}
		for _, src := range offerSources {
			c, ok := sc.Component(src)
			if !ok {
				line = append(line, 0)
				continue
			}
			line = append(line, c.Amount.InexactFloat64())
		}
		line = append(line, sc.RiskScore, sc.ConfidenceScore, sc.WeightedCostOfCapital)
		if err := wb.row(s, i+2, line...); err != nil {
			return err
		}
	}
	last := len(b.Offers.Scenarios) + 1
	if err := wb.styleCols(s, wb.currency, 3, 3+len(offerSources), 2, last); err != nil {
		return err
	}
	costCol := 3 + len(offerSources) + 3
	if err := wb.styleCols(s, wb.percent, costCol, costCol, 2, last); err != nil {
		return err
	}
	return wb.f.SetColWidth(s, "A", "K", 16)
}
