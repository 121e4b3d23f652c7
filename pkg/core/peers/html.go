package peers

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"deal_valuation/pkg/core/valuation"
)

// column identifies a recognised table header.
type column int

const (
	colUnknown column = iota
	colName
	colTicker
	colIndustry
	colEV
	colRevenue
	colEBITDA
	colEVRevenue
	colEVEBITDA
	colAcquirer
	colDate
	colPremium
)

var headerAliases = map[string]column{
	"company":           colName,
	"name":              colName,
	"target":            colName,
	"ticker":            colTicker,
	"symbol":            colTicker,
	"industry":          colIndustry,
	"sector":            colIndustry,
	"ev":                colEV,
	"enterprise value":  colEV,
	"deal value":        colEV,
	"transaction value": colEV,
	"revenue":           colRevenue,
	"sales":             colRevenue,
	"ebitda":            colEBITDA,
	"ev/revenue":        colEVRevenue,
	"ev/sales":          colEVRevenue,
	"ev/ebitda":         colEVEBITDA,
	"acquirer":          colAcquirer,
	"buyer":             colAcquirer,
	"date":              colDate,
	"announced":         colDate,
	"premium":           colPremium,
	"control premium":   colPremium,
}

// ParseHTML reads peer tables from an HTML page. A table whose header names
// an acquirer or buyer is read as precedent transactions, any other table
// with a name column as comparables. Tables may carry data-industry.
func ParseHTML(r io.Reader) (Set, error) {
	var set Set
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return set, fmt.Errorf("parse html: %w", err)
	}

	var parseErr error
	doc.Find("table").EachWithBreak(func(i int, table *goquery.Selection) bool {
		industry, _ := table.Attr("data-industry")
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}
		cols := headerColumns(rows.First())
		if !hasColumn(cols, colName) {
			return true
		}
		precedent := hasColumn(cols, colAcquirer)

		rows.Slice(1, rows.Length()).EachWithBreak(func(j int, row *goquery.Selection) bool {
			cells := row.Find("td, th")
			vals := map[column]string{}
			cells.Each(func(k int, cell *goquery.Selection) {
				if k < len(cols) && cols[k] != colUnknown {
					vals[cols[k]] = strings.TrimSpace(cell.Text())
				}
			})
			if vals[colName] == "" {
				return true
			}
			if precedent {
				p, err := precedentFromRow(vals, industry)
				if err != nil {
					parseErr = fmt.Errorf("table %d row %d: %w", i+1, j+1, err)
					return false
				}
				set.Precedents = append(set.Precedents, p)
			} else {
				c, err := comparableFromRow(vals, industry)
				if err != nil {
					parseErr = fmt.Errorf("table %d row %d: %w", i+1, j+1, err)
					return false
				}
				set.Comparables = append(set.Comparables, c)
			}
			return true
		})
		return parseErr == nil
	})
	return set, parseErr
}

func headerColumns(row *goquery.Selection) []column {
	var cols []column
	row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		key := strings.ToLower(strings.Join(strings.Fields(cell.Text()), " "))
		key = strings.NewReplacer(" / ", "/", "($m)", "", "($)", "", "(%)", "").Replace(key)
		cols = append(cols, headerAliases[strings.TrimSpace(key)])
	})
	return cols
}

func hasColumn(cols []column, want column) bool {
	for _, c := range cols {
		if c == want {
			return true
		}
	}
	return false
}

func comparableFromRow(vals map[column]string, industry string) (valuation.ComparableCompany, error) {
	c := valuation.ComparableCompany{
		Name:     vals[colName],
		Ticker:   vals[colTicker],
		Industry: firstNonEmpty(vals[colIndustry], industry),
	}
	var err error
	if c.EnterpriseValue, err = parseAmount(vals[colEV]); err != nil {
		return c, err
	}
	if c.Revenue, err = parseAmount(vals[colRevenue]); err != nil {
		return c, err
	}
	if c.EBITDA, err = parseAmount(vals[colEBITDA]); err != nil {
		return c, err
	}
	if c.EVRevenue, err = parseAmount(vals[colEVRevenue]); err != nil {
		return c, err
	}
	if c.EVEBITDA, err = parseAmount(vals[colEVEBITDA]); err != nil {
		return c, err
	}
	return c, nil
}

func precedentFromRow(vals map[column]string, industry string) (valuation.PrecedentTransaction, error) {
	p := valuation.PrecedentTransaction{
		Target:   vals[colName],
		Acquirer: vals[colAcquirer],
		Industry: firstNonEmpty(vals[colIndustry], industry),
	}
	var err error
	if p.DealValue, err = parseAmount(vals[colEV]); err != nil {
		return p, err
	}
	if p.Revenue, err = parseAmount(vals[colRevenue]); err != nil {
		return p, err
	}
	if p.EBITDA, err = parseAmount(vals[colEBITDA]); err != nil {
		return p, err
	}
	if p.EVRevenue, err = parseAmount(vals[colEVRevenue]); err != nil {
		return p, err
	}
	if p.EVEBITDA, err = parseAmount(vals[colEVEBITDA]); err != nil {
		return p, err
	}
	if p.ControlPremium, err = parsePercent(vals[colPremium]); err != nil {
		return p, err
	}
	if d := vals[colDate]; d != "" {
		if p.AnnouncedAt, err = parseDate(d); err != nil {
			return p, err
		}
	}
	return p, nil
}

// parseAmount accepts "$1,250.5M", "(3.2)", "12.5x", "n/a" and empty cells.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "-", "n/a", "na", "nm", "—":
		return 0, nil
	}
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "x"), "X")

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "B"), strings.HasSuffix(s, "bn"):
		mult, s = 1e9, strings.TrimSuffix(strings.TrimSuffix(s, "B"), "bn")
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "mm"):
		mult, s = 1e6, strings.TrimSuffix(strings.TrimSuffix(s, "M"), "mm")
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	if neg {
		v = -v
	}
	return v * mult, nil
}

// parsePercent turns "32%" into 0.32; bare values above 1 are read as percents.
func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	hasPct := strings.HasSuffix(s, "%")
	v, err := parseAmount(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, err
	}
	if hasPct || v > 1 {
		v /= 100
	}
	return v, nil
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "Jan 2, 2006", "January 2, 2006", "Jan 2006", "2006"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}
