package valuation

import (
	"math"

	"deal_valuation/pkg/core/projection"
)

// SensitivityGrid holds a 2D table of re-computed valuations.
// Values[i][j] corresponds to Rows[i] × Cols[j]; cells where the model
// cannot be evaluated have Valid[i][j] == false and a zero value.
type SensitivityGrid struct {
	RowLabel string      `json:"row_label"`
	ColLabel string      `json:"col_label"`
	Rows     []float64   `json:"rows"`
	Cols     []float64   `json:"cols"`
	Values   [][]float64 `json:"values"`
	Valid    [][]bool    `json:"valid"`
}

func newGrid(rowLabel, colLabel string, rows, cols []float64) *SensitivityGrid {
	g := &SensitivityGrid{
		RowLabel: rowLabel,
		ColLabel: colLabel,
		Rows:     append([]float64(nil), rows...),
		Cols:     append([]float64(nil), cols...),
		Values:   make([][]float64, len(rows)),
		Valid:    make([][]bool, len(rows)),
	}
	for i := range rows {
		g.Values[i] = make([]float64, len(cols))
		g.Valid[i] = make([]bool, len(cols))
	}
	return g
}

// Range returns the lowest and highest valid cell.
func (g *SensitivityGrid) Range() (low, high float64, ok bool) {
	low, high = math.Inf(1), math.Inf(-1)
	for i := range g.Values {
		for j, v := range g.Values[i] {
			if !g.Valid[i][j] {
				continue
			}
			ok = true
			low = math.Min(low, v)
			high = math.Max(high, v)
		}
	}
	if !ok {
		return 0, 0, false
	}
	return low, high, true
}

// InvalidCells counts cells that could not be evaluated.
func (g *SensitivityGrid) InvalidCells() int {
	n := 0
	for i := range g.Valid {
		for _, v := range g.Valid[i] {
			if !v {
				n++
			}
		}
	}
	return n
}

// DefaultAxis returns n points centred on center, step apart.
// Even n is bumped to the next odd number so the centre is always present.
func DefaultAxis(center, step float64, n int) []float64 {
	if n < 1 {
		n = 1
	}
	if n%2 == 0 {
		n++
	}
	half := n / 2
	axis := make([]float64, n)
	for i := range axis {
		// round to 1bp so labels stay readable
		axis[i] = math.Round((center+float64(i-half)*step)*1e6) / 1e6
	}
	return axis
}

// DCFSensitivity recomputes the full DCF for every WACC × terminal growth pair.
// Pairs with wacc <= g are flagged invalid instead of failing the grid.
func DCFSensitivity(proj projection.Projection, netDebt float64, waccs, growths []float64) *SensitivityGrid {
	g := newGrid("wacc", "terminal_growth", waccs, growths)
	for i, w := range waccs {
		for j, tg := range growths {
			res, err := CalculateDCF(DCFInput{
				Projection:     proj,
				WACC:           w,
				TerminalGrowth: tg,
				NetDebt:        netDebt,
			})
			if err != nil {
				continue
			}
			g.Values[i][j] = res.EnterpriseValue
			g.Valid[i][j] = true
		}
	}
	return g
}

// LBOSensitivity recomputes the sponsor's maximum entry EV for every
// exit multiple × annual EBITDA growth pair. EBITDA is regrown from the
// base at each rate; capex and working capital follow the base input.
func LBOSensitivity(base LBOInput, exitMultiples, ebitdaGrowth []float64) *SensitivityGrid {
	g := newGrid("exit_multiple", "ebitda_growth", exitMultiples, ebitdaGrowth)
	for j, growth := range ebitdaGrowth {
		path := make([]float64, len(base.ProjectedEBITDA))
		ebitda := base.TargetEBITDA
		for k := range path {
			ebitda *= 1 + growth
			path[k] = ebitda
		}
		for i, m := range exitMultiples {
			in := base
			in.ProjectedEBITDA = path
			in.ExitMultiple = m
			in.EntryMultiple = 0
			res, err := CalculateLBO(in)
			if err != nil {
				continue
			}
			g.Values[i][j] = res.MaxEntryEV
			g.Valid[i][j] = true
		}
	}
	return g
}
