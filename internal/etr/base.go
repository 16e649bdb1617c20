package etr

import (
	"math"

	"cbcrcli/pkg/contracts/domain"
)

// BuildBase derives an analysis base from normalized records for one
// tax-basis column. The row set narrows in a fixed order: rows missing the
// profit or tax value go first, then non-positive profits (they have no
// logarithm and break the ETR denominator), then rows whose effective tax
// rate falls outside [etrMin, etrMax). Log profits and squared ETR are
// computed on the survivors.
//
// With requireControls set, each requested control then drops the rows
// where it is absent or non-positive before its log transform. A control
// with no positive observation left in the table at that point is omitted
// from the returned control list instead of emptying the base.
//
// An empty base is a valid result; callers check N() before fitting.
func BuildBase(records []domain.FirmRecord, taxColumn string, controls []string, etrMin, etrMax float64, requireControls bool) *Base {
	type candidate struct {
		firm domain.FirmRecord
		etr  float64
	}

	candidates := make([]candidate, 0, len(records))
	for _, r := range records {
		profit, _ := r.Numeric(domain.FieldProfitBeforeTax)
		tax, known := r.Numeric(taxColumn)
		if !known || profit.Missing() || tax.Missing() {
			continue
		}
		if profit.Float64 <= 0 {
			continue
		}
		etr := tax.Float64 / profit.Float64
		if etr < etrMin || etr >= etrMax {
			continue
		}
		candidates = append(candidates, candidate{firm: r, etr: etr})
	}

	base := &Base{
		TaxBasis: taxColumn,
		ETRMin:   etrMin,
		ETRMax:   etrMax,
	}

	if requireControls {
		for _, control := range controls {
			alive := 0
			for _, c := range candidates {
				if v, ok := c.firm.Numeric(control); ok && v.Positive() {
					alive++
				}
			}
			if alive == 0 {
				// Dead control: leave it out of the model rather than
				// dropping every remaining row.
				continue
			}
			base.Controls = append(base.Controls, control)
			kept := candidates[:0]
			for _, c := range candidates {
				if v, ok := c.firm.Numeric(control); ok && v.Positive() {
					kept = append(kept, c)
				}
			}
			candidates = kept
		}
	}

	base.Rows = make([]Row, 0, len(candidates))
	for _, c := range candidates {
		profit, _ := c.firm.Numeric(domain.FieldProfitBeforeTax)
		row := Row{
			Firm:      c.firm,
			ETR:       c.etr,
			ETRSq:     c.etr * c.etr,
			LnProfits: math.Log(profit.Float64),
		}
		if len(base.Controls) > 0 {
			row.LnControls = make([]float64, len(base.Controls))
			for i, control := range base.Controls {
				v, _ := c.firm.Numeric(control)
				row.LnControls[i] = math.Log(v.Float64)
			}
		}
		base.Rows = append(base.Rows, row)
	}
	return base
}
