package etr

import (
	"cbcrcli/pkg/contracts/domain"
)

// Strategy selects how missing financial values are handled before base
// construction.
type Strategy string

const (
	// StrategyCompleteCase drops every row with an absent analysis column
	StrategyCompleteCase Strategy = "complete-case"
	// StrategyImputation fills absent analysis columns with an iterative
	// regression imputer before base construction
	StrategyImputation Strategy = "imputation"
)

// IsValid checks for a known strategy name
func (s Strategy) IsValid() bool {
	return s == StrategyCompleteCase || s == StrategyImputation
}

// AnalysisColumns lists the financial columns an analysis over the given
// tax basis reads: profit, the tax column, then the requested controls.
func AnalysisColumns(taxColumn string, controls []string) []string {
	cols := make([]string, 0, len(controls)+2)
	cols = append(cols, domain.FieldProfitBeforeTax, taxColumn)
	cols = append(cols, controls...)
	return cols
}

// CompleteCase returns the records with no absent value in any of the given
// columns. The input slice is not modified. Applying the result to the same
// columns again returns it unchanged.
func CompleteCase(records []domain.FirmRecord, columns []string) []domain.FirmRecord {
	out := make([]domain.FirmRecord, 0, len(records))
	for _, r := range records {
		if hasAllColumns(r, columns) {
			out = append(out, r)
		}
	}
	return out
}

func hasAllColumns(r domain.FirmRecord, columns []string) bool {
	for _, col := range columns {
		v, ok := r.Numeric(col)
		if !ok || v.Missing() {
			return false
		}
	}
	return true
}
