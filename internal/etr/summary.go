package etr

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"

	"cbcrcli/pkg/contracts/domain"
)

// ColumnSummary holds descriptive statistics over the present values of
// one analysis column.
type ColumnSummary struct {
	Column  string
	Count   int
	Missing int
	Mean    float64
	Median  float64
	StdDev  float64
	Min     float64
	Max     float64
}

// CountMissing returns how many records lack a usable numeric value in the
// column. An unknown column counts every record as missing.
func CountMissing(records []domain.FirmRecord, column string) int {
	missing := 0
	for _, r := range records {
		v, ok := r.Numeric(column)
		if !ok || v.Missing() {
			missing++
		}
	}
	return missing
}

// SummarizeColumn computes descriptive statistics for one record column
func SummarizeColumn(records []domain.FirmRecord, column string) ColumnSummary {
	present := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Numeric(column); ok && !v.Missing() {
			present = append(present, v.Float64)
		}
	}
	return summarize(column, present, len(records)-len(present))
}

// SummarizeColumns computes descriptive statistics for several record
// columns in the given order.
func SummarizeColumns(records []domain.FirmRecord, columns []string) []ColumnSummary {
	out := make([]ColumnSummary, 0, len(columns))
	for _, col := range columns {
		out = append(out, SummarizeColumn(records, col))
	}
	return out
}

// SummarizeBase describes the derived regression columns of an analysis
// base: the effective tax rate, log profits, and any log controls.
func SummarizeBase(b *Base) []ColumnSummary {
	terms := []string{TermETR, TermLnProfits}
	for _, c := range b.Controls {
		terms = append(terms, LnTerm(c))
	}

	out := make([]ColumnSummary, 0, len(terms))
	for _, term := range terms {
		col, ok := b.Column(term)
		if !ok {
			continue
		}
		out = append(out, summarize(term, col, 0))
	}
	return out
}

func summarize(name string, xs []float64, missing int) ColumnSummary {
	cs := ColumnSummary{Column: name, Count: len(xs), Missing: missing}
	if len(xs) == 0 {
		return cs
	}
	cs.Mean, _ = stats.Mean(xs)
	cs.Median, _ = stats.Median(xs)
	cs.Min, _ = stats.Min(xs)
	cs.Max, _ = stats.Max(xs)
	if len(xs) > 1 {
		cs.StdDev, _ = stats.StandardDeviationSample(xs)
	}
	return cs
}

// FormatColumnSummaries renders descriptive statistics as the fixed-width
// block embedded in study reports.
func FormatColumnSummaries(summaries []ColumnSummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-18s %7s %12s %12s %12s %12s %12s",
		"column", "count", "mean", "median", "std", "min", "max"))
	for _, cs := range summaries {
		sb.WriteString(fmt.Sprintf("\n%-18s %7d %12.4f %12.4f %12.4f %12.4f %12.4f",
			cs.Column, cs.Count, cs.Mean, cs.Median, cs.StdDev, cs.Min, cs.Max))
	}
	return sb.String()
}
