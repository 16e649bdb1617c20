package etr

import (
	"fmt"
	"strings"
)

var (
	blockRule   = strings.Repeat("-", 20)
	summaryRule = strings.Repeat("-", 70)
)

// Report accumulates the named tables and ordered text entries of one
// study run. It performs no analysis; the exporter turns it into workbook
// sheets or CSV files.
type Report struct {
	names   []string
	tables  map[string]*Base
	entries []string
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{tables: make(map[string]*Base)}
}

// AddTable registers a named analysis table. Insertion order is preserved;
// re-adding a name replaces the table without duplicating the name.
func (r *Report) AddTable(name string, base *Base) {
	if _, exists := r.tables[name]; !exists {
		r.names = append(r.names, name)
	}
	r.tables[name] = base
}

// Table returns a named table
func (r *Report) Table(name string) (*Base, bool) {
	b, ok := r.tables[name]
	return b, ok
}

// TableNames returns the table names in insertion order
func (r *Report) TableNames() []string {
	return append([]string(nil), r.names...)
}

// AddLine appends plain text entries to the report
func (r *Report) AddLine(lines ...string) {
	r.entries = append(r.entries, lines...)
}

// AddBlock appends a titled entry framed by dashed rules
func (r *Report) AddBlock(title, body string) {
	r.entries = append(r.entries,
		fmt.Sprintf("\n\n%s\n%s\n%s\n%s", blockRule, title, blockRule, body))
}

// Entries returns the text entries in order. An entry may span several
// lines; Text joins them for line-oriented consumers.
func (r *Report) Entries() []string {
	return append([]string(nil), r.entries...)
}

// Text joins all entries into the final report text
func (r *Report) Text() string {
	return strings.Join(r.entries, "\n")
}

// Summary renders a fitted model as a readable text table: the
// specification, fit statistics, and one row per coefficient with its
// standard error, t statistic, p-value and significance stars.
func (r *RegressionResult) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("OLS Regression: %s\n", r.Spec))
	sb.WriteString(fmt.Sprintf("N = %d    R-squared = %.4f    Adj. R-squared = %.4f\n",
		r.Observations, r.RSquared, r.AdjRSquared))
	sb.WriteString(summaryRule + "\n")
	sb.WriteString(fmt.Sprintf("%-20s %12s %12s %12s %10s\n", "", "coef", "std err", "t", "P>|t|"))
	sb.WriteString(summaryRule + "\n")
	for _, term := range r.Terms {
		line := fmt.Sprintf("%-20s %12.4f %12.4f %12.3f %10.3f",
			term, r.Coefficients[term], r.StdErrors[term], r.TValues[term], r.PValues[term])
		if stars := significanceStars(r.PValues[term]); stars != "" {
			line += " " + stars
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString(summaryRule)
	return sb.String()
}

// significanceStars marks the conventional p-value thresholds
func significanceStars(p float64) string {
	switch {
	case p < 0.01:
		return "***"
	case p < 0.05:
		return "**"
	case p < 0.1:
		return "*"
	default:
		return ""
	}
}
