package etr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Tables(t *testing.T) {
	r := NewReport()
	first := &Base{TaxBasis: "tax_accrued"}
	second := &Base{TaxBasis: "tax_paid"}

	r.AddTable("Global_Accrued_BASE_1", first)
	r.AddTable("Global_Paid_BASE_1", second)
	assert.Equal(t, []string{"Global_Accrued_BASE_1", "Global_Paid_BASE_1"}, r.TableNames())

	// Re-adding a name replaces the table without duplicating the name.
	replacement := &Base{TaxBasis: "tax_accrued", Rows: []Row{{ETR: 0.1}}}
	r.AddTable("Global_Accrued_BASE_1", replacement)
	assert.Equal(t, []string{"Global_Accrued_BASE_1", "Global_Paid_BASE_1"}, r.TableNames())

	got, ok := r.Table("Global_Accrued_BASE_1")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	_, ok = r.Table("DE_Accrued_BASE_1")
	assert.False(t, ok)
}

func TestReport_Entries(t *testing.T) {
	r := NewReport()
	r.AddLine("ANALYSIS PARAMETERS:", "Study: Global")
	r.AddBlock("Global Accrued B1 Linear", "body text")

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "ANALYSIS PARAMETERS:", entries[0])

	rule := strings.Repeat("-", 20)
	assert.Equal(t, "\n\n"+rule+"\nGlobal Accrued B1 Linear\n"+rule+"\nbody text", entries[2])

	text := r.Text()
	assert.True(t, strings.HasPrefix(text, "ANALYSIS PARAMETERS:\nStudy: Global\n"))
	assert.Contains(t, text, "Global Accrued B1 Linear")
}

func TestReport_EntriesAreCopies(t *testing.T) {
	r := NewReport()
	r.AddLine("one")

	entries := r.Entries()
	entries[0] = "mutated"
	assert.Equal(t, []string{"one"}, r.Entries())

	names := r.TableNames()
	assert.Empty(t, names)
}

func TestRegressionResult_Summary(t *testing.T) {
	result := &RegressionResult{
		Formula:      FormulaLinear,
		Spec:         "ln_profits ~ ETR",
		Terms:        []string{TermConst, TermETR},
		Coefficients: map[string]float64{TermConst: 2.0, TermETR: 3.0},
		StdErrors:    map[string]float64{TermConst: 0.1, TermETR: 0.2},
		TValues:      map[string]float64{TermConst: 20.0, TermETR: 15.0},
		PValues:      map[string]float64{TermConst: 0.0001, TermETR: 0.003},
		RSquared:     0.95,
		AdjRSquared:  0.94,
		Observations: 15,
	}

	out := result.Summary()

	assert.True(t, strings.HasPrefix(out, "OLS Regression: ln_profits ~ ETR\n"))
	assert.Contains(t, out, "N = 15    R-squared = 0.9500    Adj. R-squared = 0.9400")
	assert.Contains(t, out, "coef")
	assert.Contains(t, out, "P>|t|")
	assert.Equal(t, 3, strings.Count(out, strings.Repeat("-", 70)))

	lines := strings.Split(out, "\n")
	var etrLine string
	for _, line := range lines {
		if strings.HasPrefix(line, "ETR") {
			etrLine = line
		}
	}
	require.NotEmpty(t, etrLine)
	assert.Contains(t, etrLine, "3.0000")
	assert.Contains(t, etrLine, "0.2000")
	assert.Contains(t, etrLine, "15.000")
	assert.True(t, strings.HasSuffix(etrLine, "***"))
}

func TestSignificanceStars(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.0, "***"},
		{0.009, "***"},
		{0.01, "**"},
		{0.049, "**"},
		{0.05, "*"},
		{0.099, "*"},
		{0.1, ""},
		{0.5, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, significanceStars(tt.p), "p=%v", tt.p)
	}
}

func TestRegressionResult_Coefficient(t *testing.T) {
	result := &RegressionResult{
		Coefficients: map[string]float64{TermConst: 1.5, TermETR: -0.4},
	}

	b, ok := result.Coefficient(TermETR)
	assert.True(t, ok)
	assert.Equal(t, -0.4, b)

	_, ok = result.Coefficient(TermETRSq)
	assert.False(t, ok)
	assert.True(t, result.HasTerm(TermConst))
	assert.False(t, result.HasTerm(TermETRSq))
}
