package etr

import (
	"fmt"
	"strings"

	"cbcrcli/pkg/contracts/domain"
)

// Regressor and response names used in model specifications
const (
	TermConst     = "const"
	TermETR       = "ETR"
	TermETRSq     = "ETR_sq"
	TermLnProfits = "ln_profits"
)

// LnTerm returns the regressor name of a log-transformed control column
func LnTerm(control string) string {
	return "ln_" + control
}

// Formula identifies one of the closed set of model specifications.
// Arbitrary expressions are not supported.
type Formula int

const (
	// FormulaLinear is ln_profits ~ ETR
	FormulaLinear Formula = iota
	// FormulaQuadratic is ln_profits ~ ETR + ETR_sq
	FormulaQuadratic
	// FormulaLinearControls is ln_profits ~ ETR + log controls
	FormulaLinearControls
	// FormulaQuadraticControls is ln_profits ~ ETR + ETR_sq + log controls
	FormulaQuadraticControls
)

// String returns a short identifier for logs and labels
func (f Formula) String() string {
	switch f {
	case FormulaLinear:
		return "linear"
	case FormulaQuadratic:
		return "quadratic"
	case FormulaLinearControls:
		return "linear_controls"
	case FormulaQuadraticControls:
		return "quadratic_controls"
	default:
		return "unknown"
	}
}

// IsValid checks whether the formula is one of the supported specifications
func (f Formula) IsValid() bool {
	return f >= FormulaLinear && f <= FormulaQuadraticControls
}

// Quadratic reports whether the specification includes the squared ETR term
func (f Formula) Quadratic() bool {
	return f == FormulaQuadratic || f == FormulaQuadraticControls
}

// WithControls reports whether the specification references log controls
func (f Formula) WithControls() bool {
	return f == FormulaLinearControls || f == FormulaQuadraticControls
}

// Terms returns the regressor names for this specification, in model order,
// excluding the implicit intercept.
func (f Formula) Terms(controls []string) []string {
	terms := []string{TermETR}
	if f.Quadratic() {
		terms = append(terms, TermETRSq)
	}
	if f.WithControls() {
		for _, c := range controls {
			terms = append(terms, LnTerm(c))
		}
	}
	return terms
}

// Spec renders the specification the way the study reports write it,
// e.g. "ln_profits ~ ETR + ETR_sq + ln_employees".
func (f Formula) Spec(controls []string) string {
	return TermLnProfits + " ~ " + strings.Join(f.Terms(controls), " + ")
}

// Row is one observation of an analysis base. LnControls is aligned with the
// owning base's Controls slice.
type Row struct {
	Firm       domain.FirmRecord
	ETR        float64
	ETRSq      float64
	LnProfits  float64
	LnControls []float64
}

// Base is a filtered, feature-augmented table prepared for one regression
// specification. Built fresh per tax-basis and control-level combination and
// never mutated afterwards.
type Base struct {
	TaxBasis string
	ETRMin   float64
	ETRMax   float64
	Controls []string
	Rows     []Row
}

// N returns the observation count
func (b *Base) N() int {
	return len(b.Rows)
}

// Empty reports whether the base has no observations. An empty base is a
// valid result, it signals insufficient data to the caller.
func (b *Base) Empty() bool {
	return len(b.Rows) == 0
}

// ObservedETRRange returns the smallest and largest ETR in the base.
// Both are zero when the base is empty.
func (b *Base) ObservedETRRange() (min, max float64) {
	if len(b.Rows) == 0 {
		return 0, 0
	}
	min, max = b.Rows[0].ETR, b.Rows[0].ETR
	for _, r := range b.Rows[1:] {
		if r.ETR < min {
			min = r.ETR
		}
		if r.ETR > max {
			max = r.ETR
		}
	}
	return min, max
}

// Column returns the named data column of the base: the response
// (ln_profits), a regressor (ETR, ETR_sq) or a log control (ln_<control>).
func (b *Base) Column(term string) ([]float64, bool) {
	out := make([]float64, len(b.Rows))
	switch term {
	case TermETR:
		for i, r := range b.Rows {
			out[i] = r.ETR
		}
		return out, true
	case TermETRSq:
		for i, r := range b.Rows {
			out[i] = r.ETRSq
		}
		return out, true
	case TermLnProfits:
		for i, r := range b.Rows {
			out[i] = r.LnProfits
		}
		return out, true
	}
	for ci, c := range b.Controls {
		if LnTerm(c) != term {
			continue
		}
		for i, r := range b.Rows {
			out[i] = r.LnControls[ci]
		}
		return out, true
	}
	return nil, false
}

// RegressionResult holds one fitted model. Coefficient maps are keyed by
// regressor name, including "const" for the intercept.
type RegressionResult struct {
	Formula      Formula
	Spec         string
	Terms        []string // const first, then regressors in model order
	Coefficients map[string]float64
	StdErrors    map[string]float64
	TValues      map[string]float64
	PValues      map[string]float64
	RSquared     float64
	AdjRSquared  float64
	Observations int
}

// Coefficient returns the fitted coefficient for a regressor name
func (r *RegressionResult) Coefficient(term string) (float64, bool) {
	v, ok := r.Coefficients[term]
	return v, ok
}

// HasTerm reports whether the model contains the named regressor
func (r *RegressionResult) HasTerm(term string) bool {
	_, ok := r.Coefficients[term]
	return ok
}

// Shape classifies the fitted quadratic curve
type Shape string

const (
	// ShapeU means profitability falls then rises with ETR
	ShapeU Shape = "U-shape"
	// ShapeInvertedU means profitability rises then falls with ETR
	ShapeInvertedU Shape = "inverted-U"
	// ShapeDegenerate means the squared term is zero and the curve is linear
	ShapeDegenerate Shape = "degenerate"
)

// TurningPointReport is the U-test verdict derived from a quadratic fit
type TurningPointReport struct {
	B1           float64
	B2           float64
	TurningPoint float64
	Shape        Shape
	ETRMin       float64 // smallest observed ETR in the source base
	ETRMax       float64 // largest observed ETR in the source base
	InRange      bool
}

// VerdictLine renders the single-line U-test verdict appended to a model's
// report block. The turning point prints as a percentage.
func (t *TurningPointReport) VerdictLine() string {
	inRange := "NO"
	if t.InRange {
		inRange = "YES"
	}
	return fmt.Sprintf(">> U-TEST: Coeff ETR^2=%.4f, TP=%.4f%%, In Range? %s",
		t.B2, t.TurningPoint*100, inRange)
}

// ShapeLine renders the shape classification line
func (t *TurningPointReport) ShapeLine() string {
	return fmt.Sprintf("[U-Test] Shape: %s, Turning Point: %.4f", t.Shape, t.TurningPoint)
}

// ExtendedVerdict renders the multi-line U-test block: both coefficients,
// the turning point and the observed range as percentages.
func (t *TurningPointReport) ExtendedVerdict() string {
	inRange := "NO"
	if t.InRange {
		inRange = "YES"
	}
	lines := []string{
		">> U-TEST RESULTS:",
		fmt.Sprintf("   Coeff ETR (Linear): %.4f", t.B1),
		fmt.Sprintf("   Coeff ETR^2 (Quad): %.4f", t.B2),
		fmt.Sprintf("   Turning Point: %.4f%%", t.TurningPoint*100),
		fmt.Sprintf("   In Range [%.2f%%, %.2f%%]? %s", t.ETRMin*100, t.ETRMax*100, inRange),
	}
	return strings.Join(lines, "\n")
}
