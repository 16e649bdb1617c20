package etr

import (
	studyerrors "cbcrcli/internal/errors"
)

// AnalyzeTurningPoint locates the vertex of a fitted quadratic ETR curve
// and classifies its shape. It is defined only for results carrying both
// the ETR and ETR_sq coefficients.
//
// The validity flag reports whether the vertex lies inside the observed ETR
// range [etrMin, etrMax] of the base that produced the fit. An out-of-range
// turning point means the claimed non-linearity is unsupported within the
// data window and callers must report it as such.
func AnalyzeTurningPoint(result *RegressionResult, etrMin, etrMax float64) (*TurningPointReport, error) {
	b1, hasLinear := result.Coefficient(TermETR)
	b2, hasSquared := result.Coefficient(TermETRSq)
	if !hasLinear || !hasSquared {
		return nil, studyerrors.NewValidationError(
			"turning point analysis needs both the ETR and ETR_sq coefficients")
	}

	report := &TurningPointReport{
		B1:     b1,
		B2:     b2,
		ETRMin: etrMin,
		ETRMax: etrMax,
	}
	switch {
	case b2 == 0:
		// Linear curve, no vertex to locate.
		report.Shape = ShapeDegenerate
		report.TurningPoint = 0
	case b2 < 0:
		report.Shape = ShapeInvertedU
		report.TurningPoint = -b1 / (2 * b2)
	default:
		report.Shape = ShapeU
		report.TurningPoint = -b1 / (2 * b2)
	}
	report.InRange = report.TurningPoint >= etrMin && report.TurningPoint <= etrMax
	return report, nil
}
