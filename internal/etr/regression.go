package etr

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	studyerrors "cbcrcli/internal/errors"
)

// Fit estimates one of the closed model specifications on an analysis base
// by ordinary least squares. The intercept is implicit: the coefficient
// maps of a successful result hold exactly the formula's regressors plus
// "const".
//
// Bases smaller than minObservations report insufficient data. Numerical
// failures (a singular design matrix, a zero-variance regressor, non-finite
// values) report a regression failure carrying the cause; neither aborts
// the run, callers continue with the next model.
func Fit(base *Base, formula Formula, minObservations int) (*RegressionResult, error) {
	if !formula.IsValid() {
		return nil, studyerrors.NewValidationError(fmt.Sprintf("unsupported formula %d", int(formula)))
	}

	spec := formula.Spec(base.Controls)
	n := base.N()
	if n < minObservations {
		return nil, studyerrors.NewInsufficientData(spec, n, minObservations)
	}

	terms := formula.Terms(base.Controls)
	k := len(terms) + 1 // regressors plus intercept
	if n <= k {
		return nil, studyerrors.NewRegressionError(spec,
			fmt.Errorf("%d observations cannot identify %d parameters", n, k))
	}

	y, _ := base.Column(TermLnProfits)
	if err := checkFinite(TermLnProfits, y); err != nil {
		return nil, studyerrors.NewRegressionError(spec, err)
	}

	design := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
	}
	for ti, term := range terms {
		col, ok := base.Column(term)
		if !ok {
			return nil, studyerrors.NewRegressionError(spec,
				fmt.Errorf("regressor %s is not a column of the base", term))
		}
		if err := checkFinite(term, col); err != nil {
			return nil, studyerrors.NewRegressionError(spec, err)
		}
		if constant(col) {
			return nil, studyerrors.NewRegressionError(spec,
				fmt.Errorf("regressor %s has zero variance", term))
		}
		for i := 0; i < n; i++ {
			design.Set(i, ti+1, col[i])
		}
	}

	response := mat.NewVecDense(n, y)
	var beta mat.VecDense
	if err := beta.SolveVec(design, response); err != nil && !illConditioned(err) {
		return nil, studyerrors.NewRegressionError(spec, err)
	}
	for i := 0; i < k; i++ {
		if b := beta.AtVec(i); math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, studyerrors.NewRegressionError(spec,
				errors.New("least squares produced a non-finite coefficient"))
		}
	}

	// Residual and total sums of squares.
	ssr, sst := 0.0, 0.0
	ybar := 0.0
	for i := 0; i < n; i++ {
		ybar += y[i]
	}
	ybar /= float64(n)
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += design.At(i, j) * beta.AtVec(j)
		}
		r := y[i] - fitted
		ssr += r * r
		d := y[i] - ybar
		sst += d * d
	}

	rsq := 0.0
	if sst > 0 {
		rsq = 1 - ssr/sst
	}
	df := float64(n - k)
	adjRsq := 1 - (1-rsq)*float64(n-1)/df

	// Coefficient covariance from sigma^2 * (X'X)^-1.
	var xtx, xtxInv mat.Dense
	xtx.Mul(design.T(), design)
	if err := xtxInv.Inverse(&xtx); err != nil && !illConditioned(err) {
		return nil, studyerrors.NewRegressionError(spec, err)
	}
	sigma2 := ssr / df

	result := &RegressionResult{
		Formula:      formula,
		Spec:         spec,
		Terms:        append([]string{TermConst}, terms...),
		Coefficients: make(map[string]float64, k),
		StdErrors:    make(map[string]float64, k),
		TValues:      make(map[string]float64, k),
		PValues:      make(map[string]float64, k),
		RSquared:     rsq,
		AdjRSquared:  adjRsq,
		Observations: n,
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	for i, term := range result.Terms {
		b := beta.AtVec(i)
		variance := sigma2 * xtxInv.At(i, i)
		if variance < 0 || math.IsNaN(variance) {
			return nil, studyerrors.NewRegressionError(spec,
				errors.New("coefficient covariance is not positive semidefinite"))
		}
		se := math.Sqrt(variance)

		var t, p float64
		switch {
		case se > 0:
			t = b / se
			p = 2 * tDist.Survival(math.Abs(t))
		case b != 0:
			// Perfect fit: the coefficient is exact.
			t = math.Inf(sign(b))
			p = 0
		default:
			t, p = 0, 1
		}

		result.Coefficients[term] = b
		result.StdErrors[term] = se
		result.TValues[term] = t
		result.PValues[term] = p
	}
	return result, nil
}

func checkFinite(name string, col []float64) error {
	for _, v := range col {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value in %s", name)
		}
	}
	return nil
}

func constant(col []float64) bool {
	for _, v := range col[1:] {
		if v != col[0] {
			return false
		}
	}
	return true
}

// illConditioned reports whether a mat error only flags a high condition
// number; the computed solution is still usable in that case.
func illConditioned(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond) && !math.IsInf(float64(cond), 0)
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
