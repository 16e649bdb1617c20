package etr

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	studyerrors "cbcrcli/internal/errors"
	"cbcrcli/pkg/contracts/domain"
)

// ridgeEpsilon scales the diagonal stabilizer added to each per-column
// normal-equation system so near-collinear predictors stay solvable.
const ridgeEpsilon = 1e-8

// ImputerParams configures the iterative regression imputer.
type ImputerParams struct {
	// MaxIterations bounds the number of round-robin sweeps
	MaxIterations int
	// MinValue floors every imputed value; log-domain columns must stay
	// strictly positive
	MinValue float64
	// Seed drives the sweep-order shuffle when RandomOrder is set
	Seed int64
	// Tolerance stops the sweeps early once the largest per-cell change
	// falls below it; zero disables early stopping
	Tolerance float64
	// MinRows is the smallest table the imputer will fit on
	MinRows int
	// RandomOrder shuffles the column visit order each sweep instead of
	// visiting columns in ascending missing-count order
	RandomOrder bool
	// TreatZeroAsMissing marks non-positive control values as absent
	// before fitting, since log-domain variables cannot be zero or
	// negative
	TreatZeroAsMissing bool
}

// IsValid checks the parameters for internal consistency
func (p ImputerParams) IsValid() bool {
	return p.MaxIterations > 0 && p.MinValue > 0 && p.MinRows >= 0 && p.Tolerance >= 0
}

// DefaultImputerParams returns the parameter set used by the reference
// studies: 20 sweeps, a 0.1 floor, seed 42 and a minimum of 5 rows.
func DefaultImputerParams() ImputerParams {
	return ImputerParams{
		MaxIterations:      20,
		MinValue:           0.1,
		Seed:               42,
		Tolerance:          1e-3,
		MinRows:            5,
		TreatZeroAsMissing: true,
	}
}

// Imputer fills absent financial values with a round-robin iterative
// regression model: each column with missing entries is regressed on the
// current values of the other analysis columns, and its missing cells are
// replaced with the fitted predictions, repeatedly until the values settle.
// A fixed seed makes repeated runs on identical input bit-reproducible.
type Imputer struct {
	params ImputerParams
	logger *slog.Logger
}

// NewImputer creates an imputer with the given parameters. A nil logger
// falls back to slog.Default().
func NewImputer(params ImputerParams, logger *slog.Logger) *Imputer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Imputer{params: params, logger: logger}
}

// Impute returns a copy of records with absent values in the given columns
// replaced by model predictions. The controls subset additionally has
// non-positive values treated as absent when TreatZeroAsMissing is set.
// Rows and columns outside the declared set are never altered.
//
// Tables smaller than MinRows report insufficient data instead of fitting.
func (im *Imputer) Impute(ctx context.Context, records []domain.FirmRecord, columns, controls []string) ([]domain.FirmRecord, error) {
	if !im.params.IsValid() {
		return nil, studyerrors.NewValidationError("invalid imputer parameters")
	}
	for _, col := range columns {
		if !domain.IsNumericField(col) {
			return nil, studyerrors.NewValidationError("unknown numeric column: " + col)
		}
	}
	if len(records) < im.params.MinRows {
		return nil, studyerrors.NewInsufficientData("imputation", len(records), im.params.MinRows)
	}

	controlSet := make(map[string]bool, len(controls))
	for _, c := range controls {
		controlSet[c] = true
	}

	m, k := len(records), len(columns)
	values := make([][]float64, m)
	missing := make([][]bool, m)
	for i, r := range records {
		values[i] = make([]float64, k)
		missing[i] = make([]bool, k)
		for j, col := range columns {
			v, _ := r.Numeric(col)
			absent := v.Missing()
			if !absent && im.params.TreatZeroAsMissing && controlSet[col] && v.Float64 <= 0 {
				absent = true
			}
			if absent {
				missing[i][j] = true
				continue
			}
			values[i][j] = v.Float64
		}
	}

	// Initialize missing cells at the observed column mean, or at the
	// floor when a column has no observation at all.
	missingCount := make([]int, k)
	for j := 0; j < k; j++ {
		sum, observed := 0.0, 0
		for i := 0; i < m; i++ {
			if missing[i][j] {
				missingCount[j]++
				continue
			}
			sum += values[i][j]
			observed++
		}
		init := im.params.MinValue
		if observed > 0 {
			init = sum / float64(observed)
		}
		for i := 0; i < m; i++ {
			if missing[i][j] {
				values[i][j] = init
			}
		}
	}

	sweepCols := make([]int, 0, k)
	for j := 0; j < k; j++ {
		if missingCount[j] > 0 && missingCount[j] < m {
			sweepCols = append(sweepCols, j)
		}
	}
	if len(sweepCols) == 0 {
		im.logger.DebugContext(ctx, "nothing to impute",
			slog.Int("rows", m), slog.Int("columns", k))
		return copyRecords(records, columns, values, missing), nil
	}
	// Columns with the fewest gaps first, so later fits see the most
	// freshly-updated predictors.
	sort.SliceStable(sweepCols, func(a, b int) bool {
		return missingCount[sweepCols[a]] < missingCount[sweepCols[b]]
	})

	rng := rand.New(rand.NewSource(im.params.Seed))
	iterations := 0
	for sweep := 0; sweep < im.params.MaxIterations; sweep++ {
		iterations = sweep + 1
		order := sweepCols
		if im.params.RandomOrder {
			order = append([]int(nil), sweepCols...)
			rng.Shuffle(len(order), func(a, b int) {
				order[a], order[b] = order[b], order[a]
			})
		}

		maxDelta := 0.0
		for _, j := range order {
			delta := im.imputeColumn(values, missing, j, k)
			if delta > maxDelta {
				maxDelta = delta
			}
		}

		im.logger.DebugContext(ctx, "imputation sweep finished",
			slog.Int("sweep", iterations),
			slog.Float64("max_delta", maxDelta))
		if im.params.Tolerance > 0 && maxDelta < im.params.Tolerance {
			break
		}
	}

	im.logger.InfoContext(ctx, "imputation complete",
		slog.Int("rows", m),
		slog.Int("columns_imputed", len(sweepCols)),
		slog.Int("sweeps", iterations))
	return copyRecords(records, columns, values, missing), nil
}

// imputeColumn refits column j on the other columns and refreshes its
// originally-missing cells, returning the largest absolute change.
func (im *Imputer) imputeColumn(values [][]float64, missing [][]bool, j, k int) float64 {
	m := len(values)
	predictors := make([]int, 0, k-1)
	for p := 0; p < k; p++ {
		if p != j {
			predictors = append(predictors, p)
		}
	}

	train := make([]int, 0, m)
	for i := 0; i < m; i++ {
		if !missing[i][j] {
			train = append(train, i)
		}
	}
	if len(train) == 0 {
		return 0
	}

	ybar := 0.0
	for _, i := range train {
		ybar += values[i][j]
	}
	ybar /= float64(len(train))

	beta, xbar, ok := im.solveColumn(values, train, predictors, j, ybar)

	maxDelta := 0.0
	for i := 0; i < m; i++ {
		if !missing[i][j] {
			continue
		}
		predicted := ybar
		if ok {
			for pi, p := range predictors {
				predicted += beta[pi] * (values[i][p] - xbar[pi])
			}
		}
		if predicted < im.params.MinValue {
			predicted = im.params.MinValue
		}
		if delta := math.Abs(predicted - values[i][j]); delta > maxDelta {
			maxDelta = delta
		}
		values[i][j] = predicted
	}
	return maxDelta
}

// solveColumn fits a ridge-stabilized least squares of column j on the
// predictor columns over the training rows. It returns the centered
// coefficients and predictor means; ok is false when no usable model
// exists and the caller should fall back to the column mean.
func (im *Imputer) solveColumn(values [][]float64, train, predictors []int, j int, ybar float64) (beta, xbar []float64, ok bool) {
	p := len(predictors)
	if p == 0 || len(train) < 2 {
		return nil, nil, false
	}

	xbar = make([]float64, p)
	for pi, col := range predictors {
		for _, i := range train {
			xbar[pi] += values[i][col]
		}
		xbar[pi] /= float64(len(train))
	}

	gram := mat.NewDense(p, p, nil)
	rhs := mat.NewVecDense(p, nil)
	for a := 0; a < p; a++ {
		ca := predictors[a]
		for b := a; b < p; b++ {
			cb := predictors[b]
			sum := 0.0
			for _, i := range train {
				sum += (values[i][ca] - xbar[a]) * (values[i][cb] - xbar[b])
			}
			gram.Set(a, b, sum)
			gram.Set(b, a, sum)
		}
		dot := 0.0
		for _, i := range train {
			dot += (values[i][ca] - xbar[a]) * (values[i][j] - ybar)
		}
		rhs.SetVec(a, dot)
	}

	trace := 0.0
	for a := 0; a < p; a++ {
		trace += gram.At(a, a)
	}
	ridge := ridgeEpsilon * (1 + trace/float64(p))
	for a := 0; a < p; a++ {
		gram.Set(a, a, gram.At(a, a)+ridge)
	}

	var solved mat.VecDense
	if err := solved.SolveVec(gram, rhs); err != nil {
		return nil, nil, false
	}
	beta = make([]float64, p)
	for a := 0; a < p; a++ {
		b := solved.AtVec(a)
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, nil, false
		}
		beta[a] = b
	}
	return beta, xbar, true
}

// copyRecords writes the imputed matrix back into fresh record copies,
// touching only the originally-missing cells of the declared columns.
func copyRecords(records []domain.FirmRecord, columns []string, values [][]float64, missing [][]bool) []domain.FirmRecord {
	out := make([]domain.FirmRecord, len(records))
	for i, r := range records {
		rec := r
		for j, col := range columns {
			if missing[i][j] {
				rec.SetNumeric(col, domain.Num(values[i][j]))
			}
		}
		out[i] = rec
	}
	return out
}
