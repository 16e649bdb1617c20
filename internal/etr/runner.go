package etr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cbcrcli/internal/config"
	studyerrors "cbcrcli/internal/errors"
	"cbcrcli/internal/infrastructure"
	"cbcrcli/internal/schema"
	"cbcrcli/pkg/contracts/domain"
)

// ModelRun records one regression attempt within a study
type ModelRun struct {
	Title   string
	Formula Formula
	Result  *RegressionResult   // nil when Err is set
	Turning *TurningPointReport // set for successful quadratic fits
	Err     error
	// Warning carries the degenerate-model annotation; the fit itself
	// succeeded.
	Warning error
}

// StudyResult holds everything one study produced
type StudyResult struct {
	Profile  config.StudyProfile
	RunID    string
	Started  time.Time
	Duration time.Duration
	Report   *Report
	Models   []ModelRun
}

// RunResult aggregates the studies of one pipeline invocation
type RunResult struct {
	RunID     string
	Started   time.Time
	Duration  time.Duration
	InputRows int
	Studies   []*StudyResult
}

// Runner executes the configured studies against a normalized dataset.
// Analysis failures are contained per model and land in the study reports;
// nothing a study does is fatal to the run.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRunner creates a runner. A nil logger falls back to slog.Default().
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run executes every configured study profile against the dataset. With
// more than one worker the studies run concurrently; each writes only its
// own pre-assigned result slot, so the assembled output keeps the
// configured study order.
func (r *Runner) Run(ctx context.Context, ds *schema.Dataset) (*RunResult, error) {
	if r.cfg == nil {
		return nil, studyerrors.NewConfigError("runner has no configuration", nil)
	}
	ctx = infrastructure.EnsureRunID(ctx)
	runID := infrastructure.GetRunID(ctx)
	started := time.Now()

	r.logger.InfoContext(ctx, "starting study run",
		slog.String("run_id", runID),
		slog.Int("studies", len(r.cfg.Studies)),
		slog.Int("records", len(ds.Records)),
		slog.Int("workers", r.cfg.Workers))

	results := make([]*StudyResult, len(r.cfg.Studies))
	if r.cfg.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		for i, profile := range r.cfg.Studies {
			i, profile := i, profile
			g.Go(func() error {
				results[i] = r.runStudy(gctx, ds, profile)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("running studies: %w", err)
		}
	} else {
		for i, profile := range r.cfg.Studies {
			results[i] = r.runStudy(ctx, ds, profile)
		}
	}

	run := &RunResult{
		RunID:     runID,
		Started:   started,
		Duration:  time.Since(started),
		InputRows: len(ds.Records),
		Studies:   results,
	}
	r.logger.InfoContext(ctx, "study run finished",
		slog.String("run_id", runID),
		slog.Duration("duration", run.Duration))
	return run, nil
}

func (r *Runner) runStudy(ctx context.Context, ds *schema.Dataset, profile config.StudyProfile) *StudyResult {
	started := time.Now()
	logger := r.logger.With(slog.String("study", profile.Name))
	logger.InfoContext(ctx, "processing study", slog.String("kind", profile.Kind))

	result := &StudyResult{
		Profile: profile,
		RunID:   infrastructure.GetRunID(ctx),
		Started: started,
		Report:  NewReport(),
	}
	r.writeHeader(ctx, result.Report, profile, len(ds.Records))

	switch profile.Kind {
	case config.StudyComparison:
		r.runComparison(ctx, logger, ds, profile, result)
	default:
		r.runBaseline(ctx, logger, ds, profile, result)
	}

	result.Duration = time.Since(started)
	logger.InfoContext(ctx, "study complete",
		slog.Int("tables", len(result.Report.TableNames())),
		slog.Int("models", len(result.Models)),
		slog.Duration("duration", result.Duration))
	return result
}

// writeHeader stamps run metadata and the study parameters onto the report
func (r *Runner) writeHeader(ctx context.Context, report *Report, profile config.StudyProfile, inputRows int) {
	window := r.cfg.EffectiveWindow(profile)
	report.AddLine(
		"ANALYSIS PARAMETERS:",
		fmt.Sprintf("Study: %s (%s)", profile.Name, profile.Kind),
		fmt.Sprintf("Run ID: %s", infrastructure.GetRunID(ctx)),
		fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("Input rows: %d", inputRows),
	)
	if len(profile.Entities) > 0 {
		report.AddLine(fmt.Sprintf("Target UPE: %s", strings.Join(profile.Entities, ", ")))
	}
	if len(profile.Jurisdictions) > 0 {
		report.AddLine(fmt.Sprintf("Target Jurisdiction: %s", strings.Join(profile.Jurisdictions, ", ")))
	}
	if len(profile.Sectors) > 0 {
		report.AddLine(fmt.Sprintf("Target Sector: %s", strings.Join(profile.Sectors, ", ")))
	}
	report.AddLine(
		fmt.Sprintf("ETR Window: [%.2f, %.2f)", window.Min, window.Max),
		strings.Repeat("-", 30),
	)
}

// targetRecords applies the profile's filters, or returns the dataset
// unchanged for an unfiltered profile.
func (r *Runner) targetRecords(ctx context.Context, logger *slog.Logger, ds *schema.Dataset, profile config.StudyProfile) ([]domain.FirmRecord, error) {
	if !profile.Filtered() {
		return ds.Records, nil
	}
	return FilterRecords(ctx, ds, profile, logger)
}

// runBaseline builds complete-case bases with and without controls, for
// the whole dataset and for the study's filtered slice, and fits the four
// standard models per tax basis on the filtered bases.
func (r *Runner) runBaseline(ctx context.Context, logger *slog.Logger, ds *schema.Dataset, profile config.StudyProfile, result *StudyResult) {
	window := r.cfg.EffectiveWindow(profile)
	minObs := r.cfg.EffectiveMinObservations(profile)
	controls := r.cfg.Regression.Controls

	target, err := r.targetRecords(ctx, logger, ds, profile)
	if err != nil {
		logger.WarnContext(ctx, "study aborted", slog.String("error", err.Error()))
		result.Report.AddLine(fmt.Sprintf("Study aborted: %s", err.Error()))
		return
	}

	first := true
	for _, basis := range profile.Bases {
		taxCol := BasisColumn(basis)
		label := BasisTitle(basis)

		banner := fmt.Sprintf("*** %s %s TAX ***", profile.Name, strings.ToUpper(label))
		if !first {
			banner = "\n" + banner
		}
		first = false
		result.Report.AddLine(banner)

		globalB1 := BuildBase(ds.Records, taxCol, nil, window.Min, window.Max, false)
		globalB2 := BuildBase(ds.Records, taxCol, controls, window.Min, window.Max, true)
		result.Report.AddTable(fmt.Sprintf("Global_%s_BASE_1", label), globalB1)
		result.Report.AddTable(fmt.Sprintf("Global_%s_BASE_2", label), globalB2)

		code, b1, b2 := "Global", globalB1, globalB2
		if profile.Filtered() {
			code = profile.Code
			b1 = BuildBase(target, taxCol, nil, window.Min, window.Max, false)
			b2 = BuildBase(target, taxCol, controls, window.Min, window.Max, true)
			result.Report.AddTable(fmt.Sprintf("%s_%s_BASE_1", code, label), b1)
			result.Report.AddTable(fmt.Sprintf("%s_%s_BASE_2", code, label), b2)
		}
		logger.InfoContext(ctx, "bases built",
			slog.String("basis", basis),
			slog.Int("base1_rows", b1.N()),
			slog.Int("base2_rows", b2.N()),
			slog.Any("controls", b2.Controls))

		result.Report.AddBlock(fmt.Sprintf("%s %s B1 Descriptives", code, label),
			FormatColumnSummaries(SummarizeBase(b1)))
		result.Report.AddBlock(fmt.Sprintf("%s %s B2 Descriptives", code, label),
			FormatColumnSummaries(SummarizeBase(b2)))

		models := []struct {
			base    *Base
			formula Formula
			title   string
		}{
			{b1, FormulaLinear, fmt.Sprintf("%s %s B1 Linear", code, label)},
			{b1, FormulaQuadratic, fmt.Sprintf("%s %s B1 Non-Linear", code, label)},
			{b2, FormulaLinearControls, fmt.Sprintf("%s %s B2 Linear", code, label)},
			{b2, FormulaQuadraticControls, fmt.Sprintf("%s %s B2 Non-Linear", code, label)},
		}
		for _, m := range models {
			result.Models = append(result.Models,
				r.runModel(ctx, logger, result.Report, m.base, m.formula, m.title, minObs))
		}
	}
}

// runComparison contrasts the complete-case and imputation strategies per
// tax basis, fitting the with-controls models on each resolved base.
func (r *Runner) runComparison(ctx context.Context, logger *slog.Logger, ds *schema.Dataset, profile config.StudyProfile, result *StudyResult) {
	window := r.cfg.EffectiveWindow(profile)
	minObs := r.cfg.EffectiveMinObservations(profile)
	controls := r.cfg.Regression.Controls

	filtered, err := r.targetRecords(ctx, logger, ds, profile)
	if err != nil {
		logger.WarnContext(ctx, "study aborted", slog.String("error", err.Error()))
		result.Report.AddLine(fmt.Sprintf("Study aborted: %s", err.Error()))
		return
	}

	imputer := NewImputer(r.imputerParams(), logger)

	for _, basis := range profile.Bases {
		taxCol := BasisColumn(basis)
		label := BasisTitle(basis)

		for _, strategy := range []Strategy{StrategyCompleteCase, StrategyImputation} {
			combo := fmt.Sprintf("%s_%s", label, strategyTitle(strategy))
			banner := fmt.Sprintf("*** %s %s ***", profile.Name, combo)
			columns := AnalysisColumns(taxCol, controls)

			logger.InfoContext(ctx, "processing combination",
				slog.String("combination", combo),
				slog.Int("rows", len(filtered)))

			resolved, rerr := r.resolve(ctx, imputer, strategy, filtered, columns, controls)
			if rerr != nil {
				logger.WarnContext(ctx, "strategy failed",
					slog.String("combination", combo),
					slog.String("error", rerr.Error()))
				if studyerrors.IsInsufficientData(rerr) {
					result.Report.AddLine(banner, "Failed/Empty. Insufficient data")
				} else {
					result.Report.AddLine(banner, fmt.Sprintf("Failed/Empty. %s", rerr.Error()))
				}
				continue
			}

			base := BuildBase(resolved, taxCol, controls, window.Min, window.Max, true)
			if base.Empty() {
				logger.WarnContext(ctx, "no observations survived",
					slog.String("combination", combo))
				result.Report.AddLine(banner, "Failed/Empty.")
				continue
			}

			result.Report.AddTable(combo, base)
			result.Report.AddLine(banner, fmt.Sprintf("N = %d", base.N()))
			result.Report.AddBlock(combo+" Descriptives",
				FormatColumnSummaries(SummarizeBase(base)))

			if base.N() < minObs {
				logger.WarnContext(ctx, "not enough observations",
					slog.String("combination", combo),
					slog.Int("n", base.N()),
					slog.Int("needed", minObs))
				result.Report.AddLine("Insufficient data for regression.")
				continue
			}

			for _, m := range []struct {
				formula Formula
				title   string
			}{
				{FormulaLinearControls, combo + " Linear"},
				{FormulaQuadraticControls, combo + " Non-Linear"},
			} {
				result.Models = append(result.Models,
					r.runModel(ctx, logger, result.Report, base, m.formula, m.title, minObs))
			}
		}
	}
}

// runModel fits one model and appends either its summary block or a
// descriptive failure entry to the report.
func (r *Runner) runModel(ctx context.Context, logger *slog.Logger, report *Report, base *Base, formula Formula, title string, minObs int) ModelRun {
	logger.InfoContext(ctx, "running regression",
		slog.String("model", title),
		slog.String("formula", formula.String()),
		slog.Int("n", base.N()))

	run := ModelRun{Title: title, Formula: formula}
	res, err := Fit(base, formula, minObs)
	if err != nil {
		run.Err = err
		if studyerrors.IsInsufficientData(err) {
			logger.WarnContext(ctx, "not enough observations",
				slog.String("model", title),
				slog.Int("n", base.N()),
				slog.Int("needed", minObs))
			report.AddBlock(title, "Insufficient data for regression.")
		} else {
			logger.WarnContext(ctx, "regression failed",
				slog.String("model", title),
				slog.String("error", err.Error()))
			report.AddBlock(title, fmt.Sprintf("Regression Failed: %s", err.Error()))
		}
		return run
	}
	run.Result = res

	body := res.Summary()
	if formula.Quadratic() {
		min, max := base.ObservedETRRange()
		tp, terr := AnalyzeTurningPoint(res, min, max)
		if terr != nil {
			logger.WarnContext(ctx, "turning point analysis failed",
				slog.String("model", title),
				slog.String("error", terr.Error()))
		} else {
			run.Turning = tp
			body += "\n\n" + tp.ExtendedVerdict()
			body += "\n" + tp.VerdictLine()
			if tp.Shape == ShapeDegenerate {
				run.Warning = studyerrors.NewDegenerateModelError(title, tp.B2)
				logger.WarnContext(ctx, "degenerate quadratic model",
					slog.String("model", title))
			}
		}
	}
	report.AddBlock(title, body)

	logger.InfoContext(ctx, "regression complete",
		slog.String("model", title),
		slog.Float64("r_squared", res.RSquared),
		slog.Int("n", res.Observations))
	return run
}

func (r *Runner) resolve(ctx context.Context, imputer *Imputer, strategy Strategy, records []domain.FirmRecord, columns, controls []string) ([]domain.FirmRecord, error) {
	switch strategy {
	case StrategyImputation:
		return imputer.Impute(ctx, records, columns, controls)
	default:
		return CompleteCase(records, columns), nil
	}
}

func (r *Runner) imputerParams() ImputerParams {
	return ImputerParams{
		MaxIterations:      r.cfg.Imputation.MaxIterations,
		MinValue:           r.cfg.Imputation.MinValue,
		Seed:               r.cfg.Imputation.Seed,
		Tolerance:          r.cfg.Imputation.Tolerance,
		MinRows:            r.cfg.Imputation.MinRows,
		RandomOrder:        r.cfg.Imputation.RandomOrder,
		TreatZeroAsMissing: r.cfg.Dataset.TreatZeroAsMissing,
	}
}

// BasisColumn maps a configured tax basis to its record column
func BasisColumn(basis string) string {
	if basis == config.BasisPaid {
		return domain.FieldTaxPaid
	}
	return domain.FieldTaxAccrued
}

// BasisTitle returns the capitalized basis label used in table names
func BasisTitle(basis string) string {
	if basis == config.BasisPaid {
		return "Paid"
	}
	return "Accrued"
}

func strategyTitle(s Strategy) string {
	if s == StrategyImputation {
		return "Imputation"
	}
	return "CC"
}
