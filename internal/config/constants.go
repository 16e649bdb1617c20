package config

// Application constants - all hardcoded values for the study pipeline
const (
	// Application Info
	AppName    = "cbcrcli"
	AppVersion = "1.2.0"

	// Effective Tax Rate Window
	// Records are admitted when min <= ETR < max.
	DefaultETRMin = 0.0
	DefaultETRMax = 0.5

	// Estimation Thresholds
	// A stage refuses to run with fewer rows than its threshold.
	MinObservationsForRegression = 10
	MinRowsForImputation         = 5

	// Imputation Defaults
	DefaultImputationMaxIterations = 20
	DefaultImputationMinValue      = 0.1
	DefaultImputationSeed          = 42
	DefaultImputationTolerance     = 1e-3

	// Tax Basis Selection
	BasisAccrued = "accrued"
	BasisPaid    = "paid"

	// Study Layouts
	// Baseline runs complete-case bases with and without controls;
	// comparison runs complete-case against imputation per tax basis.
	StudyBaseline   = "baseline"
	StudyComparison = "comparison"

	// Export Defaults
	DefaultResultsDir   = "results"
	DefaultWorkbookName = "regression_results.xlsx"

	// File Paths (relative to working directory)
	DefaultLogsDir     = "logs"
	DefaultLogFilePath = "logs/app.log"
)
