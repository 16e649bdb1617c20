// Package etr implements the effective-tax-rate profit study: a regression
// pipeline that relates reported pre-tax profits to effective tax rates
// across country-by-country reporting (CbCR) firm records.
//
// The study estimates ordinary least squares models of log profits on the
// effective tax rate (tax accrued or paid over pre-tax profit), optionally
// with a squared term and log-transformed financial controls, and then
// tests the fitted quadratic for a U-shaped relationship: the vertex
// location, the curve's direction, and whether the vertex falls inside the
// observed ETR range.
//
// # Architecture
//
// The pipeline is a chain of small, pure stages:
//
//   - types.go: formulas, analysis bases, regression and U-test results
//   - filter.go: study-profile record filtering (entity, jurisdiction, sector, year)
//   - resolver.go: missing-data strategies (complete-case, imputation)
//   - imputer.go: seeded iterative regression imputation
//   - base.go: analysis-base construction (ETR window, log transforms)
//   - regression.go: OLS estimation with standard errors and p-values
//   - turning.go: turning-point location and shape classification
//   - summary.go: descriptive statistics and missing-value diagnostics
//   - report.go: table and text-block accumulation for export
//   - runner.go: study orchestration over configured profiles
//
// Failures are contained at the smallest recoverable unit: a model that
// cannot be fitted becomes a descriptive report entry, and the run
// continues with the next formula or base.
//
// # Usage Example
//
//	ds, err := schema.LoadCSV("cbcr_2021.csv", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	runner := etr.NewRunner(cfg, logger)
//	run, err := runner.Run(ctx, ds)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, study := range run.Studies {
//	    fmt.Println(study.Report.Text())
//	}
package etr
