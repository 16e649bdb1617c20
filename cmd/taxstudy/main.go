package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"cbcrcli/internal/config"
	"cbcrcli/internal/etr"
	"cbcrcli/internal/exporter"
	"cbcrcli/internal/infrastructure"
	"cbcrcli/internal/schema"
)

func main() {
	inputFile := flag.String("input", "", "CbCR dataset CSV (overrides the configured input file)")
	configPath := flag.String("config", "", "study configuration YAML (defaults to config.yaml if present)")
	outputDir := flag.String("out", "", "results directory (overrides the configured directory)")
	studyName := flag.String("study", "", "run only the named study profile")
	format := flag.String("format", "", "export format: xlsx, csv, or both")
	parallel := flag.Int("parallel", 0, "number of studies to run concurrently")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyFlags(cfg, *inputFile, *outputDir, *format, *parallel)

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	if *studyName != "" {
		if err := selectStudy(cfg, *studyName); err != nil {
			logger.Error("Unknown study", "study", *studyName, "error", err)
			os.Exit(1)
		}
	}

	if cfg.Dataset.InputFile == "" {
		logger.Error("No input dataset configured",
			"hint", "pass -input or set dataset.input_file in the config")
		os.Exit(1)
	}

	ctx := infrastructure.ContextWithRunID(context.Background())

	ds, err := schema.LoadCSV(cfg.Dataset.InputFile, logger)
	if err != nil {
		logger.Error("Failed to load dataset", "error", err)
		os.Exit(1)
	}
	if len(ds.Records) == 0 {
		logger.Error("Dataset contains no usable records",
			"path", cfg.Dataset.InputFile,
			"skipped", ds.RowsSkipped)
		os.Exit(1)
	}

	runner := etr.NewRunner(cfg, logger)
	run, err := runner.Run(ctx, ds)
	if err != nil {
		logger.Error("Study run failed", "error", err)
		os.Exit(1)
	}

	exp := exporter.NewExporter(cfg.Export, logger)
	written, err := exp.Export(ctx, run)
	if err != nil {
		logger.Error("Failed to export results", "error", err)
		os.Exit(1)
	}

	printRunSummary(run, written)
}

// applyFlags overlays command-line values onto the loaded configuration.
// Flags win over both the config file and the environment.
func applyFlags(cfg *config.Config, inputFile, outputDir, format string, parallel int) {
	if inputFile != "" {
		cfg.Dataset.InputFile = inputFile
	}
	if outputDir != "" {
		cfg.Export.Directory = outputDir
	}
	if format != "" {
		cfg.Export.Format = format
	}
	if parallel > 0 {
		cfg.Workers = parallel
	}
}

// selectStudy narrows the configured studies to the named profile
func selectStudy(cfg *config.Config, name string) error {
	for _, s := range cfg.Studies {
		if s.Name == name {
			cfg.Studies = []config.StudyProfile{s}
			return nil
		}
	}
	return fmt.Errorf("study %q is not configured", name)
}

// printRunSummary writes the operator-facing digest to stdout. Analysis
// failures are already in the reports; this only counts what happened.
func printRunSummary(run *etr.RunResult, written []string) {
	fmt.Printf("\nRun %s finished in %s\n", run.RunID, run.Duration.Round(1e6))
	fmt.Printf("Input records: %d\n", run.InputRows)

	for _, study := range run.Studies {
		fitted, failed := 0, 0
		for _, m := range study.Models {
			if m.Err != nil {
				failed++
			} else {
				fitted++
			}
		}
		fmt.Printf("\nStudy %s (%s):\n", study.Profile.Name, study.Profile.Kind)
		fmt.Printf("  Tables:  %d\n", len(study.Report.TableNames()))
		fmt.Printf("  Models:  %d fitted, %d failed or skipped\n", fitted, failed)
		for _, m := range study.Models {
			if m.Turning == nil {
				continue
			}
			fmt.Printf("  %s: %s\n", m.Title, m.Turning.VerdictLine())
		}
	}

	fmt.Printf("\nFiles written: %d\n", len(written))
	for _, path := range written {
		fmt.Printf("  %s\n", path)
	}
}
