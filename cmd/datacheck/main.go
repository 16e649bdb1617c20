package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cbcrcli/internal/config"
	"cbcrcli/internal/etr"
	"cbcrcli/internal/schema"
	"cbcrcli/pkg/contracts/domain"
)

// datacheck reports per-column missing-value counts for a CbCR dataset,
// optionally narrowed to one parent entity. It answers "is there enough
// data for this study?" before a full taxstudy run.
func main() {
	inputFile := flag.String("input", "", "CbCR dataset CSV")
	entity := flag.String("entity", "", "restrict the check to one ultimate parent entity")
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "usage: datacheck -input <dataset.csv> [-entity <upe name>]")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ds, err := schema.LoadCSV(*inputFile, logger)
	if err != nil {
		logger.Error("Failed to load dataset", "error", err)
		os.Exit(1)
	}

	records := ds.Records
	if *entity != "" {
		profile := config.StudyProfile{Name: "datacheck", Entities: []string{*entity}}
		records, err = etr.FilterRecords(context.Background(), ds, profile, logger)
		if err != nil {
			logger.Error("Entity filter failed", "error", err)
			os.Exit(1)
		}
	}

	printMissingReport(os.Stdout, ds, records, *entity)
}

func printMissingReport(w io.Writer, ds *schema.Dataset, records []domain.FirmRecord, entity string) {
	fmt.Fprintf(w, "Rows read: %d, skipped: %d\n", ds.RowsRead, ds.RowsSkipped)
	if entity != "" {
		fmt.Fprintf(w, "Rows matching %q: %d\n", entity, len(records))
	}
	if len(ds.UnmappedHeaders) > 0 {
		fmt.Fprintf(w, "Unmapped headers: %v\n", ds.UnmappedHeaders)
	}

	fmt.Fprintf(w, "\n%-20s %8s %8s %8s\n", "column", "present", "missing", "pct")
	for _, col := range domain.NumericFields() {
		if !ds.HasColumn(col) {
			fmt.Fprintf(w, "%-20s %8s %8s %8s\n", col, "-", "-", "absent")
			continue
		}
		missing := etr.CountMissing(records, col)
		present := len(records) - missing
		pct := 0.0
		if len(records) > 0 {
			pct = float64(missing) / float64(len(records)) * 100
		}
		fmt.Fprintf(w, "%-20s %8d %8d %7.1f%%\n", col, present, missing, pct)
	}
}
