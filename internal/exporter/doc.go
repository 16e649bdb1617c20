// Package exporter writes study results to disk in the configured formats.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// BuildWorkbook: Assembles one Excel workbook per study, with the text
// report, structured model statistics, turning point verdicts, and one
// sheet per analysis table.
//
// Exporter: Orchestrates a full run export, producing workbooks, CSV
// tables, and plain-text reports under the configured results directory.
//
// Example usage:
//
//	exp := exporter.NewExporter(cfg.Export, logger)
//
//	// Write every study of a finished run
//	paths, err := exp.Export(ctx, run)
//	if err != nil {
//		return err
//	}
//	for _, p := range paths {
//		fmt.Println("wrote", p)
//	}
package exporter
