package exporter

import (
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"cbcrcli/internal/etr"
	"cbcrcli/pkg/contracts/domain"
)

const (
	reportSheet  = "Regression_Output"
	modelsSheet  = "Models"
	turningSheet = "Turning_Points"

	// Excel rejects sheet names longer than 31 characters
	maxSheetNameLen = 31
)

// BuildWorkbook assembles the Excel workbook of one study: the full text
// report, structured model statistics, the turning point verdicts, and one
// sheet per analysis table. Callers own the returned file and its Close.
func BuildWorkbook(study *etr.StudyResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming report sheet: %w", err)
	}

	if err := writeReportSheet(f, study.Report); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeModelsSheet(f, study.Models); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeTurningSheet(f, study.Models); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range study.Report.TableNames() {
		base, ok := study.Report.Table(name)
		if !ok {
			continue
		}
		if err := writeTableSheet(f, sanitizeSheetName(name), base); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// writeReportSheet copies the study's text report line by line into the
// first sheet.
func writeReportSheet(f *excelize.File, report *etr.Report) error {
	row := 1
	for _, entry := range report.Entries() {
		for _, line := range strings.Split(entry, "\n") {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return fmt.Errorf("report sheet cell: %w", err)
			}
			if err := f.SetCellValue(reportSheet, cell, line); err != nil {
				return fmt.Errorf("report sheet row %d: %w", row, err)
			}
			row++
		}
	}
	return f.SetColWidth(reportSheet, "A", "A", 110)
}

// writeModelsSheet writes one row per estimated coefficient of every
// successful model.
func writeModelsSheet(f *excelize.File, models []etr.ModelRun) error {
	if _, err := f.NewSheet(modelsSheet); err != nil {
		return fmt.Errorf("creating models sheet: %w", err)
	}
	header := []interface{}{"model", "formula", "term", "coefficient",
		"std_error", "t_value", "p_value", "n", "r_squared", "adj_r_squared"}
	if err := setRow(f, modelsSheet, 1, header); err != nil {
		return err
	}

	row := 2
	for _, m := range models {
		if m.Result == nil {
			continue
		}
		res := m.Result
		for _, term := range res.Terms {
			cells := []interface{}{
				m.Title,
				m.Formula.String(),
				term,
				statCell(res.Coefficients[term]),
				statCell(res.StdErrors[term]),
				statCell(res.TValues[term]),
				statCell(res.PValues[term]),
				res.Observations,
				statCell(res.RSquared),
				statCell(res.AdjRSquared),
			}
			if err := setRow(f, modelsSheet, row, cells); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

// writeTurningSheet writes the vertex analysis of every quadratic fit
func writeTurningSheet(f *excelize.File, models []etr.ModelRun) error {
	if _, err := f.NewSheet(turningSheet); err != nil {
		return fmt.Errorf("creating turning point sheet: %w", err)
	}
	header := []interface{}{"model", "coeff_etr", "coeff_etr_sq",
		"turning_point", "shape", "etr_min", "etr_max", "in_range"}
	if err := setRow(f, turningSheet, 1, header); err != nil {
		return err
	}

	row := 2
	for _, m := range models {
		if m.Turning == nil {
			continue
		}
		tp := m.Turning
		cells := []interface{}{
			m.Title,
			statCell(tp.B1),
			statCell(tp.B2),
			statCell(tp.TurningPoint),
			string(tp.Shape),
			statCell(tp.ETRMin),
			statCell(tp.ETRMax),
			tp.InRange,
		}
		if err := setRow(f, turningSheet, row, cells); err != nil {
			return err
		}
		row++
	}
	return nil
}

// writeTableSheet writes one analysis base: a header row, then one row per
// observation with numeric cells kept numeric and absent values left empty.
func writeTableSheet(f *excelize.File, sheet string, base *etr.Base) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}

	header := make([]interface{}, 0, 9+len(base.Controls))
	for _, h := range tableHeaders(base) {
		header = append(header, h)
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	for i, r := range base.Rows {
		tax, _ := r.Firm.Numeric(base.TaxBasis)
		cells := []interface{}{
			r.Firm.UPEName,
			r.Firm.Jurisdiction,
			r.Firm.Sector,
			r.Firm.Year,
			valueCell(r.Firm.ProfitBeforeTax),
			valueCell(tax),
			r.ETR,
			r.ETRSq,
			r.LnProfits,
		}
		for _, v := range r.LnControls {
			cells = append(cells, v)
		}
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("sheet %s row %d: %w", sheet, row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("sheet %s row %d: %w", sheet, row, err)
	}
	return nil
}

// statCell keeps spreadsheet cells valid: non-finite statistics (a perfect
// fit yields infinite t-values) become empty cells instead of broken numbers.
func statCell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// valueCell renders a nullable financial figure as a numeric or empty cell
func valueCell(v domain.Value) interface{} {
	if v.Missing() {
		return nil
	}
	return v.Float64
}

// sanitizeSheetName makes a table name a legal Excel sheet name
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(
		":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	name = replacer.Replace(name)
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}
	if name == "" {
		return "Sheet"
	}
	return name
}
