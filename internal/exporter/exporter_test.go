package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbcrcli/internal/config"
	"cbcrcli/internal/etr"
	"cbcrcli/pkg/contracts/domain"
)

// sampleStudy assembles a small but complete study result: a quadratic fit
// with a turning point verdict, one named table, and a text report.
func sampleStudy(t *testing.T) *etr.StudyResult {
	t.Helper()

	etrs := []float64{0.05, 0.10, 0.15, 0.20, 0.25, 0.30, 0.35, 0.40, 0.12, 0.22, 0.33, 0.44}
	records := make([]domain.FirmRecord, len(etrs))
	for i, e := range etrs {
		profit := 100.0 * float64(i+1)
		records[i] = domain.FirmRecord{
			UPEName:         "Acme SE",
			Jurisdiction:    "Germany",
			Year:            "2021",
			ProfitBeforeTax: domain.Num(profit),
			TaxAccrued:      domain.Num(profit * e),
		}
	}

	base := etr.BuildBase(records, domain.FieldTaxAccrued, nil, 0, 0.5, false)
	require.Equal(t, len(etrs), base.N())

	res, err := etr.Fit(base, etr.FormulaQuadratic, 5)
	require.NoError(t, err)

	min, max := base.ObservedETRRange()
	tp, err := etr.AnalyzeTurningPoint(res, min, max)
	require.NoError(t, err)

	report := etr.NewReport()
	report.AddLine("ANALYSIS PARAMETERS:", "Study: Germany (baseline)")
	report.AddTable("DE_Accrued_BASE_1", base)
	report.AddBlock("DE Accrued B1 Non-Linear", res.Summary())

	return &etr.StudyResult{
		Profile: config.StudyProfile{Name: "Germany", Code: "DE", Kind: config.StudyBaseline},
		RunID:   "test-run",
		Started: time.Now(),
		Report:  report,
		Models: []etr.ModelRun{
			{Title: "DE Accrued B1 Non-Linear", Formula: etr.FormulaQuadratic, Result: res, Turning: tp},
		},
	}
}

func TestExporterExport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	study := sampleStudy(t)
	run := &etr.RunResult{
		RunID:     "test-run",
		InputRows: 12,
		Studies:   []*etr.StudyResult{study},
	}

	t.Run("xlsx format writes one workbook per study", func(t *testing.T) {
		dir := t.TempDir()
		exp := NewExporter(config.ExportConfig{
			Directory: dir,
			Workbook:  "regression_results.xlsx",
			Format:    "xlsx",
		}, logger)

		written, err := exp.Export(context.Background(), run)
		require.NoError(t, err)
		require.Len(t, written, 1)
		assert.Equal(t, filepath.Join(dir, "Germany_regression_results.xlsx"), written[0])
		assert.FileExists(t, written[0])
	})

	t.Run("csv format writes report, statistics and tables", func(t *testing.T) {
		dir := t.TempDir()
		exp := NewExporter(config.ExportConfig{
			Directory: dir,
			Workbook:  "regression_results.xlsx",
			Format:    "csv",
		}, logger)

		written, err := exp.Export(context.Background(), run)
		require.NoError(t, err)

		want := []string{
			"Germany_report.txt",
			"Germany_models.csv",
			"Germany_turning_points.csv",
			"Germany_DE_Accrued_BASE_1.csv",
		}
		require.Len(t, written, len(want))
		for _, name := range want {
			assert.FileExists(t, filepath.Join(dir, name))
		}

		report, err := os.ReadFile(filepath.Join(dir, "Germany_report.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(report), "ANALYSIS PARAMETERS:")
		assert.Contains(t, string(report), "DE Accrued B1 Non-Linear")
	})

	t.Run("both format writes workbook and csv files", func(t *testing.T) {
		dir := t.TempDir()
		exp := NewExporter(config.ExportConfig{
			Directory: dir,
			Workbook:  "regression_results.xlsx",
			Format:    "both",
		}, logger)

		written, err := exp.Export(context.Background(), run)
		require.NoError(t, err)
		assert.Len(t, written, 5)
	})

	t.Run("creates the results directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "results")
		exp := NewExporter(config.ExportConfig{
			Directory: dir,
			Workbook:  "regression_results.xlsx",
			Format:    "xlsx",
		}, logger)

		_, err := exp.Export(context.Background(), run)
		require.NoError(t, err)
		assert.DirExists(t, dir)
	})
}

func TestModelRows(t *testing.T) {
	study := sampleStudy(t)

	rows := modelRows(study.Models)
	// const, ETR, ETR_sq: one row per term
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "DE Accrued B1 Non-Linear", row[0])
		assert.Equal(t, "quadratic", row[1])
	}
	assert.Equal(t, "const", rows[0][2])
	assert.Equal(t, "ETR", rows[1][2])
	assert.Equal(t, "ETR_sq", rows[2][2])

	t.Run("failed models are skipped", func(t *testing.T) {
		models := append(study.Models, etr.ModelRun{Title: "failed", Err: os.ErrInvalid})
		assert.Len(t, modelRows(models), 3)
	})
}

func TestTurningRows(t *testing.T) {
	study := sampleStudy(t)

	rows := turningRows(study.Models)
	require.Len(t, rows, 1)
	assert.Equal(t, "DE Accrued B1 Non-Linear", rows[0][0])
	assert.Contains(t, []string{"U-shape", "inverted-U", "degenerate"}, rows[0][4])

	t.Run("models without a verdict are skipped", func(t *testing.T) {
		models := []etr.ModelRun{{Title: "linear", Formula: etr.FormulaLinear}}
		assert.Empty(t, turningRows(models))
	})
}

func TestFileSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain name", "Germany", "Germany"},
		{"spaces become underscores", "Italy Comprehensive", "Italy_Comprehensive"},
		{"path characters are replaced", `a/b\c:d`, "a_b_c_d"},
		{"empty name falls back", "  ", "study"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, fileSlug(tt.input))
		})
	}
}
