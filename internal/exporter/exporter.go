package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cbcrcli/internal/config"
	studyerrors "cbcrcli/internal/errors"
	"cbcrcli/internal/etr"
)

// Exporter writes study results to the configured results directory in the
// configured formats.
type Exporter struct {
	cfg    config.ExportConfig
	logger *slog.Logger
}

// NewExporter creates an exporter. A nil logger falls back to slog.Default().
func NewExporter(cfg config.ExportConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{cfg: cfg, logger: logger}
}

// Export writes every study of a run and returns the created file paths.
// The xlsx format produces one workbook per study; the csv format produces
// a text report plus one CSV per analysis table and per statistics block.
func (e *Exporter) Export(ctx context.Context, run *etr.RunResult) ([]string, error) {
	if err := os.MkdirAll(e.cfg.Directory, 0755); err != nil {
		return nil, studyerrors.NewExportError("creating results directory", err)
	}

	e.logger.InfoContext(ctx, "exporting study results",
		slog.String("run_id", run.RunID),
		slog.Int("studies", len(run.Studies)),
		slog.String("format", e.cfg.Format),
		slog.String("directory", e.cfg.Directory))

	var written []string
	for _, study := range run.Studies {
		paths, err := e.exportStudy(ctx, study)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}

	e.logger.InfoContext(ctx, "export complete",
		slog.String("run_id", run.RunID),
		slog.Int("files", len(written)))
	return written, nil
}

func (e *Exporter) exportStudy(ctx context.Context, study *etr.StudyResult) ([]string, error) {
	slug := fileSlug(study.Profile.Name)
	var written []string

	if e.cfg.Format == "xlsx" || e.cfg.Format == "both" {
		path, err := e.writeWorkbook(study, slug)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if e.cfg.Format == "csv" || e.cfg.Format == "both" {
		paths, err := e.writeCSVs(study, slug)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}

	e.logger.DebugContext(ctx, "study exported",
		slog.String("study", study.Profile.Name),
		slog.Int("files", len(written)))
	return written, nil
}

func (e *Exporter) writeWorkbook(study *etr.StudyResult, slug string) (string, error) {
	f, err := BuildWorkbook(study)
	if err != nil {
		return "", studyerrors.NewExportError(
			fmt.Sprintf("building workbook for study %s", study.Profile.Name), err)
	}
	defer f.Close()

	path := filepath.Join(e.cfg.Directory, slug+"_"+e.cfg.Workbook)
	if err := f.SaveAs(path); err != nil {
		return "", studyerrors.NewExportError(
			fmt.Sprintf("saving workbook %s", path), err)
	}
	return path, nil
}

func (e *Exporter) writeCSVs(study *etr.StudyResult, slug string) ([]string, error) {
	writer := NewCSVWriter(e.cfg.Directory)
	var written []string

	reportPath := filepath.Join(e.cfg.Directory, slug+"_report.txt")
	if err := os.WriteFile(reportPath, []byte(study.Report.Text()), 0644); err != nil {
		return written, studyerrors.NewExportError(
			fmt.Sprintf("writing report %s", reportPath), err)
	}
	written = append(written, reportPath)

	modelsPath := slug + "_models.csv"
	if err := writer.WriteSimpleCSV(modelsPath, modelHeaders(), modelRows(study.Models)); err != nil {
		return written, studyerrors.NewExportError("writing model statistics", err)
	}
	written = append(written, filepath.Join(e.cfg.Directory, modelsPath))

	turningPath := slug + "_turning_points.csv"
	if err := writer.WriteSimpleCSV(turningPath, turningHeaders(), turningRows(study.Models)); err != nil {
		return written, studyerrors.NewExportError("writing turning points", err)
	}
	written = append(written, filepath.Join(e.cfg.Directory, turningPath))

	for _, name := range study.Report.TableNames() {
		base, ok := study.Report.Table(name)
		if !ok {
			continue
		}
		tablePath := slug + "_" + name + ".csv"
		if err := writer.WriteTableCSV(tablePath, base); err != nil {
			return written, studyerrors.NewExportError(
				fmt.Sprintf("writing table %s", name), err)
		}
		written = append(written, filepath.Join(e.cfg.Directory, tablePath))
	}
	return written, nil
}

func modelHeaders() []string {
	return []string{"model", "formula", "term", "coefficient",
		"std_error", "t_value", "p_value", "n", "r_squared", "adj_r_squared"}
}

func modelRows(models []etr.ModelRun) [][]string {
	var rows [][]string
	for _, m := range models {
		if m.Result == nil {
			continue
		}
		res := m.Result
		for _, term := range res.Terms {
			rows = append(rows, []string{
				m.Title,
				m.Formula.String(),
				term,
				formatFloat(res.Coefficients[term]),
				formatFloat(res.StdErrors[term]),
				formatFloat(res.TValues[term]),
				formatFloat(res.PValues[term]),
				formatInt(res.Observations),
				formatFloat(res.RSquared),
				formatFloat(res.AdjRSquared),
			})
		}
	}
	return rows
}

func turningHeaders() []string {
	return []string{"model", "coeff_etr", "coeff_etr_sq", "turning_point",
		"shape", "etr_min", "etr_max", "in_range"}
}

func turningRows(models []etr.ModelRun) [][]string {
	var rows [][]string
	for _, m := range models {
		if m.Turning == nil {
			continue
		}
		tp := m.Turning
		rows = append(rows, []string{
			m.Title,
			formatFloat(tp.B1),
			formatFloat(tp.B2),
			formatFloat(tp.TurningPoint),
			string(tp.Shape),
			formatFloat(tp.ETRMin),
			formatFloat(tp.ETRMax),
			formatBool(tp.InRange),
		})
	}
	return rows
}

// fileSlug turns a study name into a safe filename fragment
func fileSlug(name string) string {
	slug := strings.TrimSpace(name)
	slug = strings.ReplaceAll(slug, " ", "_")
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	slug = replacer.Replace(slug)
	if slug == "" {
		return "study"
	}
	return slug
}
