package etr

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"cbcrcli/internal/config"
	studyerrors "cbcrcli/internal/errors"
	"cbcrcli/internal/schema"
	"cbcrcli/pkg/contracts/domain"
)

// FilterRecords narrows a dataset to the rows a study profile targets.
// Entity names and sectors match case-insensitively; jurisdiction values
// match when the cell contains the filter value (aggregate rows such as
// "All Jurisdictions" are selected with "all"). Filters whose column is
// missing from the dataset are skipped with a warning, except the entity
// filter: selecting by entity without a parent-entity column is an error.
func FilterRecords(ctx context.Context, ds *schema.Dataset, profile config.StudyProfile, logger *slog.Logger) ([]domain.FirmRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	records := ds.Records

	if len(profile.Entities) > 0 {
		if !ds.HasColumn(domain.FieldUPEName) {
			return nil, studyerrors.NewMissingColumns("entity filter", []string{domain.FieldUPEName})
		}
		records = keep(records, func(r domain.FirmRecord) bool {
			return matchEqualFold(r.UPEName, profile.Entities)
		})
		logger.InfoContext(ctx, "applied entity filter",
			slog.String("study", profile.Name),
			slog.Any("entities", profile.Entities),
			slog.Int("rows", len(records)))
	}

	if len(profile.Jurisdictions) > 0 {
		if !ds.HasColumn(domain.FieldJurisdiction) {
			logger.WarnContext(ctx, "jurisdiction column not found, skipping jurisdiction filter",
				slog.String("study", profile.Name))
		} else {
			records = keep(records, func(r domain.FirmRecord) bool {
				return matchContainsFold(r.Jurisdiction, profile.Jurisdictions)
			})
			logger.InfoContext(ctx, "applied jurisdiction filter",
				slog.String("study", profile.Name),
				slog.Any("jurisdictions", profile.Jurisdictions),
				slog.Int("rows", len(records)))
		}
	}

	if len(profile.ExcludeJurisdictions) > 0 && ds.HasColumn(domain.FieldJurisdiction) {
		records = keep(records, func(r domain.FirmRecord) bool {
			return !matchContainsFold(r.Jurisdiction, profile.ExcludeJurisdictions)
		})
		logger.InfoContext(ctx, "applied jurisdiction exclusions",
			slog.String("study", profile.Name),
			slog.Any("excluded", profile.ExcludeJurisdictions),
			slog.Int("rows", len(records)))
	}

	if len(profile.Sectors) > 0 {
		if !ds.HasColumn(domain.FieldSector) {
			logger.WarnContext(ctx, "sector column not found, skipping sector filter",
				slog.String("study", profile.Name))
		} else {
			records = keep(records, func(r domain.FirmRecord) bool {
				return matchEqualFold(r.Sector, profile.Sectors)
			})
			logger.InfoContext(ctx, "applied sector filter",
				slog.String("study", profile.Name),
				slog.Any("sectors", profile.Sectors),
				slog.Int("rows", len(records)))
		}
	}

	if profile.MinYear > 0 || profile.MaxYear > 0 {
		if !ds.HasColumn(domain.FieldYear) {
			logger.WarnContext(ctx, "year column not found, skipping year filter",
				slog.String("study", profile.Name))
		} else {
			records = keep(records, func(r domain.FirmRecord) bool {
				return yearInRange(r.Year, profile.MinYear, profile.MaxYear)
			})
			logger.InfoContext(ctx, "applied year filter",
				slog.String("study", profile.Name),
				slog.Int("min_year", profile.MinYear),
				slog.Int("max_year", profile.MaxYear),
				slog.Int("rows", len(records)))
		}
	}

	if len(records) == 0 {
		logger.WarnContext(ctx, "no rows left after filtering",
			slog.String("study", profile.Name))
	}
	return records, nil
}

func keep(records []domain.FirmRecord, pred func(domain.FirmRecord) bool) []domain.FirmRecord {
	out := make([]domain.FirmRecord, 0, len(records))
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func matchEqualFold(value string, targets []string) bool {
	value = strings.TrimSpace(value)
	for _, t := range targets {
		if strings.EqualFold(value, strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}

func matchContainsFold(value string, targets []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, t := range targets {
		if strings.Contains(value, strings.ToLower(strings.TrimSpace(t))) {
			return true
		}
	}
	return false
}

func yearInRange(raw string, minYear, maxYear int) bool {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if minYear > 0 && year < minYear {
		return false
	}
	if maxYear > 0 && year > maxYear {
		return false
	}
	return true
}
