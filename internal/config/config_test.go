package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbcrcli/pkg/contracts/domain"
)

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	// Save original environment to restore later
	originalEnv := make(map[string]string)
	envVars := []string{
		"CBCR_DATASET_INPUT_FILE", "CBCR_DATASET_TREAT_ZERO_AS_MISSING",
		"CBCR_WINDOW_MIN", "CBCR_WINDOW_MAX",
		"CBCR_REGRESSION_MIN_OBSERVATIONS", "CBCR_REGRESSION_CONTROLS",
		"CBCR_IMPUTATION_SEED", "CBCR_IMPUTATION_MAX_ITERATIONS",
		"CBCR_LOGGING_LEVEL", "CBCR_EXPORT_FORMAT",
	}

	for _, envVar := range envVars {
		originalEnv[envVar] = os.Getenv(envVar)
	}

	defer func() {
		for _, envVar := range envVars {
			if val, exists := originalEnv[envVar]; exists && val != "" {
				os.Setenv(envVar, val)
			} else {
				os.Unsetenv(envVar)
			}
		}
	}()

	clearEnv := func() {
		for _, envVar := range envVars {
			os.Unsetenv(envVar)
		}
	}

	tests := []struct {
		name        string
		setupEnv    func()
		setupFile   func(t *testing.T) string // returns config file path
		wantErr     bool
		errContains string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name:     "default configuration with no env vars",
			setupEnv: clearEnv,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 0.0, cfg.Window.Min)
				assert.Equal(t, 0.5, cfg.Window.Max)
				assert.Equal(t, 10, cfg.Regression.MinObservations)
				assert.Equal(t, []string{
					domain.FieldEmployees,
					domain.FieldTangibleAssets,
					domain.FieldRelatedRevenues,
				}, cfg.Regression.Controls)

				assert.Equal(t, 20, cfg.Imputation.MaxIterations)
				assert.Equal(t, 0.1, cfg.Imputation.MinValue)
				assert.Equal(t, int64(42), cfg.Imputation.Seed)
				assert.Equal(t, 5, cfg.Imputation.MinRows)
				assert.False(t, cfg.Imputation.RandomOrder)

				assert.True(t, cfg.Dataset.TreatZeroAsMissing)

				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "both", cfg.Logging.Output)

				assert.Equal(t, "results", cfg.Export.Directory)
				assert.Equal(t, "xlsx", cfg.Export.Format)

				require.Len(t, cfg.Studies, 1)
				assert.Equal(t, "Global", cfg.Studies[0].Name)
				assert.Equal(t, "Global", cfg.Studies[0].Code)
				assert.Equal(t, StudyBaseline, cfg.Studies[0].Kind)
				assert.Equal(t, []string{BasisAccrued, BasisPaid}, cfg.Studies[0].Bases)
				assert.Equal(t, 1, cfg.Workers)
			},
		},
		{
			name: "environment variables override defaults",
			setupEnv: func() {
				clearEnv()
				os.Setenv("CBCR_WINDOW_MAX", "1.0")
				os.Setenv("CBCR_IMPUTATION_SEED", "7")
				os.Setenv("CBCR_REGRESSION_CONTROLS", "employees,tangible_assets")
				os.Setenv("CBCR_LOGGING_LEVEL", "debug")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 1.0, cfg.Window.Max)
				assert.Equal(t, int64(7), cfg.Imputation.Seed)
				assert.Equal(t, []string{"employees", "tangible_assets"}, cfg.Regression.Controls)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:     "yaml file provides study profiles",
			setupEnv: clearEnv,
			setupFile: func(t *testing.T) string {
				content := `
dataset:
  input_file: data/cbcr_2021.csv
window:
  min: 0.0
  max: 0.5
studies:
  - name: Global
  - name: Germany
    code: DE
    entities: [Germany]
    jurisdictions: [All]
  - name: Italy Utilities
    code: IT
    kind: comparison
    bases: [accrued]
    entities: [Italy]
    sectors: [Utilities]
    min_observations: 5
    window:
      min: 0.0
      max: 1.0
`
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
				return path
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "data/cbcr_2021.csv", cfg.Dataset.InputFile)
				require.Len(t, cfg.Studies, 3)

				assert.Equal(t, "DE", cfg.Studies[1].Code)
				assert.Equal(t, []string{"Germany"}, cfg.Studies[1].Entities)
				// Kind and bases default even for file-defined studies
				assert.Equal(t, StudyBaseline, cfg.Studies[1].Kind)
				assert.Equal(t, []string{BasisAccrued, BasisPaid}, cfg.Studies[1].Bases)

				assert.Equal(t, StudyComparison, cfg.Studies[2].Kind)
				assert.Equal(t, []string{BasisAccrued}, cfg.Studies[2].Bases)
				assert.Equal(t, 5, cfg.Studies[2].MinObservations)
				require.NotNil(t, cfg.Studies[2].Window)
				assert.Equal(t, 1.0, cfg.Studies[2].Window.Max)
			},
		},
		{
			name: "env overrides yaml file",
			setupEnv: func() {
				clearEnv()
				os.Setenv("CBCR_WINDOW_MAX", "0.75")
			},
			setupFile: func(t *testing.T) string {
				content := "window:\n  max: 0.5\n"
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
				return path
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 0.75, cfg.Window.Max)
			},
		},
		{
			name:     "invalid yaml fails",
			setupEnv: clearEnv,
			setupFile: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte("window: ["), 0o644))
				return path
			},
			wantErr:     true,
			errContains: "failed to load config from file",
		},
		{
			name: "window upper bound must exceed lower bound",
			setupEnv: func() {
				clearEnv()
				os.Setenv("CBCR_WINDOW_MIN", "0.5")
				os.Setenv("CBCR_WINDOW_MAX", "0.5")
			},
			wantErr:     true,
			errContains: "validation failed",
		},
		{
			name: "unknown control column fails",
			setupEnv: func() {
				clearEnv()
				os.Setenv("CBCR_REGRESSION_CONTROLS", "employees,share_capital")
			},
			wantErr:     true,
			errContains: "validation failed",
		},
		{
			name:     "duplicate study names fail",
			setupEnv: clearEnv,
			setupFile: func(t *testing.T) string {
				content := "studies:\n  - name: Global\n  - name: Global\n"
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
				return path
			},
			wantErr:     true,
			errContains: "duplicate study name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()

			path := ""
			if tt.setupFile != nil {
				path = tt.setupFile(t)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "default config is valid",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name: "negative window lower bound",
			mutate: func(cfg *Config) {
				cfg.Window.Min = -0.1
			},
			wantErr: true,
		},
		{
			name: "too few observations required",
			mutate: func(cfg *Config) {
				cfg.Regression.MinObservations = 2
			},
			wantErr: true,
		},
		{
			name: "imputation floor must be positive",
			mutate: func(cfg *Config) {
				cfg.Imputation.MinValue = 0
			},
			wantErr: true,
		},
		{
			name: "study without name",
			mutate: func(cfg *Config) {
				cfg.Studies = []StudyProfile{{Kind: StudyBaseline}}
			},
			wantErr: true,
		},
		{
			name: "no studies configured",
			mutate: func(cfg *Config) {
				cfg.Studies = nil
			},
			wantErr: true,
		},
		{
			name: "study year range inverted",
			mutate: func(cfg *Config) {
				cfg.Studies = []StudyProfile{{Name: "Global", MinYear: 2022, MaxYear: 2019}}
			},
			wantErr: true,
		},
		{
			name: "invalid tax basis",
			mutate: func(cfg *Config) {
				cfg.Studies = []StudyProfile{{Name: "Global", Bases: []string{"deferred"}}}
			},
			wantErr: true,
		},
		{
			name: "invalid study kind",
			mutate: func(cfg *Config) {
				cfg.Studies = []StudyProfile{{Name: "Global", Kind: "exploratory"}}
			},
			wantErr: true,
		},
		{
			name: "negative worker count",
			mutate: func(cfg *Config) {
				cfg.Workers = -1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_EffectiveWindow(t *testing.T) {
	cfg := Default()

	shared := cfg.EffectiveWindow(StudyProfile{Name: "Global"})
	assert.Equal(t, cfg.Window, shared)

	override := cfg.EffectiveWindow(StudyProfile{
		Name:   "IT",
		Window: &WindowConfig{Min: 0, Max: 1.0},
	})
	assert.Equal(t, 1.0, override.Max)
}

func TestConfig_EffectiveMinObservations(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.EffectiveMinObservations(StudyProfile{Name: "Global"}))
	assert.Equal(t, 5, cfg.EffectiveMinObservations(StudyProfile{Name: "IT", MinObservations: 5}))
}

func TestStudyProfile_Filtered(t *testing.T) {
	assert.False(t, StudyProfile{Name: "Global"}.Filtered())
	assert.True(t, StudyProfile{Name: "DE", Entities: []string{"Germany"}}.Filtered())
	assert.True(t, StudyProfile{Name: "Recent", MinYear: 2020}.Filtered())
}
