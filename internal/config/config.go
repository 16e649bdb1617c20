package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"cbcrcli/pkg/contracts/domain"
)

// Config represents the complete study pipeline configuration
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset" envconfig:"DATASET"`
	Window     WindowConfig     `yaml:"window" envconfig:"WINDOW"`
	Regression RegressionConfig `yaml:"regression" envconfig:"REGRESSION"`
	Imputation ImputationConfig `yaml:"imputation" envconfig:"IMPUTATION"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Export     ExportConfig     `yaml:"export" envconfig:"EXPORT"`
	Workers    int              `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
	Studies    []StudyProfile   `yaml:"studies" ignored:"true" validate:"dive"`
}

// DatasetConfig describes the input dataset and how raw cells are read
type DatasetConfig struct {
	InputFile          string `yaml:"input_file" envconfig:"INPUT_FILE"`
	TreatZeroAsMissing bool   `yaml:"treat_zero_as_missing" envconfig:"TREAT_ZERO_AS_MISSING"`
}

// WindowConfig bounds the effective tax rate sample.
// The lower bound is inclusive, the upper bound exclusive.
type WindowConfig struct {
	Min float64 `yaml:"min" envconfig:"MIN" validate:"gte=0"`
	Max float64 `yaml:"max" envconfig:"MAX" validate:"gtfield=Min"`
}

// RegressionConfig contains estimation settings
type RegressionConfig struct {
	MinObservations int      `yaml:"min_observations" envconfig:"MIN_OBSERVATIONS" validate:"gte=3"`
	Controls        []string `yaml:"controls" envconfig:"CONTROLS" validate:"dive,financial_field"`
}

// ImputationConfig contains iterative imputation settings
type ImputationConfig struct {
	MaxIterations int     `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"gte=1"`
	MinValue      float64 `yaml:"min_value" envconfig:"MIN_VALUE" validate:"gt=0"`
	Seed          int64   `yaml:"seed" envconfig:"SEED"`
	Tolerance     float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gt=0"`
	MinRows       int     `yaml:"min_rows" envconfig:"MIN_ROWS" validate:"gte=2"`
	RandomOrder   bool    `yaml:"random_order" envconfig:"RANDOM_ORDER"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// ExportConfig contains result export configuration
type ExportConfig struct {
	Directory string `yaml:"directory" envconfig:"DIRECTORY" validate:"required"`
	Workbook  string `yaml:"workbook" envconfig:"WORKBOOK" validate:"required"`
	Format    string `yaml:"format" envconfig:"FORMAT" validate:"oneof=xlsx csv both"`
}

// StudyProfile selects a slice of the dataset and names the study run on it.
// Empty filter fields admit every record. Code prefixes the study's table
// names (e.g. "DE" yields DE_Accrued_BASE_1) and defaults to the name.
type StudyProfile struct {
	Name                 string        `yaml:"name" validate:"required"`
	Code                 string        `yaml:"code"`
	Kind                 string        `yaml:"kind" validate:"omitempty,oneof=baseline comparison"`
	Bases                []string      `yaml:"bases" validate:"dive,oneof=accrued paid"`
	Entities             []string      `yaml:"entities"`
	Jurisdictions        []string      `yaml:"jurisdictions"`
	ExcludeJurisdictions []string      `yaml:"exclude_jurisdictions"`
	Sectors              []string      `yaml:"sectors"`
	MinYear              int           `yaml:"min_year" validate:"gte=0"`
	MaxYear              int           `yaml:"max_year" validate:"gte=0"`
	MinObservations      int           `yaml:"min_observations" validate:"gte=0"`
	Window               *WindowConfig `yaml:"window"`
}

// Filtered reports whether the profile narrows the dataset at all
func (s StudyProfile) Filtered() bool {
	return len(s.Entities) > 0 || len(s.Jurisdictions) > 0 ||
		len(s.ExcludeJurisdictions) > 0 || len(s.Sectors) > 0 ||
		s.MinYear > 0 || s.MaxYear > 0
}

// Load loads configuration from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence. An empty path
// searches the usual config file locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment variables override file values
	if err := envconfig.Process("CBCR", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays YAML file values onto the current configuration
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// normalize fills derivable fields so validation sees a complete config
func (c *Config) normalize() {
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFilePath
	}
	if c.Export.Format == "" {
		c.Export.Format = "xlsx"
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	for i := range c.Studies {
		s := &c.Studies[i]
		if s.Kind == "" {
			s.Kind = StudyBaseline
		}
		if s.Code == "" {
			s.Code = s.Name
		}
		if len(s.Bases) == 0 {
			s.Bases = []string{BasisAccrued, BasisPaid}
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("financial_field", isFinancialField)

	return v
}

// isFinancialField validates that a control column names a known numeric field
func isFinancialField(fl validator.FieldLevel) bool {
	return domain.IsNumericField(fl.Field().String())
}

// Validate checks structural validity and cross-field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				return fmt.Errorf("%s", formatValidationError(fe))
			}
		}
		return err
	}

	if len(c.Studies) == 0 {
		return fmt.Errorf("at least one study must be configured")
	}

	seen := make(map[string]bool, len(c.Studies))
	for _, s := range c.Studies {
		if seen[s.Name] {
			return fmt.Errorf("duplicate study name: %s", s.Name)
		}
		seen[s.Name] = true

		if s.MinYear > 0 && s.MaxYear > 0 && s.MinYear > s.MaxYear {
			return fmt.Errorf("study %s: min_year %d is after max_year %d", s.Name, s.MinYear, s.MaxYear)
		}
	}

	return nil
}

// formatValidationError renders a field error as a readable message
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "financial_field":
		return fmt.Sprintf("%s names an unknown financial column: %v", err.Field(), err.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag())
	}
}

// findConfigFile returns the first config file found in common locations
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			TreatZeroAsMissing: true,
		},
		Window: WindowConfig{
			Min: DefaultETRMin,
			Max: DefaultETRMax,
		},
		Regression: RegressionConfig{
			MinObservations: MinObservationsForRegression,
			Controls: []string{
				domain.FieldEmployees,
				domain.FieldTangibleAssets,
				domain.FieldRelatedRevenues,
			},
		},
		Imputation: ImputationConfig{
			MaxIterations: DefaultImputationMaxIterations,
			MinValue:      DefaultImputationMinValue,
			Seed:          DefaultImputationSeed,
			Tolerance:     DefaultImputationTolerance,
			MinRows:       MinRowsForImputation,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "both",
			FilePath:    DefaultLogFilePath,
			Development: true,
		},
		Export: ExportConfig{
			Directory: DefaultResultsDir,
			Workbook:  DefaultWorkbookName,
			Format:    "xlsx",
		},
		Workers: 1,
		Studies: []StudyProfile{
			{Name: "Global", Kind: StudyBaseline},
		},
	}
}

// EffectiveWindow returns the study's window override, or the shared window
func (c *Config) EffectiveWindow(s StudyProfile) WindowConfig {
	if s.Window != nil {
		return *s.Window
	}
	return c.Window
}

// EffectiveMinObservations returns the study's regression threshold
// override, or the shared one. Narrow sector-level studies typically lower
// it to 5.
func (c *Config) EffectiveMinObservations(s StudyProfile) int {
	if s.MinObservations > 0 {
		return s.MinObservations
	}
	return c.Regression.MinObservations
}
