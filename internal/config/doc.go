// Package config provides centralized configuration management for the
// study pipeline. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern CBCR_* for namespacing:
//
//	CBCR_DATASET_INPUT_FILE=data/cbcr_2021.csv
//	CBCR_WINDOW_MAX=1.0
//	CBCR_IMPUTATION_SEED=42
//	CBCR_LOGGING_LEVEL=debug
//
// # Study Profiles
//
// Studies cannot be described by scalar environment variables, so they come
// from the YAML file only:
//
//	studies:
//	  - name: Global
//	  - name: Germany
//	    code: DE
//	    entities: [Germany]
//	  - name: Italy Utilities
//	    code: IT
//	    kind: comparison
//	    entities: [Italy]
//	    sectors: [Utilities]
//	    min_observations: 5
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
