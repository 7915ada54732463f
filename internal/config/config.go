// =============================================================================
// CFDI XML to XLSX - Configuration Module
// =============================================================================
//
// This module loads the application configuration from a YAML file, fills in
// defaults, applies environment overrides and validates the result.
//
// PRECEDENCE (lowest to highest):
//   1. Built-in defaults
//   2. config.yaml (a missing file is not an error)
//   3. CFDI_* environment variables (a .env file is loaded by main)
//   4. Command-line flags (applied by the cmd package)
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/logger"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// PATHS
	// =========================================================================

	// InputDir is scanned recursively for .xml files.
	// Default: "./cfdis_to_export"
	InputDir string `yaml:"input_dir"`

	// DatabasePath is the SQLite file holding normalized documents.
	// Default: "./cfdis_database.db"
	DatabasePath string `yaml:"database_path"`

	// OutputFile is the XLSX report path.
	// Default: "./EXPORTED_XLSX.xlsx"
	OutputFile string `yaml:"output_file"`

	// ResetDatabase deletes the database before processing.
	ResetDatabase bool `yaml:"reset_database"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// BlockSize is the number of files normalized and persisted per batch.
	// Default: 2000
	BlockSize int `yaml:"block_size"`

	// Workers is the number of files normalized concurrently.
	// Default: 4
	Workers int `yaml:"workers"`

	// ExportChunkSize is the page size used when exporting large stores.
	// Default: 10000
	ExportChunkSize int `yaml:"export_chunk_size"`

	// DirectExportLimit is the record count under which the export loads
	// everything in one query.
	// Default: 50000
	DirectExportLimit int `yaml:"direct_export_limit"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel: "debug", "info", "warn", "error". Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat: "console" or "json". Default: "console"
	LogFormat string `yaml:"log_format"`

	// LogOutput: "stdout", "stderr" or a file path. Default: "stderr"
	LogOutput string `yaml:"log_output"`

	Report ReportConfig `yaml:"report"`
}

// ReportConfig tunes the XLSX report.
type ReportConfig struct {
	// SheetName defaults to "Hoja 1".
	SheetName string `yaml:"sheet_name"`

	// TotalCurrencies is the ordered list of currencies with a total row.
	// Default: [EUR, MXN, USD, COP]
	TotalCurrencies []string `yaml:"total_currencies"`

	// DiscoverCurrencies adds a total row for every other currency found.
	DiscoverCurrencies bool `yaml:"discover_currencies"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns a MainConfig with every default applied.
func Default() *MainConfig {
	cfg := &MainConfig{}
	applyDefaults(cfg)
	return cfg
}

// LoadMainConfig reads the configuration file.
//
// PARAMETERS:
//   - configPath: path to the YAML file. When it does not exist the defaults
//     are used.
//
// RETURNS:
//   - The loaded configuration with defaults and environment overrides.
//   - An error if the file cannot be read or parsed, or is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Zero values written explicitly in the file fall back to defaults too.
	applyDefaults(config)
	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./cfdis_to_export"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "./cfdis_database.db"
	}
	if config.OutputFile == "" {
		config.OutputFile = "./EXPORTED_XLSX.xlsx"
	}
	if config.BlockSize == 0 {
		config.BlockSize = 2000
	}
	if config.Workers == 0 {
		config.Workers = 4
	}
	if config.ExportChunkSize == 0 {
		config.ExportChunkSize = 10000
	}
	if config.DirectExportLimit == 0 {
		config.DirectExportLimit = 50000
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "console"
	}
	if config.LogOutput == "" {
		config.LogOutput = "stderr"
	}
	if config.Report.SheetName == "" {
		config.Report.SheetName = "Hoja 1"
	}
	if len(config.Report.TotalCurrencies) == 0 {
		config.Report.TotalCurrencies = []string{"EUR", "MXN", "USD", "COP"}
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// applyEnv overrides fields from CFDI_* variables.
func applyEnv(config *MainConfig) error {
	strs := map[string]*string{
		"CFDI_INPUT_DIR":     &config.InputDir,
		"CFDI_DATABASE_PATH": &config.DatabasePath,
		"CFDI_OUTPUT_FILE":   &config.OutputFile,
		"CFDI_LOG_LEVEL":     &config.LogLevel,
		"CFDI_LOG_FORMAT":    &config.LogFormat,
		"CFDI_LOG_OUTPUT":    &config.LogOutput,
		"CFDI_SHEET_NAME":    &config.Report.SheetName,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CFDI_BLOCK_SIZE":          &config.BlockSize,
		"CFDI_WORKERS":             &config.Workers,
		"CFDI_EXPORT_CHUNK_SIZE":   &config.ExportChunkSize,
		"CFDI_DIRECT_EXPORT_LIMIT": &config.DirectExportLimit,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"CFDI_RESET_DATABASE":      &config.ResetDatabase,
		"CFDI_DISCOVER_CURRENCIES": &config.Report.DiscoverCurrencies,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = b
	}

	if v := os.Getenv("CFDI_TOTAL_CURRENCIES"); v != "" {
		var list []string
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				list = append(list, strings.ToUpper(c))
			}
		}
		config.Report.TotalCurrencies = list
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate rejects empty paths and non-positive sizes.
func (c *MainConfig) Validate() error {
	var errs []error

	paths := map[string]string{
		"input_dir":     c.InputDir,
		"database_path": c.DatabasePath,
		"output_file":   c.OutputFile,
	}
	for _, name := range []string{"input_dir", "database_path", "output_file"} {
		if strings.TrimSpace(paths[name]) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", name))
		}
	}

	sizes := []struct {
		name  string
		value int
	}{
		{"block_size", c.BlockSize},
		{"workers", c.Workers},
		{"export_chunk_size", c.ExportChunkSize},
		{"direct_export_limit", c.DirectExportLimit},
	}
	for _, s := range sizes {
		if s.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", s.name, s.value))
		}
	}

	if len(c.Report.TotalCurrencies) == 0 && !c.Report.DiscoverCurrencies {
		errs = append(errs, errors.New("report.total_currencies must not be empty unless discover_currencies is set"))
	}

	return errors.Join(errs...)
}

// LoggerConfig returns the logging section as a logger.LogConfig.
func (c *MainConfig) LoggerConfig() logger.LogConfig {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	lc.Output = c.LogOutput
	return lc
}
