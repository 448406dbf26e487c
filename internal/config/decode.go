package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/telemetry.report/internal/sensor"
	"github.com/banshee-data/telemetry.report/internal/units"
)

// DefaultConfigPath is the path to the canonical decode defaults file.
const DefaultConfigPath = "config/decode.defaults.json"

// DecodeConfig is the root configuration of a decode run. Every field is
// optional; the Get* methods supply defaults for anything omitted.
type DecodeConfig struct {
	// Reject frames whose checksum does not match (default true).
	VerifyChecksum *bool `json:"verify_checksum,omitempty"`

	// Worker goroutines for frame batches; 0 means GOMAXPROCS.
	Workers *int `json:"workers,omitempty"`

	// Abort the whole batch on the first bad item instead of dropping it.
	Strict *bool `json:"strict,omitempty"`

	// Optional CSV overrides for the embedded sensor tables.
	CatalogPath     *string `json:"catalog_path,omitempty"`
	CalibrationPath *string `json:"calibration_path,omitempty"`

	// Units for reported vehicle speed: mps, mph, kmph or kph.
	SpeedUnits *string `json:"speed_units,omitempty"`

	// Log every rejected item.
	Debug *bool `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyDecodeConfig returns a DecodeConfig with all fields set to nil.
func EmptyDecodeConfig() *DecodeConfig {
	return &DecodeConfig{}
}

// DefaultDecodeConfig returns a DecodeConfig with every default filled in.
func DefaultDecodeConfig() *DecodeConfig {
	return &DecodeConfig{
		VerifyChecksum: ptrBool(true),
		Workers:        ptrInt(0),
		Strict:         ptrBool(false),
		SpeedUnits:     ptrString(units.MPH),
		Debug:          ptrBool(false),
	}
}

// LoadDecodeConfig loads a DecodeConfig from a JSON file.
// Fields omitted from the JSON file fall back to their defaults, so partial
// configs are safe.
func LoadDecodeConfig(path string) (*DecodeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDecodeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *DecodeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/*/
	}
	for _, path := range candidates {
		if cfg, err := LoadDecodeConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DecodeConfig) Validate() error {
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("invalid speed_units %q, expected one of: %s", *c.SpeedUnits, units.GetValidUnitsString())
	}
	if c.CatalogPath != nil && *c.CatalogPath == "" {
		return fmt.Errorf("catalog_path must not be empty when set")
	}
	if c.CalibrationPath != nil && *c.CalibrationPath == "" {
		return fmt.Errorf("calibration_path must not be empty when set")
	}
	return nil
}

// GetVerifyChecksum returns the verify_checksum value or the default.
func (c *DecodeConfig) GetVerifyChecksum() bool {
	if c.VerifyChecksum == nil {
		return true
	}
	return *c.VerifyChecksum
}

// GetWorkers returns the workers value or the default.
func (c *DecodeConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetStrict returns the strict value or the default.
func (c *DecodeConfig) GetStrict() bool {
	if c.Strict == nil {
		return false
	}
	return *c.Strict
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *DecodeConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil {
		return units.MPH
	}
	return *c.SpeedUnits
}

// GetDebug returns the debug value or the default.
func (c *DecodeConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// LoadCalibrator builds the sensor catalog and calibration table, reading the
// configured CSV overrides and falling back to the embedded tables.
func (c *DecodeConfig) LoadCalibrator() (*sensor.Calibrator, error) {
	catalog, err := loadTable(c.CatalogPath, sensor.LoadEmbeddedCatalog, sensor.ReadCatalog)
	if err != nil {
		return nil, fmt.Errorf("sensor catalog: %w", err)
	}
	table, err := loadTable(c.CalibrationPath, sensor.LoadEmbeddedCalibration, sensor.ReadCalibration)
	if err != nil {
		return nil, fmt.Errorf("calibration table: %w", err)
	}
	return sensor.NewCalibrator(catalog, table), nil
}

func loadTable[T any](path *string, embedded func() (T, error), read func(io.Reader) (T, error)) (T, error) {
	if path == nil {
		return embedded()
	}
	f, err := os.Open(filepath.Clean(*path))
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return read(f)
}
