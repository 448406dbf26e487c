package sensor

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/telemetry.report/internal/protocol"
)

// Calibration is the affine transform from a raw decoded value to
// engineering units: (raw - Bias) * Weight.
type Calibration struct {
	Weight float64
	Bias   float64
}

// Apply converts raw into engineering units.
func (c Calibration) Apply(raw float64) float64 {
	return (raw - c.Bias) * c.Weight
}

// CalibrationTable holds coefficients keyed by sensor key. It is independent
// of the catalog and may cover only a subset of known sensors.
type CalibrationTable struct {
	entries map[string]Calibration
}

// NewCalibrationTable copies entries into an immutable table.
func NewCalibrationTable(entries map[string]Calibration) (*CalibrationTable, error) {
	t := &CalibrationTable{entries: make(map[string]Calibration, len(entries))}
	for key, c := range entries {
		if key == "" {
			return nil, fmt.Errorf("calibration entry has no sensor key")
		}
		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) || math.IsNaN(c.Bias) || math.IsInf(c.Bias, 0) {
			return nil, fmt.Errorf("calibration for %s is not finite: weight=%v bias=%v", key, c.Weight, c.Bias)
		}
		t.entries[key] = c
	}
	return t, nil
}

// LoadEmbeddedCalibration loads the default calibration table.
func LoadEmbeddedCalibration() (*CalibrationTable, error) {
	file, err := embeddedConfigs.Open("sensor_configs/calibration.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded calibration file: %w", err)
	}
	defer file.Close()
	return ReadCalibration(file)
}

// DefaultCalibration returns the embedded calibration table, panicking if the
// embedded file is malformed.
func DefaultCalibration() *CalibrationTable {
	t, err := LoadEmbeddedCalibration()
	if err != nil {
		panic(err)
	}
	return t
}

// ReadCalibration parses a calibration CSV with the header Key,Weight,Bias.
func ReadCalibration(r io.Reader) (*CalibrationTable, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration CSV: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("calibration file is empty")
	}

	header := records[0]
	if len(header) != 3 ||
		!strings.EqualFold(header[0], "key") ||
		!strings.EqualFold(header[1], "weight") ||
		!strings.EqualFold(header[2], "bias") {
		return nil, fmt.Errorf("invalid header in calibration file, expected: Key,Weight,Bias")
	}

	entries := make(map[string]Calibration, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 3 {
			return nil, fmt.Errorf("invalid record at line %d: expected 3 fields", i+2)
		}
		key := strings.TrimSpace(record[0])
		if _, dup := entries[key]; dup {
			return nil, fmt.Errorf("duplicate calibration for %s at line %d", key, i+2)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight at line %d: %v", i+2, err)
		}
		bias, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bias at line %d: %v", i+2, err)
		}
		entries[key] = Calibration{Weight: weight, Bias: bias}
	}
	return NewCalibrationTable(entries)
}

// Lookup returns the coefficients for key.
func (t *CalibrationTable) Lookup(key string) (Calibration, bool) {
	c, ok := t.entries[key]
	return c, ok
}

// Len returns the number of calibrated sensors.
func (t *CalibrationTable) Len() int { return len(t.entries) }

// Calibrator resolves a sensor id through the catalog and then the
// calibration table. The two lookups fail independently: an id can be a
// known sensor and still have no calibration.
type Calibrator struct {
	catalog *Catalog
	table   *CalibrationTable
}

// NewCalibrator pairs a catalog with a calibration table.
func NewCalibrator(catalog *Catalog, table *CalibrationTable) *Calibrator {
	return &Calibrator{catalog: catalog, table: table}
}

// DefaultCalibrator pairs the embedded catalog and calibration table.
func DefaultCalibrator() *Calibrator {
	return NewCalibrator(DefaultCatalog(), DefaultCalibration())
}

// Catalog returns the identity catalog used by the calibrator.
func (c *Calibrator) Catalog() *Catalog { return c.catalog }

// Coefficients returns the calibration for id.
func (c *Calibrator) Coefficients(id int) (Calibration, error) {
	s, err := c.catalog.Lookup(id)
	if err != nil {
		return Calibration{}, err
	}
	cal, ok := c.table.Lookup(s.Key)
	if !ok {
		return Calibration{}, &protocol.FieldError{
			Field:    "calibration",
			Expected: "entry for " + s.Key,
			Actual:   "none",
			Err:      protocol.ErrUnknownSensorID,
		}
	}
	return cal, nil
}

// Calibrate converts raw into engineering units for sensor id. An
// uncalibrated sensor is an error; the raw value is never passed through.
func (c *Calibrator) Calibrate(id int, raw float64) (float64, error) {
	cal, err := c.Coefficients(id)
	if err != nil {
		return 0, err
	}
	return cal.Apply(raw), nil
}
