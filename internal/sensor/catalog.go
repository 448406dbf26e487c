// Package sensor holds the static sensor catalog and the per-sensor
// calibration table. Both are loaded once (by default from CSV files embedded
// in the binary) and are read-only afterwards, so a single instance can be
// shared by any number of decoders without locking.
package sensor

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/telemetry.report/internal/protocol"
)

//go:embed sensor_configs/*.csv
var embeddedConfigs embed.FS

// Sensor keys in the default catalog.
const (
	ACC1   = "ACC1"
	ACC2   = "ACC2"
	BRAKE  = "BRAKE"
	SWITCH = "SWITCH"
	ANGLE  = "ANGLE"
	TIRE1  = "TIRE1"
	TIRE2  = "TIRE2"
	TIRE3  = "TIRE3"
	TIRE4  = "TIRE4"
	DAMP1  = "DAMP1"
	DAMP2  = "DAMP2"
	DAMP3  = "DAMP3"
	DAMP4  = "DAMP4"
	TEMP   = "TEMP"
	LIGHT  = "LIGHT"
)

// Sensor identifies one signal source on the bus.
type Sensor struct {
	ID   int    // wire identifier, 0..N-1
	Key  string // short key, e.g. BRAKE
	Name string // display name, e.g. Brake Pressure
}

// Catalog maps wire identifiers to sensors. Identifiers are dense: a catalog
// of N sensors covers exactly 0..N-1.
type Catalog struct {
	sensors []Sensor
	byKey   map[string]int
}

// NewCatalog validates sensors and builds a catalog. The slice may be in any
// order but must cover 0..len(sensors)-1 with unique ids and keys.
func NewCatalog(sensors []Sensor) (*Catalog, error) {
	c := &Catalog{
		sensors: make([]Sensor, len(sensors)),
		byKey:   make(map[string]int, len(sensors)),
	}
	seen := make([]bool, len(sensors))
	for _, s := range sensors {
		if s.ID < 0 || s.ID >= len(sensors) {
			return nil, fmt.Errorf("sensor %s: id %d out of range (0-%d)", s.Key, s.ID, len(sensors)-1)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("sensor %s: duplicate id %d", s.Key, s.ID)
		}
		if s.Key == "" {
			return nil, fmt.Errorf("sensor id %d has no key", s.ID)
		}
		if _, dup := c.byKey[s.Key]; dup {
			return nil, fmt.Errorf("duplicate sensor key %s", s.Key)
		}
		seen[s.ID] = true
		c.sensors[s.ID] = s
		c.byKey[s.Key] = s.ID
	}
	return c, nil
}

// LoadEmbeddedCatalog loads the default fifteen-sensor catalog.
func LoadEmbeddedCatalog() (*Catalog, error) {
	file, err := embeddedConfigs.Open("sensor_configs/sensors.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded sensor catalog: %w", err)
	}
	defer file.Close()
	return ReadCatalog(file)
}

// DefaultCatalog returns the embedded catalog. It panics if the embedded file
// is malformed, which is a build defect.
func DefaultCatalog() *Catalog {
	c, err := LoadEmbeddedCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ReadCatalog parses a catalog CSV with the header ID,Key,Name.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read sensor catalog CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("insufficient data in sensor catalog")
	}

	header := records[0]
	if len(header) != 3 ||
		!strings.EqualFold(header[0], "id") ||
		!strings.EqualFold(header[1], "key") ||
		!strings.EqualFold(header[2], "name") {
		return nil, fmt.Errorf("invalid header in sensor catalog, expected: ID,Key,Name")
	}

	sensors := make([]Sensor, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 3 {
			return nil, fmt.Errorf("invalid record at line %d: expected 3 fields", i+2)
		}
		id, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid sensor id at line %d: %v", i+2, err)
		}
		sensors = append(sensors, Sensor{
			ID:   id,
			Key:  strings.TrimSpace(record[1]),
			Name: strings.TrimSpace(record[2]),
		})
	}
	return NewCatalog(sensors)
}

// Len returns the number of sensors.
func (c *Catalog) Len() int { return len(c.sensors) }

// Sensors returns every sensor ordered by id.
func (c *Catalog) Sensors() []Sensor {
	out := make([]Sensor, len(c.sensors))
	copy(out, c.sensors)
	return out
}

// Lookup returns the sensor with the given id.
func (c *Catalog) Lookup(id int) (Sensor, error) {
	if id < 0 || id >= len(c.sensors) {
		return Sensor{}, &protocol.FieldError{
			Field:    protocol.FieldID,
			Expected: fmt.Sprintf("0-%d", len(c.sensors)-1),
			Actual:   strconv.Itoa(id),
			Err:      protocol.ErrUnknownSensorID,
		}
	}
	return c.sensors[id], nil
}

// ByKey returns the sensor with the given key.
func (c *Catalog) ByKey(key string) (Sensor, bool) {
	id, ok := c.byKey[key]
	if !ok {
		return Sensor{}, false
	}
	return c.sensors[id], true
}

// DecodeID interprets bits as a big-endian unsigned identifier and looks it up.
func (c *Catalog) DecodeID(bits string) (Sensor, error) {
	if len(bits) != protocol.IDWidth {
		return Sensor{}, &protocol.FieldError{
			Field:    protocol.FieldID,
			Expected: fmt.Sprintf("%d bits", protocol.IDWidth),
			Actual:   fmt.Sprintf("%d bits", len(bits)),
			Err:      protocol.ErrLengthMismatch,
		}
	}
	v, err := protocol.DecodeUnsigned(bits)
	if err != nil {
		return Sensor{}, err
	}
	return c.Lookup(int(v))
}

// DecodeIDs applies DecodeID to each element, in order.
func (c *Catalog) DecodeIDs(bits []string) []protocol.Result[Sensor] {
	return protocol.DecodeEach(bits, c.DecodeID)
}
