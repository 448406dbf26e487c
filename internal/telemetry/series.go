package telemetry

import (
	"fmt"
	"sort"

	"github.com/banshee-data/telemetry.report/internal/kinematics"
	"github.com/banshee-data/telemetry.report/internal/protocol"
	"github.com/banshee-data/telemetry.report/internal/sensor"
)

// Series is the readings of one sensor in input order.
type Series struct {
	Sensor   sensor.Sensor
	Readings []Reading
}

// GroupBySensor returns one Series per catalog sensor, ordered by sensor id.
// Sensors without readings get an empty series. Readings keep their input
// order; nothing is resequenced.
func GroupBySensor(catalog *sensor.Catalog, readings []Reading) ([]Series, error) {
	sensors := catalog.Sensors()
	out := make([]Series, len(sensors))
	for i, s := range sensors {
		out[i] = Series{Sensor: s}
	}
	for _, r := range readings {
		if r.SensorID < 0 || r.SensorID >= len(out) {
			return nil, &protocol.FieldError{
				Field:    protocol.FieldID,
				Expected: fmt.Sprintf("0-%d", len(out)-1),
				Actual:   fmt.Sprint(r.SensorID),
				Err:      protocol.ErrUnknownSensorID,
			}
		}
		out[r.SensorID].Readings = append(out[r.SensorID].Readings, r)
	}
	return out, nil
}

// Lookup finds the series for a sensor key.
func Lookup(groups []Series, key string) (Series, bool) {
	for _, s := range groups {
		if s.Sensor.Key == key {
			return s, true
		}
	}
	return Series{}, false
}

// Times returns the reading timestamps in order.
func (s Series) Times() []float64 {
	out := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		out[i] = r.Timestamp
	}
	return out
}

// Values returns the calibrated values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		out[i] = r.Value
	}
	return out
}

// Ordered reports whether timestamps are non-decreasing.
func (s Series) Ordered() bool {
	return sort.SliceIsSorted(s.Readings, func(i, j int) bool {
		return s.Readings[i].Timestamp < s.Readings[j].Timestamp
	})
}

// At returns the most recent reading with a timestamp at or before t. Ties go
// to the later reading in input order.
func (s Series) At(t float64) (Reading, bool) {
	var (
		best  Reading
		found bool
	)
	for _, r := range s.Readings {
		if r.Timestamp > t {
			continue
		}
		if !found || r.Timestamp >= best.Timestamp {
			best, found = r, true
		}
	}
	return best, found
}

// Samples converts the series to time/value samples for kinematic alignment.
func (s Series) Samples() []kinematics.Sample {
	out := make([]kinematics.Sample, len(s.Readings))
	for i, r := range s.Readings {
		out[i] = kinematics.Sample{Time: r.Timestamp, Value: r.Value}
	}
	return out
}
