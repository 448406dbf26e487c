package telemetry

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/telemetry.report/internal/kinematics"
	"github.com/banshee-data/telemetry.report/internal/sensor"
)

// Sensor keys combined into derived vehicle quantities.
var (
	TireKeys        = []string{sensor.TIRE1, sensor.TIRE2, sensor.TIRE3, sensor.TIRE4}
	AcceleratorKeys = []string{sensor.ACC1, sensor.ACC2}
)

// Snapshot is the latest calibrated value of every sensor at a point in time.
type Snapshot struct {
	Time   float64
	Values map[string]float64 // by sensor key; absent if no reading at or before Time
}

// TakeSnapshot collects each series' most recent reading at or before t.
func TakeSnapshot(groups []Series, t float64) Snapshot {
	s := Snapshot{Time: t, Values: make(map[string]float64, len(groups))}
	for _, g := range groups {
		if r, ok := g.At(t); ok {
			s.Values[g.Sensor.Key] = r.Value
		}
	}
	return s
}

// mean averages the values present for keys.
func (s Snapshot) mean(keys []string) (float64, bool) {
	vals := make([]float64, 0, len(keys))
	for _, k := range keys {
		if v, ok := s.Values[k]; ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}

// Speed is the vehicle speed: the mean of the wheel speed sensors present.
func (s Snapshot) Speed() (float64, bool) { return s.mean(TireKeys) }

// Accelerator is the mean of the two accelerator pedal sensors present.
func (s Snapshot) Accelerator() (float64, bool) { return s.mean(AcceleratorKeys) }

// Brake is the brake pressure.
func (s Snapshot) Brake() (float64, bool) {
	v, ok := s.Values[sensor.BRAKE]
	return v, ok
}

// Steering is the steering wheel angle in degrees.
func (s Snapshot) Steering() (float64, bool) {
	v, ok := s.Values[sensor.ANGLE]
	return v, ok
}

// VehicleSpeed derives a speed sample at every wheel-sensor timestamp: the
// mean of the latest reading of each wheel sensor seen so far. Readings are
// swept in timestamp order; equal timestamps are merged into one sample.
func VehicleSpeed(groups []Series) []kinematics.Sample {
	type event struct {
		wheel int
		r     Reading
	}
	var events []event
	for w, key := range TireKeys {
		g, ok := Lookup(groups, key)
		if !ok {
			continue
		}
		for _, r := range g.Readings {
			events = append(events, event{wheel: w, r: r})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].r.Timestamp < events[j].r.Timestamp
	})

	latest := make([]float64, len(TireKeys))
	seen := make([]bool, len(TireKeys))
	var out []kinematics.Sample
	for i, e := range events {
		latest[e.wheel] = e.r.Value
		seen[e.wheel] = true
		if i+1 < len(events) && events[i+1].r.Timestamp == e.r.Timestamp {
			continue
		}
		vals := make([]float64, 0, len(latest))
		for w, ok := range seen {
			if ok {
				vals = append(vals, latest[w])
			}
		}
		out = append(out, kinematics.Sample{Time: e.r.Timestamp, Value: stat.Mean(vals, nil)})
	}
	return out
}
