// Package kinematics reconstructs a 2-D vehicle track from speed and steering
// samples by dead reckoning.
//
// The recurrence is strictly sequential: each step depends on the running
// heading and position, so a single run must never be split across
// goroutines. Independent runs may be integrated concurrently.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/telemetry.report/internal/protocol"
	"github.com/banshee-data/telemetry.report/internal/units"
)

// MphDistanceFactor converts speed (mph) times the per-sample time value into
// a distance increment. It is a fixed design parameter of the track format.
const MphDistanceFactor = 0.000278

// Position is the cumulative displacement after sample Index. Heading is
// the accumulated heading in degrees.
type Position struct {
	Index   int     `json:"index"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Integrate dead-reckons a track from aligned samples. For each index i in
// order:
//
//	d      = speeds[i] * MphDistanceFactor * times[i]
//	theta += radians(angles[i])
//	x     += d * cos(theta)
//	y     += d * sin(theta)
//
// times[i] is the caller-supplied elapsed time for sample i, not an absolute
// timestamp. Heading accumulates the angle samples directly. Sequences of
// unequal length are rejected before anything is computed.
func Integrate(speeds, times, angles []float64) (xs, ys []float64, err error) {
	if err := checkAligned(speeds, times, angles); err != nil {
		return nil, nil, err
	}

	xs = make([]float64, len(speeds))
	ys = make([]float64, len(speeds))
	var theta, x, y float64
	for i := range speeds {
		d := speeds[i] * MphDistanceFactor * times[i]
		theta += units.DegToRad(angles[i])
		x += d * math.Cos(theta)
		y += d * math.Sin(theta)
		xs[i], ys[i] = x, y
	}
	return xs, ys, nil
}

// IntegrateTrack is Integrate returning indexed positions.
func IntegrateTrack(speeds, times, angles []float64) ([]Position, error) {
	xs, ys, err := Integrate(speeds, times, angles)
	if err != nil {
		return nil, err
	}
	track := make([]Position, len(xs))
	var theta float64
	for i := range xs {
		theta += units.DegToRad(angles[i])
		track[i] = Position{Index: i, X: xs[i], Y: ys[i], Heading: units.RadToDeg(theta)}
	}
	return track, nil
}

func checkAligned(speeds, times, angles []float64) error {
	pairs := []struct {
		a, b   string
		la, lb int
	}{
		{"speeds", "times", len(speeds), len(times)},
		{"speeds", "angles", len(speeds), len(angles)},
		{"times", "angles", len(times), len(angles)},
	}
	for _, p := range pairs {
		if p.la != p.lb {
			return &protocol.FieldError{
				Field:    p.a + "/" + p.b,
				Expected: fmt.Sprintf("%d samples", p.la),
				Actual:   fmt.Sprintf("%d samples", p.lb),
				Err:      protocol.ErrLengthMismatch,
			}
		}
	}
	return nil
}

// Sample is one timestamped value (seconds since run start).
type Sample struct {
	Time  float64
	Value float64
}

// ErrUnordered is returned by Align when samples go back in time.
var ErrUnordered = errors.New("kinematics: samples not in time order")

// Inputs are aligned sequences ready for Integrate.
type Inputs struct {
	Speeds []float64
	Times  []float64 // elapsed milliseconds since the previous speed sample
	Angles []float64
}

// Align builds integrator inputs on the speed samples' clock. Each step's
// time value is the elapsed milliseconds since the previous speed sample
// (since run start for the first), and its angle is the latest steering
// sample at or before the speed sample, or 0 before the first one.
func Align(speed, angle []Sample) (Inputs, error) {
	if err := checkOrdered("speed", speed); err != nil {
		return Inputs{}, err
	}
	if err := checkOrdered("angle", angle); err != nil {
		return Inputs{}, err
	}

	in := Inputs{
		Speeds: make([]float64, len(speed)),
		Times:  make([]float64, len(speed)),
		Angles: make([]float64, len(speed)),
	}
	prev := 0.0
	j := -1
	for i, s := range speed {
		for j+1 < len(angle) && angle[j+1].Time <= s.Time {
			j++
		}
		in.Speeds[i] = s.Value
		in.Times[i] = (s.Time - prev) * 1000
		if j >= 0 {
			in.Angles[i] = angle[j].Value
		}
		prev = s.Time
	}
	return in, nil
}

func checkOrdered(name string, samples []Sample) error {
	for i := 1; i < len(samples); i++ {
		if samples[i].Time < samples[i-1].Time {
			return fmt.Errorf("%w: %s sample %d at %.3fs follows %.3fs",
				ErrUnordered, name, i, samples[i].Time, samples[i-1].Time)
		}
	}
	return nil
}
