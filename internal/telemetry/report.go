package telemetry

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Report summarises one decode run.
type Report struct {
	RunID    uuid.UUID      `json:"run_id"`
	Source   string         `json:"source"`
	Total    int            `json:"total"`
	Decoded  int            `json:"decoded"`
	Failures map[string]int `json:"failures,omitempty"` // by ErrorKind
	Sensors  []SensorStats  `json:"sensors"`
}

// SensorStats describes one sensor's calibrated readings. Non-finite values
// are counted but excluded from the statistics.
type SensorStats struct {
	ID        int     `json:"id"`
	Key       string  `json:"key"`
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	NonFinite int     `json:"non_finite,omitempty"`
	Ordered   bool    `json:"ordered"`
	First     float64 `json:"first_timestamp"`
	Last      float64 `json:"last_timestamp"`
	// Summary statistics are nil when there are no finite values or when the
	// result itself overflows.
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"std_dev"`
}

// NewReport builds a report for one batch of results grouped by groups.
func NewReport(source string, results []Result, groups []Series) Report {
	rep := Report{
		RunID:   uuid.New(),
		Source:  source,
		Total:   len(results),
		Sensors: make([]SensorStats, 0, len(groups)),
	}
	for _, r := range results {
		if r.Err == nil {
			rep.Decoded++
			continue
		}
		if rep.Failures == nil {
			rep.Failures = make(map[string]int)
		}
		rep.Failures[ErrorKind(r.Err)]++
	}
	for _, g := range groups {
		rep.Sensors = append(rep.Sensors, Stats(g))
	}
	return rep
}

// Stats computes summary statistics for a series.
func Stats(s Series) SensorStats {
	st := SensorStats{
		ID:      s.Sensor.ID,
		Key:     s.Sensor.Key,
		Name:    s.Sensor.Name,
		Count:   len(s.Readings),
		Ordered: s.Ordered(),
	}
	if st.Count == 0 {
		return st
	}
	st.First = s.Readings[0].Timestamp
	st.Last = s.Readings[st.Count-1].Timestamp

	vals := make([]float64, 0, st.Count)
	for _, v := range s.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			st.NonFinite++
			continue
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return st
	}
	st.Min = finite(floats.Min(vals))
	st.Max = finite(floats.Max(vals))
	if len(vals) == 1 {
		st.Mean, st.StdDev = finite(vals[0]), finite(0)
		return st
	}
	mean, std := stat.MeanStdDev(vals, nil)
	st.Mean, st.StdDev = finite(mean), finite(std)
	return st
}

// finite returns nil for NaN and the infinities.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
