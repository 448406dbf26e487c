package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by a Pipeline.
type Metrics struct {
	items        *prometheus.CounterVec // decoded items by outcome
	batchSeconds *prometheus.HistogramVec
	readings     *prometheus.CounterVec // successful readings by sensor key
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// A nil reg creates unregistered collectors, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		items: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_items_total",
				Help: "Frames or rows processed, by outcome (ok or failure kind)",
			},
			[]string{"source", "outcome"},
		),
		batchSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "telemetry_batch_duration_seconds",
				Help:    "Wall time spent decoding one batch",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"source"},
		),
		readings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_readings_total",
				Help: "Calibrated readings produced, by sensor key",
			},
			[]string{"sensor"},
		),
	}
}

func (m *Metrics) observe(source string, results []Result, started time.Time) {
	if m == nil {
		return
	}
	for _, r := range results {
		if r.Err != nil {
			m.items.WithLabelValues(source, ErrorKind(r.Err)).Inc()
			continue
		}
		m.items.WithLabelValues(source, "ok").Inc()
		m.readings.WithLabelValues(r.Reading.Sensor).Inc()
	}
	m.batchSeconds.WithLabelValues(source).Observe(time.Since(started).Seconds())
}
