package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.report/internal/protocol"
	"github.com/banshee-data/telemetry.report/internal/sensor"
	"github.com/banshee-data/telemetry.report/internal/testutil"
)

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := NewPipeline(opts)
	require.NoError(t, err)
	return p
}

func TestDecodeFrame(t *testing.T) {
	p := newTestPipeline(t, Options{})

	r, err := p.DecodeFrame(testutil.Frame(t, 2, 100, 204.6))
	require.NoError(t, err)
	assert.Equal(t, 2, r.SensorID)
	assert.Equal(t, sensor.BRAKE, r.Sensor)
	assert.Equal(t, 0.1, r.Timestamp)
	assert.Equal(t, 204.6, r.Raw)
	assert.InDelta(t, 100.0, r.Value, 1e-9)

	r, err = p.DecodeFrame(testutil.Frame(t, 4, 2000, 511.5))
	require.NoError(t, err)
	assert.Equal(t, sensor.ANGLE, r.Sensor)
	assert.Equal(t, 2.0, r.Timestamp)
	assert.Zero(t, r.Value)
}

func TestDecodeFrameErrors(t *testing.T) {
	p := newTestPipeline(t, Options{})
	good := testutil.Frame(t, 2, 100, 204.6)

	tests := []struct {
		name  string
		frame string
		want  error
		kind  string
	}{
		{"bad checksum", testutil.CorruptCRC(t, good), protocol.ErrChecksumMismatch, KindChecksum},
		{"corrupted payload", testutil.CorruptData(t, good, 10), protocol.ErrChecksumMismatch, KindChecksum},
		{"short", good[:120], protocol.ErrLengthMismatch, KindLengthMismatch},
		{"not bits", strings.Replace(good, "1", "I", 1), protocol.ErrTypeMismatch, KindTypeMismatch},
		{"id outside catalog", testutil.Frame(t, 20, 0, 1), protocol.ErrUnknownSensorID, KindUnknownSensor},
		{"uncalibrated sensor", testutil.Frame(t, 3, 0, 1), protocol.ErrUnknownSensorID, KindUnknownSensor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.DecodeFrame(tt.frame)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, ErrorKind(err))
		})
	}
}

func TestSkipChecksum(t *testing.T) {
	p := newTestPipeline(t, Options{SkipChecksum: true})
	bad := testutil.CorruptCRC(t, testutil.Frame(t, 13, 50, 204.6))

	r, err := p.DecodeFrame(bad)
	require.NoError(t, err)
	assert.Equal(t, sensor.TEMP, r.Sensor)
	assert.InDelta(t, 0, r.Value, 1e-9)
}

func TestNewPipelineValidatesLayout(t *testing.T) {
	_, err := NewPipeline(Options{Layout: protocol.TableLayout()})
	assert.Error(t, err, "table layout has no CRC field")

	_, err = NewPipeline(Options{Layout: protocol.TableLayout(), SkipChecksum: true})
	assert.NoError(t, err)

	narrow := protocol.MustLayout(27, protocol.Field{Name: protocol.FieldID, Width: 11}, protocol.Field{Name: protocol.FieldTimestamp, Width: 16})
	_, err = NewPipeline(Options{Layout: narrow, SkipChecksum: true})
	assert.Error(t, err)
}

func TestPipelineCustomCatalog(t *testing.T) {
	catalog, err := sensor.NewCatalog([]sensor.Sensor{{ID: 0, Key: "SPEED", Name: "Speed"}})
	require.NoError(t, err)
	table, err := sensor.NewCalibrationTable(map[string]sensor.Calibration{"SPEED": {Weight: 2, Bias: 1}})
	require.NoError(t, err)

	p := newTestPipeline(t, Options{Calibrator: sensor.NewCalibrator(catalog, table)})
	r, err := p.DecodeFrame(testutil.Frame(t, 0, 10, 4))
	require.NoError(t, err)
	assert.Equal(t, 6.0, r.Value)

	_, err = p.DecodeFrame(testutil.Frame(t, 1, 10, 4))
	assert.ErrorIs(t, err, protocol.ErrUnknownSensorID)
}

func testFrames(t *testing.T) []string {
	t.Helper()
	var frames []string
	for i := 0; i < 64; i++ {
		id := uint64(i % 16) // 3 and 14 uncalibrated, 15 unknown
		frame := testutil.Frame(t, id, uint64(i*10), float64(i))
		if i%7 == 0 {
			frame = testutil.CorruptCRC(t, frame)
		}
		frames = append(frames, frame)
	}
	return append(frames, "0101")
}

func TestDecodeFramesPerItem(t *testing.T) {
	p := newTestPipeline(t, Options{})
	frames := testFrames(t)
	results := p.DecodeFrames(frames)
	require.Len(t, results, len(frames))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		want, wantErr := p.DecodeFrame(frames[i])
		if wantErr != nil {
			assert.Equal(t, ErrorKind(wantErr), ErrorKind(r.Err), "item %d", i)
			continue
		}
		assert.True(t, r.OK())
		assert.Equal(t, want, r.Reading)
	}

	ok, failed := Readings(results)
	assert.Equal(t, len(frames), len(ok)+len(failed))
	assert.NotEmpty(t, failed)

	err := FirstError(results)
	var item *ItemError
	require.ErrorAs(t, err, &item)
	assert.Equal(t, 0, item.Index) // frame 0 has a corrupted CRC
	assert.ErrorIs(t, err, protocol.ErrChecksumMismatch)
}

func TestDecodeFramesParallelMatchesSequential(t *testing.T) {
	p := newTestPipeline(t, Options{Workers: 4})
	frames := testFrames(t)

	seq := p.DecodeFrames(frames)
	par, err := p.DecodeFramesParallel(context.Background(), frames)
	require.NoError(t, err)
	require.Len(t, par, len(seq))

	for i := range seq {
		assert.Equal(t, seq[i].Index, par[i].Index)
		assert.Equal(t, seq[i].Reading, par[i].Reading)
		assert.Equal(t, ErrorKind(seq[i].Err), ErrorKind(par[i].Err))
	}
}

func TestDecodeFramesParallelCanceled(t *testing.T) {
	p := newTestPipeline(t, Options{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := p.DecodeFramesParallel(ctx, testFrames(t))
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.Equal(t, KindCanceled, ErrorKind(r.Err))
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := newTestPipeline(t, Options{Metrics: m})

	good := testutil.Frame(t, 2, 100, 204.6)
	p.DecodeFrames([]string{good, good, testutil.CorruptCRC(t, good), "1"})

	assert.Equal(t, 2.0, promtest.ToFloat64(m.items.WithLabelValues(SourceFrames, "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.items.WithLabelValues(SourceFrames, KindChecksum)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.items.WithLabelValues(SourceFrames, KindLengthMismatch)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.readings.WithLabelValues(sensor.BRAKE)))

	n, err := promtest.GatherAndCount(reg, "telemetry_batch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
