package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/telemetry.report/internal/monitoring"
	"github.com/banshee-data/telemetry.report/internal/protocol"
	"github.com/banshee-data/telemetry.report/internal/sensor"
)

// Batch sources, used as a metrics label.
const (
	SourceFrames = "frames"
	SourceRows   = "rows"
)

var errCanceled = errors.New("telemetry: decode canceled")

// Options configures a Pipeline. Zero values select the reference layout,
// the embedded sensor catalog and calibration table, checksum enforcement
// and GOMAXPROCS workers.
type Options struct {
	Layout     *protocol.Layout
	Calibrator *sensor.Calibrator

	// SkipChecksum accepts frames whose checksum does not match. Readings
	// from such frames are still produced; use only for diagnosing captures.
	SkipChecksum bool

	// Workers bounds DecodeFramesParallel. Values <= 0 mean GOMAXPROCS.
	Workers int

	Metrics *Metrics
}

// Pipeline decodes frames and rows against one immutable configuration.
// Independent pipelines (for example for two protocol revisions) can coexist
// in one process, and a single Pipeline is safe for concurrent use.
type Pipeline struct {
	layout       *protocol.Layout
	calibrator   *sensor.Calibrator
	catalog      *sensor.Catalog
	skipChecksum bool
	workers      int
	metrics      *Metrics
}

// NewPipeline validates opts and builds a pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	p := &Pipeline{
		layout:       opts.Layout,
		calibrator:   opts.Calibrator,
		skipChecksum: opts.SkipChecksum,
		workers:      opts.Workers,
		metrics:      opts.Metrics,
	}
	if p.layout == nil {
		p.layout = protocol.CANLayout()
	}
	if p.calibrator == nil {
		cal, err := defaultCalibrator()
		if err != nil {
			return nil, err
		}
		p.calibrator = cal
	}
	p.catalog = p.calibrator.Catalog()
	if p.workers <= 0 {
		p.workers = runtime.GOMAXPROCS(0)
	}

	required := []protocol.Field{
		{Name: protocol.FieldID, Width: protocol.IDWidth},
		{Name: protocol.FieldTimestamp, Width: protocol.TimestampWidth},
		{Name: protocol.FieldData, Width: protocol.DataWidth},
	}
	if !p.skipChecksum {
		required = append(required, protocol.Field{Name: protocol.FieldCRC, Width: protocol.ChecksumWidth})
	}
	for _, f := range required {
		if w := p.layout.Width(f.Name); w != f.Width {
			return nil, fmt.Errorf("layout field %s has width %d, want %d", f.Name, w, f.Width)
		}
	}
	return p, nil
}

func defaultCalibrator() (*sensor.Calibrator, error) {
	catalog, err := sensor.LoadEmbeddedCatalog()
	if err != nil {
		return nil, err
	}
	table, err := sensor.LoadEmbeddedCalibration()
	if err != nil {
		return nil, err
	}
	return sensor.NewCalibrator(catalog, table), nil
}

// Catalog returns the sensor catalog the pipeline decodes identifiers with.
func (p *Pipeline) Catalog() *sensor.Catalog { return p.catalog }

// Layout returns the frame layout.
func (p *Pipeline) Layout() *protocol.Layout { return p.layout }

// DecodeFrame runs one raw frame through parse, field decode, checksum and
// calibration.
func (p *Pipeline) DecodeFrame(frame string) (Reading, error) {
	fields, err := p.layout.Parse(frame)
	if err != nil {
		return Reading{}, err
	}

	id, err := fields.Require(protocol.FieldID)
	if err != nil {
		return Reading{}, err
	}
	ts, err := fields.Require(protocol.FieldTimestamp)
	if err != nil {
		return Reading{}, err
	}
	data, err := fields.Require(protocol.FieldData)
	if err != nil {
		return Reading{}, err
	}

	if !p.skipChecksum {
		crc, err := fields.Require(protocol.FieldCRC)
		if err != nil {
			return Reading{}, err
		}
		ok, err := protocol.VerifyChecksum(data, crc)
		if err != nil {
			return Reading{}, err
		}
		if !ok {
			want, _ := protocol.Checksum(data)
			return Reading{}, &protocol.FieldError{
				Field:    protocol.FieldCRC,
				Expected: want,
				Actual:   crc,
				Err:      protocol.ErrChecksumMismatch,
			}
		}
	}

	return p.decodeFields(id, ts, data)
}

// decodeFields turns the three payload fields into a calibrated reading.
func (p *Pipeline) decodeFields(id, ts, data string) (Reading, error) {
	s, err := p.catalog.DecodeID(id)
	if err != nil {
		return Reading{}, err
	}
	seconds, err := protocol.DecodeTimestamp(ts)
	if err != nil {
		return Reading{}, err
	}
	raw, err := protocol.DecodeData(data)
	if err != nil {
		return Reading{}, err
	}
	value, err := p.calibrator.Calibrate(s.ID, raw)
	if err != nil {
		return Reading{}, fmt.Errorf("sensor %s: %w", s.Key, err)
	}
	return Reading{
		SensorID:  s.ID,
		Sensor:    s.Key,
		Timestamp: seconds,
		Raw:       raw,
		Value:     value,
	}, nil
}

// DecodeFrames decodes every frame sequentially. Results are index-aligned
// with frames; a failure affects only its own item.
func (p *Pipeline) DecodeFrames(frames []string) []Result {
	started := time.Now()
	out := make([]Result, len(frames))
	for i, frame := range frames {
		out[i] = p.result(i, frame)
	}
	p.metrics.observe(SourceFrames, out, started)
	return out
}

// DecodeFramesParallel decodes frames on a bounded set of goroutines. Frame
// decodes are independent, so results are identical to DecodeFrames. When ctx
// is canceled, undecoded items carry an error and ctx's error is returned.
func (p *Pipeline) DecodeFramesParallel(ctx context.Context, frames []string) ([]Result, error) {
	started := time.Now()
	out := make([]Result, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, frame := range frames {
		i, frame := i, frame
		if gctx.Err() != nil {
			out[i] = Result{Index: i, Err: fmt.Errorf("%w: %v", errCanceled, gctx.Err())}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = Result{Index: i, Err: fmt.Errorf("%w: %v", errCanceled, err)}
				return nil
			}
			out[i] = p.result(i, frame)
			return nil
		})
	}
	_ = g.Wait()

	p.metrics.observe(SourceFrames, out, started)
	return out, ctx.Err()
}

func (p *Pipeline) result(i int, frame string) Result {
	r, err := p.DecodeFrame(frame)
	if err != nil {
		monitoring.Debugf("telemetry: frame %d rejected: %v", i, err)
		return Result{Index: i, Err: err}
	}
	return Result{Index: i, Reading: r}
}
