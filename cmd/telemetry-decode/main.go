// Command telemetry-decode decodes a capture of telemetry frames or
// ID/Timestamp/Data rows into calibrated readings, prints a JSON run report,
// and optionally reconstructs the vehicle track.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/telemetry.report/internal/config"
	"github.com/banshee-data/telemetry.report/internal/kinematics"
	"github.com/banshee-data/telemetry.report/internal/monitoring"
	"github.com/banshee-data/telemetry.report/internal/sensor"
	"github.com/banshee-data/telemetry.report/internal/telemetry"
	"github.com/banshee-data/telemetry.report/internal/units"
	"github.com/banshee-data/telemetry.report/internal/version"
)

const (
	modeRows   = "rows"
	modeFrames = "frames"
)

var (
	input       = flag.String("input", "-", "Input file, or - for stdin")
	mode        = flag.String("mode", modeRows, "Input format: rows (CSV with ID,Timestamp,Data) or frames (one 121-bit frame per line)")
	configPath  = flag.String("config", "", "Optional decode config JSON (see "+config.DefaultConfigPath+")")
	track       = flag.Bool("track", false, "Reconstruct the vehicle track from wheel speed and steering angle")
	readings    = flag.Bool("readings", false, "Include every decoded reading in the output")
	strict      = flag.Bool("strict", false, "Abort on the first bad frame or row instead of dropping it")
	workers     = flag.Int("workers", -1, "Frame decode workers (overrides config; 0 means GOMAXPROCS)")
	speedUnits  = flag.String("units", "", "Speed units for the final snapshot: "+units.GetValidUnitsString())
	metricsOut  = flag.String("metrics-out", "", "Write Prometheus metrics in text format to this file")
	debug       = flag.Bool("debug", false, "Log every rejected frame or row")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the resolved configuration for one run.
type options struct {
	mode       string
	cfg        *config.DecodeConfig
	track      bool
	readings   bool
	metricsOut string
}

// SnapshotOut is the vehicle state at the last decoded timestamp.
type SnapshotOut struct {
	Time        float64  `json:"time"`
	Speed       *float64 `json:"speed,omitempty"`
	SpeedUnits  string   `json:"speed_units"`
	Accelerator *float64 `json:"accelerator,omitempty"`
	Brake       *float64 `json:"brake,omitempty"`
	Steering    *float64 `json:"steering,omitempty"`
}

// ReadingOut is a reading with non-finite values rendered as null.
type ReadingOut struct {
	Timestamp float64  `json:"timestamp"`
	Raw       *float64 `json:"raw"`
	Value     *float64 `json:"value"`
}

// SeriesOut lists one sensor's readings.
type SeriesOut struct {
	Sensor   string       `json:"sensor"`
	Name     string       `json:"name"`
	Readings []ReadingOut `json:"readings"`
}

// TrackPoint is a track position with non-finite coordinates rendered as null.
type TrackPoint struct {
	Index   int      `json:"index"`
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	Heading *float64 `json:"heading"` // degrees
}

// Output is the JSON document written to stdout.
type Output struct {
	Version string                `json:"version"`
	Report  telemetry.Report      `json:"report"`
	Final   *SnapshotOut          `json:"final,omitempty"`
	Track   []TrackPoint          `json:"track,omitempty"`
	Series  []SeriesOut           `json:"series,omitempty"`
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("telemetry-decode", version.String())
		return
	}

	opts, err := resolveOptions()
	if err != nil {
		log.Fatalf("invalid options: %v", err)
	}
	monitoring.SetDebug(opts.cfg.GetDebug())

	in, closeIn, err := openInput(*input)
	if err != nil {
		log.Fatalf("failed to open input: %v", err)
	}
	defer closeIn()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, in, os.Stdout); err != nil {
		log.Fatalf("decode failed: %v", err)
	}
}

func resolveOptions() (options, error) {
	cfg := config.DefaultDecodeConfig()
	if *configPath != "" {
		loaded, err := config.LoadDecodeConfig(*configPath)
		if err != nil {
			return options{}, err
		}
		cfg = loaded
	}

	// explicit flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strict":
			cfg.Strict = strict
		case "workers":
			cfg.Workers = workers
		case "units":
			cfg.SpeedUnits = speedUnits
		case "debug":
			cfg.Debug = debug
		}
	})
	if err := cfg.Validate(); err != nil {
		return options{}, err
	}
	if *mode != modeRows && *mode != modeFrames {
		return options{}, fmt.Errorf("unknown mode %q, expected %s or %s", *mode, modeRows, modeFrames)
	}

	return options{
		mode:       *mode,
		cfg:        cfg,
		track:      *track,
		readings:   *readings,
		metricsOut: *metricsOut,
	}, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("failed to close input: %v", err)
		}
	}, nil
}

// run decodes everything from in and writes the JSON output to out.
func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	calibrator, err := opts.cfg.LoadCalibrator()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	pipeline, err := telemetry.NewPipeline(telemetry.Options{
		Calibrator:   calibrator,
		SkipChecksum: !opts.cfg.GetVerifyChecksum(),
		Workers:      opts.cfg.GetWorkers(),
		Metrics:      telemetry.NewMetrics(reg),
	})
	if err != nil {
		return err
	}

	var (
		results []telemetry.Result
		source  string
	)
	switch opts.mode {
	case modeFrames:
		source = telemetry.SourceFrames
		frames, err := readFrames(in)
		if err != nil {
			return err
		}
		results, err = pipeline.DecodeFramesParallel(ctx, frames)
		if err != nil {
			return err
		}
	default:
		source = telemetry.SourceRows
		table, err := telemetry.ReadTable(in)
		if err != nil {
			return err
		}
		results, err = pipeline.DecodeTable(table)
		if err != nil {
			return err
		}
	}

	if opts.cfg.GetStrict() {
		if err := telemetry.FirstError(results); err != nil {
			return err
		}
	}

	ok, failed := telemetry.Readings(results)
	log.Printf("decoded %d of %d %s (%d dropped)", len(ok), len(results), source, len(failed))
	if monitoring.DebugEnabled() {
		for kind, n := range failureKinds(failed) {
			log.Printf("dropped %d %s as %s", n, source, kind)
		}
	}

	groups, err := telemetry.GroupBySensor(pipeline.Catalog(), ok)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if len(g.Readings) > 0 && !g.Ordered() {
			log.Printf("warning: %s readings are not in timestamp order", g.Sensor.Key)
		}
	}

	doc := Output{
		Version: version.Version,
		Report:  telemetry.NewReport(source, results, groups),
		Final:   finalSnapshot(groups, opts.cfg.GetSpeedUnits()),
	}

	if opts.track {
		positions, err := reconstructTrack(groups)
		if err != nil {
			return err
		}
		doc.Track = trackPoints(positions)
	}

	if opts.readings {
		for _, g := range groups {
			if len(g.Readings) == 0 {
				continue
			}
			so := SeriesOut{Sensor: g.Sensor.Key, Name: g.Sensor.Name, Readings: make([]ReadingOut, len(g.Readings))}
			for i, r := range g.Readings {
				so.Readings[i] = ReadingOut{Timestamp: r.Timestamp, Raw: finite(r.Raw), Value: finite(r.Value)}
			}
			doc.Series = append(doc.Series, so)
		}
	}

	if opts.metricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.metricsOut, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func failureKinds(failed []telemetry.Result) map[string]int {
	kinds := make(map[string]int)
	for _, r := range failed {
		kinds[telemetry.ErrorKind(r.Err)]++
	}
	return kinds
}

// readFrames returns the non-empty lines of in.
func readFrames(in io.Reader) ([]string, error) {
	var frames []string
	scan := bufio.NewScanner(in)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		frames = append(frames, line)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	return frames, nil
}

func finalSnapshot(groups []telemetry.Series, speedUnits string) *SnapshotOut {
	last, seen := 0.0, false
	for _, g := range groups {
		for _, r := range g.Readings {
			if !seen || r.Timestamp > last {
				last, seen = r.Timestamp, true
			}
		}
	}
	if !seen {
		return nil
	}

	snap := telemetry.TakeSnapshot(groups, last)
	out := &SnapshotOut{Time: last, SpeedUnits: speedUnits}
	if v, ok := snap.Speed(); ok {
		out.Speed = finite(units.ConvertSpeed(v, speedUnits))
	}
	if v, ok := snap.Accelerator(); ok {
		out.Accelerator = finite(v)
	}
	if v, ok := snap.Brake(); ok {
		out.Brake = finite(v)
	}
	if v, ok := snap.Steering(); ok {
		out.Steering = finite(v)
	}
	return out
}

// finite returns nil for NaN and the infinities, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// reconstructTrack dead-reckons on the wheel-speed clock with the steering
// angle held between its samples. Non-finite samples are skipped.
func reconstructTrack(groups []telemetry.Series) ([]kinematics.Position, error) {
	var angle []kinematics.Sample
	if steering, ok := telemetry.Lookup(groups, sensor.ANGLE); ok {
		angle = finiteSamples(steering.Samples())
		sort.SliceStable(angle, func(i, j int) bool { return angle[i].Time < angle[j].Time })
	}
	in, err := kinematics.Align(finiteSamples(telemetry.VehicleSpeed(groups)), angle)
	if err != nil {
		return nil, err
	}
	return kinematics.IntegrateTrack(in.Speeds, in.Times, in.Angles)
}

func trackPoints(positions []kinematics.Position) []TrackPoint {
	out := make([]TrackPoint, len(positions))
	for i, p := range positions {
		out[i] = TrackPoint{Index: p.Index, X: finite(p.X), Y: finite(p.Y), Heading: finite(p.Heading)}
	}
	return out
}

func finiteSamples(in []kinematics.Sample) []kinematics.Sample {
	out := in[:0:0]
	for _, s := range in {
		if finite(s.Value) != nil {
			out = append(out, s)
		}
	}
	return out
}
