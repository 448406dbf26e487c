// Package telemetry runs the frame decode pipeline: parse, decode, checksum,
// calibrate. It produces per-item results so callers can either drop bad
// frames or abort a batch, and groups the surviving readings by sensor.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/banshee-data/telemetry.report/internal/protocol"
)

// Reading is one calibrated, timestamped sensor value.
type Reading struct {
	SensorID  int     `json:"sensor_id"`
	Sensor    string  `json:"sensor"`
	Timestamp float64 `json:"timestamp"` // seconds since run start
	Raw       float64 `json:"raw"`
	Value     float64 `json:"value"` // engineering units
}

// Result is the outcome of decoding one frame or row. Index is the position
// in the input batch.
type Result struct {
	Index   int
	Reading Reading
	Err     error
}

// OK reports whether the item decoded successfully.
func (r Result) OK() bool { return r.Err == nil }

// Failure kinds reported by ErrorKind.
const (
	KindLengthMismatch = "length_mismatch"
	KindTypeMismatch   = "type_mismatch"
	KindUnknownSensor  = "unknown_sensor"
	KindChecksum       = "checksum"
	KindDecode         = "decode"
	KindCanceled       = "canceled"
	KindOther          = "other"
)

// ErrorKind classifies a decode error for counting and reporting.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, protocol.ErrLengthMismatch):
		return KindLengthMismatch
	case errors.Is(err, protocol.ErrTypeMismatch):
		return KindTypeMismatch
	case errors.Is(err, protocol.ErrUnknownSensorID):
		return KindUnknownSensor
	case errors.Is(err, protocol.ErrChecksumMismatch):
		return KindChecksum
	case errors.Is(err, protocol.ErrDecode):
		return KindDecode
	case errors.Is(err, errCanceled):
		return KindCanceled
	default:
		return KindOther
	}
}

// Readings splits results into successful readings (input order) and failures.
func Readings(results []Result) (ok []Reading, failed []Result) {
	ok = make([]Reading, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		ok = append(ok, r.Reading)
	}
	return ok, failed
}

// FirstError returns the first failed result's error, annotated with its
// index, or nil when every item decoded.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return &ItemError{Index: r.Index, Err: r.Err}
		}
	}
	return nil
}

// ItemError ties an error to its position in a batch.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
