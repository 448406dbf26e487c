// Package testutil provides shared test helpers and frame fixtures.
//
// Fixtures are built through the real encoder so tests exercise the same
// layout and checksum rules as the decoder.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/banshee-data/telemetry.report/internal/protocol"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Frame encodes a valid 121-bit frame or fails the test.
func Frame(t testing.TB, id uint64, timestampMs uint64, value float64) string {
	t.Helper()
	frame, err := protocol.EncodeFrame(protocol.FrameSpec{ID: id, TimestampMs: timestampMs, Value: value})
	if err != nil {
		t.Fatalf("encode frame id=%d ts=%d: %v", id, timestampMs, err)
	}
	return frame
}

// CorruptCRC flips the first checksum bit of a valid frame.
func CorruptCRC(t testing.TB, frame string) string {
	t.Helper()
	start, _, ok := protocol.CANLayout().Offset(protocol.FieldCRC)
	if !ok || len(frame) != protocol.CANFrameWidth {
		t.Fatalf("not a CAN frame: %q", frame)
	}
	return flip(frame, start)
}

// CorruptData flips one payload bit (0 = most significant) of a valid frame.
func CorruptData(t testing.TB, frame string, bit int) string {
	t.Helper()
	start, end, ok := protocol.CANLayout().Offset(protocol.FieldData)
	if !ok || start+bit >= end || len(frame) != protocol.CANFrameWidth {
		t.Fatalf("cannot corrupt data bit %d of %q", bit, frame)
	}
	return flip(frame, start+bit)
}

func flip(s string, i int) string {
	b := []byte(s)
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}

// Row is one ID/Timestamp/Data record of the tabular input.
type Row struct {
	ID          uint64
	TimestampMs uint64
	Value       float64
}

// Cells renders r as the three bit-string cells of a table row.
func (r Row) Cells() []string {
	return []string{
		protocol.EncodeUnsigned(r.ID, protocol.IDWidth),
		protocol.EncodeUnsigned(r.TimestampMs, protocol.TimestampWidth),
		protocol.EncodeData(r.Value),
	}
}

// CSV renders rows as comma-separated text with an ID,Timestamp,Data header.
func CSV(rows ...Row) string {
	var b strings.Builder
	b.WriteString("ID,Timestamp,Data\n")
	for _, r := range rows {
		fmt.Fprintln(&b, strings.Join(r.Cells(), ","))
	}
	return b.String()
}
