package testutil

import (
	"strings"
	"testing"

	"github.com/banshee-data/telemetry.report/internal/protocol"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	_, err := protocol.DecodeData("1")
	AssertError(t, err)
}

func TestFrame(t *testing.T) {
	frame := Frame(t, 2, 100, 1.5)
	if len(frame) != protocol.CANFrameWidth {
		t.Fatalf("frame length = %d, want %d", len(frame), protocol.CANFrameWidth)
	}

	fields, err := protocol.CANLayout().Parse(frame)
	AssertNoError(t, err)
	data, _ := fields.Get(protocol.FieldData)
	crc, _ := fields.Get(protocol.FieldCRC)
	ok, err := protocol.VerifyChecksum(data, crc)
	AssertNoError(t, err)
	if !ok {
		t.Error("fixture frame should carry a valid checksum")
	}

	bad := CorruptCRC(t, frame)
	fields, err = protocol.CANLayout().Parse(bad)
	AssertNoError(t, err)
	data, _ = fields.Get(protocol.FieldData)
	crc, _ = fields.Get(protocol.FieldCRC)
	if ok, _ := protocol.VerifyChecksum(data, crc); ok {
		t.Error("corrupted CRC should not verify")
	}

	if CorruptData(t, frame, 63) == frame {
		t.Error("CorruptData did not change the frame")
	}
}

func TestCSV(t *testing.T) {
	out := CSV(Row{ID: 2, TimestampMs: 100, Value: 1.5})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "ID,Timestamp,Data" {
		t.Errorf("header = %q", lines[0])
	}
	want := "00000000010,0000000001100100,0011111111111000000000000000000000000000000000000000000000000000"
	if lines[1] != want {
		t.Errorf("row = %q, want %q", lines[1], want)
	}
}
