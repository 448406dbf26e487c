// Package protocol describes the CAN-style telemetry frame layout and decodes
// frames into their named fields.
//
// A frame travels as a string of '0'/'1' characters. The reference layout is
// 121 bits wide:
//
//	StartOfFrame(1) ID(11) StuffBit(1) IDE(1) Reserved(1) MessageLength(4)
//	Timestamp(16) DataField(64) CRC(15) CRCDelimiter(1) ACKSlot(1)
//	ACKDelimiter(1) EOF(1) IFS(3)
//
// Fields are consumed from the most significant (leftmost) end first.
package protocol

import (
	"errors"
	"fmt"
)

// Field names used by the reference layouts.
const (
	FieldStartOfFrame  = "StartOfFrame"
	FieldID            = "ID"
	FieldStuffBit      = "StuffBit"
	FieldIDE           = "IDE"
	FieldReserved      = "Reserved"
	FieldMessageLength = "MessageLength"
	FieldTimestamp     = "Timestamp"
	FieldData          = "DataField"
	FieldCRC           = "CRC"
	FieldCRCDelimiter  = "CRCDelimiter"
	FieldACKSlot       = "ACKSlot"
	FieldACKDelimiter  = "ACKDelimiter"
	FieldEOF           = "EOF"
	FieldIFS           = "IFS"
)

// Widths of the fields shared by the frame and tabular layouts.
const (
	IDWidth        = 11
	TimestampWidth = 16
	DataWidth      = 64
	ChecksumWidth  = 15

	CANFrameWidth   = 121
	TableFrameWidth = IDWidth + TimestampWidth + DataWidth // 91
)

// Field is one named, fixed-width region within a frame.
type Field struct {
	Name  string
	Width int
}

// Layout is an ordered sequence of fields whose widths sum to Total.
// A Layout is immutable after construction and safe to share between goroutines.
type Layout struct {
	total   int
	fields  []Field
	offsets map[string][2]int
}

// NewLayout validates fields against the declared total width.
func NewLayout(total int, fields ...Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, errors.New("protocol: layout has no fields")
	}

	l := &Layout{
		total:   total,
		fields:  make([]Field, len(fields)),
		offsets: make(map[string][2]int, len(fields)),
	}
	copy(l.fields, fields)

	offset := 0
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("protocol: field %d has no name", i)
		}
		if f.Width <= 0 {
			return nil, fmt.Errorf("protocol: field %s has non-positive width %d", f.Name, f.Width)
		}
		if _, dup := l.offsets[f.Name]; dup {
			return nil, fmt.Errorf("protocol: duplicate field %s", f.Name)
		}
		l.offsets[f.Name] = [2]int{offset, offset + f.Width}
		offset += f.Width
	}

	if offset != total {
		return nil, fmt.Errorf("protocol: field widths sum to %d, layout declares %d", offset, total)
	}
	return l, nil
}

// MustLayout is like NewLayout but panics on an invalid layout. A malformed
// static layout is a configuration error, not something to handle at runtime.
func MustLayout(total int, fields ...Field) *Layout {
	l, err := NewLayout(total, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

var (
	canLayout = MustLayout(CANFrameWidth,
		Field{FieldStartOfFrame, 1},
		Field{FieldID, IDWidth},
		Field{FieldStuffBit, 1},
		Field{FieldIDE, 1},
		Field{FieldReserved, 1},
		Field{FieldMessageLength, 4},
		Field{FieldTimestamp, TimestampWidth},
		Field{FieldData, DataWidth},
		Field{FieldCRC, ChecksumWidth},
		Field{FieldCRCDelimiter, 1},
		Field{FieldACKSlot, 1},
		Field{FieldACKDelimiter, 1},
		Field{FieldEOF, 1},
		Field{FieldIFS, 3},
	)

	tableLayout = MustLayout(TableFrameWidth,
		Field{FieldID, IDWidth},
		Field{FieldTimestamp, TimestampWidth},
		Field{FieldData, DataWidth},
	)
)

// CANLayout returns the 121-bit reference frame layout.
func CANLayout() *Layout { return canLayout }

// TableLayout returns the 91-bit ID/Timestamp/Data layout used by tabular rows.
func TableLayout() *Layout { return tableLayout }

// Total returns the declared frame width in bits.
func (l *Layout) Total() int { return l.total }

// Fields returns a copy of the fields in frame order.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// Offset returns the half-open bit range [start, end) of the named field.
func (l *Layout) Offset(name string) (start, end int, ok bool) {
	r, ok := l.offsets[name]
	return r[0], r[1], ok
}

// Width returns the width of the named field, or 0 if the layout lacks it.
func (l *Layout) Width(name string) int {
	r, ok := l.offsets[name]
	if !ok {
		return 0
	}
	return r[1] - r[0]
}

// Has reports whether the layout defines the named field.
func (l *Layout) Has(name string) bool {
	_, ok := l.offsets[name]
	return ok
}
