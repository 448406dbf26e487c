package protocol

import "strings"

// Assemble builds a frame from per-field bit strings. Fields missing from
// values are filled with zeros; a provided value of the wrong width or with
// non-bit characters is rejected.
func (l *Layout) Assemble(values map[string]string) (string, error) {
	for name := range values {
		if !l.Has(name) {
			return "", &FieldError{Field: name, Expected: "layout field", Actual: "unknown", Err: ErrDecode}
		}
	}

	var b strings.Builder
	b.Grow(l.total)
	for _, f := range l.fields {
		bits, ok := values[f.Name]
		if !ok {
			b.WriteString(strings.Repeat("0", f.Width))
			continue
		}
		if err := checkBits(f.Name, bits); err != nil {
			return "", err
		}
		if len(bits) != f.Width {
			return "", lengthError(f.Name, f.Width, len(bits))
		}
		b.WriteString(bits)
	}
	return b.String(), nil
}

// FrameSpec is the decoded content of a frame before encoding.
type FrameSpec struct {
	ID          uint64
	TimestampMs uint64
	Value       float64
}

// EncodeFrame renders a complete CAN-layout frame for f with a valid
// checksum and the fixed bits set to their nominal levels.
func EncodeFrame(f FrameSpec) (string, error) {
	data := EncodeData(f.Value)
	crc, err := Checksum(data)
	if err != nil {
		return "", err
	}
	id := EncodeUnsigned(f.ID, IDWidth)
	if len(id) != IDWidth {
		return "", lengthError(FieldID, IDWidth, len(id))
	}
	ts := EncodeUnsigned(f.TimestampMs, TimestampWidth)
	if len(ts) != TimestampWidth {
		return "", lengthError(FieldTimestamp, TimestampWidth, len(ts))
	}
	return canLayout.Assemble(map[string]string{
		FieldStartOfFrame:  "1",
		FieldID:            id,
		FieldMessageLength: "1000",
		FieldTimestamp:     ts,
		FieldData:          data,
		FieldCRC:           crc,
		FieldCRCDelimiter:  "1",
		FieldACKSlot:       "1",
		FieldACKDelimiter:  "1",
		FieldEOF:           "1",
		FieldIFS:           "111",
	})
}
