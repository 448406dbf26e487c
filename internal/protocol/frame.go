package protocol

import (
	"fmt"
	"strings"
)

// FieldBits is one field's raw sub-bitstring.
type FieldBits struct {
	Name string
	Bits string
}

// Fields holds a parsed frame's fields in layout order.
type Fields []FieldBits

// Get returns the raw bits of the named field.
func (f Fields) Get(name string) (string, bool) {
	for _, fb := range f {
		if fb.Name == name {
			return fb.Bits, true
		}
	}
	return "", false
}

// String reassembles the frame by concatenating every field in order.
func (f Fields) String() string {
	var b strings.Builder
	for _, fb := range f {
		b.WriteString(fb.Bits)
	}
	return b.String()
}

// Parse splits frame into fields, consuming bits left to right in layout order.
// It fails with ErrTypeMismatch if frame contains anything other than '0' and
// '1', and with ErrLengthMismatch if its length differs from the layout total.
func (l *Layout) Parse(frame string) (Fields, error) {
	if err := checkBits("frame", frame); err != nil {
		return nil, err
	}
	if len(frame) != l.total {
		return nil, lengthError("frame", l.total, len(frame))
	}

	out := make(Fields, 0, len(l.fields))
	rest := frame
	for _, f := range l.fields {
		out = append(out, FieldBits{Name: f.Name, Bits: rest[:f.Width]})
		rest = rest[f.Width:]
	}
	return out, nil
}

// ParseBits accepts a frame of unknown representation. Strings and byte slices
// of ASCII bits are parsed; anything else fails with ErrTypeMismatch.
func (l *Layout) ParseBits(v any) (Fields, error) {
	switch frame := v.(type) {
	case string:
		return l.Parse(frame)
	case []byte:
		return l.Parse(string(frame))
	default:
		return nil, typeError("frame", "bit string", v)
	}
}

// ParseResult is the outcome of parsing one frame in a batch.
type ParseResult struct {
	Index  int
	Fields Fields
	Err    error
}

// ParseAll parses every frame independently, preserving input order.
func (l *Layout) ParseAll(frames []string) []ParseResult {
	out := make([]ParseResult, len(frames))
	for i, frame := range frames {
		fields, err := l.Parse(frame)
		out[i] = ParseResult{Index: i, Fields: fields, Err: err}
	}
	return out
}

// Require returns the bits of the named field or a FieldError when absent.
func (f Fields) Require(name string) (string, error) {
	bits, ok := f.Get(name)
	if !ok {
		return "", &FieldError{Field: name, Expected: "present", Actual: "missing", Err: ErrDecode}
	}
	return bits, nil
}

// checkBits fails with ErrTypeMismatch when s has a character other than '0'/'1'.
func checkBits(field, s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return &FieldError{
				Field:    field,
				Expected: "bit string",
				Actual:   fmt.Sprintf("%q at position %d", s[i], i),
				Err:      ErrTypeMismatch,
			}
		}
	}
	return nil
}
