package protocol

import (
	"math"
	"strconv"
	"strings"
)

// Result is one element of a batch decode. Exactly one of Value and Err is
// meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// DecodeUnsigned interprets bits as a big-endian unsigned integer of at most
// 64 bits.
func DecodeUnsigned(bits string) (uint64, error) {
	if err := checkBits("value", bits); err != nil {
		return 0, err
	}
	if len(bits) == 0 || len(bits) > 64 {
		return 0, &FieldError{
			Field:    "value",
			Expected: "1-64 bits",
			Actual:   strconv.Itoa(len(bits)) + " bits",
			Err:      ErrLengthMismatch,
		}
	}
	v, err := strconv.ParseUint(bits, 2, 64)
	if err != nil {
		return 0, &FieldError{Field: "value", Expected: "unsigned binary", Actual: bits, Err: ErrDecode}
	}
	return v, nil
}

// DecodeTimestamp converts a 16-bit millisecond count since run start into
// seconds.
func DecodeTimestamp(bits string) (float64, error) {
	if err := checkBits(FieldTimestamp, bits); err != nil {
		return 0, err
	}
	if len(bits) != TimestampWidth {
		return 0, lengthError(FieldTimestamp, TimestampWidth, len(bits))
	}
	ms, err := DecodeUnsigned(bits)
	if err != nil {
		return 0, err
	}
	return float64(ms) / 1000., nil
}

// DecodeData interprets the 64-bit data field as an IEEE-754 double. Every
// 64-bit pattern is a valid double (NaN and the infinities included), so the
// only failures are shape errors. The value is not calibrated.
func DecodeData(bits string) (float64, error) {
	if err := checkBits(FieldData, bits); err != nil {
		return 0, err
	}
	if len(bits) != DataWidth {
		return 0, lengthError(FieldData, DataWidth, len(bits))
	}
	u, err := DecodeUnsigned(bits)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// EncodeData renders v as the 64-character bit pattern DecodeData accepts.
func EncodeData(v float64) string {
	return EncodeUnsigned(math.Float64bits(v), DataWidth)
}

// EncodeUnsigned renders v as a big-endian bit string left-padded to width.
// Values wider than width are rendered in full.
func EncodeUnsigned(v uint64, width int) string {
	s := strconv.FormatUint(v, 2)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// DecodeTimestamps applies DecodeTimestamp to each element, in order.
func DecodeTimestamps(bits []string) []Result[float64] {
	return DecodeEach(bits, DecodeTimestamp)
}

// DecodeDataSeq applies DecodeData to each element, in order.
func DecodeDataSeq(bits []string) []Result[float64] {
	return DecodeEach(bits, DecodeData)
}

// DecodeEach maps a scalar decoder over an ordered sequence, keeping the
// scalar decoder's per-element error semantics.
func DecodeEach[T any](in []string, fn func(string) (T, error)) []Result[T] {
	out := make([]Result[T], len(in))
	for i, b := range in {
		v, err := fn(b)
		out[i] = Result[T]{Value: v, Err: err}
	}
	return out
}

