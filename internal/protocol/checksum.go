package protocol

// ChecksumPrimes weights the eight data bytes, most significant byte first.
// The checksum is a prime-weighted byte sum, not a CRC polynomial; captured
// data depends on this exact procedure.
var ChecksumPrimes = [8]uint64{5, 7, 11, 13, 17, 19, 23, 29}

// Checksum computes the 15-character zero-padded binary checksum of a 64-bit
// data payload. The largest possible sum is 255*124 = 31620, which always fits
// in 15 bits.
func Checksum(data string) (string, error) {
	if err := checkBits(FieldData, data); err != nil {
		return "", err
	}
	if len(data) != DataWidth {
		return "", lengthError(FieldData, DataWidth, len(data))
	}
	return EncodeUnsigned(checksumSum(data), ChecksumWidth), nil
}

// VerifyChecksum reports whether received matches the checksum of data
// character for character. Shape errors (wrong lengths, a payload that is not
// a bit string) are returned as errors; any content mismatch, including a
// garbled checksum of the right length, is simply false.
func VerifyChecksum(data, received string) (bool, error) {
	if len(received) != ChecksumWidth {
		return false, lengthError(FieldCRC, ChecksumWidth, len(received))
	}
	want, err := Checksum(data)
	if err != nil {
		return false, err
	}
	return want == received, nil
}

func checksumSum(data string) uint64 {
	var sum uint64
	for i, w := range ChecksumPrimes {
		var b uint64
		for _, c := range data[i*8 : i*8+8] {
			b = b<<1 | uint64(c-'0')
		}
		sum += b * w
	}
	return sum
}
