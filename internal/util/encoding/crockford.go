package encoding

import (
	"bytes"
	"errors"
	"strings"
)

const crockfordBase32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ" // Crockford's Base32 alphabet

// ErrInvalidCrockford is returned when decoding input that is not canonical
// lowercase-or-uppercase Crockford base32 as produced by EncodeCrockfordB32LC.
var ErrInvalidCrockford = errors.New("invalid crockford base32")

// EncodeCrockfordB32LC encodes a byte slice using Crockford's Base32 alphabet and returns
// the result in lowercase. This encoding is similar to standard Base32 but uses a modified
// alphabet that eliminates easily confused characters.
//
//nolint:gosec
func EncodeCrockfordB32LC(input []byte) string {
	var (
		result bytes.Buffer
		bits   = 0
		accum  = 0
	)

	for _, b := range input {
		accum = accum<<8 | int(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			result.WriteByte(crockfordBase32Alphabet[(accum>>(bits))&0x1F])
		}
	}

	if bits > 0 {
		result.WriteByte(crockfordBase32Alphabet[(accum<<uint(5-bits))&0x1F])
	}

	return strings.ToLower(result.String())
}

// DecodeCrockfordB32LC reverses EncodeCrockfordB32LC. Input is accepted in either case.
// Trailing padding bits must be zero so every byte slice has exactly one encoding.
func DecodeCrockfordB32LC(input string) ([]byte, error) {
	var (
		result = make([]byte, 0, len(input)*5/8)
		bits   = 0
		accum  = 0
	)

	for i := range len(input) {
		idx := strings.IndexByte(crockfordBase32Alphabet, upper(input[i]))
		if idx < 0 {
			return nil, ErrInvalidCrockford
		}

		accum = (accum<<5 | idx) & 0xFFFF
		bits += 5

		if bits >= 8 {
			bits -= 8
			result = append(result, byte(accum>>bits))
		}
	}

	if bits >= 5 || accum&(1<<bits-1) != 0 {
		return nil, ErrInvalidCrockford
	}

	return result, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}

	return c
}
